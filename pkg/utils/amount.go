// pkg/utils/amount.go
package utils

import (
	"fmt"
	"math/big"
	"strings"
)

// Both FLT and ETH carry 18 decimals on-chain.
const (
	ETHDecimals = 18
	FLTDecimals = 18
)

// AssetDecimals returns the decimal places for an asset symbol.
func AssetDecimals(asset string) int {
	switch asset {
	case "ETH":
		return ETHDecimals
	case "FLT":
		return FLTDecimals
	default:
		return 18
	}
}

// FormatBalance formats a smallest-unit balance to a human-readable string.
func FormatBalance(balance *big.Int, decimals int, asset string) string {
	if balance == nil || balance.Cmp(big.NewInt(0)) == 0 {
		return fmt.Sprintf("0 %s", asset)
	}

	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	wholePart := new(big.Int).Div(balance, divisor)
	remainder := new(big.Int).Mod(balance, divisor)

	if remainder.Cmp(big.NewInt(0)) == 0 {
		return fmt.Sprintf("%s %s", wholePart.String(), asset)
	}

	decimalPart := new(big.Float).Quo(
		new(big.Float).SetInt(remainder),
		new(big.Float).SetInt(divisor),
	)

	formatted := fmt.Sprintf("%s%s", wholePart.String(), decimalPart.Text('f', decimals)[1:])

	// Trim trailing zeros
	formatted = strings.TrimRight(strings.TrimRight(formatted, "0"), ".")

	return fmt.Sprintf("%s %s", formatted, asset)
}

// FormatAmount is a shorthand for FormatBalance with per-asset decimals.
func FormatAmount(amount *big.Int, asset string) string {
	return FormatBalance(amount, AssetDecimals(asset), asset)
}

// ParseAmount converts a string amount to big.Int in the smallest unit.
func ParseAmount(amountStr string, decimals int) (*big.Int, error) {
	amountStr = strings.TrimSpace(amountStr)

	// If already in smallest unit (no decimal point), parse directly
	if !strings.Contains(amountStr, ".") {
		amount, ok := new(big.Int).SetString(amountStr, 10)
		if !ok {
			return nil, fmt.Errorf("invalid amount format")
		}
		return amount, nil
	}

	parts := strings.Split(amountStr, ".")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid decimal format")
	}

	wholePart := parts[0]
	decimalPart := parts[1]

	// Pad or truncate the decimal part to match decimals
	if len(decimalPart) > decimals {
		decimalPart = decimalPart[:decimals]
	} else {
		decimalPart = decimalPart + strings.Repeat("0", decimals-len(decimalPart))
	}

	amount, ok := new(big.Int).SetString(wholePart+decimalPart, 10)
	if !ok {
		return nil, fmt.Errorf("failed to parse amount")
	}

	return amount, nil
}

// Int64Ptr returns a pointer to i.
func Int64Ptr(i int64) *int64 {
	return &i
}

// Uint64Ptr returns a pointer to u.
func Uint64Ptr(u uint64) *uint64 {
	return &u
}
