// pkg/utils/address.go
package utils

import (
	"fmt"
	"regexp"
)

var addressPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// IsValidAddress validates the 0x-prefixed hex address format.
func IsValidAddress(address string) bool {
	return addressPattern.MatchString(address)
}

// FormatAddress shortens an address for display: 0x1234...abcd.
func FormatAddress(address string) string {
	if len(address) < 10 {
		return address
	}
	return fmt.Sprintf("%s...%s", address[:6], address[len(address)-4:])
}

// ExplorerTxURL returns the block-explorer URL for a transaction hash.
func ExplorerTxURL(explorerBase, txHash string) string {
	return fmt.Sprintf("%s/tx/%s", explorerBase, txHash)
}

// ExplorerAddressURL returns the block-explorer URL for an address.
func ExplorerAddressURL(explorerBase, address string) string {
	return fmt.Sprintf("%s/address/%s", explorerBase, address)
}
