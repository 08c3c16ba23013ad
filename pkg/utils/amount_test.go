// pkg/utils/amount_test.go
package utils

import (
	"math/big"
	"testing"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		decimals int
		want     string
		wantErr  bool
	}{
		{name: "whole units", input: "5", decimals: 18, want: "5"},
		{name: "decimal", input: "1.5", decimals: 18, want: "1500000000000000000"},
		{name: "small fraction", input: "0.0003", decimals: 18, want: "300000000000000"},
		{name: "truncates excess precision", input: "1.1234567890123456789999", decimals: 18, want: "1123456789012345678"},
		{name: "two decimals", input: "12.34", decimals: 2, want: "1234"},
		{name: "garbage", input: "abc", decimals: 18, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input, tt.decimals)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseAmount(%q) succeeded, want error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAmount(%q): %v", tt.input, err)
			}
			want, _ := new(big.Int).SetString(tt.want, 10)
			if got.Cmp(want) != 0 {
				t.Fatalf("ParseAmount(%q) = %s, want %s", tt.input, got, want)
			}
		})
	}
}

func TestFormatBalance(t *testing.T) {
	one := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	half := new(big.Int).Div(one, big.NewInt(2))

	tests := []struct {
		name    string
		balance *big.Int
		want    string
	}{
		{name: "zero", balance: big.NewInt(0), want: "0 ETH"},
		{name: "nil", balance: nil, want: "0 ETH"},
		{name: "whole", balance: one, want: "1 ETH"},
		{name: "fraction", balance: half, want: "0.5 ETH"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatBalance(tt.balance, 18, "ETH"); got != tt.want {
				t.Fatalf("FormatBalance = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatAmount(t *testing.T) {
	one := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	if got := FormatAmount(one, "FLT"); got != "1 FLT" {
		t.Fatalf("FormatAmount = %q, want %q", got, "1 FLT")
	}
	if got := AssetDecimals("FLT"); got != FLTDecimals {
		t.Fatalf("AssetDecimals(FLT) = %d, want %d", got, FLTDecimals)
	}
}

func TestAddressHelpers(t *testing.T) {
	valid := "0x1111111111111111111111111111111111111111"
	if !IsValidAddress(valid) {
		t.Fatal("expected valid address")
	}
	for _, bad := range []string{"", "0x123", "1111111111111111111111111111111111111111", "0xZZ11111111111111111111111111111111111111"} {
		if IsValidAddress(bad) {
			t.Fatalf("expected %q to be invalid", bad)
		}
	}
	if got := FormatAddress(valid); got != "0x1111...1111" {
		t.Fatalf("FormatAddress = %q", got)
	}
	if got := ExplorerTxURL("https://sepolia.etherscan.io", "0xabc"); got != "https://sepolia.etherscan.io/tx/0xabc" {
		t.Fatalf("ExplorerTxURL = %q", got)
	}
	if got := ExplorerAddressURL("https://sepolia.etherscan.io", valid); got != "https://sepolia.etherscan.io/address/"+valid {
		t.Fatalf("ExplorerAddressURL = %q", got)
	}
}
