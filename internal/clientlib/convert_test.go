package clientlib

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

func TestDecimalUint256RoundTrip(t *testing.T) {
	cases := []string{"0", "1", "69", "4134931983708", "18446744073709551615"}
	for _, s := range cases {
		d, err := decimal.NewFromString(s)
		if err != nil {
			t.Fatalf("decimal.NewFromString(%q): %v", s, err)
		}
		n := decimalToUint256(d)
		back := uint256ToDecimal(n)
		if !back.Equal(d) {
			t.Fatalf("round-trip mismatch for %s: got %s", s, back.String())
		}
	}
}

func TestUint256ToDecimalMatchesDec(t *testing.T) {
	n := uint256.NewInt(328509)
	d := uint256ToDecimal(n)
	if d.String() != "328509" {
		t.Fatalf("expected 328509, got %s", d.String())
	}
}
