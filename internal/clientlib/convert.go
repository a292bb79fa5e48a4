package clientlib

import (
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// decimalToUint256 and uint256ToDecimal bridge the wire representation
// (decimal strings, since candidates can exceed 2^53) and the engine's
// native 256-bit integers.
func decimalToUint256(d decimal.Decimal) *uint256.Int {
	n := new(uint256.Int)
	_ = n.SetFromDecimal(d.StringFixed(0))
	return n
}

func uint256ToDecimal(n *uint256.Int) decimal.Decimal {
	d, _ := decimal.NewFromString(n.Dec())
	return d
}
