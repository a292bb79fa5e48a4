// Package engine implements the search-engine core: fixed-width arithmetic,
// the residue pre-filter, the digit-scan kernels, and the range executor
// that drives them across worker goroutines and (optionally) a GPU.
package engine

import "github.com/holiman/uint256"

// Square128To256 returns n*n. The caller guarantees n fits in 128 bits, so
// the product always fits in the 256-bit result without truncation.
func Square128To256(n *uint256.Int) *uint256.Int {
	return new(uint256.Int).Mul(n, n)
}

// Cube128To256 returns n*square, i.e. n^3. The search ranges targeted here
// are bounded such that the true (384-bit) cube's top 128 bits are always
// zero, so the 256-bit wraparound in Mul never loses real digits for
// in-range candidates.
func Cube128To256(n, square *uint256.Int) *uint256.Int {
	return new(uint256.Int).Mul(square, n)
}

// DivModSmall divides n by a base that fits in a uint64, returning the
// quotient and the remainder (the next digit).
func DivModSmall(n *uint256.Int, base uint64) (quotient *uint256.Int, digit uint64) {
	if base == 0 {
		panic("engine: division by zero base")
	}
	b := uint256.NewInt(base)
	q := new(uint256.Int)
	r := new(uint256.Int)
	q.DivMod(n, b, r)
	return q, r.Uint64()
}

// DigitsLSBFirst repeatedly divides n by base, collecting remainders until
// the value reaches zero. Digits are emitted least-significant-first;
// callers that only need the digit set (every caller in this package)
// don't need to reverse them.
func DigitsLSBFirst(n *uint256.Int, base uint64) []uint64 {
	var digits []uint64
	cur := new(uint256.Int).Set(n)
	for !cur.IsZero() {
		var d uint64
		cur, d = DivModSmall(cur, base)
		digits = append(digits, d)
	}
	return digits
}

// HornerEval reconstructs a number from its LSB-first base-b digits
// (encode then reconstruct recovers the original for all n < 2^256).
func HornerEval(digitsLSBFirst []uint64, base uint64) *uint256.Int {
	result := new(uint256.Int)
	b := uint256.NewInt(base)
	for i := len(digitsLSBFirst) - 1; i >= 0; i-- {
		result.Mul(result, b)
		result.AddUint64(result, digitsLSBFirst[i])
	}
	return result
}
