package engine

import (
	"math/bits"

	"github.com/bits-and-blooms/bitset"
	"github.com/holiman/uint256"
)

// ResidueFilter is the sound-but-incomplete mod-(b-1) pre-filter derived
// from the pandigital digit-sum identity: if n is nice in base b, n mod
// (b-1) must land in the precomputed residue set R_b.
//
// Membership is a dense bitset rather than a hash set — constant factor
// matters in the hot candidate loop.
type ResidueFilter struct {
	base uint64
	bits *bitset.BitSet // nil means "every residue passes" (the b=2 case)
}

// BuildFilter precomputes R_b = { r in [0, b-1) : (r^2+r^3) mod (b-1) == (b(b-1)/2) mod (b-1) }.
// Deterministic, pure, O(b).
func BuildFilter(b uint64) *ResidueFilter {
	if b < 2 {
		panic("engine: base must be >= 2")
	}
	mod := b - 1
	if mod == 0 {
		// b == 2: mod-1 is 0 for every n, so every candidate's residue
		// trivially matches. The filter admits everything.
		return &ResidueFilter{base: b}
	}

	modU := uint256.NewInt(mod)
	target := digitSumTarget(b, modU)

	bits := bitset.New(uint(mod))
	for r := uint64(0); r < mod; r++ {
		if residueValue(r, modU) == target {
			bits.Set(uint(r))
		}
	}
	return &ResidueFilter{base: b, bits: bits}
}

// digitSumTarget computes (b*(b-1)/2) mod m using 256-bit arithmetic so the
// b*(b-1) product never overflows a machine word for large bases.
func digitSumTarget(b uint64, m *uint256.Int) uint64 {
	bU := uint256.NewInt(b)
	bm1 := uint256.NewInt(b - 1)
	prod := new(uint256.Int).Mul(bU, bm1)
	half := new(uint256.Int).Rsh(prod, 1) // b*(b-1) is always even
	return new(uint256.Int).Mod(half, m).Uint64()
}

// residueValue computes (r^2 + r^3) mod m.
func residueValue(r uint64, m *uint256.Int) uint64 {
	rU := uint256.NewInt(r)
	r2 := new(uint256.Int).MulMod(rU, rU, m)
	r3 := new(uint256.Int).MulMod(r2, rU, m)
	sum := new(uint256.Int).AddMod(r2, r3, m)
	return sum.Uint64()
}

// mod64 reduces a 256-bit value modulo a small m without a full-width
// division: limbs are folded in from the top, one 128-by-64 divide each, so
// the cost is four machine divisions regardless of n. This is the hot-loop
// path; the full uint256 DivMod stays reserved for digit extraction where
// the quotient is actually needed.
func mod64(n *uint256.Int, m uint64) uint64 {
	var r uint64
	for i := 3; i >= 0; i-- {
		_, r = bits.Div64(r, n[i], m)
	}
	return r
}

// Passes reports whether n's residue class can possibly be nice. A false
// result is a proof that n is not nice in this base; a true result is not a
// proof that it is.
func (f *ResidueFilter) Passes(n *uint256.Int) bool {
	if f.bits == nil {
		return true
	}
	return f.bits.Test(uint(mod64(n, f.base-1)))
}

// Empty reports whether R_b is provably empty, meaning no nice number
// exists in this base and the coordinator may mark every Field complete
// without evaluating a single candidate.
func (f *ResidueFilter) Empty() bool {
	return f.bits != nil && f.bits.None()
}

// Base returns the base this filter was built for.
func (f *ResidueFilter) Base() uint64 { return f.base }
