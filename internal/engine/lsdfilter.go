package engine

import "github.com/holiman/uint256"

// LSDFilter is an optional coarse filter, applied only in niceonly mode:
// a nice number's n^2 and n^3 occupy distinct positions
// in the combined pandigital digit stream, so their least-significant
// digits must differ. Both LSDs are determined entirely by r = n mod base,
// so the filter is a precomputed lookup over residues, same as
// ResidueFilter, and is sound by the same every-digit-unique argument that
// makes a nice number nice in the first place.
type LSDFilter struct {
	base uint64
	ok   []bool
}

// BuildLSDFilter precomputes, for every residue r in [0, base), whether the
// least-significant digit of r^2 differs from that of r^3 mod base.
func BuildLSDFilter(base uint64) *LSDFilter {
	ok := make([]bool, base)
	b := uint256.NewInt(base)
	for r := uint64(0); r < base; r++ {
		rU := uint256.NewInt(r)
		sqLSD := new(uint256.Int).MulMod(rU, rU, b)
		cuLSD := new(uint256.Int).MulMod(sqLSD, rU, b)
		ok[r] = sqLSD.Uint64() != cuLSD.Uint64()
	}
	return &LSDFilter{base: base, ok: ok}
}

// Passes reports whether n's LSD pair can possibly be nice.
func (f *LSDFilter) Passes(n *uint256.Int) bool {
	return f.ok[mod64(n, f.base)]
}
