package engine

import (
	"testing"

	"github.com/holiman/uint256"
)

// TestResidueFilterSoundness checks the quantified invariant: for every n
// that is actually nice in base b, n mod (b-1) must be in R_b.
// We can't enumerate "every n", so this scans a bounded window and cross
// checks every discovered nice number against the filter.
func TestResidueFilterSoundness(t *testing.T) {
	for _, base := range []uint64{10, 12, 16} {
		filter := BuildFilter(base)
		for v := uint64(1); v < 20000; v++ {
			n := uint256.NewInt(v)
			if !isNice(n, base) {
				continue
			}
			if !filter.Passes(n) {
				t.Fatalf("base %d: nice number %d excluded by residue filter", base, v)
			}
		}
	}
}

func TestResidueFilterBase2AdmitsEverything(t *testing.T) {
	filter := BuildFilter(2)
	for v := uint64(0); v < 1000; v++ {
		if !filter.Passes(uint256.NewInt(v)) {
			t.Fatalf("base 2 filter should admit every candidate, rejected %d", v)
		}
	}
}

func TestResidueFilterBase11IsEmpty(t *testing.T) {
	// R_11 is empty.
	filter := BuildFilter(11)
	if !filter.Empty() {
		t.Fatalf("expected R_11 to be empty")
	}
}

// TestMod64MatchesFullDivision cross-checks the limb-folding reduction
// against uint256's full-width Mod across word boundaries.
func TestMod64MatchesFullDivision(t *testing.T) {
	values := []*uint256.Int{
		uint256.NewInt(0),
		uint256.NewInt(38),
		uint256.NewInt(1<<63 - 1),
		new(uint256.Int).Lsh(uint256.NewInt(1), 64),
		new(uint256.Int).Lsh(uint256.NewInt(12345), 128),
		new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 255), uint256.NewInt(1)),
	}
	for _, m := range []uint64{1, 9, 39, 79, 1<<32 - 1} {
		for _, v := range values {
			want := new(uint256.Int).Mod(v, uint256.NewInt(m)).Uint64()
			if got := mod64(v, m); got != want {
				t.Fatalf("mod64(%s, %d) = %d, want %d", v.Dec(), m, got, want)
			}
		}
	}
}

func TestLSDFilterSoundness(t *testing.T) {
	for _, base := range []uint64{10, 12, 16} {
		lsd := BuildLSDFilter(base)
		for v := uint64(1); v < 20000; v++ {
			n := uint256.NewInt(v)
			if !isNice(n, base) {
				continue
			}
			if !lsd.Passes(n) {
				t.Fatalf("base %d: nice number %d excluded by LSD filter", base, v)
			}
		}
	}
}
