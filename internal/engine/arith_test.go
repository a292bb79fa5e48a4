package engine

import (
	"testing"

	"github.com/holiman/uint256"
)

func TestDigitsRoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 9, 10, 4761, 328509, 69, 1<<63 - 1}
	bases := []uint64{2, 10, 16, 40, 80}

	for _, base := range bases {
		for _, v := range cases {
			n := uint256.NewInt(v)
			digits := DigitsLSBFirst(n, base)
			got := HornerEval(digits, base)
			if got.Cmp(n) != 0 {
				t.Errorf("base %d: round-trip failed for %d: got %s", base, v, got.Dec())
			}
		}
	}
}

func TestKnownNiceNumber69Base10(t *testing.T) {
	// 69^2 = 4761, 69^3 = 328509; concatenated digit set is {0..9}.
	n := uint256.NewInt(69)
	sq := Square128To256(n)
	cu := Cube128To256(n, sq)

	if sq.Uint64() != 4761 {
		t.Fatalf("69^2 = %s, want 4761", sq.Dec())
	}
	if cu.Uint64() != 328509 {
		t.Fatalf("69^3 = %s, want 328509", cu.Dec())
	}

	if !isNice(n, 10) {
		t.Errorf("69 should be nice in base 10")
	}
}

func TestSquareCube(t *testing.T) {
	n := uint256.NewInt(12)
	sq := Square128To256(n)
	if sq.Uint64() != 144 {
		t.Fatalf("12^2 = %s, want 144", sq.Dec())
	}
	cu := Cube128To256(n, sq)
	if cu.Uint64() != 1728 {
		t.Fatalf("12^3 = %s, want 1728", cu.Dec())
	}
}
