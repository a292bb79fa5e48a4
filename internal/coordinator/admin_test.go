package coordinator

import (
	"testing"

	"github.com/shopspring/decimal"
)

// TestPartitionDecimalCoversRangeDisjointly checks the field-partitioning
// invariant: consecutive ranges are pairwise disjoint, ordered, and together
// cover [start, end) exactly, including when step does not divide the range.
func TestPartitionDecimalCoversRangeDisjointly(t *testing.T) {
	start := decimal.NewFromInt(100)
	end := decimal.NewFromInt(197)
	step := decimal.NewFromInt(30)

	ranges := partitionDecimal(start, end, step)
	if len(ranges) != 4 {
		t.Fatalf("expected 4 ranges for a 97-wide span with step 30, got %d", len(ranges))
	}
	if !ranges[0][0].Equal(start) {
		t.Fatalf("first range must start at %s, got %s", start, ranges[0][0])
	}
	if !ranges[len(ranges)-1][1].Equal(end) {
		t.Fatalf("last range must end at %s, got %s", end, ranges[len(ranges)-1][1])
	}
	for i := 1; i < len(ranges); i++ {
		if !ranges[i][0].Equal(ranges[i-1][1]) {
			t.Fatalf("range %d starts at %s but previous ends at %s", i, ranges[i][0], ranges[i-1][1])
		}
	}
	for _, r := range ranges {
		if !r[0].LessThan(r[1]) {
			t.Fatalf("range [%s, %s) is empty or inverted", r[0], r[1])
		}
	}
}

func TestPartitionDecimalExactMultiple(t *testing.T) {
	ranges := partitionDecimal(decimal.Zero, decimal.NewFromInt(90), decimal.NewFromInt(30))
	if len(ranges) != 3 {
		t.Fatalf("expected 3 equal ranges, got %d", len(ranges))
	}
	for _, r := range ranges {
		if !r[1].Sub(r[0]).Equal(decimal.NewFromInt(30)) {
			t.Fatalf("expected every range to be exactly 30 wide, got [%s, %s)", r[0], r[1])
		}
	}
}

func TestPartitionDecimalEmptyRange(t *testing.T) {
	ranges := partitionDecimal(decimal.NewFromInt(5), decimal.NewFromInt(5), decimal.NewFromInt(10))
	if len(ranges) != 0 {
		t.Fatalf("expected no ranges for an empty span, got %d", len(ranges))
	}
}
