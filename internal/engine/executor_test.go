package engine

import (
	"context"
	"reflect"
	"testing"

	"github.com/holiman/uint256"
)

func TestExecutorDeterministicAcrossThreadCounts(t *testing.T) {
	field := Range{Lo: uint256.NewInt(1), Hi: uint256.NewInt(20000)}
	exec := NewExecutor()

	var prev Result
	for i, threads := range []int{1, 2, 8} {
		result, err := exec.Execute(context.Background(), field, 10, ModeDetailed, ExecutorOptions{Threads: threads}, nil)
		if err != nil {
			t.Fatalf("threads=%d: %v", threads, err)
		}
		if i > 0 {
			if !reflect.DeepEqual(result.Distribution, prev.Distribution) {
				t.Fatalf("threads=%d: distribution differs from single-threaded run", threads)
			}
			if len(result.Notable) != len(prev.Notable) {
				t.Fatalf("threads=%d: notable count differs: %d vs %d", threads, len(result.Notable), len(prev.Notable))
			}
		}
		prev = result
	}
}

func TestExecutorEmptyFieldIsNoOp(t *testing.T) {
	lo := uint256.NewInt(100)
	field := Range{Lo: lo, Hi: uint256.NewInt(100)}
	exec := NewExecutor()
	result, err := exec.Execute(context.Background(), field, 10, ModeDetailed, ExecutorOptions{Threads: 4}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Distribution) != 0 {
		t.Fatalf("expected empty distribution for zero-size field, got %v", result.Distribution)
	}
}

func TestExecutorCoversDisjointSubranges(t *testing.T) {
	field := Range{Lo: uint256.NewInt(0), Hi: uint256.NewInt(97)}
	subranges := partition(field, 6)

	covered := make(map[uint64]bool)
	for _, sub := range subranges {
		for v := sub.Lo.Uint64(); v < sub.Hi.Uint64(); v++ {
			if covered[v] {
				t.Fatalf("value %d covered by more than one sub-range", v)
			}
			covered[v] = true
		}
	}
	for v := uint64(0); v < 97; v++ {
		if !covered[v] {
			t.Fatalf("value %d not covered by any sub-range", v)
		}
	}
}

func TestExecutorNiceOnlyFindsKnownNiceNumber(t *testing.T) {
	field := Range{Lo: uint256.NewInt(60), Hi: uint256.NewInt(80)}
	exec := NewExecutor()
	result, err := exec.Execute(context.Background(), field, 10, ModeNiceOnly, ExecutorOptions{Threads: 4}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, n := range result.NiceNumbers {
		if n.Uint64() == 69 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected 69 in nice numbers, got %v", result.NiceNumbers)
	}
}
