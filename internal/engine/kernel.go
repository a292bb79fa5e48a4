package engine

import (
	"context"
	"math/bits"
	"sort"

	"github.com/holiman/uint256"
)

// Mode selects which of the two digit-scan kernels a range
// executor runs.
type Mode int

const (
	ModeNiceOnly Mode = iota
	ModeDetailed
)

// NotableThreshold returns the num_uniques a candidate must strictly
// exceed to be considered "notable". The convention is strict '>' against
// floor(0.9*b), not '>='.
func NotableThreshold(base uint64) uint64 {
	return (9 * base) / 10
}

// seenBits is a fixed-size bit vector tracking which digits have appeared
// so far, sized to the base rather than hardcoded to 128 bits so bases
// above 128 (e.g. the hi-base benchmark) are still correct.
type seenBits struct {
	words []uint64
}

func newSeenBits(base uint64) *seenBits {
	return &seenBits{words: make([]uint64, (base+63)/64)}
}

// testAndSet sets bit d and reports whether it was already set.
func (s *seenBits) testAndSet(d uint64) bool {
	w, b := d/64, d%64
	mask := uint64(1) << b
	already := s.words[w]&mask != 0
	s.words[w] |= mask
	return already
}

func (s *seenBits) popcount() uint64 {
	var c uint64
	for _, w := range s.words {
		c += uint64(bits.OnesCount64(w))
	}
	return c
}

// DetailedResult is the output of the detailed kernel over a batch of
// candidates: a histogram of num_uniques and the set of notable numbers.
type DetailedResult struct {
	Distribution map[uint64]int64
	Notable      []NotableNumber
}

// NotableNumber is a candidate whose num_uniques exceeded NotableThreshold.
type NotableNumber struct {
	Number     *uint256.Int
	NumUniques uint64
}

// DigitScanner abstracts the digit-scan kernels so the range executor is
// oblivious to whether candidates are processed on the CPU or dispatched to
// a GPU.
type DigitScanner interface {
	ScanNiceOnly(ctx context.Context, candidates []*uint256.Int, base uint64) ([]*uint256.Int, error)
	ScanDetailed(ctx context.Context, candidates []*uint256.Int, base uint64) (DetailedResult, error)
}

// CPUScanner is the scalar CPU implementation of both kernels, always
// available regardless of GPU support.
type CPUScanner struct{}

// ScanNiceOnly exits early on the first duplicate digit; the output is
// the set of candidates that are nice.
func (CPUScanner) ScanNiceOnly(ctx context.Context, candidates []*uint256.Int, base uint64) ([]*uint256.Int, error) {
	var nice []*uint256.Int
	for _, n := range candidates {
		select {
		case <-ctx.Done():
			return nice, ctx.Err()
		default:
		}
		if isNice(n, base) {
			nice = append(nice, n)
		}
	}
	sort.Slice(nice, func(i, j int) bool { return nice[i].Cmp(nice[j]) < 0 })
	return nice, nil
}

func isNice(n *uint256.Int, base uint64) bool {
	seen := newSeenBits(base)
	sq := Square128To256(n)
	cu := Cube128To256(n, sq)
	for _, digits := range [][]uint64{DigitsLSBFirst(sq, base), DigitsLSBFirst(cu, base)} {
		for _, d := range digits {
			if seen.testAndSet(d) {
				return false
			}
		}
	}
	return seen.popcount() == base
}

// ScanDetailed never exits early: every candidate contributes its
// num_uniques to the histogram and, if notable, to the notable-number list.
func (CPUScanner) ScanDetailed(ctx context.Context, candidates []*uint256.Int, base uint64) (DetailedResult, error) {
	result := DetailedResult{Distribution: make(map[uint64]int64)}
	threshold := NotableThreshold(base)
	for _, n := range candidates {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}
		seen := newSeenBits(base)
		sq := Square128To256(n)
		cu := Cube128To256(n, sq)
		for _, digits := range [][]uint64{DigitsLSBFirst(sq, base), DigitsLSBFirst(cu, base)} {
			for _, d := range digits {
				seen.testAndSet(d)
			}
		}
		uniques := seen.popcount()
		result.Distribution[uniques]++
		if uniques > threshold {
			result.Notable = append(result.Notable, NotableNumber{
				Number:     new(uint256.Int).Set(n),
				NumUniques: uniques,
			})
		}
	}
	sort.Slice(result.Notable, func(i, j int) bool {
		return result.Notable[i].Number.Cmp(result.Notable[j].Number) < 0
	})
	return result, nil
}
