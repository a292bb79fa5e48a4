package engine

import (
	"context"
	"log"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/holiman/uint256"
)

// Range is a half-open candidate range [Lo, Hi) within one base.
type Range struct {
	Lo *uint256.Int
	Hi *uint256.Int
}

// Size returns Hi-Lo. Field sizes in this system are bounded by the
// benchmark/chunk sizing policy, so a uint64 is always
// sufficient even though Lo/Hi themselves may need the full 256 bits.
func (r Range) Size() uint64 {
	return new(uint256.Int).Sub(r.Hi, r.Lo).Uint64()
}

// ExecutorOptions configures a single Execute call.
type ExecutorOptions struct {
	Threads int
	GPU     DigitScanner // optional; nil disables GPU dispatch
	UseLSD  bool         // apply the optional LSD coarse filter (niceonly only)
}

// Result is the deterministic, merged output of a range execution: the
// same (lo, hi, base, mode) always produces the same Distribution and
// Notable/NiceNumbers sets regardless of thread count or CPU/GPU choice.
// Ordering is canonicalized by a numeric sort so tests can compare byte-exact.
type Result struct {
	Distribution map[uint64]int64
	Notable      []NotableNumber
	NiceNumbers  []*uint256.Int
}

// Progress is a coarse, atomically-updated counter a caller can poll while
// Execute runs in the background.
type Progress struct {
	Scanned atomic.Int64
	Total   int64
}

// Executor runs a Field through the residue filter and a DigitScanner
// kernel using a fixed-size worker pool that steals sub-ranges off a shared
// cursor, mirroring the atomic-progress-counter idiom of a block scanner
// iterating a chain.
type Executor struct {
	cpu CPUScanner
}

// NewExecutor returns an Executor. The CPU scanner is always available as
// the GPU fallback path.
func NewExecutor() *Executor {
	return &Executor{}
}

// Execute partitions field into sub-ranges, applies the residue (and,
// with UseLSD, LSD) filter, and runs the requested kernel across
// opts.Threads worker goroutines, merging results deterministically.
//
// Filtering only happens in niceonly mode: the detailed kernel must see
// every candidate, since the submitted distribution has to account for the
// field's full range, including candidates the filters would prove not
// nice.
func (e *Executor) Execute(ctx context.Context, field Range, base uint64, mode Mode, opts ExecutorOptions, progress *Progress) (Result, error) {
	var filter *ResidueFilter
	var lsd *LSDFilter
	if mode == ModeNiceOnly {
		filter = BuildFilter(base)
		if opts.UseLSD {
			lsd = BuildLSDFilter(base)
		}
	}

	threads := opts.Threads
	if threads < 1 {
		threads = 1
	}

	subranges := partition(field, threads*4)

	var cursor int64 = -1
	var mu sync.Mutex
	merged := Result{Distribution: make(map[uint64]int64)}
	var firstErr error

	scanner := opts.GPU
	if scanner == nil {
		scanner = e.cpu
	}

	var wg sync.WaitGroup
	for w := 0; w < threads; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := atomic.AddInt64(&cursor, 1)
				if int(i) >= len(subranges) {
					return
				}
				sub := subranges[i]
				candidates := filterCandidates(sub, filter, lsd)

				if progress != nil {
					progress.Scanned.Add(int64(sub.Size()))
				}

				local, err := e.runKernel(ctx, scanner, mode, candidates, base)

				mu.Lock()
				if err != nil && firstErr == nil {
					firstErr = err
				}
				mergeInto(&merged, local)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	sortResult(&merged)
	return merged, firstErr
}

// runKernel dispatches one sub-range's candidates to scanner. If a GPU scan
// fails mid-run, it logs a warning and rescans that sub-range's candidates
// with the CPU kernel; the next sub-range is offered to the GPU again.
func (e *Executor) runKernel(ctx context.Context, scanner DigitScanner, mode Mode, candidates []*uint256.Int, base uint64) (Result, error) {
	isGPU := scanner != e.cpu
	if mode == ModeNiceOnly {
		nice, err := scanner.ScanNiceOnly(ctx, candidates, base)
		if err != nil && isGPU {
			log.Printf("[WARNING] GPU niceonly scan failed: %v; falling back to CPU kernel", err)
			nice, err = e.cpu.ScanNiceOnly(ctx, candidates, base)
		}
		return Result{NiceNumbers: nice}, err
	}
	detailed, err := scanner.ScanDetailed(ctx, candidates, base)
	if err != nil && isGPU {
		log.Printf("[WARNING] GPU detailed scan failed: %v; falling back to CPU kernel", err)
		detailed, err = e.cpu.ScanDetailed(ctx, candidates, base)
	}
	return Result{Distribution: detailed.Distribution, Notable: detailed.Notable}, err
}

func mergeInto(dst *Result, src Result) {
	for k, v := range src.Distribution {
		dst.Distribution[k] += v
	}
	dst.Notable = append(dst.Notable, src.Notable...)
	dst.NiceNumbers = append(dst.NiceNumbers, src.NiceNumbers...)
}

func sortResult(r *Result) {
	sort.Slice(r.Notable, func(i, j int) bool { return r.Notable[i].Number.Cmp(r.Notable[j].Number) < 0 })
	sort.Slice(r.NiceNumbers, func(i, j int) bool { return r.NiceNumbers[i].Cmp(r.NiceNumbers[j]) < 0 })
}

// partition splits field into up to n roughly-equal sub-ranges. A
// zero-size field still yields exactly one zero-size sub-range, preserving
// the "range of size 0 is a valid no-op Field" boundary behavior.
func partition(field Range, n int) []Range {
	size := field.Size()
	if n < 1 {
		n = 1
	}
	if uint64(n) > size && size > 0 {
		n = int(size)
	}
	if n < 1 {
		n = 1
	}
	chunk := size / uint64(n)

	out := make([]Range, 0, n)
	cur := new(uint256.Int).Set(field.Lo)
	for i := 0; i < n; i++ {
		var hi *uint256.Int
		if i == n-1 {
			hi = new(uint256.Int).Set(field.Hi)
		} else {
			hi = new(uint256.Int).AddUint64(cur, chunk)
		}
		out = append(out, Range{Lo: new(uint256.Int).Set(cur), Hi: hi})
		cur = hi
	}
	return out
}

// filterCandidates enumerates every n in [r.Lo, r.Hi) that passes the
// residue filter (and, if present, the LSD filter). Nil filters admit
// everything.
func filterCandidates(r Range, filter *ResidueFilter, lsd *LSDFilter) []*uint256.Int {
	size := r.Size()
	candidates := make([]*uint256.Int, 0, size)
	cur := new(uint256.Int).Set(r.Lo)
	for i := uint64(0); i < size; i++ {
		if (filter == nil || filter.Passes(cur)) && (lsd == nil || lsd.Passes(cur)) {
			candidates = append(candidates, new(uint256.Int).Set(cur))
		}
		cur = new(uint256.Int).AddUint64(cur, 1)
	}
	return candidates
}
