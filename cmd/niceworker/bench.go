package main

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/holiman/uint256"

	"github.com/wasabipesto/niceengine/internal/engine"
)

// benchmarkRangeStart anchors every benchmark mode at the same offset so
// results stay comparable across machines and over time instead of
// depending on how much of a base has already been searched. Chosen to lie
// inside a known "typical" base-40 field in historical builds.
const benchmarkRangeStart = uint64(1916284264916)

// benchMode is one of the four fixed (range_size, base) pairs defined for
// cross-machine throughput comparison (default|large|extra-large|hi-base).
type benchMode struct {
	Name      string
	Base      uint64
	RangeSize uint64
}

var benchmarkModes = map[string]benchMode{
	"default":     {Name: "default", Base: 40, RangeSize: 1_000_000},
	"large":       {Name: "large", Base: 40, RangeSize: 100_000_000},
	"extra-large": {Name: "extra-large", Base: 40, RangeSize: 1_000_000_000},
	"hi-base":     {Name: "hi-base", Base: 80, RangeSize: 1_000_000},
}

// BenchResult is one completed benchmark mode's outcome.
type BenchResult struct {
	Name      string
	Base      uint64
	RangeSize uint64
	Elapsed   time.Duration
	Rate      float64 // candidates scanned per second
}

// runBenchmark runs a single named mode. An empty name runs "default".
func runBenchmark(name string, threads int) (BenchResult, error) {
	if name == "" {
		name = "default"
	}
	mode, ok := benchmarkModes[name]
	if !ok {
		return BenchResult{}, fmt.Errorf("unknown benchmark mode %q (want one of default, large, extra-large, hi-base)", name)
	}
	if threads <= 0 {
		threads = runtime.GOMAXPROCS(0)
	}

	exec := engine.NewExecutor()
	lo := uint256.NewInt(benchmarkRangeStart)
	hi := new(uint256.Int).AddUint64(lo, mode.RangeSize)
	field := engine.Range{Lo: lo, Hi: hi}

	start := time.Now()
	_, err := exec.Execute(context.Background(), field, mode.Base, engine.ModeNiceOnly, engine.ExecutorOptions{Threads: threads}, nil)
	elapsed := time.Since(start)
	if err != nil {
		return BenchResult{Name: mode.Name, Base: mode.Base, RangeSize: mode.RangeSize, Elapsed: elapsed}, err
	}

	return BenchResult{
		Name:      mode.Name,
		Base:      mode.Base,
		RangeSize: mode.RangeSize,
		Elapsed:   elapsed,
		Rate:      float64(mode.RangeSize) / elapsed.Seconds(),
	}, nil
}
