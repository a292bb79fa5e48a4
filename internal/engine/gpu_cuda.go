//go:build cuda

package engine

/*
#cgo LDFLAGS: -L${SRCDIR} -lkernel -L/usr/local/cuda/lib64 -lcudart
#include "bindings.h"
*/
import "C"

import (
	"context"
	"log"
	"unsafe"

	"github.com/holiman/uint256"
)

// GPUScanner offloads the digit-scan kernels to an Nvidia device.
// Candidates are split into aligned low-64/high-64-bit arrays before
// crossing the cgo boundary for coalesced device memory access; residue
// filtering always runs on the host first.
type GPUScanner struct {
	Device int
}

// NewGPUScanner selects device as the active CUDA device. A failure here
// is treated as fatal at startup.
func NewGPUScanner(device int) (*GPUScanner, error) {
	C.SelectDeviceCUDA(C.int(device))
	return &GPUScanner{Device: device}, nil
}

func splitLimbs(candidates []*uint256.Int) (lo, hi []uint64) {
	lo = make([]uint64, len(candidates))
	hi = make([]uint64, len(candidates))
	for i, c := range candidates {
		lo[i] = c.Uint64()
		hi[i] = new(uint256.Int).Rsh(c, 64).Uint64()
	}
	return lo, hi
}

// ScanNiceOnly dispatches a batch to the device niceonly kernel, which
// returns one byte per candidate (nonzero == nice).
func (g *GPUScanner) ScanNiceOnly(ctx context.Context, candidates []*uint256.Int, base uint64) ([]*uint256.Int, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	log.Printf("[GPU] device %d: dispatching %d candidates (niceonly, base %d)", g.Device, len(candidates), base)

	lo, hi := splitLimbs(candidates)
	out := make([]C.uint8_t, len(candidates))
	C.ScanNiceOnlyCUDA(
		(*C.ulonglong)(unsafe.Pointer(&lo[0])), (*C.ulonglong)(unsafe.Pointer(&hi[0])),
		C.int(len(candidates)), C.ulonglong(base),
		(*C.uint8_t)(unsafe.Pointer(&out[0])),
	)

	var nice []*uint256.Int
	for i, v := range out {
		if v != 0 {
			nice = append(nice, candidates[i])
		}
	}
	return nice, nil
}

// ScanDetailed dispatches a batch to the device detailed kernel, which
// returns one uint32 num_uniques count per candidate.
func (g *GPUScanner) ScanDetailed(ctx context.Context, candidates []*uint256.Int, base uint64) (DetailedResult, error) {
	result := DetailedResult{Distribution: make(map[uint64]int64)}
	if len(candidates) == 0 {
		return result, nil
	}
	log.Printf("[GPU] device %d: dispatching %d candidates (detailed, base %d)", g.Device, len(candidates), base)

	lo, hi := splitLimbs(candidates)
	out := make([]C.uint32_t, len(candidates))
	C.ScanDetailedCUDA(
		(*C.ulonglong)(unsafe.Pointer(&lo[0])), (*C.ulonglong)(unsafe.Pointer(&hi[0])),
		C.int(len(candidates)), C.ulonglong(base),
		(*C.uint32_t)(unsafe.Pointer(&out[0])),
	)

	threshold := NotableThreshold(base)
	for i, v := range out {
		uniques := uint64(v)
		result.Distribution[uniques]++
		if uniques > threshold {
			result.Notable = append(result.Notable, NotableNumber{
				Number:     new(uint256.Int).Set(candidates[i]),
				NumUniques: uniques,
			})
		}
	}
	return result, nil
}
