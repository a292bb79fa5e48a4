//go:build !cuda

package engine

import (
	"context"
	"errors"
	"log"

	"github.com/holiman/uint256"
)

// ErrGPUUnavailable is returned by every GPUScanner method when the binary
// was built without the cuda tag. The range executor treats this as a
// mid-run GPU failure and falls back to the CPU kernel for the remainder
// of the field.
var ErrGPUUnavailable = errors.New("engine: GPU support not compiled in (build without -tags cuda)")

// GPUScanner is the stand-in used when the binary was built without the
// cuda build tag: NewGPUScanner fails and every method returns
// ErrGPUUnavailable.
type GPUScanner struct {
	Device int
}

// NewGPUScanner always fails on a non-cuda build; callers should treat this
// as a fatal GPU-init error only if GPU use was explicitly requested at
// startup.
func NewGPUScanner(device int) (*GPUScanner, error) {
	log.Println("[WARNING] GPU acceleration requested, but engine was compiled without CUDA support.")
	return nil, ErrGPUUnavailable
}

func (g *GPUScanner) ScanNiceOnly(ctx context.Context, candidates []*uint256.Int, base uint64) ([]*uint256.Int, error) {
	return nil, ErrGPUUnavailable
}

func (g *GPUScanner) ScanDetailed(ctx context.Context, candidates []*uint256.Int, base uint64) (DetailedResult, error) {
	return DetailedResult{}, ErrGPUUnavailable
}
