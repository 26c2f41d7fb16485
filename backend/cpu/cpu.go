// Package cpu exposes the CPU compute backend.
package cpu

import (
	internalcpu "github.com/loom-ml/loom/internal/backend/cpu"
	"github.com/loom-ml/loom/tensor"
)

// Backend is the CPU backend: pure Go element-wise kernels with BLAS
// matrix multiplication and a worker pool for the batched paths.
type Backend = internalcpu.CPUBackend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a CPU backend.
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
func New() *Backend {
	return internalcpu.New()
}
