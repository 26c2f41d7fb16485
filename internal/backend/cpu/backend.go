// Package cpu implements the CPU backend. Matrix multiplication dispatches
// to gonum BLAS; everything else is plain Go over flat slices.
package cpu

import (
	"fmt"

	"github.com/loom-ml/loom/internal/parallel"
	"github.com/loom-ml/loom/internal/tensor"
)

// CPUBackend implements tensor operations on CPU.
type CPUBackend struct {
	device tensor.Device
	par    parallel.Config
}

// New creates a new CPU backend.
func New() *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
		par:    parallel.DefaultConfig(),
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("add", a, b, func(x, y float32) float32 { return x + y })
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("sub", a, b, func(x, y float32) float32 { return x - y })
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("mul", a, b, func(x, y float32) float32 { return x * y })
}

// Div performs element-wise division with broadcasting.
func (cpu *CPUBackend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("div", a, b, func(x, y float32) float32 { return x / y })
}

// Reshape returns a tensor with the same data but a different shape.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	if err := newShape.Validate(); err != nil {
		panic(fmt.Sprintf("reshape: invalid shape: %v", err))
	}

	if t.NumElements() != newShape.NumElements() {
		panic(fmt.Sprintf("reshape: incompatible shapes: %v -> %v (different number of elements)",
			t.Shape(), newShape))
	}

	result, err := tensor.NewRaw(newShape, t.DType(), t.Device())
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}

	copy(result.Data(), t.Data())
	return result
}

// Transpose transposes the tensor by permuting its dimensions.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	ndim := len(shape)

	// Default: reverse all dimensions
	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}

	if len(axes) != ndim {
		panic(fmt.Sprintf("transpose: axes length %d != ndim %d", len(axes), ndim))
	}

	seen := make([]bool, ndim)
	for _, ax := range axes {
		if ax < 0 || ax >= ndim {
			panic(fmt.Sprintf("transpose: invalid axis %d for %dD tensor", ax, ndim))
		}
		if seen[ax] {
			panic(fmt.Sprintf("transpose: duplicate axis %d", ax))
		}
		seen[ax] = true
	}

	newShape := make(tensor.Shape, ndim)
	for i, ax := range axes {
		newShape[i] = shape[ax]
	}

	result, err := tensor.NewRaw(newShape, t.DType(), t.Device())
	if err != nil {
		panic(fmt.Sprintf("transpose: %v", err))
	}

	transposeData(result, t, axes)

	return result
}

// transposeData copies src into dst following the axis permutation.
// Works element by element on the flat float32 view.
func transposeData(dst, src *tensor.RawTensor, axes []int) {
	srcShape := src.Shape()
	srcStrides := src.Strides()
	dstStrides := dst.Strides()
	ndim := len(srcShape)

	switch src.DType() {
	case tensor.Float32:
		in := src.AsFloat32()
		out := dst.AsFloat32()
		coords := make([]int, ndim)
		for i := 0; i < src.NumElements(); i++ {
			dstIdx := 0
			for d := 0; d < ndim; d++ {
				dstIdx += coords[axes[d]] * dstStrides[d]
			}
			srcIdx := 0
			for d := 0; d < ndim; d++ {
				srcIdx += coords[d] * srcStrides[d]
			}
			out[dstIdx] = in[srcIdx]
			increment(coords, srcShape)
		}
	default:
		panic(fmt.Sprintf("transpose: unsupported dtype %s", src.DType()))
	}
}

// increment advances coords as a mixed-radix counter over shape.
func increment(coords []int, shape tensor.Shape) {
	for d := len(coords) - 1; d >= 0; d-- {
		coords[d]++
		if coords[d] < shape[d] {
			return
		}
		coords[d] = 0
	}
}
