package cpu

import (
	"fmt"

	"github.com/loom-ml/loom/internal/tensor"
)

// MeanDim computes the mean along the last dimension.
// With keepDim the reduced axis stays as size 1, which is what the
// normalization layers need for broadcasting the result back.
func (cpu *CPUBackend) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	rows, width := lastDimRows("meandim", x, dim)

	outShape := reducedShape(x.Shape(), keepDim)
	result, err := tensor.NewRaw(outShape, x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("meandim: failed to create result tensor: %v", err))
	}

	in := x.AsFloat32()
	out := result.AsFloat32()

	for r := 0; r < rows; r++ {
		sum := float32(0)
		for _, v := range in[r*width : (r+1)*width] {
			sum += v
		}
		out[r] = sum / float32(width)
	}
	return result
}

// Argmax returns the index of the maximum value along the last dimension
// as an int32 tensor. Ties resolve to the lowest index, which makes
// greedy decoding deterministic.
func (cpu *CPUBackend) Argmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	rows, width := lastDimRows("argmax", x, dim)

	outShape := reducedShape(x.Shape(), false)
	result, err := tensor.NewRaw(outShape, tensor.Int32, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("argmax: failed to create result tensor: %v", err))
	}

	in := x.AsFloat32()
	out := result.AsInt32()

	for r := 0; r < rows; r++ {
		row := in[r*width : (r+1)*width]
		best := 0
		for i := 1; i < width; i++ {
			if row[i] > row[best] {
				best = i
			}
		}
		out[r] = int32(best) //nolint:gosec // G115: best < width, well within int32.
	}
	return result
}

// reducedShape drops (or squeezes to 1) the last axis of shape.
// Reducing a 1D tensor yields a single-element 1D tensor.
func reducedShape(shape tensor.Shape, keepDim bool) tensor.Shape {
	if keepDim {
		out := shape.Clone()
		out[len(out)-1] = 1
		return out
	}
	if len(shape) == 1 {
		return tensor.Shape{1}
	}
	return shape[:len(shape)-1].Clone()
}
