package cpu

import (
	"fmt"

	"github.com/loom-ml/loom/internal/tensor"
)

// binaryOp applies op element-wise over a and b with broadcasting.
// Only float32 operands are supported; integer and boolean tensors never
// reach the arithmetic path in this model.
func (cpu *CPUBackend) binaryOp(name string, a, b *tensor.RawTensor, op func(x, y float32) float32) *tensor.RawTensor {
	if a.DType() != tensor.Float32 || b.DType() != tensor.Float32 {
		panic(fmt.Sprintf("%s: unsupported dtypes %s, %s", name, a.DType(), b.DType()))
	}

	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}

	result, err := tensor.NewRaw(outShape, a.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", name, err))
	}

	out := result.AsFloat32()
	aData := a.AsFloat32()
	bData := b.AsFloat32()

	if !needsBroadcast {
		// Fast path: same shape, flat loop.
		for i := range out {
			out[i] = op(aData[i], bData[i])
		}
		return result
	}

	aStrides := broadcastStrides(outShape, a.Shape(), a.Strides())
	bStrides := broadcastStrides(outShape, b.Shape(), b.Strides())

	coords := make([]int, len(outShape))
	for i := range out {
		aIdx, bIdx := 0, 0
		for d, c := range coords {
			aIdx += c * aStrides[d]
			bIdx += c * bStrides[d]
		}
		out[i] = op(aData[aIdx], bData[bIdx])
		increment(coords, outShape)
	}
	return result
}

// broadcastStrides right-aligns in's strides against the output shape.
// Broadcast dimensions (size 1 or missing) get stride 0 so the same
// element is reused along them.
func broadcastStrides(out, in tensor.Shape, inStrides []int) []int {
	adjusted := make([]int, len(out))
	offset := len(out) - len(in)
	for d := range out {
		inDim := d - offset
		if inDim < 0 || in[inDim] == 1 {
			adjusted[d] = 0
		} else {
			adjusted[d] = inStrides[inDim]
		}
	}
	return adjusted
}
