package cpu

import (
	"fmt"
	"math"

	"github.com/loom-ml/loom/internal/tensor"
)

// Softmax normalizes values along the last dimension into a probability
// distribution. Numerically stable: the row maximum is subtracted before
// exponentiation.
func (cpu *CPUBackend) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	rows, width := lastDimRows("softmax", x, dim)

	result, err := tensor.NewRaw(x.Shape(), x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("softmax: failed to create result tensor: %v", err))
	}

	in := x.AsFloat32()
	out := result.AsFloat32()

	for r := 0; r < rows; r++ {
		row := in[r*width : (r+1)*width]
		dst := out[r*width : (r+1)*width]

		maxVal := row[0]
		for _, v := range row[1:] {
			if v > maxVal {
				maxVal = v
			}
		}

		sum := float32(0)
		for i, v := range row {
			e := float32(math.Exp(float64(v - maxVal)))
			dst[i] = e
			sum += e
		}
		for i := range dst {
			dst[i] /= sum
		}
	}
	return result
}

// LogSoftmax computes log(softmax(x)) along the last dimension without
// going through the exponentiated probabilities, so tiny ones keep full
// precision.
func (cpu *CPUBackend) LogSoftmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	rows, width := lastDimRows("logsoftmax", x, dim)

	result, err := tensor.NewRaw(x.Shape(), x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("logsoftmax: failed to create result tensor: %v", err))
	}

	in := x.AsFloat32()
	out := result.AsFloat32()

	for r := 0; r < rows; r++ {
		row := in[r*width : (r+1)*width]
		dst := out[r*width : (r+1)*width]

		maxVal := row[0]
		for _, v := range row[1:] {
			if v > maxVal {
				maxVal = v
			}
		}

		sum := float64(0)
		for _, v := range row {
			sum += math.Exp(float64(v - maxVal))
		}
		logSum := float32(math.Log(sum))

		for i, v := range row {
			dst[i] = v - maxVal - logSum
		}
	}
	return result
}

// MaskedFill writes value wherever the boolean mask is false and keeps x
// where the mask is true. The mask broadcasts against x's shape.
func (cpu *CPUBackend) MaskedFill(x, mask *tensor.RawTensor, value float32) *tensor.RawTensor {
	if x.DType() != tensor.Float32 {
		panic(fmt.Sprintf("maskedfill: unsupported dtype %s", x.DType()))
	}
	if mask.DType() != tensor.Bool {
		panic(fmt.Sprintf("maskedfill: mask dtype is %s, not bool", mask.DType()))
	}

	outShape, _, err := tensor.BroadcastShapes(x.Shape(), mask.Shape())
	if err != nil {
		panic(fmt.Sprintf("maskedfill: %v", err))
	}
	if !outShape.Equal(x.Shape()) {
		panic(fmt.Sprintf("maskedfill: mask %v does not broadcast into %v", mask.Shape(), x.Shape()))
	}

	result, err := tensor.NewRaw(x.Shape(), x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("maskedfill: failed to create result tensor: %v", err))
	}

	in := x.AsFloat32()
	out := result.AsFloat32()
	maskData := mask.AsBool()
	maskStrides := broadcastStrides(x.Shape(), mask.Shape(), mask.Strides())

	coords := make([]int, len(x.Shape()))
	for i := range out {
		mIdx := 0
		for d, c := range coords {
			mIdx += c * maskStrides[d]
		}
		if maskData[mIdx] {
			out[i] = in[i]
		} else {
			out[i] = value
		}
		increment(coords, x.Shape())
	}
	return result
}

// lastDimRows validates that dim names the final axis and returns the
// (rows, width) factorization of the tensor around it.
func lastDimRows(name string, x *tensor.RawTensor, dim int) (rows, width int) {
	if x.DType() != tensor.Float32 {
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, x.DType()))
	}
	shape := x.Shape()
	ndim := len(shape)
	if ndim == 0 {
		panic(fmt.Sprintf("%s: scalar tensor has no dimensions", name))
	}
	if dim < 0 {
		dim += ndim
	}
	if dim != ndim-1 {
		panic(fmt.Sprintf("%s: only the last dimension is supported, got dim %d of %dD", name, dim, ndim))
	}
	width = shape[ndim-1]
	rows = x.NumElements() / width
	return rows, width
}
