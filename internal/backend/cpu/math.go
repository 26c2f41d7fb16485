package cpu

import (
	"fmt"
	"math"

	"github.com/loom-ml/loom/internal/tensor"
)

// MulScalar multiplies every element by a scalar.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	s := toFloat32(scalar)
	return cpu.unaryOp("mulscalar", x, func(v float32) float32 { return v * s })
}

// AddScalar adds a scalar to every element.
func (cpu *CPUBackend) AddScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	s := toFloat32(scalar)
	return cpu.unaryOp("addscalar", x, func(v float32) float32 { return v + s })
}

// Exp applies the exponential function element-wise.
func (cpu *CPUBackend) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryOp("exp", x, func(v float32) float32 { return float32(math.Exp(float64(v))) })
}

// Sqrt applies the square root element-wise.
func (cpu *CPUBackend) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryOp("sqrt", x, func(v float32) float32 { return float32(math.Sqrt(float64(v))) })
}

// Relu applies max(x, 0) element-wise.
func (cpu *CPUBackend) Relu(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryOp("relu", x, func(v float32) float32 {
		if v > 0 {
			return v
		}
		return 0
	})
}

// unaryOp applies op element-wise over a float32 tensor.
func (cpu *CPUBackend) unaryOp(name string, x *tensor.RawTensor, op func(v float32) float32) *tensor.RawTensor {
	if x.DType() != tensor.Float32 {
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, x.DType()))
	}

	result, err := tensor.NewRaw(x.Shape(), x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", name, err))
	}

	in := x.AsFloat32()
	out := result.AsFloat32()
	for i := range out {
		out[i] = op(in[i])
	}
	return result
}

// toFloat32 normalizes the scalar types callers pass to scalar ops.
func toFloat32(scalar any) float32 {
	switch v := scalar.(type) {
	case float32:
		return v
	case float64:
		return float32(v)
	case int:
		return float32(v)
	case int32:
		return float32(v)
	default:
		panic(fmt.Sprintf("unsupported scalar type %T", scalar))
	}
}
