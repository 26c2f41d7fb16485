// Package tensor provides the public API for tensor operations in Loom.
//
// The package re-exports the core types for type-safe tensor work:
//   - Tensor[T, B]: generic tensor with compile-time element typing
//   - RawTensor: untyped storage, used for state dicts and serialization
//   - Backend: the compute interface backends implement
//   - Shape, DataType, Device: core type definitions
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
//	y := tensor.Ones[float32](tensor.Shape{2, 3}, backend)
//	z := x.Add(y)
package tensor

import (
	"github.com/loom-ml/loom/internal/tensor"
)

// DType is the constraint for tensor element types: float32, int32, bool.
type DType = tensor.DType

// DataType identifies the element type of a tensor at runtime.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Int32   DataType = tensor.Int32
	Bool    DataType = tensor.Bool
)

// Device identifies where tensor data lives.
type Device = tensor.Device

// CPU is the only device currently implemented.
const CPU Device = tensor.CPU

// Shape holds the dimensions of a tensor, e.g. Shape{2, 3, 4}.
type Shape = tensor.Shape

// Backend is the compute interface tensor operations dispatch through.
type Backend = tensor.Backend

// RawTensor is untyped tensor storage: bytes plus shape, strides, dtype
// and device. State dicts and the serialization format work in terms of
// RawTensor.
type RawTensor = tensor.RawTensor

// Tensor is a generic type-safe tensor over RawTensor storage.
type Tensor[T DType, B Backend] = tensor.Tensor[T, B]

// New wraps an existing RawTensor. Panics when T does not match the raw
// tensor's dtype.
func New[T DType, B Backend](raw *RawTensor, b B) *Tensor[T, B] {
	return tensor.New[T, B](raw, b)
}

// NewRaw allocates zeroed untyped storage.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}

// FromSlice creates a tensor from a flat slice in row-major order.
func FromSlice[T DType, B Backend](data []T, shape Shape, b B) (*Tensor[T, B], error) {
	return tensor.FromSlice[T, B](data, shape, b)
}

// Zeros creates a tensor filled with zeros.
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Zeros[T, B](shape, b)
}

// Ones creates a tensor filled with ones.
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Ones[T, B](shape, b)
}

// Full creates a tensor filled with a specific value.
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	return tensor.Full[T, B](shape, value, b)
}

// Randn creates a float32 tensor drawn from the standard normal
// distribution.
func Randn[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Randn[T, B](shape, b)
}

// Arange creates a 1D tensor with values [start, end).
func Arange[T DType, B Backend](start, end T, b B) *Tensor[T, B] {
	return tensor.Arange[T, B](start, end, b)
}

// BroadcastShapes computes the broadcast result shape of two shapes.
// The bool reports whether any broadcasting was needed.
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	return tensor.BroadcastShapes(a, b)
}
