package tensor

import (
	"math"
	"math/rand"
)

// Zeros creates a tensor filled with zeros.
//
// Example:
//
//	backend := cpu.New()
//	t := tensor.Zeros[float32](Shape{3, 4}, backend)
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	var dummy T
	dtype := inferDataType(dummy)

	raw, err := NewRaw(shape, dtype, b.Device())
	if err != nil {
		panic(err) // Shape validation should prevent this
	}

	// Data is already zero-initialized by make()
	return New[T, B](raw, b)
}

// Ones creates a tensor filled with ones.
//
// Example:
//
//	t := tensor.Ones[float32](Shape{2, 3}, backend)
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()

	// Type-specific one value
	var dummy T
	var one any
	switch any(dummy).(type) {
	case float32:
		one = float32(1)
	case int32:
		one = int32(1)
	case bool:
		one = true
	}

	for i := range data {
		data[i] = one.(T)
	}
	return t
}

// Full creates a tensor filled with a specific value.
//
// Example:
//
//	t := tensor.Full[float32](Shape{3, 3}, 3.14, backend)
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = value
	}
	return t
}

// Randn creates a tensor with random values from a normal distribution (mean=0, std=1).
// Uses Box-Muller transform for generating the normal distribution.
// Only works with float32.
// Note: Uses math/rand (not crypto/rand) - appropriate for ML/statistical purposes.
//
// Example:
//
//	t := tensor.Randn[float32](Shape{100, 100}, backend)
func Randn[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()

	var dummy T
	switch any(dummy).(type) {
	case float32:
		dataF32 := any(data).([]float32)
		for i := 0; i < len(dataF32); i += 2 {
			u1 := rand.Float64() //nolint:gosec // G404: ML uses math/rand intentionally for reproducibility
			u2 := rand.Float64() //nolint:gosec // G404: ML uses math/rand intentionally for reproducibility
			z0 := math.Sqrt(-2.0*math.Log(u1)) * math.Cos(2.0*math.Pi*u2)
			z1 := math.Sqrt(-2.0*math.Log(u1)) * math.Sin(2.0*math.Pi*u2)
			dataF32[i] = float32(z0)
			if i+1 < len(dataF32) {
				dataF32[i+1] = float32(z1)
			}
		}
	default:
		panic("Randn only supports float32")
	}
	return t
}

// Arange creates a 1D tensor with values from start to end (exclusive).
// Only works with numeric types (not bool).
//
// Example:
//
//	t := tensor.Arange[int32](0, 10, backend) // [0, 1, 2, ..., 9]
func Arange[T DType, B Backend](start, end T, b B) *Tensor[T, B] {
	var numElements int
	switch any(start).(type) {
	case float32:
		numElements = int(any(end).(float32) - any(start).(float32))
	case int32:
		numElements = int(any(end).(int32) - any(start).(int32))
	default:
		panic("Arange not supported for this type")
	}

	if numElements <= 0 {
		panic("end must be greater than start")
	}

	t := Zeros[T, B](Shape{numElements}, b)
	data := t.Data()

	switch any(start).(type) {
	case float32:
		dataF32 := any(data).([]float32)
		startF32 := any(start).(float32)
		for i := range dataF32 {
			dataF32[i] = startF32 + float32(i)
		}
	case int32:
		dataI32 := any(data).([]int32)
		startI32 := any(start).(int32)
		for i := range dataI32 {
			dataI32[i] = startI32 + int32(i) //nolint:gosec // G115: i is within valid range.
		}
	}
	return t
}
