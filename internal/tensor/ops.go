package tensor

// Add performs element-wise addition with broadcasting.
//
// Example:
//
//	a := tensor.Ones[float32](Shape{3, 1}, backend)
//	b := tensor.Ones[float32](Shape{3, 5}, backend)
//	c := a.Add(b) // Shape: [3, 5] (broadcasted)
func (t *Tensor[T, B]) Add(other *Tensor[T, B]) *Tensor[T, B] {
	result := t.backend.Add(t.raw, other.raw)
	return New[T, B](result, t.backend)
}

// Sub performs element-wise subtraction with broadcasting.
func (t *Tensor[T, B]) Sub(other *Tensor[T, B]) *Tensor[T, B] {
	result := t.backend.Sub(t.raw, other.raw)
	return New[T, B](result, t.backend)
}

// Mul performs element-wise multiplication with broadcasting.
func (t *Tensor[T, B]) Mul(other *Tensor[T, B]) *Tensor[T, B] {
	result := t.backend.Mul(t.raw, other.raw)
	return New[T, B](result, t.backend)
}

// Div performs element-wise division with broadcasting.
func (t *Tensor[T, B]) Div(other *Tensor[T, B]) *Tensor[T, B] {
	result := t.backend.Div(t.raw, other.raw)
	return New[T, B](result, t.backend)
}

// MatMul performs 2D matrix multiplication: (M, K) @ (K, N) → (M, N).
//
// Example:
//
//	a := tensor.Randn[float32](Shape{3, 4}, backend)
//	b := tensor.Randn[float32](Shape{4, 5}, backend)
//	c := a.MatMul(b) // Shape: [3, 5]
func (t *Tensor[T, B]) MatMul(other *Tensor[T, B]) *Tensor[T, B] {
	result := t.backend.MatMul(t.raw, other.raw)
	return New[T, B](result, t.backend)
}

// BatchMatMul performs batched matrix multiplication over the last two
// dimensions of 3D/4D tensors: [B, M, K] @ [B, K, N] → [B, M, N] and
// [B, H, M, K] @ [B, H, K, N] → [B, H, M, N].
func (t *Tensor[T, B]) BatchMatMul(other *Tensor[T, B]) *Tensor[T, B] {
	result := t.backend.BatchMatMul(t.raw, other.raw)
	return New[T, B](result, t.backend)
}

// Reshape returns a tensor with the same data but different shape.
// The new shape must have the same number of elements.
//
// Example:
//
//	t := tensor.Arange[int32](0, 12, backend) // Shape: [12]
//	reshaped := t.Reshape(3, 4)               // Shape: [3, 4]
func (t *Tensor[T, B]) Reshape(newShape ...int) *Tensor[T, B] {
	result := t.backend.Reshape(t.raw, Shape(newShape))
	return New[T, B](result, t.backend)
}

// Transpose transposes the tensor by permuting its dimensions.
//
// If axes is empty, reverses all dimensions (for 2D, this is standard transpose).
// Otherwise, axes specifies the permutation.
//
// Example:
//
//	t := tensor.Randn[float32](Shape{2, 3, 4}, backend)
//	transposed := t.Transpose(2, 0, 1) // Shape: [4, 2, 3]
func (t *Tensor[T, B]) Transpose(axes ...int) *Tensor[T, B] {
	result := t.backend.Transpose(t.raw, axes...)
	return New[T, B](result, t.backend)
}

// T is a shortcut for 2D transpose (swaps rows and columns).
// Panics if the tensor is not 2D.
func (t *Tensor[T, B]) T() *Tensor[T, B] {
	if len(t.Shape()) != 2 {
		panic("T() only works for 2D tensors")
	}
	return t.Transpose(1, 0)
}

// MulScalar multiplies every element by a scalar.
func (t *Tensor[T, B]) MulScalar(scalar any) *Tensor[T, B] {
	result := t.backend.MulScalar(t.raw, scalar)
	return New[T, B](result, t.backend)
}

// AddScalar adds a scalar to every element.
func (t *Tensor[T, B]) AddScalar(scalar any) *Tensor[T, B] {
	result := t.backend.AddScalar(t.raw, scalar)
	return New[T, B](result, t.backend)
}

// Exp applies the exponential function element-wise.
func (t *Tensor[T, B]) Exp() *Tensor[T, B] {
	result := t.backend.Exp(t.raw)
	return New[T, B](result, t.backend)
}

// Sqrt applies the square root element-wise.
func (t *Tensor[T, B]) Sqrt() *Tensor[T, B] {
	result := t.backend.Sqrt(t.raw)
	return New[T, B](result, t.backend)
}

// Relu applies the rectified linear unit (max(x, 0)) element-wise.
func (t *Tensor[T, B]) Relu() *Tensor[T, B] {
	result := t.backend.Relu(t.raw)
	return New[T, B](result, t.backend)
}

// Softmax normalizes values to a probability distribution along dim.
// Only the last dimension (dim == -1 or the final axis) is supported.
func (t *Tensor[T, B]) Softmax(dim int) *Tensor[T, B] {
	result := t.backend.Softmax(t.raw, dim)
	return New[T, B](result, t.backend)
}

// LogSoftmax computes log(softmax(x)) along dim in a numerically stable way.
// Only the last dimension (dim == -1 or the final axis) is supported.
func (t *Tensor[T, B]) LogSoftmax(dim int) *Tensor[T, B] {
	result := t.backend.LogSoftmax(t.raw, dim)
	return New[T, B](result, t.backend)
}

// MaskedFill returns a copy of t with value written wherever the boolean
// mask is false. Positions where the mask is true keep their original value.
// The mask broadcasts against t's shape.
func (t *Tensor[T, B]) MaskedFill(mask *Tensor[bool, B], value float32) *Tensor[T, B] {
	result := t.backend.MaskedFill(t.raw, mask.Raw(), value)
	return New[T, B](result, t.backend)
}

// MeanDim computes the mean along a dimension.
// If keepDim is true, the reduced dimension is kept with size 1.
func (t *Tensor[T, B]) MeanDim(dim int, keepDim bool) *Tensor[T, B] {
	result := t.backend.MeanDim(t.raw, dim, keepDim)
	return New[T, B](result, t.backend)
}

// Argmax returns the index of the maximum value along dim as an int32
// tensor. Ties resolve to the lowest index.
func (t *Tensor[T, B]) Argmax(dim int) *Tensor[int32, B] {
	result := t.backend.Argmax(t.raw, dim)
	return New[int32, B](result, t.backend)
}

// Embedding treats t as a [V, D] table and gathers rows by indices,
// producing a tensor of shape indices.Shape() + [D].
// Panics if any index is outside [0, V).
func (t *Tensor[T, B]) Embedding(indices *Tensor[int32, B]) *Tensor[T, B] {
	result := t.backend.Embedding(t.raw, indices.Raw())
	return New[T, B](result, t.backend)
}
