package tensor

// Backend defines the interface that compute backends implement.
// Backends handle the actual computation for tensor operations; the typed
// Tensor methods delegate here. The seam also leaves room for wrapper
// backends (tracing, gradient tape) without touching the model code.
type Backend interface {
	// Element-wise binary operations with NumPy-style broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// MatMul performs 2D matrix multiplication: (M, K) @ (K, N) → (M, N).
	MatMul(a, b *RawTensor) *RawTensor

	// BatchMatMul performs batched matrix multiplication for 3D/4D tensors.
	// For 3D: [B, M, K] @ [B, K, N] -> [B, M, N]
	// For 4D: [B, H, M, K] @ [B, H, K, N] -> [B, H, M, N]
	BatchMatMul(a, b *RawTensor) *RawTensor

	// Shape operations
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor

	// Scalar operations (element-wise with scalar)
	MulScalar(x *RawTensor, scalar any) *RawTensor
	AddScalar(x *RawTensor, scalar any) *RawTensor

	// Math operations (element-wise)
	Exp(x *RawTensor) *RawTensor
	Sqrt(x *RawTensor) *RawTensor
	Relu(x *RawTensor) *RawTensor

	// Softmax and LogSoftmax normalize along the last dimension.
	Softmax(x *RawTensor, dim int) *RawTensor
	LogSoftmax(x *RawTensor, dim int) *RawTensor

	// MaskedFill writes value into every position where the boolean mask is
	// false, keeping x where the mask is true. The mask broadcasts against x.
	MaskedFill(x, mask *RawTensor, value float32) *RawTensor

	// Reduction operations
	MeanDim(x *RawTensor, dim int, keepDim bool) *RawTensor
	Argmax(x *RawTensor, dim int) *RawTensor

	// Embedding looks up rows of weight [V, D] by indices (int32) and
	// returns a tensor of shape indices.Shape() + [D].
	// Panics if any index is outside [0, V).
	Embedding(weight, indices *RawTensor) *RawTensor

	// Metadata
	Name() string
	Device() Device
}
