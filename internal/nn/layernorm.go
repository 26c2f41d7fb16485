package nn

import (
	"fmt"

	"github.com/loom-ml/loom/internal/tensor"
)

// LayerNorm normalizes each feature vector (the last dimension) to zero
// mean and unit standard deviation, then applies a learned affine
// transform. Both the gain (alpha) and the offset (bias) are single
// scalars shared across features, not per-feature vectors.
//
//	y = alpha * (x - mean) / (std + eps) + bias
//
// The standard deviation is the population form (mean of squared
// deviations) and eps is added to std, not to the variance.
type LayerNorm[B tensor.Backend] struct {
	eps     float32
	alpha   *Parameter[B] // scalar gain, initialized to 1
	bias    *Parameter[B] // scalar offset, initialized to 0
	backend B
}

// NewLayerNorm creates a LayerNorm with alpha=1, bias=0.
func NewLayerNorm[B tensor.Backend](eps float32, backend B) *LayerNorm[B] {
	if eps <= 0 {
		panic(fmt.Sprintf("layernorm: eps must be positive, got %g", eps))
	}
	return &LayerNorm[B]{
		eps:     eps,
		alpha:   NewParameter("alpha", Ones[B](tensor.Shape{1}, backend)),
		bias:    NewParameter("bias", Zeros[B](tensor.Shape{1}, backend)),
		backend: backend,
	}
}

// Forward normalizes over the last dimension.
func (ln *LayerNorm[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	mean := x.MeanDim(-1, true)
	centered := x.Sub(mean)
	variance := centered.Mul(centered).MeanDim(-1, true)
	std := variance.Sqrt()

	normalized := centered.Div(std.AddScalar(ln.eps))
	return normalized.Mul(ln.alpha.Tensor()).Add(ln.bias.Tensor())
}

// Parameters returns the trainable parameters of this layer.
func (ln *LayerNorm[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{ln.alpha, ln.bias}
}

// Eps returns the numerical stability constant.
func (ln *LayerNorm[B]) Eps() float32 {
	return ln.eps
}

// StateDict returns a map of parameter names to raw tensors.
func (ln *LayerNorm[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"alpha": ln.alpha.Tensor().Raw(),
		"bias":  ln.bias.Tensor().Raw(),
	}
}

// LoadStateDict loads parameters from a state dictionary.
func (ln *LayerNorm[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := loadTensor(stateDict, "alpha", ln.alpha.Tensor()); err != nil {
		return err
	}
	return loadTensor(stateDict, "bias", ln.bias.Tensor())
}
