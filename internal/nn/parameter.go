package nn

import (
	"github.com/loom-ml/loom/internal/tensor"
)

// Parameter represents a trainable parameter in the network.
//
// Parameters are float32 tensors that optimizers update during training.
// They typically represent weights and biases of layers.
//
// Example:
//
//	weight := nn.NewParameter("weight", weightTensor)
//	w := weight.Tensor()
type Parameter[B tensor.Backend] struct {
	name   string                     // Parameter name (e.g., "weight", "bias")
	tensor *tensor.Tensor[float32, B] // The parameter tensor
	grad   *tensor.Tensor[float32, B] // Gradient tensor (set by the training loop)
}

// NewParameter creates a new trainable parameter.
//
// The parameter tensor should be initialized before creating the Parameter.
// The gradient starts nil; the training loop sets it before an optimizer step.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{
		name:   name,
		tensor: t,
		grad:   nil,
	}
}

// Name returns the parameter name.
func (p *Parameter[B]) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter[B]) Tensor() *tensor.Tensor[float32, B] {
	return p.tensor
}

// Grad returns the gradient tensor, or nil if none has been set.
func (p *Parameter[B]) Grad() *tensor.Tensor[float32, B] {
	return p.grad
}

// SetGrad sets the gradient tensor.
func (p *Parameter[B]) SetGrad(grad *tensor.Tensor[float32, B]) {
	p.grad = grad
}

// ZeroGrad clears the gradient tensor.
//
// Call before each training iteration to avoid stale gradients carrying
// over between steps.
func (p *Parameter[B]) ZeroGrad() {
	p.grad = nil
}
