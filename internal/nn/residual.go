package nn

import (
	"github.com/loom-ml/loom/internal/tensor"
)

// Residual wraps a sublayer with the pre-norm residual pattern:
//
//	y = x + dropout(sublayer(norm(x)))
//
// Normalization happens before the sublayer, not after, so the residual
// path carries the raw input all the way through the stack.
//
// The sublayer is passed as a closure, which lets one wrapper type serve
// attention (with its masks and extra inputs bound in) and feed-forward
// alike.
type Residual[B tensor.Backend] struct {
	norm    *LayerNorm[B]
	dropout *Dropout[B]
}

// NewResidual creates a residual wrapper with its own normalization and
// dropout.
func NewResidual[B tensor.Backend](eps, dropoutP float32, backend B) *Residual[B] {
	return &Residual[B]{
		norm:    NewLayerNorm(eps, backend),
		dropout: NewDropout[B](dropoutP),
	}
}

// Forward applies the wrapped sublayer to the normalized input and adds
// the result back onto x.
func (r *Residual[B]) Forward(
	x *tensor.Tensor[float32, B],
	sublayer func(*tensor.Tensor[float32, B]) *tensor.Tensor[float32, B],
) *tensor.Tensor[float32, B] {
	return x.Add(r.dropout.Forward(sublayer(r.norm.Forward(x))))
}

// Parameters returns the trainable parameters of the wrapper's norm.
func (r *Residual[B]) Parameters() []*Parameter[B] {
	return r.norm.Parameters()
}

// StateDict returns a map of parameter names to raw tensors.
func (r *Residual[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	mergeStateDict(stateDict, "norm", r.norm.StateDict())
	return stateDict
}

// LoadStateDict loads parameters from a state dictionary.
func (r *Residual[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return r.norm.LoadStateDict(subStateDict(stateDict, "norm"))
}

// SetTraining switches the dropout between training and eval mode.
func (r *Residual[B]) SetTraining(training bool) {
	r.dropout.SetTraining(training)
}
