package nn

import (
	"fmt"

	"github.com/loom-ml/loom/internal/tensor"
)

// FeedForward is the position-wise two-layer network applied after
// attention in every block:
//
//	y = Linear2(Dropout(ReLU(Linear1(x))))
//
// It expands d_model to d_ff and projects back, acting on each position
// independently.
type FeedForward[B tensor.Backend] struct {
	dModel  int
	dFF     int
	linear1 *Linear[B]
	linear2 *Linear[B]
	dropout *Dropout[B]
}

// NewFeedForward creates the d_model → d_ff → d_model network.
func NewFeedForward[B tensor.Backend](dModel, dFF int, dropoutP float32, backend B) *FeedForward[B] {
	if dModel <= 0 || dFF <= 0 {
		panic(fmt.Sprintf("feedforward: invalid dimensions d_model=%d d_ff=%d", dModel, dFF))
	}
	return &FeedForward[B]{
		dModel:  dModel,
		dFF:     dFF,
		linear1: NewLinear(dModel, dFF, backend),
		linear2: NewLinear(dFF, dModel, backend),
		dropout: NewDropout[B](dropoutP),
	}
}

// Forward applies the network position-wise.
// Input and output shape: [batch, seq_len, d_model].
func (ff *FeedForward[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	if len(shape) != 3 || shape[2] != ff.dModel {
		panic(fmt.Sprintf("feedforward: expected [batch, seq, %d], got %v", ff.dModel, shape))
	}
	batch, seqLen := shape[0], shape[1]

	// Linear works on 2D, so fold batch and sequence together.
	flat := x.Reshape(batch*seqLen, ff.dModel)
	hidden := ff.dropout.Forward(ff.linear1.Forward(flat).Relu())
	return ff.linear2.Forward(hidden).Reshape(batch, seqLen, ff.dModel)
}

// Parameters returns the trainable parameters of this layer.
func (ff *FeedForward[B]) Parameters() []*Parameter[B] {
	params := ff.linear1.Parameters()
	return append(params, ff.linear2.Parameters()...)
}

// StateDict returns a map of parameter names to raw tensors.
func (ff *FeedForward[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	mergeStateDict(stateDict, "linear1", ff.linear1.StateDict())
	mergeStateDict(stateDict, "linear2", ff.linear2.StateDict())
	return stateDict
}

// LoadStateDict loads parameters from a state dictionary.
func (ff *FeedForward[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := ff.linear1.LoadStateDict(subStateDict(stateDict, "linear1")); err != nil {
		return fmt.Errorf("linear1: %w", err)
	}
	if err := ff.linear2.LoadStateDict(subStateDict(stateDict, "linear2")); err != nil {
		return fmt.Errorf("linear2: %w", err)
	}
	return nil
}

// SetTraining switches the dropout between training and eval mode.
func (ff *FeedForward[B]) SetTraining(training bool) {
	ff.dropout.SetTraining(training)
}

// mergeStateDict copies src entries into dst under a "prefix." namespace.
func mergeStateDict(dst map[string]*tensor.RawTensor, prefix string, src map[string]*tensor.RawTensor) {
	for name, raw := range src {
		dst[prefix+"."+name] = raw
	}
}

// subStateDict extracts the entries under a "prefix." namespace, with the
// prefix stripped.
func subStateDict(stateDict map[string]*tensor.RawTensor, prefix string) map[string]*tensor.RawTensor {
	sub := make(map[string]*tensor.RawTensor)
	for name, raw := range stateDict {
		if len(name) > len(prefix)+1 && name[:len(prefix)+1] == prefix+"." {
			sub[name[len(prefix)+1:]] = raw
		}
	}
	return sub
}
