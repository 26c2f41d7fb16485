package nn

import (
	"fmt"

	"github.com/loom-ml/loom/internal/tensor"
)

// MultiHeadAttention projects queries, keys and values into h subspaces of
// d_k = d_model / h dimensions each, runs scaled dot-product attention per
// head in parallel, and merges the heads back through an output projection.
//
// In the encoder's self-attention Q, K and V all come from the same
// sequence; in cross-attention the query comes from the decoder and K, V
// from the encoder memory, which is what lets q_len differ from k_len.
//
// The layer keeps the attention weights of its most recent forward pass
// for visualization; Weights() exposes them read-only.
type MultiHeadAttention[B tensor.Backend] struct {
	dModel int
	heads  int
	dk     int

	wq *Linear[B] // query projection
	wk *Linear[B] // key projection
	wv *Linear[B] // value projection
	wo *Linear[B] // output projection

	dropout *Dropout[B]
	weights *tensor.Tensor[float32, B] // [batch, heads, q_len, k_len] from the last forward
	backend B
}

// NewMultiHeadAttention creates the four projections and validates the
// head split. A d_model not divisible by heads is a configuration error
// and panics.
func NewMultiHeadAttention[B tensor.Backend](dModel, heads int, dropoutP float32, backend B) *MultiHeadAttention[B] {
	if heads <= 0 {
		panic(fmt.Sprintf("multihead attention: heads must be positive, got %d", heads))
	}
	if dModel%heads != 0 {
		panic(fmt.Sprintf("multihead attention: d_model %d not divisible by heads %d", dModel, heads))
	}

	return &MultiHeadAttention[B]{
		dModel:  dModel,
		heads:   heads,
		dk:      dModel / heads,
		wq:      NewLinear(dModel, dModel, backend),
		wk:      NewLinear(dModel, dModel, backend),
		wv:      NewLinear(dModel, dModel, backend),
		wo:      NewLinear(dModel, dModel, backend),
		dropout: NewDropout[B](dropoutP),
		backend: backend,
	}
}

// Forward runs multi-head attention.
//
// query: [batch, q_len, d_model]; key, value: [batch, k_len, d_model].
// mask, when non-nil, broadcasts against [batch, heads, q_len, k_len]
// with true marking allowed positions.
//
// Returns the attended output [batch, q_len, d_model] and the per-head
// attention weights [batch, heads, q_len, k_len].
func (mha *MultiHeadAttention[B]) Forward(
	query, key, value *tensor.Tensor[float32, B],
	mask *tensor.Tensor[bool, B],
) (*tensor.Tensor[float32, B], *tensor.Tensor[float32, B]) {
	qShape := query.Shape()
	kShape := key.Shape()
	if len(qShape) != 3 || qShape[2] != mha.dModel {
		panic(fmt.Sprintf("multihead attention: expected query [batch, seq, %d], got %v", mha.dModel, qShape))
	}
	batch, qLen := qShape[0], qShape[1]
	kLen := kShape[1]

	q := mha.split(mha.project(mha.wq, query), batch, qLen)
	k := mha.split(mha.project(mha.wk, key), batch, kLen)
	v := mha.split(mha.project(mha.wv, value), batch, kLen)

	context, weights := ScaledDotProductAttention(q, k, v, mask, mha.dropout)
	mha.weights = weights

	// [b, h, q, d_k] -> [b, q, h, d_k] -> [b, q, d_model]
	merged := context.Transpose(0, 2, 1, 3).Reshape(batch*qLen, mha.dModel)
	output := mha.wo.Forward(merged).Reshape(batch, qLen, mha.dModel)

	return output, weights
}

// project applies a d_model -> d_model projection to a 3D tensor.
func (mha *MultiHeadAttention[B]) project(w *Linear[B], x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	batch, seqLen := shape[0], shape[1]
	return w.Forward(x.Reshape(batch*seqLen, mha.dModel)).Reshape(batch, seqLen, mha.dModel)
}

// split reshapes [batch, seq, d_model] into per-head [batch, heads, seq, d_k].
func (mha *MultiHeadAttention[B]) split(x *tensor.Tensor[float32, B], batch, seqLen int) *tensor.Tensor[float32, B] {
	return x.Reshape(batch, seqLen, mha.heads, mha.dk).Transpose(0, 2, 1, 3)
}

// Weights returns the attention weights of the most recent forward pass,
// or nil before the first call.
func (mha *MultiHeadAttention[B]) Weights() *tensor.Tensor[float32, B] {
	return mha.weights
}

// Heads returns the number of attention heads.
func (mha *MultiHeadAttention[B]) Heads() int {
	return mha.heads
}

// HeadDim returns d_k, the per-head dimension.
func (mha *MultiHeadAttention[B]) HeadDim() int {
	return mha.dk
}

// Parameters returns the trainable parameters of this layer.
func (mha *MultiHeadAttention[B]) Parameters() []*Parameter[B] {
	params := mha.wq.Parameters()
	params = append(params, mha.wk.Parameters()...)
	params = append(params, mha.wv.Parameters()...)
	params = append(params, mha.wo.Parameters()...)
	return params
}

// StateDict returns a map of parameter names to raw tensors.
func (mha *MultiHeadAttention[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	mergeStateDict(stateDict, "wq", mha.wq.StateDict())
	mergeStateDict(stateDict, "wk", mha.wk.StateDict())
	mergeStateDict(stateDict, "wv", mha.wv.StateDict())
	mergeStateDict(stateDict, "wo", mha.wo.StateDict())
	return stateDict
}

// LoadStateDict loads parameters from a state dictionary.
func (mha *MultiHeadAttention[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for name, layer := range map[string]*Linear[B]{
		"wq": mha.wq, "wk": mha.wk, "wv": mha.wv, "wo": mha.wo,
	} {
		if err := layer.LoadStateDict(subStateDict(stateDict, name)); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// SetTraining switches the dropout between training and eval mode.
func (mha *MultiHeadAttention[B]) SetTraining(training bool) {
	mha.dropout.SetTraining(training)
}
