package nn

import (
	"fmt"
	"math"

	"github.com/loom-ml/loom/internal/tensor"
)

// Embedding maps token ids to learned dense vectors and scales them by
// sqrt(d_model), keeping the embedding magnitude in balance with the
// positional encoding added right after it.
//
// Input: int32 ids [batch, seq_len]. Output: [batch, seq_len, d_model].
// An id outside [0, vocab_size) panics: that is a tokenizer/model wiring
// bug, not data the layer can do anything with.
type Embedding[B tensor.Backend] struct {
	vocabSize int
	dModel    int
	weight    *Parameter[B] // [vocab_size, d_model]
	backend   B
}

// NewEmbedding creates an embedding table initialized from N(0, 1).
func NewEmbedding[B tensor.Backend](vocabSize, dModel int, backend B) *Embedding[B] {
	if vocabSize <= 0 || dModel <= 0 {
		panic(fmt.Sprintf("embedding: invalid dimensions vocab=%d d_model=%d", vocabSize, dModel))
	}

	weight := NewParameter("weight", Randn[B](tensor.Shape{vocabSize, dModel}, backend))

	return &Embedding[B]{
		vocabSize: vocabSize,
		dModel:    dModel,
		weight:    weight,
		backend:   backend,
	}
}

// Forward looks up the ids and scales the result by sqrt(d_model).
func (e *Embedding[B]) Forward(ids *tensor.Tensor[int32, B]) *tensor.Tensor[float32, B] {
	embedded := e.weight.Tensor().Embedding(ids)
	return embedded.MulScalar(float32(math.Sqrt(float64(e.dModel))))
}

// Parameters returns the trainable parameters of this layer.
func (e *Embedding[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{e.weight}
}

// Weight returns the embedding table parameter.
func (e *Embedding[B]) Weight() *Parameter[B] {
	return e.weight
}

// VocabSize returns the vocabulary size.
func (e *Embedding[B]) VocabSize() int {
	return e.vocabSize
}

// DModel returns the embedding dimension.
func (e *Embedding[B]) DModel() int {
	return e.dModel
}

// StateDict returns a map of parameter names to raw tensors.
func (e *Embedding[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"weight": e.weight.Tensor().Raw(),
	}
}

// LoadStateDict loads parameters from a state dictionary.
func (e *Embedding[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return loadTensor(stateDict, "weight", e.weight.Tensor())
}
