package nn

import (
	"fmt"

	"github.com/loom-ml/loom/internal/tensor"
)

// ProjectionHead maps decoder states to log-probabilities over the target
// vocabulary: a linear d_model -> vocab_size layer followed by
// log-softmax. Producing log space directly keeps the downstream loss
// numerically stable.
type ProjectionHead[B tensor.Backend] struct {
	dModel    int
	vocabSize int
	proj      *Linear[B]
}

// NewProjectionHead creates the output projection.
func NewProjectionHead[B tensor.Backend](dModel, vocabSize int, backend B) *ProjectionHead[B] {
	if vocabSize <= 0 {
		panic(fmt.Sprintf("projection: vocab size must be positive, got %d", vocabSize))
	}
	return &ProjectionHead[B]{
		dModel:    dModel,
		vocabSize: vocabSize,
		proj:      NewLinear(dModel, vocabSize, backend),
	}
}

// Forward maps [batch, seq_len, d_model] to log-probabilities
// [batch, seq_len, vocab_size]. Each position's row sums to 1 in
// probability space.
func (p *ProjectionHead[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	if len(shape) != 3 || shape[2] != p.dModel {
		panic(fmt.Sprintf("projection: expected [batch, seq, %d], got %v", p.dModel, shape))
	}
	batch, seqLen := shape[0], shape[1]

	logits := p.proj.Forward(x.Reshape(batch*seqLen, p.dModel))
	return logits.Reshape(batch, seqLen, p.vocabSize).LogSoftmax(-1)
}

// VocabSize returns the target vocabulary size.
func (p *ProjectionHead[B]) VocabSize() int {
	return p.vocabSize
}

// Parameters returns the trainable parameters of this layer.
func (p *ProjectionHead[B]) Parameters() []*Parameter[B] {
	return p.proj.Parameters()
}

// StateDict returns a map of parameter names to raw tensors.
func (p *ProjectionHead[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	mergeStateDict(stateDict, "proj", p.proj.StateDict())
	return stateDict
}

// LoadStateDict loads parameters from a state dictionary.
func (p *ProjectionHead[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return p.proj.LoadStateDict(subStateDict(stateDict, "proj"))
}
