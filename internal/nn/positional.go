package nn

import (
	"fmt"
	"math"

	"github.com/loom-ml/loom/internal/tensor"
)

// PositionalEncoding adds the fixed sinusoidal position signal to token
// embeddings and applies dropout to the sum.
//
// The table follows the standard construction:
//
//	PE[pos, 2i]   = sin(pos / 10000^(2i/d_model))
//	PE[pos, 2i+1] = cos(pos / 10000^(2i/d_model))
//
// It is precomputed once for maxLen positions and is not trainable.
type PositionalEncoding[B tensor.Backend] struct {
	dModel  int
	maxLen  int
	table   *tensor.Tensor[float32, B] // [1, max_len, d_model]
	dropout *Dropout[B]
	backend B
}

// NewPositionalEncoding precomputes the encoding table for sequence
// positions [0, maxLen).
func NewPositionalEncoding[B tensor.Backend](dModel, maxLen int, dropoutP float32, backend B) *PositionalEncoding[B] {
	if dModel <= 0 || maxLen <= 0 {
		panic(fmt.Sprintf("positional encoding: invalid dimensions d_model=%d max_len=%d", dModel, maxLen))
	}

	table := tensor.Zeros[float32](tensor.Shape{1, maxLen, dModel}, backend)
	data := table.Data()

	for pos := 0; pos < maxLen; pos++ {
		for i := 0; i < dModel; i += 2 {
			angle := float64(pos) / math.Pow(10000, float64(i)/float64(dModel))
			data[pos*dModel+i] = float32(math.Sin(angle))
			if i+1 < dModel {
				data[pos*dModel+i+1] = float32(math.Cos(angle))
			}
		}
	}

	return &PositionalEncoding[B]{
		dModel:  dModel,
		maxLen:  maxLen,
		table:   table,
		dropout: NewDropout[B](dropoutP),
		backend: backend,
	}
}

// Forward adds the position signal for the input's sequence length and
// applies dropout. Input shape: [batch, seq_len, d_model] with
// seq_len <= maxLen.
func (pe *PositionalEncoding[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	if len(shape) != 3 {
		panic(fmt.Sprintf("positional encoding: expected 3D input [batch, seq, d_model], got %v", shape))
	}
	seqLen := shape[1]
	if seqLen > pe.maxLen {
		panic(fmt.Sprintf("positional encoding: sequence length %d exceeds max %d", seqLen, pe.maxLen))
	}
	if shape[2] != pe.dModel {
		panic(fmt.Sprintf("positional encoding: d_model mismatch %d != %d", shape[2], pe.dModel))
	}

	return pe.dropout.Forward(x.Add(pe.slice(seqLen)))
}

// slice returns the first seqLen positions of the table as [1, seqLen, d_model].
func (pe *PositionalEncoding[B]) slice(seqLen int) *tensor.Tensor[float32, B] {
	if seqLen == pe.maxLen {
		return pe.table
	}
	out := tensor.Zeros[float32](tensor.Shape{1, seqLen, pe.dModel}, pe.backend)
	copy(out.Data(), pe.table.Data()[:seqLen*pe.dModel])
	return out
}

// Table exposes the precomputed encoding, mainly for tests.
func (pe *PositionalEncoding[B]) Table() *tensor.Tensor[float32, B] {
	return pe.table
}

// SetTraining switches the dropout between training and eval mode.
func (pe *PositionalEncoding[B]) SetTraining(training bool) {
	pe.dropout.SetTraining(training)
}
