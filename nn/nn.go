// Package nn exposes the model-building API: the transformer and its
// layers, attention masks, the training loss, and checkpointing.
//
// Example:
//
//	backend := cpu.New()
//	model := nn.NewTransformer(nn.Config{
//	    SrcVocabSize: 8000,
//	    TgtVocabSize: 8000,
//	    SrcSeqLen:    128,
//	    TgtSeqLen:    128,
//	}, backend)
//
//	memory := model.Encode(src, srcMask)
//	states := model.Decode(memory, srcMask, tgt, tgtMask)
//	logProbs := model.Project(states)
package nn

import (
	"github.com/loom-ml/loom/internal/nn"
	"github.com/loom-ml/loom/internal/tensor"
)

// Parameter is a named trainable tensor with an optional gradient.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// NewParameter creates a parameter with the given name and tensor.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return nn.NewParameter(name, t)
}

// Layers

// Linear is a fully connected layer, y = xW^T + b.
type Linear[B tensor.Backend] = nn.Linear[B]

// NewLinear creates a linear layer with Xavier-initialized weights.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, backend B) *Linear[B] {
	return nn.NewLinear(inFeatures, outFeatures, backend)
}

// Embedding maps token ids to scaled d_model vectors.
type Embedding[B tensor.Backend] = nn.Embedding[B]

// NewEmbedding creates an embedding table.
func NewEmbedding[B tensor.Backend](vocabSize, dModel int, backend B) *Embedding[B] {
	return nn.NewEmbedding[B](vocabSize, dModel, backend)
}

// PositionalEncoding adds the fixed sinusoidal position table.
type PositionalEncoding[B tensor.Backend] = nn.PositionalEncoding[B]

// NewPositionalEncoding builds the sin/cos table for maxLen positions.
func NewPositionalEncoding[B tensor.Backend](dModel, maxLen int, dropout float32, backend B) *PositionalEncoding[B] {
	return nn.NewPositionalEncoding[B](dModel, maxLen, dropout, backend)
}

// LayerNorm normalizes over the last dimension with learned scalar
// scale and shift.
type LayerNorm[B tensor.Backend] = nn.LayerNorm[B]

// NewLayerNorm creates a layer norm with the given epsilon.
func NewLayerNorm[B tensor.Backend](eps float32, backend B) *LayerNorm[B] {
	return nn.NewLayerNorm[B](eps, backend)
}

// MultiHeadAttention is scaled dot-product attention over h heads.
type MultiHeadAttention[B tensor.Backend] = nn.MultiHeadAttention[B]

// NewMultiHeadAttention creates an attention layer. Panics when heads
// does not divide dModel.
func NewMultiHeadAttention[B tensor.Backend](dModel, heads int, dropout float32, backend B) *MultiHeadAttention[B] {
	return nn.NewMultiHeadAttention[B](dModel, heads, dropout, backend)
}

// FeedForward is the position-wise two-layer ReLU network.
type FeedForward[B tensor.Backend] = nn.FeedForward[B]

// NewFeedForward creates a feed-forward block.
func NewFeedForward[B tensor.Backend](dModel, dFF int, dropout float32, backend B) *FeedForward[B] {
	return nn.NewFeedForward[B](dModel, dFF, dropout, backend)
}

// Model

// Config holds the transformer hyperparameters. Zero values fall back
// to the base configuration (d_model 512, 6 layers, 8 heads, d_ff 2048,
// dropout 0.1).
type Config = nn.Config

// Transformer is the encoder-decoder translation model.
type Transformer[B tensor.Backend] = nn.Transformer[B]

// NewTransformer builds a model from the configuration.
func NewTransformer[B tensor.Backend](cfg Config, backend B) *Transformer[B] {
	return nn.NewTransformer[B](cfg, backend)
}

// Masks

// CausalMask returns a [1, 1, len, len] lower-triangular mask. True
// means the position may be attended.
func CausalMask[B tensor.Backend](seqLen int, backend B) *tensor.Tensor[bool, B] {
	return nn.CausalMask[B](seqLen, backend)
}

// PaddingMask returns a [1, 1, 1, len] mask that is false at pad ids.
func PaddingMask[B tensor.Backend](ids []int32, padID int32, backend B) *tensor.Tensor[bool, B] {
	return nn.PaddingMask[B](ids, padID, backend)
}

// CombineMasks intersects a padding mask with a causal mask.
func CombineMasks[B tensor.Backend](padding, causal *tensor.Tensor[bool, B]) *tensor.Tensor[bool, B] {
	return nn.CombineMasks[B](padding, causal)
}

// Loss

// CrossEntropyLoss is negative log-likelihood over log-probabilities
// with an ignored padding class and optional label smoothing.
type CrossEntropyLoss[B tensor.Backend] = nn.CrossEntropyLoss[B]

// NewCrossEntropyLoss creates the loss. ignoreIndex is the target id to
// exclude from the mean (use -1 to keep every position).
func NewCrossEntropyLoss[B tensor.Backend](ignoreIndex int32, smoothing float32) *CrossEntropyLoss[B] {
	return nn.NewCrossEntropyLoss[B](ignoreIndex, smoothing)
}

// Checkpoints

// Checkpoint bundles a model with its training state.
type Checkpoint[B tensor.Backend] = nn.Checkpoint[B]

// OptimizerState is what a checkpoint needs from an optimizer.
type OptimizerState = nn.OptimizerState

// LoadCheckpoint restores model (and optionally optimizer) state from a
// .loom file.
func LoadCheckpoint[B tensor.Backend](path string, model *Transformer[B], optimizer OptimizerState) (*Checkpoint[B], error) {
	return nn.LoadCheckpoint[B](path, model, optimizer)
}

// CheckpointPath returns the conventional epoch-keyed file name.
func CheckpointPath(dir string, epoch int) string {
	return nn.CheckpointPath(dir, epoch)
}

// LatestCheckpoint finds the highest-epoch checkpoint in dir.
func LatestCheckpoint(dir string) (path string, epoch int, err error) {
	return nn.LatestCheckpoint(dir)
}
