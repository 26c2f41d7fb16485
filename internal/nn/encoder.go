package nn

import (
	"fmt"

	"github.com/loom-ml/loom/internal/tensor"
)

// EncoderBlock is one encoder layer: self-attention and feed-forward,
// each behind its own pre-norm residual wrapper.
type EncoderBlock[B tensor.Backend] struct {
	selfAttn  *MultiHeadAttention[B]
	ff        *FeedForward[B]
	residuals [2]*Residual[B]
}

// NewEncoderBlock creates one encoder layer.
func NewEncoderBlock[B tensor.Backend](dModel, heads, dFF int, dropoutP, eps float32, backend B) *EncoderBlock[B] {
	return &EncoderBlock[B]{
		selfAttn: NewMultiHeadAttention(dModel, heads, dropoutP, backend),
		ff:       NewFeedForward(dModel, dFF, dropoutP, backend),
		residuals: [2]*Residual[B]{
			NewResidual[B](eps, dropoutP, backend),
			NewResidual[B](eps, dropoutP, backend),
		},
	}
}

// Forward runs the block. srcMask (true = attend) keeps every position
// from attending to source padding.
func (b *EncoderBlock[B]) Forward(
	x *tensor.Tensor[float32, B],
	srcMask *tensor.Tensor[bool, B],
) *tensor.Tensor[float32, B] {
	x = b.residuals[0].Forward(x, func(n *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
		out, _ := b.selfAttn.Forward(n, n, n, srcMask)
		return out
	})
	return b.residuals[1].Forward(x, b.ff.Forward)
}

// SelfAttention returns the block's self-attention layer.
func (b *EncoderBlock[B]) SelfAttention() *MultiHeadAttention[B] {
	return b.selfAttn
}

// Parameters returns the trainable parameters of this block.
func (b *EncoderBlock[B]) Parameters() []*Parameter[B] {
	params := b.selfAttn.Parameters()
	params = append(params, b.ff.Parameters()...)
	for _, r := range b.residuals {
		params = append(params, r.Parameters()...)
	}
	return params
}

// StateDict returns a map of parameter names to raw tensors.
func (b *EncoderBlock[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	mergeStateDict(stateDict, "self_attn", b.selfAttn.StateDict())
	mergeStateDict(stateDict, "ff", b.ff.StateDict())
	mergeStateDict(stateDict, "residual0", b.residuals[0].StateDict())
	mergeStateDict(stateDict, "residual1", b.residuals[1].StateDict())
	return stateDict
}

// LoadStateDict loads parameters from a state dictionary.
func (b *EncoderBlock[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := b.selfAttn.LoadStateDict(subStateDict(stateDict, "self_attn")); err != nil {
		return fmt.Errorf("self_attn: %w", err)
	}
	if err := b.ff.LoadStateDict(subStateDict(stateDict, "ff")); err != nil {
		return fmt.Errorf("ff: %w", err)
	}
	for i, r := range b.residuals {
		if err := r.LoadStateDict(subStateDict(stateDict, fmt.Sprintf("residual%d", i))); err != nil {
			return fmt.Errorf("residual%d: %w", i, err)
		}
	}
	return nil
}

// SetTraining switches every dropout in the block.
func (b *EncoderBlock[B]) SetTraining(training bool) {
	b.selfAttn.SetTraining(training)
	b.ff.SetTraining(training)
	for _, r := range b.residuals {
		r.SetTraining(training)
	}
}

// Encoder is the stack of encoder blocks followed by a final
// normalization.
type Encoder[B tensor.Backend] struct {
	blocks []*EncoderBlock[B]
	norm   *LayerNorm[B]
}

// NewEncoder creates a stack of n identical encoder blocks.
func NewEncoder[B tensor.Backend](n, dModel, heads, dFF int, dropoutP, eps float32, backend B) *Encoder[B] {
	if n <= 0 {
		panic(fmt.Sprintf("encoder: need at least one block, got %d", n))
	}
	blocks := make([]*EncoderBlock[B], n)
	for i := range blocks {
		blocks[i] = NewEncoderBlock(dModel, heads, dFF, dropoutP, eps, backend)
	}
	return &Encoder[B]{
		blocks: blocks,
		norm:   NewLayerNorm(eps, backend),
	}
}

// Forward threads x through every block and normalizes the result.
func (e *Encoder[B]) Forward(
	x *tensor.Tensor[float32, B],
	srcMask *tensor.Tensor[bool, B],
) *tensor.Tensor[float32, B] {
	for _, block := range e.blocks {
		x = block.Forward(x, srcMask)
	}
	return e.norm.Forward(x)
}

// Blocks returns the encoder's layers.
func (e *Encoder[B]) Blocks() []*EncoderBlock[B] {
	return e.blocks
}

// Parameters returns the trainable parameters of the stack.
func (e *Encoder[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	for _, block := range e.blocks {
		params = append(params, block.Parameters()...)
	}
	return append(params, e.norm.Parameters()...)
}

// StateDict returns a map of parameter names to raw tensors.
func (e *Encoder[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	for i, block := range e.blocks {
		mergeStateDict(stateDict, fmt.Sprintf("block%d", i), block.StateDict())
	}
	mergeStateDict(stateDict, "norm", e.norm.StateDict())
	return stateDict
}

// LoadStateDict loads parameters from a state dictionary.
func (e *Encoder[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for i, block := range e.blocks {
		if err := block.LoadStateDict(subStateDict(stateDict, fmt.Sprintf("block%d", i))); err != nil {
			return fmt.Errorf("block%d: %w", i, err)
		}
	}
	return e.norm.LoadStateDict(subStateDict(stateDict, "norm"))
}

// SetTraining switches every dropout in the stack.
func (e *Encoder[B]) SetTraining(training bool) {
	for _, block := range e.blocks {
		block.SetTraining(training)
	}
}
