package nn

import (
	"fmt"

	"github.com/loom-ml/loom/internal/tensor"
)

// DecoderBlock is one decoder layer: masked self-attention over the
// target prefix, cross-attention from the target into the encoder memory,
// and feed-forward, each behind its own pre-norm residual wrapper.
type DecoderBlock[B tensor.Backend] struct {
	selfAttn  *MultiHeadAttention[B]
	crossAttn *MultiHeadAttention[B]
	ff        *FeedForward[B]
	residuals [3]*Residual[B]
}

// NewDecoderBlock creates one decoder layer.
func NewDecoderBlock[B tensor.Backend](dModel, heads, dFF int, dropoutP, eps float32, backend B) *DecoderBlock[B] {
	return &DecoderBlock[B]{
		selfAttn:  NewMultiHeadAttention(dModel, heads, dropoutP, backend),
		crossAttn: NewMultiHeadAttention(dModel, heads, dropoutP, backend),
		ff:        NewFeedForward(dModel, dFF, dropoutP, backend),
		residuals: [3]*Residual[B]{
			NewResidual[B](eps, dropoutP, backend),
			NewResidual[B](eps, dropoutP, backend),
			NewResidual[B](eps, dropoutP, backend),
		},
	}
}

// Forward runs the block.
//
// tgtMask (true = attend) combines causality with target padding and
// gates the self-attention. srcMask gates cross-attention so target
// positions cannot attend to source padding. In cross-attention the
// query comes from the decoder stream and K, V from the encoder memory.
func (b *DecoderBlock[B]) Forward(
	x, memory *tensor.Tensor[float32, B],
	srcMask, tgtMask *tensor.Tensor[bool, B],
) *tensor.Tensor[float32, B] {
	x = b.residuals[0].Forward(x, func(n *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
		out, _ := b.selfAttn.Forward(n, n, n, tgtMask)
		return out
	})
	x = b.residuals[1].Forward(x, func(n *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
		out, _ := b.crossAttn.Forward(n, memory, memory, srcMask)
		return out
	})
	return b.residuals[2].Forward(x, b.ff.Forward)
}

// SelfAttention returns the block's masked self-attention layer.
func (b *DecoderBlock[B]) SelfAttention() *MultiHeadAttention[B] {
	return b.selfAttn
}

// CrossAttention returns the block's encoder-decoder attention layer.
func (b *DecoderBlock[B]) CrossAttention() *MultiHeadAttention[B] {
	return b.crossAttn
}

// Parameters returns the trainable parameters of this block.
func (b *DecoderBlock[B]) Parameters() []*Parameter[B] {
	params := b.selfAttn.Parameters()
	params = append(params, b.crossAttn.Parameters()...)
	params = append(params, b.ff.Parameters()...)
	for _, r := range b.residuals {
		params = append(params, r.Parameters()...)
	}
	return params
}

// StateDict returns a map of parameter names to raw tensors.
func (b *DecoderBlock[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	mergeStateDict(stateDict, "self_attn", b.selfAttn.StateDict())
	mergeStateDict(stateDict, "cross_attn", b.crossAttn.StateDict())
	mergeStateDict(stateDict, "ff", b.ff.StateDict())
	for i, r := range b.residuals {
		mergeStateDict(stateDict, fmt.Sprintf("residual%d", i), r.StateDict())
	}
	return stateDict
}

// LoadStateDict loads parameters from a state dictionary.
func (b *DecoderBlock[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := b.selfAttn.LoadStateDict(subStateDict(stateDict, "self_attn")); err != nil {
		return fmt.Errorf("self_attn: %w", err)
	}
	if err := b.crossAttn.LoadStateDict(subStateDict(stateDict, "cross_attn")); err != nil {
		return fmt.Errorf("cross_attn: %w", err)
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
func (b *DecoderBlock[B]) SetTraining(training bool) {
	b.selfAttn.SetTraining(training)
	b.crossAttn.SetTraining(training)
	b.ff.SetTraining(training)
	for _, r := range b.residuals {
		r.SetTraining(training)
	}
}

// Decoder is the stack of decoder blocks followed by a final
// normalization.
type Decoder[B tensor.Backend] struct {
	blocks []*DecoderBlock[B]
	norm   *LayerNorm[B]
}

// NewDecoder creates a stack of n identical decoder blocks.
func NewDecoder[B tensor.Backend](n, dModel, heads, dFF int, dropoutP, eps float32, backend B) *Decoder[B] {
	if n <= 0 {
		panic(fmt.Sprintf("decoder: need at least one block, got %d", n))
	}
	blocks := make([]*DecoderBlock[B], n)
	for i := range blocks {
		blocks[i] = NewDecoderBlock(dModel, heads, dFF, dropoutP, eps, backend)
	}
	return &Decoder[B]{
		blocks: blocks,
		norm:   NewLayerNorm(eps, backend),
	}
}

// Forward threads x through every block and normalizes the result.
func (d *Decoder[B]) Forward(
	x, memory *tensor.Tensor[float32, B],
	srcMask, tgtMask *tensor.Tensor[bool, B],
) *tensor.Tensor[float32, B] {
	for _, block := range d.blocks {
		x = block.Forward(x, memory, srcMask, tgtMask)
	}
	return d.norm.Forward(x)
}

// Blocks returns the decoder's layers.
func (d *Decoder[B]) Blocks() []*DecoderBlock[B] {
	return d.blocks
}

// Parameters returns the trainable parameters of the stack.
func (d *Decoder[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	for _, block := range d.blocks {
		params = append(params, block.Parameters()...)
	}
	return append(params, d.norm.Parameters()...)
}

// StateDict returns a map of parameter names to raw tensors.
func (d *Decoder[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	for i, block := range d.blocks {
		mergeStateDict(stateDict, fmt.Sprintf("block%d", i), block.StateDict())
	}
	mergeStateDict(stateDict, "norm", d.norm.StateDict())
	return stateDict
}

// LoadStateDict loads parameters from a state dictionary.
func (d *Decoder[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for i, block := range d.blocks {
		if err := block.LoadStateDict(subStateDict(stateDict, fmt.Sprintf("block%d", i))); err != nil {
			return fmt.Errorf("block%d: %w", i, err)
		}
	}
	return d.norm.LoadStateDict(subStateDict(stateDict, "norm"))
}

// SetTraining switches every dropout in the stack.
func (d *Decoder[B]) SetTraining(training bool) {
	for _, block := range d.blocks {
		block.SetTraining(training)
	}
}
