// Package data assembles fixed-length training samples and attention
// masks for the translation model.
package data

import (
	"fmt"

	"github.com/loom-ml/loom/internal/nn"
	"github.com/loom-ml/loom/internal/tensor"
)

// Specials holds the reserved token ids every sample is framed with.
type Specials struct {
	Pad int32
	Sos int32
	Eos int32
}

// InputTooLongError reports a sentence that cannot fit the fixed sequence
// length. Sentences are never truncated; the caller decides whether to
// skip or re-bucket them.
type InputTooLongError struct {
	Side     string // "source" or "target"
	Tokens   int    // content tokens in the sentence
	Capacity int    // content tokens the frame can hold
}

func (e *InputTooLongError) Error() string {
	return fmt.Sprintf("%s sentence too long: %d tokens, capacity %d", e.Side, e.Tokens, e.Capacity)
}

// Sample is one fixed-length training example.
//
// All three sequences have exactly seqLen tokens:
//
//	encoder input: SOS src... EOS PAD...
//	decoder input: SOS tgt...     PAD...
//	label:             tgt... EOS PAD...
//
// The decoder input and label are the same sentence shifted by one: at
// each position the decoder sees the prefix and the label holds the token
// it should predict next.
type Sample[B tensor.Backend] struct {
	EncoderInput *tensor.Tensor[int32, B] // [1, seq_len]
	DecoderInput *tensor.Tensor[int32, B] // [1, seq_len]
	Label        *tensor.Tensor[int32, B] // [1, seq_len]

	EncoderMask *tensor.Tensor[bool, B] // [1, 1, 1, seq_len], true = real token
	DecoderMask *tensor.Tensor[bool, B] // [1, 1, seq_len, seq_len], padding AND causal

	SrcPadding int // PAD tokens in the encoder input
	TgtPadding int // PAD tokens in the decoder input
}

// NewSample frames a tokenized sentence pair into a fixed-length sample.
//
// The encoder frame spends two slots on SOS/EOS, the decoder frame one on
// SOS, so the capacities differ by one. A sentence that does not fit
// returns an InputTooLongError.
func NewSample[B tensor.Backend](srcIDs, tgtIDs []int32, seqLen int, sp Specials, backend B) (*Sample[B], error) {
	if seqLen < 2 {
		panic(fmt.Sprintf("sample: sequence length %d cannot hold SOS and EOS", seqLen))
	}

	srcPadding := seqLen - len(srcIDs) - 2
	if srcPadding < 0 {
		return nil, &InputTooLongError{Side: "source", Tokens: len(srcIDs), Capacity: seqLen - 2}
	}
	tgtPadding := seqLen - len(tgtIDs) - 1
	if tgtPadding < 0 {
		return nil, &InputTooLongError{Side: "target", Tokens: len(tgtIDs), Capacity: seqLen - 1}
	}

	encoderIDs := make([]int32, 0, seqLen)
	encoderIDs = append(encoderIDs, sp.Sos)
	encoderIDs = append(encoderIDs, srcIDs...)
	encoderIDs = append(encoderIDs, sp.Eos)
	encoderIDs = appendPad(encoderIDs, sp.Pad, srcPadding)

	decoderIDs := make([]int32, 0, seqLen)
	decoderIDs = append(decoderIDs, sp.Sos)
	decoderIDs = append(decoderIDs, tgtIDs...)
	decoderIDs = appendPad(decoderIDs, sp.Pad, tgtPadding)

	labelIDs := make([]int32, 0, seqLen)
	labelIDs = append(labelIDs, tgtIDs...)
	labelIDs = append(labelIDs, sp.Eos)
	labelIDs = appendPad(labelIDs, sp.Pad, tgtPadding)

	encoderMask := nn.PaddingMask(encoderIDs, sp.Pad, backend)
	decoderMask := nn.CombineMasks(
		nn.PaddingMask(decoderIDs, sp.Pad, backend),
		nn.CausalMask(seqLen, backend),
	)

	return &Sample[B]{
		EncoderInput: idTensor(encoderIDs, backend),
		DecoderInput: idTensor(decoderIDs, backend),
		Label:        idTensor(labelIDs, backend),
		EncoderMask:  encoderMask,
		DecoderMask:  decoderMask,
		SrcPadding:   srcPadding,
		TgtPadding:   tgtPadding,
	}, nil
}

// NewSourceInput frames a source sentence for inference: the encoder
// input row and its padding mask, with no target side.
func NewSourceInput[B tensor.Backend](srcIDs []int32, seqLen int, sp Specials, backend B) (*tensor.Tensor[int32, B], *tensor.Tensor[bool, B], error) {
	padding := seqLen - len(srcIDs) - 2
	if padding < 0 {
		return nil, nil, &InputTooLongError{Side: "source", Tokens: len(srcIDs), Capacity: seqLen - 2}
	}

	ids := make([]int32, 0, seqLen)
	ids = append(ids, sp.Sos)
	ids = append(ids, srcIDs...)
	ids = append(ids, sp.Eos)
	ids = appendPad(ids, sp.Pad, padding)

	return idTensor(ids, backend), nn.PaddingMask(ids, sp.Pad, backend), nil
}

func appendPad(ids []int32, pad int32, n int) []int32 {
	for i := 0; i < n; i++ {
		ids = append(ids, pad)
	}
	return ids
}

func idTensor[B tensor.Backend](ids []int32, backend B) *tensor.Tensor[int32, B] {
	t, err := tensor.FromSlice(ids, tensor.Shape{1, len(ids)}, backend)
	if err != nil {
		panic(err) // lengths are constructed to match
	}
	return t
}
