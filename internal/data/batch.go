package data

import (
	"fmt"

	"github.com/loom-ml/loom/internal/tensor"
)

// Batch stacks samples along the batch dimension for a training step.
type Batch[B tensor.Backend] struct {
	EncoderInput *tensor.Tensor[int32, B] // [batch, seq_len]
	DecoderInput *tensor.Tensor[int32, B] // [batch, seq_len]
	Label        *tensor.Tensor[int32, B] // [batch, seq_len]

	EncoderMask *tensor.Tensor[bool, B] // [batch, 1, 1, seq_len]
	DecoderMask *tensor.Tensor[bool, B] // [batch, 1, seq_len, seq_len]
}

// Collate stacks samples into one batch. All samples must share the same
// sequence length (they do when they come from the same NewSample
// configuration).
func Collate[B tensor.Backend](samples []*Sample[B]) *Batch[B] {
	if len(samples) == 0 {
		panic("collate: empty batch")
	}

	backend := samples[0].EncoderInput.Backend()
	seqLen := samples[0].EncoderInput.Shape()[1]
	for _, s := range samples[1:] {
		if s.EncoderInput.Shape()[1] != seqLen {
			panic(fmt.Sprintf("collate: mixed sequence lengths %d and %d", seqLen, s.EncoderInput.Shape()[1]))
		}
	}
	n := len(samples)

	encoderInput := tensor.Zeros[int32](tensor.Shape{n, seqLen}, backend)
	decoderInput := tensor.Zeros[int32](tensor.Shape{n, seqLen}, backend)
	label := tensor.Zeros[int32](tensor.Shape{n, seqLen}, backend)
	encoderMask := tensor.Zeros[bool](tensor.Shape{n, 1, 1, seqLen}, backend)
	decoderMask := tensor.Zeros[bool](tensor.Shape{n, 1, seqLen, seqLen}, backend)

	for i, s := range samples {
		copy(encoderInput.Data()[i*seqLen:], s.EncoderInput.Data())
		copy(decoderInput.Data()[i*seqLen:], s.DecoderInput.Data())
		copy(label.Data()[i*seqLen:], s.Label.Data())
		copy(encoderMask.Data()[i*seqLen:], s.EncoderMask.Data())
		copy(decoderMask.Data()[i*seqLen*seqLen:], s.DecoderMask.Data())
	}

	return &Batch[B]{
		EncoderInput: encoderInput,
		DecoderInput: decoderInput,
		Label:        label,
		EncoderMask:  encoderMask,
		DecoderMask:  decoderMask,
	}
}

// Size returns the number of samples in the batch.
func (b *Batch[B]) Size() int {
	return b.EncoderInput.Shape()[0]
}
