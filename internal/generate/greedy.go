package generate

import (
	"fmt"

	"github.com/loom-ml/loom/internal/nn"
	"github.com/loom-ml/loom/internal/tensor"
)

// GreedyDecoder translates one source sequence by repeatedly picking the
// most likely next token.
//
// The loop:
//  1. Encode the source once; the memory is reused every step.
//  2. Seed the output with SOS.
//  3. Each step, run the decoder over the whole prefix with a causal
//     mask sized to the current length, project only the last position,
//     and append the argmax token.
//  4. Stop on EOS or when the output reaches maxLen tokens.
//
// Generated ids accumulate in a fixed-capacity buffer with a length
// cursor; each step re-tensorizes the live prefix.
type GreedyDecoder[B tensor.Backend] struct {
	model   *nn.Transformer[B]
	sos     int32
	eos     int32
	maxLen  int
	backend B
}

// NewGreedyDecoder creates a decoder. maxLen caps the output length,
// including the SOS seed, and must fit the model's target positional
// table.
func NewGreedyDecoder[B tensor.Backend](model *nn.Transformer[B], sos, eos int32, maxLen int, backend B) *GreedyDecoder[B] {
	if maxLen < 2 {
		panic(fmt.Sprintf("greedy decoder: max length %d leaves no room to generate", maxLen))
	}
	if maxLen > model.Config().TgtSeqLen {
		panic(fmt.Sprintf("greedy decoder: max length %d exceeds model target length %d", maxLen, model.Config().TgtSeqLen))
	}
	return &GreedyDecoder[B]{
		model:   model,
		sos:     sos,
		eos:     eos,
		maxLen:  maxLen,
		backend: backend,
	}
}

// Decode greedily translates one source sequence.
//
// src is [1, src_len] and srcMask its padding mask. The returned ids
// start with SOS and include the terminating EOS when one was produced
// within the length budget.
func (g *GreedyDecoder[B]) Decode(
	src *tensor.Tensor[int32, B],
	srcMask *tensor.Tensor[bool, B],
) []int32 {
	return g.decode(src, srcMask, nil)
}

// DecodeWithSampler is Decode with the argmax replaced by a sampler,
// for stochastic generation. The loop and termination rules are the
// same.
func (g *GreedyDecoder[B]) DecodeWithSampler(
	src *tensor.Tensor[int32, B],
	srcMask *tensor.Tensor[bool, B],
	sampler *Sampler,
) []int32 {
	if sampler == nil {
		panic("decode: nil sampler")
	}
	return g.decode(src, srcMask, sampler)
}

func (g *GreedyDecoder[B]) decode(
	src *tensor.Tensor[int32, B],
	srcMask *tensor.Tensor[bool, B],
	sampler *Sampler,
) []int32 {
	if src.Shape()[0] != 1 {
		panic(fmt.Sprintf("decode: batch size must be 1, got %d", src.Shape()[0]))
	}

	// The expensive half runs exactly once.
	memory := g.model.Encode(src, srcMask)

	output := make([]int32, 1, g.maxLen)
	output[0] = g.sos

	for len(output) < g.maxLen {
		cur := len(output)
		tgt, err := tensor.FromSlice(output, tensor.Shape{1, cur}, g.backend)
		if err != nil {
			panic(err)
		}
		tgtMask := nn.CausalMask(cur, g.backend)

		states := g.model.Decode(memory, srcMask, tgt, tgtMask)
		logProbs := g.model.Project(states)

		// Only the last position predicts the next token.
		vocab := logProbs.Shape()[2]
		lastRow := logProbs.Data()[(cur-1)*vocab : cur*vocab]

		var next int32
		if sampler != nil {
			next = sampler.Sample(lastRow)
		} else {
			next = argmax(lastRow)
		}

		output = append(output, next)
		if next == g.eos {
			break
		}
	}
	return output
}

// MaxLen returns the output length budget.
func (g *GreedyDecoder[B]) MaxLen() int {
	return g.maxLen
}
