// Package generate exposes autoregressive decoding over a trained
// translation model.
//
// Example:
//
//	decoder := generate.NewGreedyDecoder(model, sos, eos, 128, backend)
//	ids := decoder.Decode(src, srcMask)
package generate

import (
	"github.com/loom-ml/loom/internal/generate"
	"github.com/loom-ml/loom/internal/nn"
	"github.com/loom-ml/loom/internal/tensor"
)

// SamplingConfig configures stochastic decoding: temperature scaling,
// top-k and top-p (nucleus) filtering, and the random seed.
type SamplingConfig = generate.SamplingConfig

// DefaultSamplingConfig returns sensible defaults: temperature 1.0,
// filters disabled, random seed.
func DefaultSamplingConfig() SamplingConfig {
	return generate.DefaultSamplingConfig()
}

// Sampler draws tokens from per-position log-probabilities.
type Sampler = generate.Sampler

// NewSampler creates a sampler with the given configuration.
func NewSampler(config SamplingConfig) *Sampler {
	return generate.NewSampler(config)
}

// GreedyDecoder translates one source sequence by repeatedly picking
// the most likely next token, stopping at EOS or the length budget.
type GreedyDecoder[B tensor.Backend] = generate.GreedyDecoder[B]

// NewGreedyDecoder creates a decoder. maxLen caps the output length,
// including the SOS seed, and must fit the model's target positional
// table.
func NewGreedyDecoder[B tensor.Backend](model *nn.Transformer[B], sos, eos int32, maxLen int, backend B) *GreedyDecoder[B] {
	return generate.NewGreedyDecoder[B](model, sos, eos, maxLen, backend)
}
