// Package generate runs autoregressive decoding over a trained
// translation model.
package generate

import (
	"math"
	"math/rand"
	"sort"
)

// SamplingConfig configures the stochastic alternative to greedy
// decoding.
type SamplingConfig struct {
	// Temperature controls randomness. 0 = greedy, 1 = the model's own
	// distribution, >1 = flatter.
	Temperature float32

	// TopK limits sampling to the K most likely tokens. 0 = disabled.
	TopK int

	// TopP (nucleus sampling) limits to the smallest set of tokens whose
	// cumulative probability exceeds P. 1.0 = disabled.
	TopP float32

	// Seed for reproducibility. -1 = random.
	Seed int64
}

// DefaultSamplingConfig returns sensible defaults.
func DefaultSamplingConfig() SamplingConfig {
	return SamplingConfig{
		Temperature: 1.0,
		TopK:        0,
		TopP:        1.0,
		Seed:        -1,
	}
}

// Sampler draws tokens from per-position log-probabilities.
type Sampler struct {
	config SamplingConfig
	rng    *rand.Rand
}

// NewSampler creates a sampler with the given configuration.
func NewSampler(config SamplingConfig) *Sampler {
	var rng *rand.Rand
	if config.Seed >= 0 {
		rng = rand.New(rand.NewSource(config.Seed)) //nolint:gosec // Intentional deterministic seed for reproducibility
	} else {
		rng = rand.New(rand.NewSource(rand.Int63())) //nolint:gosec // User requested random seed
	}

	return &Sampler{
		config: config,
		rng:    rng,
	}
}

// Sample returns the next token id given the model's log-probabilities
// (or logits; only differences matter) for one position.
//
// Order of operations: temperature scaling, Top-K filter, Top-P filter,
// then a multinomial draw. Temperature 0 short-circuits to argmax.
func (s *Sampler) Sample(logits []float32) int32 {
	if s.config.Temperature == 0 {
		return argmax(logits)
	}

	// Copy so filters don't modify the caller's slice.
	logits = append([]float32{}, logits...)

	if s.config.Temperature != 1.0 {
		for i := range logits {
			logits[i] /= s.config.Temperature
		}
	}

	if s.config.TopK > 0 && s.config.TopK < len(logits) {
		logits = s.topKFilter(logits)
	}
	if s.config.TopP < 1.0 && s.config.TopP > 0 {
		logits = s.topPFilter(logits)
	}

	return s.multinomial(softmax(logits))
}

// argmax returns the index of the maximum value. Ties resolve to the
// lowest index, keeping greedy decoding deterministic.
func argmax(logits []float32) int32 {
	maxIdx := 0
	maxVal := logits[0]
	for i, v := range logits[1:] {
		if v > maxVal {
			maxVal = v
			maxIdx = i + 1
		}
	}
	return int32(maxIdx) //nolint:gosec // vocab size is bounded by model architecture
}

// topKFilter keeps only the top K logits, setting the rest to -inf.
func (s *Sampler) topKFilter(logits []float32) []float32 {
	k := s.config.TopK

	sorted := append([]float32{}, logits...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] > sorted[j] })
	threshold := sorted[k-1]

	for i := range logits {
		if logits[i] < threshold {
			logits[i] = float32(math.Inf(-1))
		}
	}
	return logits
}

// topPFilter implements nucleus sampling.
func (s *Sampler) topPFilter(logits []float32) []float32 {
	p := s.config.TopP
	probs := softmax(logits)

	type indexedProb struct {
		idx  int
		prob float32
	}
	indexed := make([]indexedProb, len(probs))
	for i, prob := range probs {
		indexed[i] = indexedProb{i, prob}
	}
	sort.Slice(indexed, func(i, j int) bool { return indexed[i].prob > indexed[j].prob })

	cumSum := float32(0)
	cutoffIdx := len(indexed) - 1
	for i, ip := range indexed {
		cumSum += ip.prob
		if cumSum > p {
			cutoffIdx = i
			break
		}
	}
	if cutoffIdx == 0 {
		cutoffIdx = 1 // always keep at least one token
	}

	keep := make(map[int]bool)
	for i := 0; i <= cutoffIdx; i++ {
		keep[indexed[i].idx] = true
	}
	for i := range logits {
		if !keep[i] {
			logits[i] = float32(math.Inf(-1))
		}
	}
	return logits
}

// multinomial samples from a categorical distribution.
func (s *Sampler) multinomial(probs []float32) int32 {
	r := s.rng.Float32()

	cumSum := float32(0)
	for i, p := range probs {
		cumSum += p
		if r < cumSum {
			return int32(i) //nolint:gosec // vocab size is bounded by model architecture
		}
	}
	return int32(len(probs) - 1) //nolint:gosec // rounding fallback
}

// softmax converts logits to probabilities, treating -inf as filtered.
func softmax(logits []float32) []float32 {
	maxVal := logits[0]
	for _, v := range logits[1:] {
		if v > maxVal {
			maxVal = v
		}
	}

	probs := make([]float32, len(logits))
	sum := float32(0)
	for i, v := range logits {
		if math.IsInf(float64(v), -1) {
			probs[i] = 0
		} else {
			probs[i] = float32(math.Exp(float64(v - maxVal)))
			sum += probs[i]
		}
	}

	if sum > 0 {
		for i := range probs {
			probs[i] /= sum
		}
	}
	return probs
}
