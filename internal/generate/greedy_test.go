package generate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loom-ml/loom/internal/backend/cpu"
	"github.com/loom-ml/loom/internal/generate"
	"github.com/loom-ml/loom/internal/nn"
	"github.com/loom-ml/loom/internal/tensor"
)

const (
	padID = 0
	sosID = 1
	eosID = 2
)

func newTinyModel(b *cpu.CPUBackend) *nn.Transformer[*cpu.CPUBackend] {
	model := nn.NewTransformer(nn.Config{
		SrcVocabSize: 10,
		TgtVocabSize: 10,
		SrcSeqLen:    8,
		TgtSeqLen:    8,
		DModel:       16,
		Layers:       1,
		Heads:        2,
		DFF:          32,
	}, b)
	model.SetTraining(false)
	return model
}

func sourceInput(t *testing.T, b *cpu.CPUBackend) (*tensor.Tensor[int32, *cpu.CPUBackend], *tensor.Tensor[bool, *cpu.CPUBackend]) {
	t.Helper()
	ids := []int32{sosID, 5, 7, eosID, padID, padID}
	src, err := tensor.FromSlice(ids, tensor.Shape{1, len(ids)}, b)
	require.NoError(t, err)
	return src, nn.PaddingMask(ids, padID, b)
}

func TestGreedyDecoderOutput(t *testing.T) {
	b := cpu.New()
	decoder := generate.NewGreedyDecoder(newTinyModel(b), sosID, eosID, 8, b)
	src, srcMask := sourceInput(t, b)

	out := decoder.Decode(src, srcMask)

	require.NotEmpty(t, out)
	assert.Equal(t, int32(sosID), out[0], "output must start with the SOS seed")
	assert.LessOrEqual(t, len(out), 8)

	// EOS may only appear as the final token.
	for i, id := range out[:len(out)-1] {
		if i == 0 {
			continue
		}
		assert.NotEqual(t, int32(eosID), id, "EOS before the end at position %d", i)
	}
	for _, id := range out {
		assert.GreaterOrEqual(t, id, int32(0))
		assert.Less(t, int(id), 10)
	}
}

func TestGreedyDecoderIsDeterministic(t *testing.T) {
	b := cpu.New()
	decoder := generate.NewGreedyDecoder(newTinyModel(b), sosID, eosID, 8, b)
	src, srcMask := sourceInput(t, b)

	first := decoder.Decode(src, srcMask)
	second := decoder.Decode(src, srcMask)
	assert.Equal(t, first, second)
}

func TestGreedyDecoderStopsAtMaxLen(t *testing.T) {
	b := cpu.New()
	decoder := generate.NewGreedyDecoder(newTinyModel(b), sosID, eosID, 4, b)
	src, srcMask := sourceInput(t, b)

	out := decoder.Decode(src, srcMask)
	assert.LessOrEqual(t, len(out), 4)
	assert.Equal(t, 4, decoder.MaxLen())
}

func TestGreedyDecoderWithSampler(t *testing.T) {
	b := cpu.New()
	decoder := generate.NewGreedyDecoder(newTinyModel(b), sosID, eosID, 8, b)
	src, srcMask := sourceInput(t, b)

	sampler := generate.NewSampler(generate.SamplingConfig{Temperature: 1.0, TopP: 1.0, Seed: 42})
	out := decoder.DecodeWithSampler(src, srcMask, sampler)

	require.NotEmpty(t, out)
	assert.Equal(t, int32(sosID), out[0])
	assert.LessOrEqual(t, len(out), 8)
}

func TestGreedyDecoderTemperatureZeroSamplerMatchesGreedy(t *testing.T) {
	b := cpu.New()
	decoder := generate.NewGreedyDecoder(newTinyModel(b), sosID, eosID, 8, b)
	src, srcMask := sourceInput(t, b)

	sampler := generate.NewSampler(generate.SamplingConfig{Temperature: 0})
	assert.Equal(t, decoder.Decode(src, srcMask), decoder.DecodeWithSampler(src, srcMask, sampler))
}

func TestNewGreedyDecoderValidation(t *testing.T) {
	b := cpu.New()
	model := newTinyModel(b)

	assert.Panics(t, func() {
		generate.NewGreedyDecoder(model, sosID, eosID, 1, b)
	}, "max length below 2")

	assert.Panics(t, func() {
		generate.NewGreedyDecoder(model, sosID, eosID, 100, b)
	}, "max length beyond the positional table")
}

func TestGreedyDecoderRejectsBatchedInput(t *testing.T) {
	b := cpu.New()
	decoder := generate.NewGreedyDecoder(newTinyModel(b), sosID, eosID, 8, b)

	ids := []int32{sosID, 5, eosID, sosID, 6, eosID}
	src, err := tensor.FromSlice(ids, tensor.Shape{2, 3}, b)
	require.NoError(t, err)
	mask := nn.PaddingMask(ids[:3], padID, b)

	assert.Panics(t, func() {
		decoder.Decode(src, mask)
	})
}
