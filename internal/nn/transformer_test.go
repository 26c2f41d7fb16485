package nn_test

import (
	"math"
	"testing"

	"github.com/loom-ml/loom/internal/backend/cpu"
	"github.com/loom-ml/loom/internal/nn"
	"github.com/loom-ml/loom/internal/tensor"
)

func testConfig() nn.Config {
	return nn.Config{
		SrcVocabSize: 12,
		TgtVocabSize: 14,
		SrcSeqLen:    8,
		TgtSeqLen:    8,
		DModel:       16,
		Layers:       2,
		Heads:        4,
		DFF:          32,
	}
}

func newTestModel(b *cpu.CPUBackend) *nn.Transformer[*cpu.CPUBackend] {
	model := nn.NewTransformer(testConfig(), b)
	model.SetTraining(false)
	return model
}

func TestTransformerForwardShapes(t *testing.T) {
	b := cpu.New()
	model := newTestModel(b)

	src, _ := tensor.FromSlice([]int32{1, 3, 4, 2, 0, 0}, tensor.Shape{1, 6}, b)
	srcMask := nn.PaddingMask([]int32{1, 3, 4, 2, 0, 0}, 0, b)
	tgt, _ := tensor.FromSlice([]int32{1, 5, 6}, tensor.Shape{1, 3}, b)
	tgtMask := nn.CausalMask(3, b)

	memory := model.Encode(src, srcMask)
	if !memory.Shape().Equal([]int{1, 6, 16}) {
		t.Fatalf("memory shape = %v", memory.Shape())
	}

	states := model.Decode(memory, srcMask, tgt, tgtMask)
	if !states.Shape().Equal([]int{1, 3, 16}) {
		t.Fatalf("decoder states shape = %v", states.Shape())
	}

	logProbs := model.Project(states)
	if !logProbs.Shape().Equal([]int{1, 3, 14}) {
		t.Fatalf("log probs shape = %v", logProbs.Shape())
	}
}

func TestTransformerProjectReturnsLogProbabilities(t *testing.T) {
	b := cpu.New()
	model := newTestModel(b)

	src, _ := tensor.FromSlice([]int32{1, 3, 2}, tensor.Shape{1, 3}, b)
	srcMask := nn.PaddingMask([]int32{1, 3, 2}, 0, b)
	tgt, _ := tensor.FromSlice([]int32{1, 5}, tensor.Shape{1, 2}, b)

	memory := model.Encode(src, srcMask)
	logProbs := model.Project(model.Decode(memory, srcMask, tgt, nn.CausalMask(2, b)))

	// exp of each row must sum to 1.
	vocab := logProbs.Shape()[2]
	data := logProbs.Data()
	for pos := 0; pos < 2; pos++ {
		var sum float64
		for v := 0; v < vocab; v++ {
			sum += math.Exp(float64(data[pos*vocab+v]))
		}
		if math.Abs(sum-1) > 1e-3 {
			t.Errorf("position %d probabilities sum to %f", pos, sum)
		}
	}
}

func TestTransformerEvalIsDeterministic(t *testing.T) {
	b := cpu.New()
	model := newTestModel(b)

	src, _ := tensor.FromSlice([]int32{1, 3, 2}, tensor.Shape{1, 3}, b)
	srcMask := nn.PaddingMask([]int32{1, 3, 2}, 0, b)

	m1 := model.Encode(src, srcMask).Data()
	m2 := model.Encode(src, srcMask).Data()
	for i := range m1 {
		if m1[i] != m2[i] {
			t.Fatalf("memory[%d]: %f vs %f", i, m1[i], m2[i])
		}
	}
}

func TestTransformerAttentionAccessors(t *testing.T) {
	b := cpu.New()
	model := newTestModel(b)

	if model.EncoderAttention(0) != nil {
		t.Error("encoder attention should be nil before any forward pass")
	}

	src, _ := tensor.FromSlice([]int32{1, 3, 4, 2}, tensor.Shape{1, 4}, b)
	srcMask := nn.PaddingMask([]int32{1, 3, 4, 2}, 0, b)
	tgt, _ := tensor.FromSlice([]int32{1, 5}, tensor.Shape{1, 2}, b)

	memory := model.Encode(src, srcMask)
	model.Decode(memory, srcMask, tgt, nn.CausalMask(2, b))

	checkShape := func(name string, layer int, got *tensor.Tensor[float32, *cpu.CPUBackend], want []int) {
		t.Helper()
		if got == nil {
			t.Errorf("layer %d %s attention is nil after forward", layer, name)
			return
		}
		if !got.Shape().Equal(want) {
			t.Errorf("layer %d %s attention shape = %v, want %v", layer, name, got.Shape(), want)
		}
	}
	for layer := 0; layer < 2; layer++ {
		checkShape("encoder", layer, model.EncoderAttention(layer), []int{1, 4, 4, 4})
		checkShape("decoder self", layer, model.DecoderSelfAttention(layer), []int{1, 4, 2, 2})
		checkShape("cross", layer, model.CrossAttention(layer), []int{1, 4, 2, 4})
	}
}

func TestTransformerStateDictRoundTrip(t *testing.T) {
	b := cpu.New()
	model := newTestModel(b)
	clone := newTestModel(b)

	if err := clone.LoadStateDict(model.StateDict()); err != nil {
		t.Fatalf("LoadStateDict: %v", err)
	}

	src, _ := tensor.FromSlice([]int32{1, 3, 2}, tensor.Shape{1, 3}, b)
	srcMask := nn.PaddingMask([]int32{1, 3, 2}, 0, b)

	want := model.Encode(src, srcMask).Data()
	got := clone.Encode(src, srcMask).Data()
	for i := range want {
		if want[i] != got[i] {
			t.Fatalf("memory[%d]: %f vs %f", i, got[i], want[i])
		}
	}
}

func TestTransformerParameterCount(t *testing.T) {
	b := cpu.New()
	model := newTestModel(b)

	params := model.Parameters()
	if len(params) == 0 {
		t.Fatal("no parameters")
	}
	seen := make(map[*nn.Parameter[*cpu.CPUBackend]]bool, len(params))
	for _, p := range params {
		if seen[p] {
			t.Fatalf("parameter %s listed twice", p.Name())
		}
		seen[p] = true
	}
}

func TestTransformerRejectsBadConfig(t *testing.T) {
	b := cpu.New()

	tests := []struct {
		name   string
		mutate func(*nn.Config)
	}{
		{"zero vocab", func(c *nn.Config) { c.SrcVocabSize = 0 }},
		{"zero seq len", func(c *nn.Config) { c.TgtSeqLen = 0 }},
		{"indivisible heads", func(c *nn.Config) { c.Heads = 3 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			defer func() {
				if recover() == nil {
					t.Fatal("expected panic")
				}
			}()
			nn.NewTransformer(cfg, b)
		})
	}
}
