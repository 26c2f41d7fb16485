package nn_test

import (
	"testing"

	"github.com/loom-ml/loom/internal/backend/cpu"
	"github.com/loom-ml/loom/internal/nn"
	"github.com/loom-ml/loom/internal/tensor"
)

func TestMultiHeadAttentionShapes(t *testing.T) {
	b := cpu.New()
	const batch, seqLen, dModel, heads = 2, 5, 16, 4
	mha := nn.NewMultiHeadAttention(dModel, heads, 0, b)

	if mha.Heads() != heads {
		t.Errorf("Heads = %d", mha.Heads())
	}
	if mha.HeadDim() != dModel/heads {
		t.Errorf("HeadDim = %d", mha.HeadDim())
	}

	x := tensor.Zeros[float32](tensor.Shape{batch, seqLen, dModel}, b)
	out, weights := mha.Forward(x, x, x, nil)

	if !out.Shape().Equal([]int{batch, seqLen, dModel}) {
		t.Errorf("output shape = %v", out.Shape())
	}
	if !weights.Shape().Equal([]int{batch, heads, seqLen, seqLen}) {
		t.Errorf("weights shape = %v", weights.Shape())
	}
	if mha.Weights() != weights {
		t.Error("Weights() should return the last forward's attention")
	}
}

func TestMultiHeadAttentionWeightRowsSumToOne(t *testing.T) {
	b := cpu.New()
	const seqLen, dModel, heads = 4, 8, 2
	mha := nn.NewMultiHeadAttention(dModel, heads, 0, b)

	x := tensor.Randn[float32](tensor.Shape{1, seqLen, dModel}, b)
	_, weights := mha.Forward(x, x, x, nil)

	data := weights.Data()
	rows := heads * seqLen
	for r := 0; r < rows; r++ {
		var sum float32
		for k := 0; k < seqLen; k++ {
			sum += data[r*seqLen+k]
		}
		if !almostEqual(sum, 1) {
			t.Errorf("row %d sums to %f", r, sum)
		}
	}
}

func TestMultiHeadAttentionRespectsCausalMask(t *testing.T) {
	b := cpu.New()
	const seqLen, dModel, heads = 4, 8, 2
	mha := nn.NewMultiHeadAttention(dModel, heads, 0, b)

	x := tensor.Randn[float32](tensor.Shape{1, seqLen, dModel}, b)
	mask := nn.CausalMask(seqLen, b)
	_, weights := mha.Forward(x, x, x, mask)

	data := weights.Data()
	for h := 0; h < heads; h++ {
		for q := 0; q < seqLen; q++ {
			for k := q + 1; k < seqLen; k++ {
				got := data[(h*seqLen+q)*seqLen+k]
				if got > 1e-6 {
					t.Errorf("head %d weight[%d][%d] = %f, future position attended", h, q, k, got)
				}
			}
		}
	}
}

func TestMultiHeadAttentionCrossShapes(t *testing.T) {
	b := cpu.New()
	const qLen, kLen, dModel, heads = 3, 6, 8, 2
	mha := nn.NewMultiHeadAttention(dModel, heads, 0, b)

	query := tensor.Randn[float32](tensor.Shape{1, qLen, dModel}, b)
	memory := tensor.Randn[float32](tensor.Shape{1, kLen, dModel}, b)
	out, weights := mha.Forward(query, memory, memory, nil)

	if !out.Shape().Equal([]int{1, qLen, dModel}) {
		t.Errorf("output shape = %v", out.Shape())
	}
	if !weights.Shape().Equal([]int{1, heads, qLen, kLen}) {
		t.Errorf("weights shape = %v", weights.Shape())
	}
}

func TestMultiHeadAttentionSingleKeyMaskSelectsValue(t *testing.T) {
	b := cpu.New()
	const qLen, kLen, dModel, heads = 3, 5, 8, 2
	const allowed = 2
	mha := nn.NewMultiHeadAttention(dModel, heads, 0, b)

	query := tensor.Randn[float32](tensor.Shape{1, qLen, dModel}, b)
	memory := tensor.Randn[float32](tensor.Shape{1, kLen, dModel}, b)

	mask := tensor.Zeros[bool](tensor.Shape{1, 1, 1, kLen}, b)
	mask.Data()[allowed] = true

	out, weights := mha.Forward(query, memory, memory, mask)

	// Every weight row collapses onto the one allowed key.
	wData := weights.Data()
	for h := 0; h < heads; h++ {
		for q := 0; q < qLen; q++ {
			for k := 0; k < kLen; k++ {
				got := wData[(h*qLen+q)*kLen+k]
				want := float32(0)
				if k == allowed {
					want = 1
				}
				if !almostEqual(got, want) {
					t.Errorf("head %d weight[%d][%d] = %f, want %f", h, q, k, got, want)
				}
			}
		}
	}

	// The output must match attending to a memory that contains only
	// the allowed row: one key means weight 1 on it in both runs.
	row := memory.Data()[allowed*dModel : (allowed+1)*dModel]
	single, err := tensor.FromSlice[float32](row, tensor.Shape{1, 1, dModel}, b)
	if err != nil {
		t.Fatalf("FromSlice: %v", err)
	}
	want, _ := mha.Forward(query, single, single, nil)

	outData := out.Data()
	for i, w := range want.Data() {
		if !almostEqual(outData[i], w) {
			t.Fatalf("output[%d] = %f, want %f", i, outData[i], w)
		}
	}
}

func TestMultiHeadAttentionAllTrueMaskMatchesUnmasked(t *testing.T) {
	b := cpu.New()
	const seqLen, dModel, heads = 4, 8, 2
	mha := nn.NewMultiHeadAttention(dModel, heads, 0, b)

	x := tensor.Randn[float32](tensor.Shape{1, seqLen, dModel}, b)
	unmasked, _ := mha.Forward(x, x, x, nil)

	allTrue := tensor.Full[bool](tensor.Shape{1, 1, seqLen, seqLen}, true, b)
	masked, _ := mha.Forward(x, x, x, allTrue)

	uData := unmasked.Data()
	for i, m := range masked.Data() {
		if !almostEqual(m, uData[i]) {
			t.Fatalf("output[%d] = %f with all-true mask, %f without", i, m, uData[i])
		}
	}
}

func TestMultiHeadAttentionRejectsIndivisibleDModel(t *testing.T) {
	b := cpu.New()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic when heads do not divide d_model")
		}
	}()
	nn.NewMultiHeadAttention(10, 3, 0, b)
}
