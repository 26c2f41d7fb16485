package nn_test

import (
	"math"
	"testing"

	"github.com/loom-ml/loom/internal/backend/cpu"
	"github.com/loom-ml/loom/internal/nn"
	"github.com/loom-ml/loom/internal/tensor"
)

func logProbs3(t *testing.T, b *cpu.CPUBackend, probs ...float64) *tensor.Tensor[float32, *cpu.CPUBackend] {
	t.Helper()
	data := make([]float32, len(probs))
	for i, p := range probs {
		data[i] = float32(math.Log(p))
	}
	lp, err := tensor.FromSlice(data, tensor.Shape{1, len(probs) / 3, 3}, b)
	if err != nil {
		t.Fatalf("FromSlice: %v", err)
	}
	return lp
}

func TestCrossEntropyLossKnownValue(t *testing.T) {
	b := cpu.New()
	ce := nn.NewCrossEntropyLoss[*cpu.CPUBackend](0, 0)

	lp := logProbs3(t, b, 0.7, 0.2, 0.1)
	target, _ := tensor.FromSlice([]int32{1}, tensor.Shape{1, 1}, b)

	// Sole position, target class 1: loss = -log(0.2).
	want := float32(-math.Log(0.2))
	if got := ce.Forward(lp, target); !almostEqual(got, want) {
		t.Errorf("loss = %f, want %f", got, want)
	}
}

func TestCrossEntropyLossIgnoresPadding(t *testing.T) {
	b := cpu.New()
	ce := nn.NewCrossEntropyLoss[*cpu.CPUBackend](0, 0)

	lp := logProbs3(t, b,
		0.7, 0.2, 0.1,
		0.1, 0.1, 0.8)
	target, _ := tensor.FromSlice([]int32{1, 0}, tensor.Shape{1, 2}, b)

	// Position 1 carries the pad id and must not count; the mean is
	// over position 0 alone.
	want := float32(-math.Log(0.2))
	if got := ce.Forward(lp, target); !almostEqual(got, want) {
		t.Errorf("loss = %f, want %f", got, want)
	}
}

func TestCrossEntropyLossAllIgnored(t *testing.T) {
	b := cpu.New()
	ce := nn.NewCrossEntropyLoss[*cpu.CPUBackend](0, 0)

	lp := logProbs3(t, b, 0.7, 0.2, 0.1)
	target, _ := tensor.FromSlice([]int32{0}, tensor.Shape{1, 1}, b)

	if got := ce.Forward(lp, target); got != 0 {
		t.Errorf("loss = %f, want 0 when every position is ignored", got)
	}
}

func TestCrossEntropyLossLabelSmoothing(t *testing.T) {
	b := cpu.New()
	const smoothing = 0.3
	ce := nn.NewCrossEntropyLoss[*cpu.CPUBackend](-1, smoothing)

	lp := logProbs3(t, b, 0.7, 0.2, 0.1)
	target, _ := tensor.FromSlice([]int32{0}, tensor.Shape{1, 1}, b)

	// confidence 0.7 on the target, 0.3/2 on each other class.
	confidence := 1.0 - smoothing
	smooth := smoothing / 2
	want := float32(-(confidence*math.Log(0.7) + smooth*(math.Log(0.2)+math.Log(0.1))))
	if got := ce.Forward(lp, target); !almostEqual(got, want) {
		t.Errorf("loss = %f, want %f", got, want)
	}
}

func TestCrossEntropyLossMeansOverPositions(t *testing.T) {
	b := cpu.New()
	ce := nn.NewCrossEntropyLoss[*cpu.CPUBackend](-1, 0)

	lp := logProbs3(t, b,
		0.5, 0.25, 0.25,
		0.25, 0.5, 0.25)
	target, _ := tensor.FromSlice([]int32{0, 1}, tensor.Shape{1, 2}, b)

	want := float32(-math.Log(0.5))
	if got := ce.Forward(lp, target); !almostEqual(got, want) {
		t.Errorf("loss = %f, want %f", got, want)
	}
}

func TestCrossEntropyLossRejectsBadSmoothing(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for smoothing >= 1")
		}
	}()
	nn.NewCrossEntropyLoss[*cpu.CPUBackend](0, 1.0)
}

func TestCrossEntropyLossRejectsOutOfRangeLabel(t *testing.T) {
	b := cpu.New()
	ce := nn.NewCrossEntropyLoss[*cpu.CPUBackend](-1, 0)

	lp := logProbs3(t, b, 0.7, 0.2, 0.1)
	target, _ := tensor.FromSlice([]int32{3}, tensor.Shape{1, 1}, b)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for label outside the vocabulary")
		}
	}()
	ce.Forward(lp, target)
}
