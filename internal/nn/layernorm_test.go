package nn_test

import (
	"math"
	"testing"

	"github.com/loom-ml/loom/internal/backend/cpu"
	"github.com/loom-ml/loom/internal/nn"
	"github.com/loom-ml/loom/internal/tensor"
)

const eps = 1e-4

func almostEqual(a, b float32) bool {
	return math.Abs(float64(a-b)) < eps
}

func TestLayerNormNormalizesLastDim(t *testing.T) {
	b := cpu.New()
	ln := nn.NewLayerNorm(1e-6, b)

	x, err := tensor.FromSlice(
		[]float32{1, 2, 3, 4, 10, 20, 30, 40},
		tensor.Shape{1, 2, 4}, b)
	if err != nil {
		t.Fatalf("FromSlice: %v", err)
	}

	y := ln.Forward(x)
	if !y.Shape().Equal(x.Shape()) {
		t.Fatalf("shape = %v, want %v", y.Shape(), x.Shape())
	}

	// Each row should come out with mean ~0 and std ~1.
	data := y.Data()
	for row := 0; row < 2; row++ {
		var mean float32
		for i := 0; i < 4; i++ {
			mean += data[row*4+i]
		}
		mean /= 4
		if !almostEqual(mean, 0) {
			t.Errorf("row %d mean = %f, want 0", row, mean)
		}

		var variance float32
		for i := 0; i < 4; i++ {
			d := data[row*4+i] - mean
			variance += d * d
		}
		std := float32(math.Sqrt(float64(variance / 4)))
		if math.Abs(float64(std-1)) > 1e-3 {
			t.Errorf("row %d std = %f, want 1", row, std)
		}
	}
}

func TestLayerNormScaleAndShiftIdentityAtInit(t *testing.T) {
	b := cpu.New()
	ln := nn.NewLayerNorm(1e-6, b)

	// Two rows with the same values up to an affine shift normalize to
	// the same output.
	x1, _ := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{1, 1, 4}, b)
	x2, _ := tensor.FromSlice([]float32{101, 102, 103, 104}, tensor.Shape{1, 1, 4}, b)

	y1 := ln.Forward(x1).Data()
	y2 := ln.Forward(x2).Data()
	for i := range y1 {
		if !almostEqual(y1[i], y2[i]) {
			t.Errorf("output[%d]: %f vs %f", i, y1[i], y2[i])
		}
	}
}

func TestLayerNormRejectsNonPositiveEps(t *testing.T) {
	b := cpu.New()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for eps <= 0")
		}
	}()
	nn.NewLayerNorm(0, b)
}
