package data

import (
	"errors"
	"testing"

	"github.com/loom-ml/loom/internal/backend/cpu"
)

var specials = Specials{Pad: 0, Sos: 1, Eos: 2}

func TestNewSampleFraming(t *testing.T) {
	b := cpu.New()
	s, err := NewSample([]int32{7, 9}, []int32{5, 6, 8}, 10, specials, b)
	if err != nil {
		t.Fatalf("NewSample: %v", err)
	}

	wantEnc := []int32{1, 7, 9, 2, 0, 0, 0, 0, 0, 0}
	wantDec := []int32{1, 5, 6, 8, 0, 0, 0, 0, 0, 0}
	wantLabel := []int32{5, 6, 8, 2, 0, 0, 0, 0, 0, 0}

	for i, want := range wantEnc {
		if got := s.EncoderInput.Data()[i]; got != want {
			t.Errorf("encoder input[%d] = %d, want %d", i, got, want)
		}
	}
	for i, want := range wantDec {
		if got := s.DecoderInput.Data()[i]; got != want {
			t.Errorf("decoder input[%d] = %d, want %d", i, got, want)
		}
	}
	for i, want := range wantLabel {
		if got := s.Label.Data()[i]; got != want {
			t.Errorf("label[%d] = %d, want %d", i, got, want)
		}
	}

	if s.SrcPadding != 6 {
		t.Errorf("SrcPadding = %d, want 6", s.SrcPadding)
	}
	if s.TgtPadding != 6 {
		t.Errorf("TgtPadding = %d, want 6", s.TgtPadding)
	}
}

func TestNewSampleRejectsTooLongSource(t *testing.T) {
	b := cpu.New()
	// 9 content tokens + SOS + EOS = 11 > 10. Must error, never truncate.
	src := make([]int32, 9)
	for i := range src {
		src[i] = int32(i + 3)
	}

	_, err := NewSample(src, []int32{5}, 10, specials, b)
	if err == nil {
		t.Fatal("expected input-length error")
	}
	var tooLong *InputTooLongError
	if !errors.As(err, &tooLong) {
		t.Fatalf("error type = %T", err)
	}
	if tooLong.Side != "source" || tooLong.Tokens != 9 || tooLong.Capacity != 8 {
		t.Errorf("error = %+v", tooLong)
	}
}

func TestNewSampleRejectsTooLongTarget(t *testing.T) {
	b := cpu.New()
	tgt := make([]int32, 10) // 10 + SOS = 11 > 10

	_, err := NewSample([]int32{7}, tgt, 10, specials, b)
	var tooLong *InputTooLongError
	if !errors.As(err, &tooLong) {
		t.Fatalf("expected InputTooLongError, got %v", err)
	}
	if tooLong.Side != "target" || tooLong.Capacity != 9 {
		t.Errorf("error = %+v", tooLong)
	}
}

func TestNewSampleExactFitHasNoPadding(t *testing.T) {
	b := cpu.New()
	src := make([]int32, 8) // 8 + 2 = 10 exactly
	for i := range src {
		src[i] = int32(i + 3)
	}
	s, err := NewSample(src, []int32{5}, 10, specials, b)
	if err != nil {
		t.Fatalf("NewSample: %v", err)
	}
	if s.SrcPadding != 0 {
		t.Errorf("SrcPadding = %d, want 0", s.SrcPadding)
	}
}

func TestEncoderMaskMarksPadding(t *testing.T) {
	b := cpu.New()
	s, err := NewSample([]int32{7, 9}, []int32{5}, 10, specials, b)
	if err != nil {
		t.Fatalf("NewSample: %v", err)
	}

	mask := s.EncoderMask
	if !mask.Shape().Equal([]int{1, 1, 1, 10}) {
		t.Fatalf("encoder mask shape = %v", mask.Shape())
	}
	// SOS, 7, 9, EOS real; rest padding.
	for i := 0; i < 10; i++ {
		want := i < 4
		if got := mask.Data()[i]; got != want {
			t.Errorf("encoder mask[%d] = %v, want %v", i, got, want)
		}
	}
}

func TestDecoderMaskIsCausalAndPadding(t *testing.T) {
	b := cpu.New()
	s, err := NewSample([]int32{7}, []int32{5, 6}, 6, specials, b)
	if err != nil {
		t.Fatalf("NewSample: %v", err)
	}

	mask := s.DecoderMask
	if !mask.Shape().Equal([]int{1, 1, 6, 6}) {
		t.Fatalf("decoder mask shape = %v", mask.Shape())
	}
	data := mask.Data()
	// Decoder input: SOS, 5, 6, PAD, PAD, PAD -> positions 0..2 real.
	for q := 0; q < 6; q++ {
		for k := 0; k < 6; k++ {
			want := k <= q && k < 3
			if got := data[q*6+k]; got != want {
				t.Errorf("decoder mask[%d][%d] = %v, want %v", q, k, got, want)
			}
		}
	}
}

func TestNewSourceInput(t *testing.T) {
	b := cpu.New()
	src, mask, err := NewSourceInput([]int32{7, 9}, 8, specials, b)
	if err != nil {
		t.Fatalf("NewSourceInput: %v", err)
	}
	want := []int32{1, 7, 9, 2, 0, 0, 0, 0}
	for i := range want {
		if src.Data()[i] != want[i] {
			t.Errorf("source[%d] = %d, want %d", i, src.Data()[i], want[i])
		}
	}
	for i := 0; i < 8; i++ {
		if mask.Data()[i] != (i < 4) {
			t.Errorf("mask[%d] = %v", i, mask.Data()[i])
		}
	}
}

func TestCollate(t *testing.T) {
	b := cpu.New()
	s1, err := NewSample([]int32{7}, []int32{5}, 6, specials, b)
	if err != nil {
		t.Fatalf("NewSample: %v", err)
	}
	s2, err := NewSample([]int32{8, 9}, []int32{4, 3}, 6, specials, b)
	if err != nil {
		t.Fatalf("NewSample: %v", err)
	}

	batch := Collate([]*Sample[*cpu.CPUBackend]{s1, s2})
	if batch.Size() != 2 {
		t.Fatalf("Size = %d", batch.Size())
	}
	if !batch.EncoderInput.Shape().Equal([]int{2, 6}) {
		t.Errorf("encoder input shape = %v", batch.EncoderInput.Shape())
	}
	if !batch.DecoderMask.Shape().Equal([]int{2, 1, 6, 6}) {
		t.Errorf("decoder mask shape = %v", batch.DecoderMask.Shape())
	}
	// Row 1 of the batch must be sample 2's row.
	if batch.EncoderInput.At(1, 1) != 8 {
		t.Errorf("encoder input[1][1] = %d, want 8", batch.EncoderInput.At(1, 1))
	}
}
