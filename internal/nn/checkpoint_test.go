package nn_test

import (
	"errors"
	"os"
	"testing"

	"github.com/loom-ml/loom/internal/backend/cpu"
	"github.com/loom-ml/loom/internal/nn"
	"github.com/loom-ml/loom/internal/optim"
	"github.com/loom-ml/loom/internal/tensor"
)

func TestCheckpointSaveLoadRoundTrip(t *testing.T) {
	b := cpu.New()
	model := newTestModel(b)
	optimizer := optim.NewAdam(model.Parameters(), optim.AdamConfig{LR: 0.001}, b)

	path := nn.CheckpointPath(t.TempDir(), 3)
	ckpt := &nn.Checkpoint[*cpu.CPUBackend]{
		Model:     model,
		Optimizer: optimizer,
		Epoch:     3,
		Step:      1200,
		Loss:      2.5,
	}
	if err := ckpt.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	restoredModel := newTestModel(b)
	restoredOpt := optim.NewAdam(restoredModel.Parameters(), optim.AdamConfig{LR: 0.001}, b)
	restored, err := nn.LoadCheckpoint(path, restoredModel, restoredOpt)
	if err != nil {
		t.Fatalf("LoadCheckpoint: %v", err)
	}

	if restored.Epoch != 3 || restored.Step != 1200 || restored.Loss != 2.5 {
		t.Errorf("metadata = epoch %d step %d loss %f", restored.Epoch, restored.Step, restored.Loss)
	}

	// The restored model must produce the original's outputs.
	src, _ := tensor.FromSlice([]int32{1, 3, 2}, tensor.Shape{1, 3}, b)
	srcMask := nn.PaddingMask([]int32{1, 3, 2}, 0, b)
	want := model.Encode(src, srcMask).Data()
	got := restoredModel.Encode(src, srcMask).Data()
	for i := range want {
		if want[i] != got[i] {
			t.Fatalf("memory[%d]: %f vs %f", i, got[i], want[i])
		}
	}
}

func TestCheckpointInferenceOnly(t *testing.T) {
	b := cpu.New()
	model := newTestModel(b)

	path := nn.CheckpointPath(t.TempDir(), 1)
	ckpt := &nn.Checkpoint[*cpu.CPUBackend]{Model: model, Epoch: 1}
	if err := ckpt.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	restored := newTestModel(b)
	if _, err := nn.LoadCheckpoint(path, restored, nil); err != nil {
		t.Fatalf("LoadCheckpoint: %v", err)
	}
}

func TestCheckpointPath(t *testing.T) {
	got := nn.CheckpointPath("runs", 7)
	want := "runs/epoch_0007.loom"
	if got != want {
		t.Errorf("CheckpointPath = %q, want %q", got, want)
	}
}

func TestLatestCheckpoint(t *testing.T) {
	b := cpu.New()
	model := newTestModel(b)
	dir := t.TempDir()

	for _, epoch := range []int{1, 5, 3} {
		ckpt := &nn.Checkpoint[*cpu.CPUBackend]{Model: model, Epoch: epoch}
		if err := ckpt.Save(nn.CheckpointPath(dir, epoch)); err != nil {
			t.Fatalf("Save epoch %d: %v", epoch, err)
		}
	}

	path, epoch, err := nn.LatestCheckpoint(dir)
	if err != nil {
		t.Fatalf("LatestCheckpoint: %v", err)
	}
	if epoch != 5 {
		t.Errorf("epoch = %d, want 5", epoch)
	}
	if path != nn.CheckpointPath(dir, 5) {
		t.Errorf("path = %q", path)
	}
}

func TestLatestCheckpointEmptyDir(t *testing.T) {
	_, _, err := nn.LatestCheckpoint(t.TempDir())
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want os.ErrNotExist", err)
	}
}
