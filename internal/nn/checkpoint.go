package nn

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/loom-ml/loom/internal/serialization"
	"github.com/loom-ml/loom/internal/tensor"
)

// OptimizerState is what a checkpoint needs from an optimizer: its
// tensors (moment estimates and step counters) and enough metadata to
// recreate it. Implemented by the optim package; declared here so nn
// does not import it.
type OptimizerState interface {
	StateDict() map[string]*tensor.RawTensor
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
	Type() string
	Config() map[string]float64
}

// Checkpoint bundles a model with its training state for saving and
// resuming. Optimizer may be nil for inference-only snapshots.
type Checkpoint[B tensor.Backend] struct {
	Model     *Transformer[B]
	Optimizer OptimizerState
	Epoch     int
	Step      int64
	Loss      float64
}

// Save writes the checkpoint to path in .loom format. Model tensors go
// under "model.", optimizer tensors under "optimizer.".
func (c *Checkpoint[B]) Save(path string) error {
	stateDict := make(map[string]*tensor.RawTensor)
	mergeStateDict(stateDict, "model", c.Model.StateDict())

	meta := &serialization.CheckpointMeta{
		Epoch: c.Epoch,
		Step:  c.Step,
		Loss:  c.Loss,
	}
	if c.Optimizer != nil {
		mergeStateDict(stateDict, "optimizer", c.Optimizer.StateDict())
		meta.OptimizerType = c.Optimizer.Type()
		meta.OptimizerConfig = c.Optimizer.Config()
	}

	header := serialization.Header{
		Metadata:       map[string]string{"model_type": "transformer"},
		CheckpointMeta: meta,
	}
	if err := serialization.WriteFile(path, stateDict, header); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint restores model (and, when non-nil, optimizer) state from
// a .loom file written by Save. The model must already be constructed
// with the same configuration.
func LoadCheckpoint[B tensor.Backend](path string, model *Transformer[B], optimizer OptimizerState) (*Checkpoint[B], error) {
	header, stateDict, err := serialization.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	if err := model.LoadStateDict(subStateDict(stateDict, "model")); err != nil {
		return nil, fmt.Errorf("load checkpoint: model: %w", err)
	}
	if optimizer != nil {
		if err := optimizer.LoadStateDict(subStateDict(stateDict, "optimizer")); err != nil {
			return nil, fmt.Errorf("load checkpoint: optimizer: %w", err)
		}
	}

	ckpt := &Checkpoint[B]{
		Model:     model,
		Optimizer: optimizer,
	}
	if header.CheckpointMeta != nil {
		ckpt.Epoch = header.CheckpointMeta.Epoch
		ckpt.Step = header.CheckpointMeta.Step
		ckpt.Loss = header.CheckpointMeta.Loss
	}
	return ckpt, nil
}

// CheckpointPath returns the conventional epoch-keyed file name, e.g.
// dir/epoch_0007.loom.
func CheckpointPath(dir string, epoch int) string {
	return filepath.Join(dir, fmt.Sprintf("epoch_%04d.loom", epoch))
}

// LatestCheckpoint finds the highest-epoch checkpoint in dir. Returns
// os.ErrNotExist (wrapped) when the directory holds none.
func LatestCheckpoint(dir string) (path string, epoch int, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", 0, fmt.Errorf("latest checkpoint: %w", err)
	}

	epochs := make([]int, 0, len(entries))
	for _, entry := range entries {
		var e int
		if _, scanErr := fmt.Sscanf(entry.Name(), "epoch_%d.loom", &e); scanErr == nil {
			epochs = append(epochs, e)
		}
	}
	if len(epochs) == 0 {
		return "", 0, fmt.Errorf("latest checkpoint: no checkpoints in %s: %w", dir, os.ErrNotExist)
	}
	sort.Ints(epochs)

	latest := epochs[len(epochs)-1]
	return CheckpointPath(dir, latest), latest, nil
}
