// Package optim implements the optimizers used to train the translation
// model.
//
// Gradients are supplied externally: the training loop sets each
// parameter's gradient via Parameter.SetGrad, then calls Step. Optimizer
// state rides in checkpoints through the StateDict/LoadStateDict pair,
// which also satisfies the nn.OptimizerState interface.
//
// Example usage:
//
//	optimizer := optim.NewAdam(model.Parameters(), optim.AdamConfig{
//	    LR: 1e-4,
//	}, backend)
//
//	for step := range steps {
//	    setGradients(model, batch) // external gradient computation
//	    optimizer.Step()
//	    optimizer.ZeroGrad()
//	}
package optim

import (
	"github.com/loom-ml/loom/internal/tensor"
)

// Optimizer is the interface the training loop drives.
type Optimizer interface {
	// Step applies one update to every parameter that has a gradient set.
	// Parameters without a gradient are skipped.
	Step()

	// ZeroGrad clears all parameter gradients. Call before computing the
	// next batch's gradients so none accumulate across steps.
	ZeroGrad()

	// GetLR returns the current learning rate, for monitoring and
	// scheduling.
	GetLR() float32

	// StateDict and LoadStateDict carry optimizer state through
	// checkpoints (also the nn.OptimizerState contract).
	StateDict() map[string]*tensor.RawTensor
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error

	// Type names the algorithm ("SGD", "Adam") for checkpoint metadata.
	Type() string

	// Config returns the hyperparameters for checkpoint metadata.
	Config() map[string]float64
}
