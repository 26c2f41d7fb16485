package optim

import (
	"fmt"

	"github.com/loom-ml/loom/internal/nn"
	"github.com/loom-ml/loom/internal/tensor"
)

// SGD implements stochastic gradient descent with optional momentum.
//
// Update rule without momentum:
//
//	param = param - lr * gradient
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + gradient
//	param = param - lr * velocity
type SGD[B tensor.Backend] struct {
	params     []*nn.Parameter[B]
	lr         float32
	momentum   float32
	velocities []*tensor.Tensor[float32, B] // aligned to params, nil until momentum > 0

	backend B
}

// SGDConfig holds the SGD hyperparameters.
type SGDConfig struct {
	LR       float32 // Learning rate (default: 0.01)
	Momentum float32 // Momentum factor (default: 0, range [0, 1))
}

// NewSGD creates an SGD optimizer over the given parameters.
func NewSGD[B tensor.Backend](params []*nn.Parameter[B], config SGDConfig, backend B) *SGD[B] {
	if config.LR == 0 {
		config.LR = 0.01
	}
	if config.Momentum < 0 || config.Momentum >= 1 {
		panic(fmt.Sprintf("sgd: momentum %v outside [0, 1)", config.Momentum))
	}

	var velocities []*tensor.Tensor[float32, B]
	if config.Momentum > 0 {
		velocities = make([]*tensor.Tensor[float32, B], len(params))
		for i, param := range params {
			velocities[i] = tensor.Zeros[float32](param.Tensor().Shape(), backend)
		}
	}

	return &SGD[B]{
		params:     params,
		lr:         config.LR,
		momentum:   config.Momentum,
		velocities: velocities,
		backend:    backend,
	}
}

// Step performs one update over every parameter with a gradient.
func (s *SGD[B]) Step() {
	for i, param := range s.params {
		grad := param.Grad()
		if grad == nil {
			continue
		}

		gradData := grad.Data()
		paramData := param.Tensor().Data()

		if s.momentum == 0 {
			for j := range paramData {
				paramData[j] -= s.lr * gradData[j]
			}
			continue
		}

		velocityData := s.velocities[i].Data()
		for j := range paramData {
			velocityData[j] = s.momentum*velocityData[j] + gradData[j]
			paramData[j] -= s.lr * velocityData[j]
		}
	}
}

// ZeroGrad clears gradients for all parameters.
func (s *SGD[B]) ZeroGrad() {
	for _, param := range s.params {
		param.ZeroGrad()
	}
}

// GetLR returns the current learning rate.
func (s *SGD[B]) GetLR() float32 {
	return s.lr
}

// SetLR updates the learning rate, for scheduling.
func (s *SGD[B]) SetLR(lr float32) {
	s.lr = lr
}

// Type returns the algorithm name.
func (s *SGD[B]) Type() string {
	return "SGD"
}

// Config returns the hyperparameters for checkpoint metadata.
func (s *SGD[B]) Config() map[string]float64 {
	return map[string]float64{
		"lr":       float64(s.lr),
		"momentum": float64(s.momentum),
	}
}

// StateDict exports the velocity buffers. Empty when momentum is
// disabled; there is nothing to carry.
func (s *SGD[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	if s.momentum == 0 {
		return stateDict
	}
	for i := range s.params {
		stateDict[fmt.Sprintf("velocity.%d", i)] = s.velocities[i].Raw()
	}
	return stateDict
}

// LoadStateDict restores the velocity buffers.
func (s *SGD[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if s.momentum == 0 {
		return nil
	}
	for i, param := range s.params {
		key := fmt.Sprintf("velocity.%d", i)
		raw, ok := stateDict[key]
		if !ok {
			return fmt.Errorf("missing %s in optimizer state", key)
		}
		if !raw.Shape().Equal(param.Tensor().Shape()) {
			return fmt.Errorf("%s shape mismatch: expected %v, got %v",
				key, param.Tensor().Shape(), raw.Shape())
		}
		copy(s.velocities[i].Data(), raw.AsFloat32())
	}
	return nil
}
