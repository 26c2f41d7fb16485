package optim

import (
	"fmt"
	"math"

	"github.com/loom-ml/loom/internal/nn"
	"github.com/loom-ml/loom/internal/tensor"
)

// Adam implements Adam (Adaptive Moment Estimation).
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient       // First moment
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²      // Second moment
//	m_hat = m_t / (1 - beta1^t)                        // Bias correction
//	v_hat = v_t / (1 - beta2^t)                        // Bias correction
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
type Adam[B tensor.Backend] struct {
	params []*nn.Parameter[B]
	lr     float32
	beta1  float32
	beta2  float32
	eps    float32
	t      int                          // Timestep for bias correction
	m      []*tensor.Tensor[float32, B] // First moment estimates, aligned to params
	v      []*tensor.Tensor[float32, B] // Second moment estimates, aligned to params

	backend B
}

// AdamConfig holds the Adam hyperparameters.
type AdamConfig struct {
	LR    float32    // Learning rate (default: 0.001)
	Betas [2]float32 // Running-average coefficients (default: [0.9, 0.999])
	Eps   float32    // Numerical stability term (default: 1e-8)
}

// NewAdam creates an Adam optimizer over the given parameters. Moment
// buffers are allocated eagerly as zero tensors per parameter, so
// state dicts have a fixed layout from the start.
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], config AdamConfig, backend B) *Adam[B] {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}

	m := make([]*tensor.Tensor[float32, B], len(params))
	v := make([]*tensor.Tensor[float32, B], len(params))
	for i, param := range params {
		m[i] = tensor.Zeros[float32](param.Tensor().Shape(), backend)
		v[i] = tensor.Zeros[float32](param.Tensor().Shape(), backend)
	}

	return &Adam[B]{
		params:  params,
		lr:      config.LR,
		beta1:   config.Betas[0],
		beta2:   config.Betas[1],
		eps:     config.Eps,
		m:       m,
		v:       v,
		backend: backend,
	}
}

// Step performs one Adam update over every parameter with a gradient.
func (a *Adam[B]) Step() {
	a.t++

	biasCorrection1 := float32(1.0 - math.Pow(float64(a.beta1), float64(a.t)))
	biasCorrection2 := float32(1.0 - math.Pow(float64(a.beta2), float64(a.t)))

	for i, param := range a.params {
		grad := param.Grad()
		if grad == nil {
			continue
		}

		gradData := grad.Data()
		mData := a.m[i].Data()
		vData := a.v[i].Data()
		paramData := param.Tensor().Data()

		for j := range paramData {
			g := gradData[j]

			mData[j] = a.beta1*mData[j] + (1.0-a.beta1)*g
			vData[j] = a.beta2*vData[j] + (1.0-a.beta2)*g*g

			mHat := mData[j] / biasCorrection1
			vHat := vData[j] / biasCorrection2

			paramData[j] -= a.lr * mHat / (float32(math.Sqrt(float64(vHat))) + a.eps)
		}
	}
}

// ZeroGrad clears gradients for all parameters.
func (a *Adam[B]) ZeroGrad() {
	for _, param := range a.params {
		param.ZeroGrad()
	}
}

// GetLR returns the current learning rate.
func (a *Adam[B]) GetLR() float32 {
	return a.lr
}

// SetLR updates the learning rate, for scheduling.
func (a *Adam[B]) SetLR(lr float32) {
	a.lr = lr
}

// GetTimestep returns the number of steps taken, for bias-correction
// inspection and tests.
func (a *Adam[B]) GetTimestep() int {
	return a.t
}

// Type returns the algorithm name.
func (a *Adam[B]) Type() string {
	return "Adam"
}

// Config returns the hyperparameters for checkpoint metadata.
func (a *Adam[B]) Config() map[string]float64 {
	return map[string]float64{
		"lr":    float64(a.lr),
		"beta1": float64(a.beta1),
		"beta2": float64(a.beta2),
		"eps":   float64(a.eps),
	}
}

// StateDict exports the moment estimates and timestep. Moments are keyed
// by parameter index, which is stable because Parameters() order is.
func (a *Adam[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor, 2*len(a.params)+1)
	for i := range a.params {
		stateDict[fmt.Sprintf("m.%d", i)] = a.m[i].Raw()
		stateDict[fmt.Sprintf("v.%d", i)] = a.v[i].Raw()
	}

	step, err := tensor.NewRaw(tensor.Shape{1}, tensor.Int32, a.backend.Device())
	if err != nil {
		panic(err)
	}
	step.AsInt32()[0] = int32(a.t) //nolint:gosec // G115: step count fits int32
	stateDict["step"] = step
	return stateDict
}

// LoadStateDict restores the moment estimates and timestep.
func (a *Adam[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for i := range a.params {
		for prefix, dst := range map[string]*tensor.Tensor[float32, B]{"m": a.m[i], "v": a.v[i]} {
			key := fmt.Sprintf("%s.%d", prefix, i)
			raw, ok := stateDict[key]
			if !ok {
				return fmt.Errorf("missing %s in optimizer state", key)
			}
			if !raw.Shape().Equal(dst.Shape()) {
				return fmt.Errorf("%s shape mismatch: expected %v, got %v", key, dst.Shape(), raw.Shape())
			}
			copy(dst.Data(), raw.AsFloat32())
		}
	}

	step, ok := stateDict["step"]
	if !ok {
		return fmt.Errorf("missing step in optimizer state")
	}
	a.t = int(step.AsInt32()[0])
	return nil
}
