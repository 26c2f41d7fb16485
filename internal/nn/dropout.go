package nn

import (
	"fmt"
	"math/rand"

	"github.com/loom-ml/loom/internal/tensor"
)

// Dropout randomly zeroes elements of its input with probability p during
// training, scaling the survivors by 1/(1-p) so the expected activation is
// unchanged (inverted dropout). In eval mode it is the identity.
//
// Every regularized site in the model owns its own Dropout instance; they
// are all built from the same configured probability and flipped together
// by Transformer.SetTraining.
type Dropout[B tensor.Backend] struct {
	p        float32
	training bool
	rng      *rand.Rand
}

// NewDropout creates a Dropout layer with drop probability p in [0, 1).
// Starts in eval mode.
func NewDropout[B tensor.Backend](p float32) *Dropout[B] {
	if p < 0 || p >= 1 {
		panic(fmt.Sprintf("dropout: probability %f outside [0, 1)", p))
	}
	return &Dropout[B]{
		p:   p,
		rng: rand.New(rand.NewSource(rand.Int63())), //nolint:gosec // math/rand for stochastic regularization
	}
}

// Forward applies dropout in training mode and is a no-op otherwise.
func (d *Dropout[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if !d.training || d.p == 0 {
		return x
	}

	out := x.Clone()
	data := out.Data()
	scale := 1 / (1 - d.p)
	for i := range data {
		if d.rng.Float32() < d.p {
			data[i] = 0
		} else {
			data[i] *= scale
		}
	}
	return out
}

// SetTraining switches between training (dropout active) and eval mode.
func (d *Dropout[B]) SetTraining(training bool) {
	d.training = training
}

// P returns the drop probability.
func (d *Dropout[B]) P() float32 {
	return d.p
}
