package nn

import (
	"fmt"

	"github.com/loom-ml/loom/internal/tensor"
)

// Linear implements a fully connected layer: y = x @ W.T + b
//
//   - x: [batch, in_features]
//   - W: [out_features, in_features], Xavier-initialized
//   - b: [out_features], zero-initialized
//   - y: [batch, out_features]
//
// Example:
//
//	backend := cpu.New()
//	layer := nn.NewLinear(512, 2048, backend)
//	output := layer.Forward(input) // [batch, 2048]
type Linear[B tensor.Backend] struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter[B] // [out_features, in_features]
	bias        *Parameter[B] // [out_features]
	backend     B
}

// NewLinear creates a Linear layer with Xavier-initialized weights and
// zero biases.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, backend B) *Linear[B] {
	weightShape := tensor.Shape{outFeatures, inFeatures}
	weight := NewParameter("weight", Xavier(inFeatures, outFeatures, weightShape, backend))
	bias := NewParameter("bias", Zeros(tensor.Shape{outFeatures}, backend))

	return &Linear[B]{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      weight,
		bias:        bias,
		backend:     backend,
	}
}

// Forward computes y = x @ W.T + b for a 2D input [batch, in_features].
func (l *Linear[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	if len(inputShape) != 2 {
		panic(fmt.Sprintf("Linear.Forward: expected 2D input [batch, features], got shape %v", inputShape))
	}
	if inputShape[1] != l.inFeatures {
		panic(fmt.Sprintf("Linear.Forward: expected input with %d features, got %d", l.inFeatures, inputShape[1]))
	}

	// [batch, in] @ [in, out] = [batch, out]
	output := input.MatMul(l.weight.Tensor().T())

	// Bias broadcasts as [1, out_features].
	return output.Add(l.bias.Tensor().Reshape(1, l.outFeatures))
}

// Parameters returns the trainable parameters of this layer.
func (l *Linear[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{l.weight, l.bias}
}

// Weight returns the weight parameter.
func (l *Linear[B]) Weight() *Parameter[B] {
	return l.weight
}

// Bias returns the bias parameter.
func (l *Linear[B]) Bias() *Parameter[B] {
	return l.bias
}

// InFeatures returns the number of input features.
func (l *Linear[B]) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the number of output features.
func (l *Linear[B]) OutFeatures() int {
	return l.outFeatures
}

// StateDict returns a map of parameter names to raw tensors.
func (l *Linear[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"weight": l.weight.Tensor().Raw(),
		"bias":   l.bias.Tensor().Raw(),
	}
}

// LoadStateDict loads parameters from a state dictionary.
func (l *Linear[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := loadTensor(stateDict, "weight", l.weight.Tensor()); err != nil {
		return err
	}
	return loadTensor(stateDict, "bias", l.bias.Tensor())
}

// loadTensor copies a named entry of a state dict into dst, validating
// shape and dtype first.
func loadTensor[B tensor.Backend](stateDict map[string]*tensor.RawTensor, name string, dst *tensor.Tensor[float32, B]) error {
	raw, ok := stateDict[name]
	if !ok {
		return fmt.Errorf("missing %s in state dict", name)
	}
	if !raw.Shape().Equal(dst.Shape()) {
		return fmt.Errorf("%s shape mismatch: expected %v, got %v", name, dst.Shape(), raw.Shape())
	}
	if raw.DType() != tensor.Float32 {
		return fmt.Errorf("%s dtype mismatch: expected float32, got %v", name, raw.DType())
	}
	copy(dst.Data(), raw.AsFloat32())
	return nil
}
