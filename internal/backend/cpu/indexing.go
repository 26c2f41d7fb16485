package cpu

import (
	"fmt"

	"github.com/loom-ml/loom/internal/tensor"
)

// Embedding gathers rows of weight [V, D] by int32 indices, producing a
// tensor of shape indices.Shape() + [D].
// Panics on any index outside [0, V): a token id past the vocabulary is a
// wiring bug between tokenizer and model, not a recoverable condition.
func (cpu *CPUBackend) Embedding(weight, indices *tensor.RawTensor) *tensor.RawTensor {
	wShape := weight.Shape()
	if len(wShape) != 2 {
		panic(fmt.Sprintf("embedding: weight must be 2D [vocab, dim], got %v", wShape))
	}
	if weight.DType() != tensor.Float32 {
		panic(fmt.Sprintf("embedding: weight dtype is %s, not float32", weight.DType()))
	}
	if indices.DType() != tensor.Int32 {
		panic(fmt.Sprintf("embedding: indices dtype is %s, not int32", indices.DType()))
	}

	vocab, dim := wShape[0], wShape[1]

	outShape := append(indices.Shape().Clone(), dim)
	result, err := tensor.NewRaw(outShape, tensor.Float32, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("embedding: failed to create result tensor: %v", err))
	}

	w := weight.AsFloat32()
	idx := indices.AsInt32()
	out := result.AsFloat32()

	for i, id := range idx {
		if id < 0 || int(id) >= vocab {
			panic(fmt.Sprintf("embedding: index %d out of range [0, %d)", id, vocab))
		}
		copy(out[i*dim:(i+1)*dim], w[int(id)*dim:(int(id)+1)*dim])
	}
	return result
}
