package nn

import (
	"fmt"

	"github.com/loom-ml/loom/internal/tensor"
)

// CrossEntropyLoss computes negative log-likelihood over the projection
// head's log-probabilities, with optional label smoothing and an ignored
// padding index.
//
// With smoothing s the target distribution puts 1-s on the true class and
// spreads s uniformly over the remaining classes, which keeps the model
// from driving logits to infinity on easy tokens.
type CrossEntropyLoss[B tensor.Backend] struct {
	ignoreIndex int32   // label value excluded from the loss (padding)
	smoothing   float32 // label smoothing mass in [0, 1)
}

// NewCrossEntropyLoss creates the loss. ignoreIndex is the padding id;
// positions labeled with it contribute nothing.
func NewCrossEntropyLoss[B tensor.Backend](ignoreIndex int32, smoothing float32) *CrossEntropyLoss[B] {
	if smoothing < 0 || smoothing >= 1 {
		panic(fmt.Sprintf("cross entropy: smoothing %f outside [0, 1)", smoothing))
	}
	return &CrossEntropyLoss[B]{
		ignoreIndex: ignoreIndex,
		smoothing:   smoothing,
	}
}

// Forward averages the per-token loss over every non-ignored position.
//
// logProbs: [batch, seq_len, vocab] log-probabilities (already
// log-softmaxed by the projection head). target: int32 [batch, seq_len].
// Returns 0 if every position is ignored.
func (ce *CrossEntropyLoss[B]) Forward(
	logProbs *tensor.Tensor[float32, B],
	target *tensor.Tensor[int32, B],
) float32 {
	lpShape := logProbs.Shape()
	tShape := target.Shape()
	if len(lpShape) != 3 || len(tShape) != 2 || lpShape[0] != tShape[0] || lpShape[1] != tShape[1] {
		panic(fmt.Sprintf("cross entropy: incompatible shapes %v and %v", lpShape, tShape))
	}
	vocab := lpShape[2]

	lp := logProbs.Data()
	labels := target.Data()

	confidence := 1 - ce.smoothing
	smooth := float32(0)
	if vocab > 1 {
		smooth = ce.smoothing / float32(vocab-1)
	}

	total := float32(0)
	count := 0
	for i, label := range labels {
		if label == ce.ignoreIndex {
			continue
		}
		if label < 0 || int(label) >= vocab {
			panic(fmt.Sprintf("cross entropy: label %d out of range [0, %d)", label, vocab))
		}
		row := lp[i*vocab : (i+1)*vocab]

		loss := -confidence * row[label]
		if smooth > 0 {
			sum := float32(0)
			for j, v := range row {
				if int32(j) != label { //nolint:gosec // G115: j < vocab, well within int32.
					sum += v
				}
			}
			loss -= smooth * sum
		}
		total += loss
		count++
	}

	if count == 0 {
		return 0
	}
	return total / float32(count)
}

// IgnoreIndex returns the label value excluded from the loss.
func (ce *CrossEntropyLoss[B]) IgnoreIndex() int32 {
	return ce.ignoreIndex
}
