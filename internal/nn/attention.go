package nn

import (
	"fmt"
	"math"

	"github.com/loom-ml/loom/internal/tensor"
)

// maskFill is the value written into disallowed score positions before
// softmax. Large enough to zero them out, small enough to stay finite in
// float32.
const maskFill = float32(-1e9)

// ScaledDotProductAttention computes attention over per-head tensors:
//
//	scores  = (Q @ K.T) / sqrt(d_k)
//	scores  = maskedfill(scores, mask)   // where mask is false
//	weights = dropout(softmax(scores))
//	context = weights @ V
//
// Q, K, V have shape [batch, heads, seq, d_k]; mask, when non-nil, is a
// boolean tensor broadcasting against [batch, heads, q_len, k_len] with
// true marking positions a query may attend to.
//
// Returns the context [batch, heads, q_len, d_k] and the attention
// weights [batch, heads, q_len, k_len]. The weights are a genuine second
// output, not just an internal: callers keep them for inspection.
func ScaledDotProductAttention[B tensor.Backend](
	query, key, value *tensor.Tensor[float32, B],
	mask *tensor.Tensor[bool, B],
	dropout *Dropout[B],
) (*tensor.Tensor[float32, B], *tensor.Tensor[float32, B]) {
	qShape := query.Shape()
	if len(qShape) != 4 {
		panic(fmt.Sprintf("attention: expected 4D [batch, heads, seq, d_k], got %v", qShape))
	}
	dk := qShape[len(qShape)-1]

	// [b, h, q, d_k] @ [b, h, d_k, k] = [b, h, q, k]
	keyT := key.Transpose(0, 1, 3, 2)
	scores := query.BatchMatMul(keyT).MulScalar(1 / float32(math.Sqrt(float64(dk))))

	if mask != nil {
		scores = scores.MaskedFill(mask, maskFill)
	}

	weights := scores.Softmax(-1)
	if dropout != nil {
		weights = dropout.Forward(weights)
	}

	context := weights.BatchMatMul(value)
	return context, weights
}
