package nn

import (
	"fmt"

	"github.com/loom-ml/loom/internal/tensor"
)

// Attention masks are boolean tensors where true marks a position a query
// may attend to. They broadcast against the score tensor
// [batch, heads, q_len, k_len].

// CausalMask builds the lower-triangular mask [1, 1, seqLen, seqLen]:
// position q may attend to positions k <= q. Broadcasts over batch and
// heads.
func CausalMask[B tensor.Backend](seqLen int, backend B) *tensor.Tensor[bool, B] {
	if seqLen <= 0 {
		panic(fmt.Sprintf("causal mask: sequence length must be positive, got %d", seqLen))
	}
	mask := tensor.Zeros[bool](tensor.Shape{1, 1, seqLen, seqLen}, backend)
	data := mask.Data()
	for q := 0; q < seqLen; q++ {
		for k := 0; k <= q; k++ {
			data[q*seqLen+k] = true
		}
	}
	return mask
}

// PaddingMask builds [1, 1, 1, seqLen] from one sequence of ids: true
// where the id is a real token, false at padding. Broadcasts over batch,
// heads and the query axis, blocking every query from attending to
// padding keys.
func PaddingMask[B tensor.Backend](ids []int32, padID int32, backend B) *tensor.Tensor[bool, B] {
	if len(ids) == 0 {
		panic("padding mask: empty sequence")
	}
	mask := tensor.Zeros[bool](tensor.Shape{1, 1, 1, len(ids)}, backend)
	data := mask.Data()
	for i, id := range ids {
		data[i] = id != padID
	}
	return mask
}

// CombineMasks intersects a padding mask [*, 1, 1, seqLen] with a causal
// mask [*, 1, seqLen, seqLen] into the decoder self-attention mask
// [*, 1, seqLen, seqLen]: a position is attendable only if it is a real
// token and not in the future.
func CombineMasks[B tensor.Backend](padding, causal *tensor.Tensor[bool, B]) *tensor.Tensor[bool, B] {
	pShape := padding.Shape()
	cShape := causal.Shape()
	if len(pShape) != 4 || len(cShape) != 4 {
		panic(fmt.Sprintf("combine masks: expected 4D masks, got %v and %v", pShape, cShape))
	}
	seqLen := cShape[3]
	if pShape[3] != seqLen || cShape[2] != seqLen {
		panic(fmt.Sprintf("combine masks: incompatible shapes %v and %v", pShape, cShape))
	}
	batch := max(pShape[0], cShape[0])

	out := tensor.Zeros[bool](tensor.Shape{batch, 1, seqLen, seqLen}, padding.Backend())
	outData := out.Data()
	pData := padding.Data()
	cData := causal.Data()

	for b := 0; b < batch; b++ {
		pRow := pData[(b%pShape[0])*seqLen : (b%pShape[0])*seqLen+seqLen]
		cBase := (b % cShape[0]) * seqLen * seqLen
		oBase := b * seqLen * seqLen
		for q := 0; q < seqLen; q++ {
			for k := 0; k < seqLen; k++ {
				outData[oBase+q*seqLen+k] = pRow[k] && cData[cBase+q*seqLen+k]
			}
		}
	}
	return out
}
