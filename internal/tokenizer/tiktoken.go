package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

const (
	// encodingCL100kBase is the encoding used by GPT-4 era models.
	encodingCL100kBase = "cl100k_base"
	// encodingP50kBase is the encoding used by GPT-3 era models.
	encodingP50kBase = "p50k_base"
	// encodingR50kBase is the encoding used by older GPT-3 models.
	encodingR50kBase = "r50k_base"
)

// reservedTokens is how many ids TikToken claims above the base
// vocabulary: pad, bos, eos.
const reservedTokens = 3

// TikToken wraps an OpenAI encoding from pkoukk/tiktoken-go.
//
// These encodings ship without pad or sequence markers, so the ids
// directly above the base vocabulary are reserved for them. The base
// encoder never produces those ids, which keeps the reservation safe.
//
// Supported encodings: cl100k_base, p50k_base, r50k_base.
type TikToken struct {
	encoding *tiktoken.Tiktoken
	name     string
	baseSize int
}

// NewTikToken creates a tokenizer for the named encoding.
func NewTikToken(encodingName string) (*TikToken, error) {
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding %q: %w", encodingName, err)
	}

	var baseSize int
	switch encodingName {
	case encodingCL100kBase:
		baseSize = 100256
	case encodingP50kBase, encodingR50kBase:
		baseSize = 50257
	default:
		return nil, fmt.Errorf("unsupported tiktoken encoding %q", encodingName)
	}

	return &TikToken{
		encoding: encoding,
		name:     encodingName,
		baseSize: baseSize,
	}, nil
}

// Encode converts text to token ids.
func (t *TikToken) Encode(text string) ([]int32, error) {
	tokens := t.encoding.Encode(text, nil, nil)

	result := make([]int32, len(tokens))
	for i, tok := range tokens {
		result[i] = int32(tok) //nolint:gosec // G115: token ids fit in int32
	}
	return result, nil
}

// Decode converts token ids back to text, dropping the reserved
// special ids first.
func (t *TikToken) Decode(tokens []int32) (string, error) {
	intTokens := make([]int, 0, len(tokens))
	for _, tok := range tokens {
		if t.IsSpecialToken(tok) {
			continue
		}
		intTokens = append(intTokens, int(tok))
	}
	return t.encoding.Decode(intTokens), nil
}

// VocabSize returns the base vocabulary size plus the reserved ids.
func (t *TikToken) VocabSize() int {
	return t.baseSize + reservedTokens
}

// PadToken returns the reserved padding token id.
func (t *TikToken) PadToken() int32 {
	return int32(t.baseSize) //nolint:gosec // G115: vocab sizes fit in int32
}

// BosToken returns the reserved beginning-of-sequence token id.
func (t *TikToken) BosToken() int32 {
	return int32(t.baseSize + 1) //nolint:gosec // G115: vocab sizes fit in int32
}

// EosToken returns the reserved end-of-sequence token id.
func (t *TikToken) EosToken() int32 {
	return int32(t.baseSize + 2) //nolint:gosec // G115: vocab sizes fit in int32
}

// UnkToken returns -1. BPE falls back to byte pieces, so unknown text
// never needs a dedicated id.
func (t *TikToken) UnkToken() int32 {
	return -1
}

// IsSpecialToken reports whether a token id is one of the reserved ids.
func (t *TikToken) IsSpecialToken(token int32) bool {
	return int(token) >= t.baseSize && int(token) < t.baseSize+reservedTokens
}

// Name returns the encoding name.
func (t *TikToken) Name() string {
	return t.name
}
