// Package tokenizer turns text into the token ids the translation model
// consumes, and back.
//
// Two implementations are provided:
//   - BPE: a trainable byte-pair tokenizer backed by sugarme/tokenizer,
//     one per language side, persisted as tokenizer.json
//   - TikToken: a fixed OpenAI encoding (cl100k_base, p50k_base) with
//     pad/bos/eos reserved above the base vocabulary
//
// Both return content ids only. Framing (SOS, EOS, padding) happens in
// the data package.
package tokenizer

// Tokenizer is the interface both implementations satisfy.
type Tokenizer interface {
	// Encode converts text to token ids.
	Encode(text string) ([]int32, error)

	// Decode converts token ids back to text. Special tokens are
	// dropped from the output.
	Decode(tokens []int32) (string, error)

	// VocabSize returns the total vocabulary size, special tokens
	// included.
	VocabSize() int

	// BosToken returns the beginning-of-sequence token id, or -1.
	BosToken() int32

	// EosToken returns the end-of-sequence token id, or -1.
	EosToken() int32

	// PadToken returns the padding token id, or -1.
	PadToken() int32

	// UnkToken returns the unknown token id, or -1.
	UnkToken() int32

	// IsSpecialToken reports whether a token id is a special token.
	IsSpecialToken(token int32) bool
}
