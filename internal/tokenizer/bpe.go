package tokenizer

import (
	"fmt"
	"os"
	"path/filepath"

	tk "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/model/bpe"
	"github.com/sugarme/tokenizer/normalizer"
	"github.com/sugarme/tokenizer/pretokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// Special token strings the BPE trainer registers. Their ids come from
// the trained vocabulary, not from fixed positions.
const (
	padTokenStr = "<pad>"
	bosTokenStr = "<bos>"
	eosTokenStr = "<eos>"
	unkTokenStr = "<unk>"
)

// BPE is a trainable byte-pair tokenizer backed by sugarme/tokenizer.
//
// Text is NFKC-normalized and lowercased, then split on whitespace
// before the merge rules apply. One tokenizer is trained per language
// side and persisted as a HuggingFace-style tokenizer.json.
type BPE struct {
	inner         *tk.Tokenizer
	bosToken      int32
	eosToken      int32
	padToken      int32
	unkToken      int32
	specialTokens map[int32]bool
	vocabSize     int
}

// TrainBPE trains a BPE tokenizer on the given corpus files.
//
// vocabSize caps the merged vocabulary, special tokens included.
func TrainBPE(corpusPaths []string, vocabSize int) (*BPE, error) {
	if len(corpusPaths) == 0 {
		return nil, fmt.Errorf("bpe training requires at least one corpus file")
	}

	model, err := bpe.DefaultBPE()
	if err != nil {
		return nil, fmt.Errorf("bpe training failed: %w", err)
	}
	t := tk.NewTokenizer(model)
	t.WithNormalizer(normalizer.NewSequence([]normalizer.Normalizer{
		normalizer.NewNFKC(),
		normalizer.Lowercase(),
	}))
	t.WithPreTokenizer(pretokenizer.NewWhitespaceSplit())

	tr := bpe.NewBpeTrainer(0, vocabSize)
	tr.SpecialTokens = []tk.AddedToken{
		tk.NewAddedToken(padTokenStr, true),
		tk.NewAddedToken(bosTokenStr, true),
		tk.NewAddedToken(eosTokenStr, true),
		tk.NewAddedToken(unkTokenStr, true),
	}

	if err := t.Train(tr, corpusPaths); err != nil {
		return nil, fmt.Errorf("bpe training failed: %w", err)
	}
	return wrapBPE(t)
}

// LoadBPE loads a previously trained tokenizer from a tokenizer.json.
func LoadBPE(path string) (*BPE, error) {
	t, err := pretrained.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer from %s: %w", path, err)
	}
	return wrapBPE(t)
}

// wrapBPE resolves the special token ids from the vocabulary.
func wrapBPE(t *tk.Tokenizer) (*BPE, error) {
	vocab := t.GetVocab(true)

	lookup := func(token string) (int32, error) {
		id, ok := vocab[token]
		if !ok {
			return -1, fmt.Errorf("vocabulary missing special token %s", token)
		}
		return int32(id), nil //nolint:gosec // G115: vocab ids fit in int32
	}

	b := &BPE{
		inner:         t,
		specialTokens: make(map[int32]bool, 4),
		vocabSize:     len(vocab),
	}
	var err error
	if b.padToken, err = lookup(padTokenStr); err != nil {
		return nil, err
	}
	if b.bosToken, err = lookup(bosTokenStr); err != nil {
		return nil, err
	}
	if b.eosToken, err = lookup(eosTokenStr); err != nil {
		return nil, err
	}
	if b.unkToken, err = lookup(unkTokenStr); err != nil {
		return nil, err
	}
	for _, id := range []int32{b.padToken, b.bosToken, b.eosToken, b.unkToken} {
		b.specialTokens[id] = true
	}
	return b, nil
}

// Save writes the tokenizer as tokenizer.json, creating parent
// directories as needed.
func (b *BPE) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create tokenizer directory: %w", err)
	}
	if err := b.inner.Save(path, false); err != nil {
		return fmt.Errorf("failed to save tokenizer to %s: %w", path, err)
	}
	return nil
}

// Encode converts text to content token ids. No SOS or EOS is added.
func (b *BPE) Encode(text string) ([]int32, error) {
	if text == "" {
		return []int32{}, nil
	}
	enc, err := b.inner.EncodeSingle(text)
	if err != nil {
		return nil, fmt.Errorf("bpe encode failed: %w", err)
	}
	ids := make([]int32, len(enc.Ids))
	for i, id := range enc.Ids {
		ids[i] = int32(id) //nolint:gosec // G115: vocab ids fit in int32
	}
	return ids, nil
}

// Decode converts token ids back to text, dropping special tokens.
func (b *BPE) Decode(tokens []int32) (string, error) {
	ids := make([]int, 0, len(tokens))
	for _, token := range tokens {
		if b.specialTokens[token] {
			continue
		}
		ids = append(ids, int(token))
	}
	return b.inner.Decode(ids, true), nil
}

// VocabSize returns the total vocabulary size, special tokens included.
func (b *BPE) VocabSize() int {
	return b.vocabSize
}

// BosToken returns the beginning-of-sequence token id.
func (b *BPE) BosToken() int32 {
	return b.bosToken
}

// EosToken returns the end-of-sequence token id.
func (b *BPE) EosToken() int32 {
	return b.eosToken
}

// PadToken returns the padding token id.
func (b *BPE) PadToken() int32 {
	return b.padToken
}

// UnkToken returns the unknown token id.
func (b *BPE) UnkToken() int32 {
	return b.unkToken
}

// IsSpecialToken reports whether a token id is a special token.
func (b *BPE) IsSpecialToken(token int32) bool {
	return b.specialTokens[token]
}
