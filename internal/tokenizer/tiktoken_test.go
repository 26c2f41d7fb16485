package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Encoding files are fetched on first use. Skip rather than fail when
// they are unavailable.
func newTestTikToken(t *testing.T, encoding string) *TikToken {
	t.Helper()
	tok, err := NewTikToken(encoding)
	if err != nil {
		t.Skipf("tiktoken encoding %s unavailable: %v", encoding, err)
	}
	return tok
}

func TestTikToken_ReservedSpecials(t *testing.T) {
	tests := []struct {
		encoding string
		baseSize int
	}{
		{"cl100k_base", 100256},
		{"p50k_base", 50257},
	}

	for _, tt := range tests {
		t.Run(tt.encoding, func(t *testing.T) {
			tok := newTestTikToken(t, tt.encoding)

			assert.Equal(t, int32(tt.baseSize), tok.PadToken())
			assert.Equal(t, int32(tt.baseSize+1), tok.BosToken())
			assert.Equal(t, int32(tt.baseSize+2), tok.EosToken())
			assert.Equal(t, tt.baseSize+3, tok.VocabSize())
			assert.Equal(t, int32(-1), tok.UnkToken())

			assert.True(t, tok.IsSpecialToken(tok.PadToken()))
			assert.True(t, tok.IsSpecialToken(tok.EosToken()))
			assert.False(t, tok.IsSpecialToken(0))
			assert.False(t, tok.IsSpecialToken(int32(tt.baseSize-1)))
		})
	}
}

func TestTikToken_UnsupportedEncoding(t *testing.T) {
	_, err := NewTikToken("invalid_encoding_xyz")
	assert.Error(t, err)
}

func TestTikToken_Roundtrip(t *testing.T) {
	tok := newTestTikToken(t, "cl100k_base")

	tests := []string{
		"Hello, world!",
		"The quick brown fox jumps over the lazy dog.",
		"Numbers: 12345",
	}

	for _, text := range tests {
		ids, err := tok.Encode(text)
		require.NoError(t, err)
		require.NotEmpty(t, ids)

		for _, id := range ids {
			assert.False(t, tok.IsSpecialToken(id), "base encoder emitted reserved id %d", id)
		}

		decoded, err := tok.Decode(ids)
		require.NoError(t, err)
		assert.Equal(t, text, decoded)
	}
}

func TestTikToken_DecodeDropsReservedIDs(t *testing.T) {
	tok := newTestTikToken(t, "cl100k_base")

	ids, err := tok.Encode("hello")
	require.NoError(t, err)

	framed := append([]int32{tok.BosToken()}, ids...)
	framed = append(framed, tok.EosToken(), tok.PadToken())

	decoded, err := tok.Decode(framed)
	require.NoError(t, err)
	assert.Equal(t, "hello", decoded)
}
