package tokenizer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const trainingCorpus = `the cat sat on the mat
the dog sat on the rug
a cat and a dog
the cat saw the dog
dogs and cats sat together
`

func trainTestBPE(t *testing.T) *BPE {
	t.Helper()

	corpusPath := filepath.Join(t.TempDir(), "corpus.txt")
	require.NoError(t, os.WriteFile(corpusPath, []byte(trainingCorpus), 0o644))

	bpe, err := TrainBPE([]string{corpusPath}, 200)
	require.NoError(t, err)
	return bpe
}

func TestTrainBPE_SpecialTokens(t *testing.T) {
	bpe := trainTestBPE(t)

	assert.GreaterOrEqual(t, bpe.PadToken(), int32(0))
	assert.GreaterOrEqual(t, bpe.BosToken(), int32(0))
	assert.GreaterOrEqual(t, bpe.EosToken(), int32(0))
	assert.GreaterOrEqual(t, bpe.UnkToken(), int32(0))

	// All four must be distinct.
	ids := map[int32]bool{
		bpe.PadToken(): true,
		bpe.BosToken(): true,
		bpe.EosToken(): true,
		bpe.UnkToken(): true,
	}
	assert.Len(t, ids, 4)

	for id := range ids {
		assert.True(t, bpe.IsSpecialToken(id))
	}
	assert.Positive(t, bpe.VocabSize())
}

func TestTrainBPE_RequiresCorpus(t *testing.T) {
	_, err := TrainBPE(nil, 100)
	assert.Error(t, err)
}

func TestBPE_EncodeProducesContentIDsOnly(t *testing.T) {
	bpe := trainTestBPE(t)

	ids, err := bpe.Encode("the cat sat")
	require.NoError(t, err)
	require.NotEmpty(t, ids)

	for _, id := range ids {
		assert.False(t, bpe.IsSpecialToken(id), "encode emitted special id %d", id)
		assert.Less(t, int(id), bpe.VocabSize())
	}
}

func TestBPE_EncodeEmptyText(t *testing.T) {
	bpe := trainTestBPE(t)

	ids, err := bpe.Encode("")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestBPE_EncodeNormalizesCase(t *testing.T) {
	bpe := trainTestBPE(t)

	lower, err := bpe.Encode("the cat")
	require.NoError(t, err)
	upper, err := bpe.Encode("The CAT")
	require.NoError(t, err)
	assert.Equal(t, lower, upper)
}

func TestBPE_DecodeDropsSpecialTokens(t *testing.T) {
	bpe := trainTestBPE(t)

	ids, err := bpe.Encode("the cat")
	require.NoError(t, err)

	framed := append([]int32{bpe.BosToken()}, ids...)
	framed = append(framed, bpe.EosToken(), bpe.PadToken(), bpe.PadToken())

	plain, err := bpe.Decode(ids)
	require.NoError(t, err)
	withSpecials, err := bpe.Decode(framed)
	require.NoError(t, err)
	assert.Equal(t, plain, withSpecials)
}

func TestBPE_SaveLoadRoundTrip(t *testing.T) {
	bpe := trainTestBPE(t)

	path := filepath.Join(t.TempDir(), "tok", "tokenizer.json")
	require.NoError(t, bpe.Save(path))

	loaded, err := LoadBPE(path)
	require.NoError(t, err)

	assert.Equal(t, bpe.VocabSize(), loaded.VocabSize())
	assert.Equal(t, bpe.PadToken(), loaded.PadToken())
	assert.Equal(t, bpe.BosToken(), loaded.BosToken())
	assert.Equal(t, bpe.EosToken(), loaded.EosToken())

	want, err := bpe.Encode("the dog sat on the mat")
	require.NoError(t, err)
	got, err := loaded.Encode("the dog sat on the mat")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadBPE_MissingFile(t *testing.T) {
	_, err := LoadBPE(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
