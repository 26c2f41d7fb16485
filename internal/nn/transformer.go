package nn

import (
	"fmt"

	"github.com/loom-ml/loom/internal/tensor"
)

// Config holds the transformer hyperparameters. Zero values fall back to
// the base configuration of the original architecture.
type Config struct {
	SrcVocabSize int // source vocabulary size (required)
	TgtVocabSize int // target vocabulary size (required)
	SrcSeqLen    int // maximum source sequence length (required)
	TgtSeqLen    int // maximum target sequence length (required)

	DModel  int     // embedding dimension, default 512
	Layers  int     // encoder and decoder depth, default 6
	Heads   int     // attention heads, default 8
	DFF     int     // feed-forward inner dimension, default 2048
	Dropout float32 // drop probability, default 0.1
	Eps     float32 // layernorm epsilon, default 1e-6
}

func (c Config) withDefaults() Config {
	if c.DModel == 0 {
		c.DModel = 512
	}
	if c.Layers == 0 {
		c.Layers = 6
	}
	if c.Heads == 0 {
		c.Heads = 8
	}
	if c.DFF == 0 {
		c.DFF = 2048
	}
	if c.Dropout == 0 {
		c.Dropout = 0.1
	}
	if c.Eps == 0 {
		c.Eps = 1e-6
	}
	return c
}

func (c Config) validate() {
	if c.SrcVocabSize <= 0 || c.TgtVocabSize <= 0 {
		panic(fmt.Sprintf("transformer: vocab sizes must be positive, got src=%d tgt=%d", c.SrcVocabSize, c.TgtVocabSize))
	}
	if c.SrcSeqLen <= 0 || c.TgtSeqLen <= 0 {
		panic(fmt.Sprintf("transformer: sequence lengths must be positive, got src=%d tgt=%d", c.SrcSeqLen, c.TgtSeqLen))
	}
	if c.DModel%c.Heads != 0 {
		panic(fmt.Sprintf("transformer: d_model %d not divisible by heads %d", c.DModel, c.Heads))
	}
}

// Transformer is the encoder-decoder translation model: source and target
// embeddings with positional encoding, the encoder and decoder stacks,
// and the projection head.
//
// The forward pass is deliberately split into Encode, Decode and Project
// rather than a single method: autoregressive decoding runs Encode once
// and Decode many times, and training wants log-probabilities for every
// position while decoding only needs the last.
type Transformer[B tensor.Backend] struct {
	cfg Config

	srcEmbed *Embedding[B]
	tgtEmbed *Embedding[B]
	srcPos   *PositionalEncoding[B]
	tgtPos   *PositionalEncoding[B]
	encoder  *Encoder[B]
	decoder  *Decoder[B]
	proj     *ProjectionHead[B]

	backend B
}

// NewTransformer builds the model from the configuration. Panics on an
// invalid configuration (that is a caller bug, not runtime input).
func NewTransformer[B tensor.Backend](cfg Config, backend B) *Transformer[B] {
	cfg = cfg.withDefaults()
	cfg.validate()

	return &Transformer[B]{
		cfg:      cfg,
		srcEmbed: NewEmbedding(cfg.SrcVocabSize, cfg.DModel, backend),
		tgtEmbed: NewEmbedding(cfg.TgtVocabSize, cfg.DModel, backend),
		srcPos:   NewPositionalEncoding(cfg.DModel, cfg.SrcSeqLen, cfg.Dropout, backend),
		tgtPos:   NewPositionalEncoding(cfg.DModel, cfg.TgtSeqLen, cfg.Dropout, backend),
		encoder:  NewEncoder(cfg.Layers, cfg.DModel, cfg.Heads, cfg.DFF, cfg.Dropout, cfg.Eps, backend),
		decoder:  NewDecoder(cfg.Layers, cfg.DModel, cfg.Heads, cfg.DFF, cfg.Dropout, cfg.Eps, backend),
		proj:     NewProjectionHead(cfg.DModel, cfg.TgtVocabSize, backend),
		backend:  backend,
	}
}

// Encode embeds the source ids [batch, src_len], adds positions and runs
// the encoder stack. Returns the memory [batch, src_len, d_model].
func (t *Transformer[B]) Encode(
	src *tensor.Tensor[int32, B],
	srcMask *tensor.Tensor[bool, B],
) *tensor.Tensor[float32, B] {
	x := t.srcPos.Forward(t.srcEmbed.Forward(src))
	return t.encoder.Forward(x, srcMask)
}

// Decode embeds the target prefix [batch, tgt_len], adds positions and
// runs the decoder stack against the encoder memory. Returns decoder
// states [batch, tgt_len, d_model]; Project turns them into
// log-probabilities.
func (t *Transformer[B]) Decode(
	memory *tensor.Tensor[float32, B],
	srcMask *tensor.Tensor[bool, B],
	tgt *tensor.Tensor[int32, B],
	tgtMask *tensor.Tensor[bool, B],
) *tensor.Tensor[float32, B] {
	x := t.tgtPos.Forward(t.tgtEmbed.Forward(tgt))
	return t.decoder.Forward(x, memory, srcMask, tgtMask)
}

// Project maps decoder states to log-probabilities over the target
// vocabulary: [batch, seq, d_model] -> [batch, seq, tgt_vocab].
func (t *Transformer[B]) Project(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return t.proj.Forward(x)
}

// Config returns the model configuration (with defaults applied).
func (t *Transformer[B]) Config() Config {
	return t.cfg
}

// Encoder returns the encoder stack.
func (t *Transformer[B]) Encoder() *Encoder[B] {
	return t.encoder
}

// Decoder returns the decoder stack.
func (t *Transformer[B]) Decoder() *Decoder[B] {
	return t.decoder
}

// EncoderAttention returns the self-attention weights of encoder layer i
// from the most recent forward pass, or nil before the first pass.
func (t *Transformer[B]) EncoderAttention(layer int) *tensor.Tensor[float32, B] {
	return t.encoder.Blocks()[layer].SelfAttention().Weights()
}

// DecoderSelfAttention returns the masked self-attention weights of
// decoder layer i from the most recent forward pass.
func (t *Transformer[B]) DecoderSelfAttention(layer int) *tensor.Tensor[float32, B] {
	return t.decoder.Blocks()[layer].SelfAttention().Weights()
}

// CrossAttention returns the encoder-decoder attention weights of decoder
// layer i from the most recent forward pass. These are the weights
// usually plotted to see which source words a translation attends to.
func (t *Transformer[B]) CrossAttention(layer int) *tensor.Tensor[float32, B] {
	return t.decoder.Blocks()[layer].CrossAttention().Weights()
}

// Parameters returns every trainable parameter of the model.
func (t *Transformer[B]) Parameters() []*Parameter[B] {
	params := t.srcEmbed.Parameters()
	params = append(params, t.tgtEmbed.Parameters()...)
	params = append(params, t.encoder.Parameters()...)
	params = append(params, t.decoder.Parameters()...)
	params = append(params, t.proj.Parameters()...)
	return params
}

// SetTraining switches every dropout in the model between training and
// eval mode. Models start in eval mode.
func (t *Transformer[B]) SetTraining(training bool) {
	t.srcPos.SetTraining(training)
	t.tgtPos.SetTraining(training)
	t.encoder.SetTraining(training)
	t.decoder.SetTraining(training)
}

// StateDict returns every parameter under a hierarchical name.
func (t *Transformer[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	mergeStateDict(stateDict, "src_embed", t.srcEmbed.StateDict())
	mergeStateDict(stateDict, "tgt_embed", t.tgtEmbed.StateDict())
	mergeStateDict(stateDict, "encoder", t.encoder.StateDict())
	mergeStateDict(stateDict, "decoder", t.decoder.StateDict())
	mergeStateDict(stateDict, "proj", t.proj.StateDict())
	return stateDict
}

// LoadStateDict loads every parameter from a state dictionary produced by
// StateDict on a model with the same configuration.
func (t *Transformer[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := t.srcEmbed.LoadStateDict(subStateDict(stateDict, "src_embed")); err != nil {
		return fmt.Errorf("src_embed: %w", err)
	}
	if err := t.tgtEmbed.LoadStateDict(subStateDict(stateDict, "tgt_embed")); err != nil {
		return fmt.Errorf("tgt_embed: %w", err)
	}
	if err := t.encoder.LoadStateDict(subStateDict(stateDict, "encoder")); err != nil {
		return fmt.Errorf("encoder: %w", err)
	}
	if err := t.decoder.LoadStateDict(subStateDict(stateDict, "decoder")); err != nil {
		return fmt.Errorf("decoder: %w", err)
	}
	if err := t.proj.LoadStateDict(subStateDict(stateDict, "proj")); err != nil {
		return fmt.Errorf("proj: %w", err)
	}
	return nil
}
