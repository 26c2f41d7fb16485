// Package config loads the YAML configuration shared by the CLI
// commands: model dimensions, tokenizer locations, and decoding
// settings.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ModelConfig holds the transformer dimensions.
type ModelConfig struct {
	SrcSeqLen int     `yaml:"src_seq_len"`
	TgtSeqLen int     `yaml:"tgt_seq_len"`
	DModel    int     `yaml:"d_model"`
	Layers    int     `yaml:"layers"`
	Heads     int     `yaml:"heads"`
	DFF       int     `yaml:"d_ff"`
	Dropout   float64 `yaml:"dropout"`
}

// TokenizerConfig points at the trained tokenizers. Kind selects the
// implementation: "bpe" (per-side tokenizer.json files) or a tiktoken
// encoding name such as "cl100k_base".
type TokenizerConfig struct {
	Kind    string `yaml:"kind"`
	SrcPath string `yaml:"src_path"`
	TgtPath string `yaml:"tgt_path"`
}

// DecodeConfig holds the generation settings.
type DecodeConfig struct {
	MaxLen      int     `yaml:"max_len"`
	Temperature float64 `yaml:"temperature"`
	TopK        int     `yaml:"top_k"`
	TopP        float64 `yaml:"top_p"`
	Seed        int64   `yaml:"seed"`
}

// Config is the root of the YAML file.
type Config struct {
	Model         ModelConfig     `yaml:"model"`
	Tokenizer     TokenizerConfig `yaml:"tokenizer"`
	Decode        DecodeConfig    `yaml:"decode"`
	CheckpointDir string          `yaml:"checkpoint_dir"`
}

// Default returns the configuration used when a field is absent from
// the file.
func Default() Config {
	return Config{
		Model: ModelConfig{
			SrcSeqLen: 128,
			TgtSeqLen: 128,
			DModel:    512,
			Layers:    6,
			Heads:     8,
			DFF:       2048,
			Dropout:   0.1,
		},
		Tokenizer: TokenizerConfig{
			Kind: "bpe",
		},
		Decode: DecodeConfig{
			MaxLen:      128,
			Temperature: 0,
			TopP:        1.0,
			Seed:        -1,
		},
		CheckpointDir: "checkpoints",
	}
}

// Load reads and validates a YAML configuration file. Fields absent
// from the file keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the CLI flag
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the fields the model constructor would otherwise
// panic on, plus the CLI-level ones.
func (c Config) Validate() error {
	if c.Model.SrcSeqLen < 2 || c.Model.TgtSeqLen < 2 {
		return fmt.Errorf("sequence lengths must be at least 2, got src=%d tgt=%d",
			c.Model.SrcSeqLen, c.Model.TgtSeqLen)
	}
	if c.Model.DModel <= 0 || c.Model.Layers <= 0 || c.Model.DFF <= 0 {
		return fmt.Errorf("model dimensions must be positive")
	}
	if c.Model.Heads <= 0 || c.Model.DModel%c.Model.Heads != 0 {
		return fmt.Errorf("d_model %d must be divisible by heads %d", c.Model.DModel, c.Model.Heads)
	}
	if c.Model.Dropout < 0 || c.Model.Dropout >= 1 {
		return fmt.Errorf("dropout %v outside [0, 1)", c.Model.Dropout)
	}
	if c.Decode.MaxLen < 2 {
		return fmt.Errorf("decode max_len must be at least 2, got %d", c.Decode.MaxLen)
	}
	if c.Decode.MaxLen > c.Model.TgtSeqLen {
		return fmt.Errorf("decode max_len %d exceeds tgt_seq_len %d", c.Decode.MaxLen, c.Model.TgtSeqLen)
	}
	switch c.Tokenizer.Kind {
	case "bpe", "cl100k_base", "p50k_base", "r50k_base":
	default:
		return fmt.Errorf("unknown tokenizer kind %q", c.Tokenizer.Kind)
	}
	if c.Tokenizer.Kind == "bpe" && (c.Tokenizer.SrcPath == "" || c.Tokenizer.TgtPath == "") {
		return fmt.Errorf("bpe tokenizer requires src_path and tgt_path")
	}
	if c.CheckpointDir == "" {
		return fmt.Errorf("checkpoint_dir must be set")
	}
	return nil
}
