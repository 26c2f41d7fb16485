package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "loom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
tokenizer:
  kind: bpe
  src_path: tok/src.json
  tgt_path: tok/tgt.json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 512, cfg.Model.DModel)
	assert.Equal(t, 6, cfg.Model.Layers)
	assert.Equal(t, 8, cfg.Model.Heads)
	assert.Equal(t, 2048, cfg.Model.DFF)
	assert.InDelta(t, 0.1, cfg.Model.Dropout, 1e-9)
	assert.Equal(t, 128, cfg.Decode.MaxLen)
	assert.Equal(t, "checkpoints", cfg.CheckpointDir)
}

func TestLoad_OverridesFields(t *testing.T) {
	path := writeConfig(t, `
model:
  src_seq_len: 64
  tgt_seq_len: 64
  d_model: 256
  layers: 4
  heads: 4
  d_ff: 1024
  dropout: 0.2
tokenizer:
  kind: cl100k_base
decode:
  max_len: 32
checkpoint_dir: runs/en-de
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 256, cfg.Model.DModel)
	assert.Equal(t, 4, cfg.Model.Heads)
	assert.Equal(t, 32, cfg.Decode.MaxLen)
	assert.Equal(t, "cl100k_base", cfg.Tokenizer.Kind)
	assert.Equal(t, "runs/en-de", cfg.CheckpointDir)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "model: [not a map")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"heads do not divide d_model", func(c *Config) { c.Model.Heads = 7 }},
		{"dropout out of range", func(c *Config) { c.Model.Dropout = 1.0 }},
		{"max_len too small", func(c *Config) { c.Decode.MaxLen = 1 }},
		{"max_len exceeds tgt_seq_len", func(c *Config) { c.Decode.MaxLen = 1000 }},
		{"unknown tokenizer kind", func(c *Config) { c.Tokenizer.Kind = "wordpiece" }},
		{"bpe without paths", func(c *Config) {
			c.Tokenizer.Kind = "bpe"
			c.Tokenizer.SrcPath = ""
		}},
		{"empty checkpoint dir", func(c *Config) { c.CheckpointDir = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Tokenizer.SrcPath = "src.json"
			cfg.Tokenizer.TgtPath = "tgt.json"
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("defaults are valid", func(t *testing.T) {
		cfg := Default()
		cfg.Tokenizer.SrcPath = "src.json"
		cfg.Tokenizer.TgtPath = "tgt.json"
		assert.NoError(t, cfg.Validate())
	})
}
