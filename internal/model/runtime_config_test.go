package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() RuntimeConfig {
	return RuntimeConfig{
		ChunkSize:           512,
		ChunkOverlap:        64,
		TopK:                5,
		SimilarityThreshold: 0.2,
		ContextWindow:       4000,
		Temperature:         0.7,
		MaxTokens:           1024,
		Model:               "qwen3-max",
		EmbeddingModel:      "text-embedding-v3",
	}
}

func TestRuntimeConfig_Validate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*RuntimeConfig)
		field  string
	}{
		{"chunk size too small", func(c *RuntimeConfig) { c.ChunkSize = 10 }, "chunkSize"},
		{"overlap equals chunk size", func(c *RuntimeConfig) { c.ChunkOverlap = c.ChunkSize }, "chunkOverlap"},
		{"negative overlap", func(c *RuntimeConfig) { c.ChunkOverlap = -1 }, "chunkOverlap"},
		{"topK zero", func(c *RuntimeConfig) { c.TopK = 0 }, "topK"},
		{"topK above max", func(c *RuntimeConfig) { c.TopK = 21 }, "topK"},
		{"threshold above one", func(c *RuntimeConfig) { c.SimilarityThreshold = 1.5 }, "similarityThreshold"},
		{"context window too small", func(c *RuntimeConfig) { c.ContextWindow = 10 }, "contextWindow"},
		{"temperature too high", func(c *RuntimeConfig) { c.Temperature = 2.1 }, "temperature"},
		{"max tokens zero", func(c *RuntimeConfig) { c.MaxTokens = 0 }, "maxTokens"},
		{"empty model", func(c *RuntimeConfig) { c.Model = "" }, "model"},
		{"empty embedding model", func(c *RuntimeConfig) { c.EmbeddingModel = "" }, "embeddingModel"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfiguration))
			var cerr *ConfigError
			require.True(t, errors.As(err, &cerr))
			assert.Equal(t, tt.field, cerr.Field)
		})
	}
}

func TestRuntimeConfig_ApplyLeavesUnsetFields(t *testing.T) {
	base := validConfig()
	topK := 9
	model := "  llama3  "
	got := base.Apply(RuntimeConfigPatch{TopK: &topK, Model: &model})

	assert.Equal(t, 9, got.TopK)
	assert.Equal(t, "llama3", got.Model)
	assert.Equal(t, base.ChunkSize, got.ChunkSize)
	assert.Equal(t, 5, base.TopK, "receiver must not be mutated")
}

func TestRuntimeConfigPatch_IsEmpty(t *testing.T) {
	assert.True(t, RuntimeConfigPatch{}.IsEmpty())
	v := 0.5
	assert.False(t, RuntimeConfigPatch{Temperature: &v}.IsEmpty())
}
