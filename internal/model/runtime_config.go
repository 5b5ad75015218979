package model

import (
	"strings"
	"time"
)

// Ranges enforced by RuntimeConfig.Validate.
const (
	MinChunkSize     = 50
	MaxChunkSize     = 10000
	MinTopK          = 1
	MaxTopK          = 20
	MinContextWindow = 100
	MaxContextWindow = 200000
	MaxTemperature   = 2.0
	MaxMaxTokens     = 32768
)

// RuntimeConfig is the mutable configuration shared by every RAG component.
// Values are copied out of the settings store, so a captured RuntimeConfig
// never changes under an in-flight operation.
type RuntimeConfig struct {
	ChunkSize           int       `json:"chunkSize"`
	ChunkOverlap        int       `json:"chunkOverlap"`
	TopK                int       `json:"topK"`
	SimilarityThreshold float64   `json:"similarityThreshold"`
	ContextWindow       int       `json:"contextWindow"`
	Temperature         float64   `json:"temperature"`
	MaxTokens           int       `json:"maxTokens"`
	Model               string    `json:"model"`
	EmbeddingModel      string    `json:"embeddingModel"`
	Version             int       `json:"version"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// RuntimeConfigPatch is a partial update; nil fields are left unchanged.
type RuntimeConfigPatch struct {
	ChunkSize           *int     `json:"chunkSize,omitempty"`
	ChunkOverlap        *int     `json:"chunkOverlap,omitempty"`
	TopK                *int     `json:"topK,omitempty"`
	SimilarityThreshold *float64 `json:"similarityThreshold,omitempty"`
	ContextWindow       *int     `json:"contextWindow,omitempty"`
	Temperature         *float64 `json:"temperature,omitempty"`
	MaxTokens           *int     `json:"maxTokens,omitempty"`
	Model               *string  `json:"model,omitempty"`
	EmbeddingModel      *string  `json:"embeddingModel,omitempty"`
}

// IsEmpty reports whether the patch sets no field.
func (p RuntimeConfigPatch) IsEmpty() bool {
	return p.ChunkSize == nil && p.ChunkOverlap == nil && p.TopK == nil &&
		p.SimilarityThreshold == nil && p.ContextWindow == nil && p.Temperature == nil &&
		p.MaxTokens == nil && p.Model == nil && p.EmbeddingModel == nil
}

// Apply returns a copy of c with the patch fields applied. The result is not validated.
func (c RuntimeConfig) Apply(p RuntimeConfigPatch) RuntimeConfig {
	if p.ChunkSize != nil {
		c.ChunkSize = *p.ChunkSize
	}
	if p.ChunkOverlap != nil {
		c.ChunkOverlap = *p.ChunkOverlap
	}
	if p.TopK != nil {
		c.TopK = *p.TopK
	}
	if p.SimilarityThreshold != nil {
		c.SimilarityThreshold = *p.SimilarityThreshold
	}
	if p.ContextWindow != nil {
		c.ContextWindow = *p.ContextWindow
	}
	if p.Temperature != nil {
		c.Temperature = *p.Temperature
	}
	if p.MaxTokens != nil {
		c.MaxTokens = *p.MaxTokens
	}
	if p.Model != nil {
		c.Model = strings.TrimSpace(*p.Model)
	}
	if p.EmbeddingModel != nil {
		c.EmbeddingModel = strings.TrimSpace(*p.EmbeddingModel)
	}
	return c
}

// Validate checks every field range and returns a *ConfigError for the first violation.
func (c RuntimeConfig) Validate() error {
	if c.ChunkSize < MinChunkSize || c.ChunkSize > MaxChunkSize {
		return invalidField("chunkSize", "must be between %d and %d", MinChunkSize, MaxChunkSize)
	}
	if err := ValidateChunking(c.ChunkSize, c.ChunkOverlap); err != nil {
		return err
	}
	if err := ValidateTopK(c.TopK); err != nil {
		return err
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return invalidField("similarityThreshold", "must be between 0 and 1")
	}
	if c.ContextWindow < MinContextWindow || c.ContextWindow > MaxContextWindow {
		return invalidField("contextWindow", "must be between %d and %d", MinContextWindow, MaxContextWindow)
	}
	if c.Temperature < 0 || c.Temperature > MaxTemperature {
		return invalidField("temperature", "must be between 0 and %g", MaxTemperature)
	}
	if c.MaxTokens < 1 || c.MaxTokens > MaxMaxTokens {
		return invalidField("maxTokens", "must be between 1 and %d", MaxMaxTokens)
	}
	if c.Model == "" {
		return invalidField("model", "must not be empty")
	}
	if c.EmbeddingModel == "" {
		return invalidField("embeddingModel", "must not be empty")
	}
	return nil
}

// ValidateChunking enforces 0 <= overlap < chunkSize.
func ValidateChunking(chunkSize, overlap int) error {
	if chunkSize <= 0 {
		return invalidField("chunkSize", "must be positive")
	}
	if overlap < 0 {
		return invalidField("chunkOverlap", "must not be negative")
	}
	if overlap >= chunkSize {
		return invalidField("chunkOverlap", "must be less than chunkSize (%d)", chunkSize)
	}
	return nil
}

// ValidateTopK enforces the topK range.
func ValidateTopK(topK int) error {
	if topK < MinTopK || topK > MaxTopK {
		return invalidField("topK", "must be between %d and %d", MinTopK, MaxTopK)
	}
	return nil
}
