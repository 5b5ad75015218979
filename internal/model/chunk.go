package model

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Chunk is the unit of retrieval. Vector holds its embedding; the gorm
// Embedding column carries the same vector as a JSON array of float32.
type Chunk struct {
	ID           uint      `gorm:"primaryKey" json:"-"`
	ChunkID      string    `gorm:"size:36;not null;uniqueIndex" json:"id"`
	DocumentName string    `gorm:"size:512;not null;index" json:"document"`
	Index        int       `gorm:"not null" json:"index"`
	Text         string    `gorm:"type:mediumtext;not null" json:"text"`
	Page         int       `json:"page,omitempty"`
	Section      string    `gorm:"size:512" json:"section,omitempty"`
	Preview      string    `gorm:"size:512" json:"preview"`
	Embedding    string    `gorm:"type:mediumtext" json:"-"`
	CreatedAt    time.Time `json:"createdAt"`

	Vector []float32 `gorm:"-" json:"-"`
}

// EmbeddingVector parses the stored JSON embedding.
func (c *Chunk) EmbeddingVector() ([]float32, error) {
	if c.Embedding == "" {
		return nil, nil
	}
	var v []float32
	if err := json.Unmarshal([]byte(c.Embedding), &v); err != nil {
		return nil, err
	}
	return v, nil
}

// SetEmbedding stores the embedding as JSON.
func (c *Chunk) SetEmbedding(vec []float32) error {
	if len(vec) == 0 {
		c.Embedding = "[]"
		return nil
	}
	b, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("encode embedding of chunk %s failed: %w", c.ChunkID, err)
	}
	c.Embedding = string(b)
	return nil
}

func (c *Chunk) BeforeSave(_ *gorm.DB) error {
	return c.SetEmbedding(c.Vector)
}

// AfterFind fails the whole query when a stored embedding does not parse, so
// a load reports the damaged row instead of a chunk without a vector.
func (c *Chunk) AfterFind(_ *gorm.DB) error {
	vec, err := c.EmbeddingVector()
	if err != nil {
		return fmt.Errorf("%w: chunk %d of %q has unreadable embedding: %v", ErrIndexCorrupt, c.Index, c.DocumentName, err)
	}
	c.Vector = vec
	return nil
}

// ScoredChunk pairs a chunk with its similarity to a query.
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}
