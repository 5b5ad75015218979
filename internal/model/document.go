package model

import "time"

// Document is an ingested source file. Name is unique within the corpus.
type Document struct {
	ID             uint      `gorm:"primaryKey" json:"-"`
	Name           string    `gorm:"size:512;not null;uniqueIndex" json:"name"`
	Format         string    `gorm:"size:16" json:"format"`
	SizeBytes      int64     `gorm:"not null" json:"sizeBytes"`
	Version        int       `gorm:"not null" json:"version"`
	ChunkCount     int       `gorm:"not null" json:"chunkCount"`
	ChunkSize      int       `gorm:"not null" json:"chunkSize"`
	ChunkOverlap   int       `gorm:"not null" json:"chunkOverlap"`
	EmbeddingModel string    `gorm:"size:128;not null" json:"embeddingModel"`
	IngestedAt     time.Time `gorm:"not null" json:"ingestedAt"`
}
