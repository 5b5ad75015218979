package model

import "time"

type IndexEventType string

const (
	IndexEventIngested IndexEventType = "ingested"
	IndexEventDeleted  IndexEventType = "deleted"
	IndexEventCleared  IndexEventType = "cleared"
	IndexEventReloaded IndexEventType = "reloaded"
)

// IndexEvent records one mutation of the corpus.
type IndexEvent struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Type       IndexEventType `gorm:"size:16;not null;index" json:"type"`
	Document   string         `gorm:"size:512" json:"document,omitempty"`
	Version    int            `json:"version,omitempty"`
	Chunks     int            `json:"chunks"`
	OccurredAt time.Time      `gorm:"not null;index" json:"occurredAt"`
}
