package model

// IndexSnapshot is the durable form of the index: every document and every
// chunk with its vector. Chunks are listed in insertion order.
type IndexSnapshot struct {
	Documents []Document `json:"documents"`
	Chunks    []Chunk    `json:"chunks"`
}
