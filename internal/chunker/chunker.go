// Package chunker splits document text into fixed-size overlapping pieces.
// Sizes and offsets are measured in runes.
package chunker

import (
	"sort"
	"strings"

	"docqa/internal/model"
)

const previewLength = 80

// Locator marks the page and section in effect from a rune offset onwards.
type Locator struct {
	Offset  int
	Page    int
	Section string
}

// Piece is one chunk of text together with its position in the document.
type Piece struct {
	Index   int
	Start   int
	Text    string
	Page    int
	Section string
	Preview string
}

// Split cuts text into pieces of exactly chunkSize runes (the last one may be
// shorter), each starting chunkSize-overlap runes after the previous one.
// It is deterministic: identical input always yields identical pieces.
func Split(text string, chunkSize, overlap int) ([]Piece, error) {
	return SplitWithLocators(text, nil, chunkSize, overlap)
}

// SplitWithLocators behaves like Split and tags every piece with the locator
// in effect at its start offset.
func SplitWithLocators(text string, locators []Locator, chunkSize, overlap int) ([]Piece, error) {
	if err := model.ValidateChunking(chunkSize, overlap); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	sorted := append([]Locator(nil), locators...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })

	runes := []rune(text)
	step := chunkSize - overlap
	pieces := make([]Piece, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunk := string(runes[start:end])
		loc := locate(sorted, start)
		pieces = append(pieces, Piece{
			Index:   len(pieces),
			Start:   start,
			Text:    chunk,
			Page:    loc.Page,
			Section: loc.Section,
			Preview: Preview(chunk),
		})
		if end == len(runes) {
			break
		}
	}
	return pieces, nil
}

// Preview collapses whitespace and truncates text for display.
func Preview(text string) string {
	collapsed := strings.Join(strings.Fields(text), " ")
	runes := []rune(collapsed)
	if len(runes) <= previewLength {
		return collapsed
	}
	return string(runes[:previewLength]) + "..."
}

func locate(sorted []Locator, offset int) Locator {
	i := sort.Search(len(sorted), func(i int) bool { return sorted[i].Offset > offset })
	if i == 0 {
		return Locator{}
	}
	return sorted[i-1]
}
