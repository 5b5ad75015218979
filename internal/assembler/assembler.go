// Package assembler packs ranked chunks into a bounded character budget.
package assembler

import (
	"sort"
	"unicode/utf8"

	"docqa/internal/model"
)

// Assemble orders chunks by descending score (equal scores keep their input
// order), drops chunks whose text duplicates a higher-ranked one, then takes
// chunks in that order until the next one would push the cumulative rune
// length past window. Chunks are never truncated.
func Assemble(ranked []model.ScoredChunk, window int) []model.ScoredChunk {
	if window <= 0 || len(ranked) == 0 {
		return []model.ScoredChunk{}
	}

	sorted := append([]model.ScoredChunk(nil), ranked...)
	sort.SliceStable(sorted, func(a, b int) bool {
		return sorted[a].Score > sorted[b].Score
	})

	seen := make(map[string]struct{}, len(sorted))
	out := make([]model.ScoredChunk, 0, len(sorted))
	used := 0
	for _, sc := range sorted {
		if _, dup := seen[sc.Chunk.Text]; dup {
			continue
		}
		seen[sc.Chunk.Text] = struct{}{}
		size := utf8.RuneCountInString(sc.Chunk.Text)
		if used+size > window {
			break
		}
		used += size
		out = append(out, sc)
	}
	return out
}

// Length is the total rune length of the assembled chunk texts.
func Length(chunks []model.ScoredChunk) int {
	total := 0
	for _, sc := range chunks {
		total += utf8.RuneCountInString(sc.Chunk.Text)
	}
	return total
}
