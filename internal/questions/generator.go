// Package questions suggests questions answerable from the indexed corpus.
package questions

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"docqa/internal/ai"
	"docqa/internal/assembler"
	"docqa/internal/model"
)

const (
	sampleSize        = 8
	questionsPerChunk = 2
	MaxQuestions      = 10
)

var listMarker = regexp.MustCompile(`^\s*(?:[-*•]+|\(?\d+[.):]|[Qq]\d*[.:])\s*`)

type Sampler interface {
	Sample(limit int) []model.Chunk
}

type Completer interface {
	Complete(ctx context.Context, modelName string, cfg model.RuntimeConfig, messages []ai.ChatMessage) (string, error)
}

type Generator struct {
	index Sampler
	llm   Completer
}

func New(index Sampler, llm Completer) *Generator {
	return &Generator{index: index, llm: llm}
}

// Generate returns up to n questions grounded in a sample of indexed chunks.
// The count is capped by what the sample can support, so a large n yields
// fewer questions rather than an error. An empty index yields none.
func (g *Generator) Generate(ctx context.Context, n int, cfg model.RuntimeConfig) ([]string, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: numQuestions must be positive", model.ErrInvalidInput)
	}
	passages := g.passages(cfg.ContextWindow)
	if len(passages) == 0 {
		return []string{}, nil
	}

	limit := min(n, questionsPerChunk*len(passages), MaxQuestions)
	answer, err := g.llm.Complete(ctx, cfg.Model, cfg, buildMessages(limit, passages))
	if err != nil {
		return nil, err
	}
	return parseQuestions(answer, limit), nil
}

func (g *Generator) passages(window int) []string {
	sample := g.index.Sample(sampleSize)
	if len(sample) == 0 {
		return nil
	}
	scored := make([]model.ScoredChunk, len(sample))
	for i, c := range sample {
		scored[i] = model.ScoredChunk{Chunk: c}
	}
	packed := assembler.Assemble(scored, window)
	if len(packed) == 0 {
		// no whole chunk fits; a prefix still gives the model something to ground on
		runes := []rune(sample[0].Text)
		if len(runes) > window {
			runes = runes[:window]
		}
		return []string{string(runes)}
	}
	out := make([]string, len(packed))
	for i, sc := range packed {
		out[i] = sc.Chunk.Text
	}
	return out
}

func buildMessages(limit int, passages []string) []ai.ChatMessage {
	var b strings.Builder
	fmt.Fprintf(&b, "Write %d distinct open-ended questions that can be answered using only the passages below. ", limit)
	b.WriteString("Output one question per line without numbering or any other text.\n\nPassages:")
	for _, p := range passages {
		b.WriteString("\n---\n")
		b.WriteString(p)
	}
	b.WriteString("\n---")
	return []ai.ChatMessage{
		{Role: "system", Content: "You write study questions about documents."},
		{Role: "user", Content: b.String()},
	}
}

func parseQuestions(answer string, limit int) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, limit)
	for _, line := range strings.Split(answer, "\n") {
		q := strings.TrimSpace(listMarker.ReplaceAllString(line, ""))
		q = strings.Trim(q, "\"*")
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		key := strings.ToLower(q)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, q)
		if len(out) == limit {
			break
		}
	}
	return out
}
