// Package synthesizer turns assembled context into a cited answer.
package synthesizer

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"docqa/internal/ai"
	"docqa/internal/model"
)

const (
	defaultTimeout  = 60 * time.Second
	maxHistoryTurns = 10
)

const systemPrompt = "You are a helpful assistant. Answer the user's question based only on the following context. " +
	"Each context passage starts with a tag such as [S1]. Cite the passages you rely on by writing their tags, e.g. [S2]. " +
	"If the context does not contain enough information, say so. Do not make up facts."

var (
	tagGroupPattern = regexp.MustCompile(`\[(S\d+(?:\s*[,;]\s*S?\d+)*)\]`)
	tagPattern      = regexp.MustCompile(`S?(\d+)`)
)

type Synthesizer struct {
	llm     ai.Completer
	timeout time.Duration
}

func New(llm ai.Completer, timeout time.Duration) *Synthesizer {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Synthesizer{llm: llm, timeout: timeout}
}

// Synthesize asks cfg.Model to answer question from chunks. On failure the
// returned result is still non-nil and carries the sources, and the error
// matches model.ErrGenerationTimeout or model.ErrGenerationFailed.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, history []model.Turn, chunks []model.ScoredChunk, cfg model.RuntimeConfig) (*model.QueryResult, error) {
	result := &model.QueryResult{
		Question:  question,
		Model:     cfg.Model,
		Sources:   model.Sources(chunks),
		Citations: []model.Citation{},
	}
	answer, err := s.Complete(ctx, cfg.Model, cfg, BuildMessages(question, history, chunks))
	if err != nil {
		return result, err
	}
	result.Answer = answer
	result.Citations = ExtractCitations(answer, chunks)
	return result, nil
}

// Complete runs one bounded model call and classifies its failure as
// model.ErrGenerationTimeout or model.ErrGenerationFailed.
func (s *Synthesizer) Complete(ctx context.Context, modelName string, cfg model.RuntimeConfig, messages []ai.ChatMessage) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	answer, err := s.llm.Complete(callCtx, ai.ChatConfig{
		Model:       modelName,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}, messages)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: model %s after %s: %w", model.ErrGenerationTimeout, modelName, s.timeout, err)
		}
		return "", fmt.Errorf("%w: model %s: %w", model.ErrGenerationFailed, modelName, err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", fmt.Errorf("%w: model %s returned an empty answer", model.ErrGenerationFailed, modelName)
	}
	return answer, nil
}

// BuildMessages lays out the system prompt, the most recent history turns and
// the tagged context with the question.
func BuildMessages(question string, history []model.Turn, chunks []model.ScoredChunk) []ai.ChatMessage {
	messages := []ai.ChatMessage{{Role: "system", Content: systemPrompt}}

	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	for _, turn := range history {
		role := strings.ToLower(strings.TrimSpace(turn.Role))
		if role != "user" && role != "assistant" {
			continue
		}
		if strings.TrimSpace(turn.Content) == "" {
			continue
		}
		messages = append(messages, ai.ChatMessage{Role: role, Content: turn.Content})
	}

	var b strings.Builder
	b.WriteString("Context:")
	for n, sc := range chunks {
		b.WriteString("\n---\n")
		b.WriteString(Tag(n))
		b.WriteString(" ")
		b.WriteString(locatorLabel(sc.Chunk))
		b.WriteString("\n")
		b.WriteString(sc.Chunk.Text)
	}
	if len(chunks) > 0 {
		b.WriteString("\n---")
	}
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer:")
	messages = append(messages, ai.ChatMessage{Role: "user", Content: b.String()})
	return messages
}

// Tag is the citation tag of the n-th (0-based) context passage.
func Tag(n int) string {
	return "[S" + strconv.Itoa(n+1) + "]"
}

func locatorLabel(c model.Chunk) string {
	parts := []string{"document: " + c.DocumentName}
	if c.Page > 0 {
		parts = append(parts, "page: "+strconv.Itoa(c.Page))
	}
	if c.Section != "" {
		parts = append(parts, "section: "+c.Section)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// ExtractCitations maps the tags referenced in answer back to chunks, in
// order of first mention. Without any valid tag every supplied chunk is
// cited with Explicit unset.
func ExtractCitations(answer string, chunks []model.ScoredChunk) []model.Citation {
	seen := make(map[int]struct{})
	var cited []int
	for _, group := range tagGroupPattern.FindAllStringSubmatch(answer, -1) {
		for _, m := range tagPattern.FindAllStringSubmatch(group[1], -1) {
			n, err := strconv.Atoi(m[1])
			if err != nil || n < 1 || n > len(chunks) {
				continue
			}
			if _, dup := seen[n-1]; dup {
				continue
			}
			seen[n-1] = struct{}{}
			cited = append(cited, n-1)
		}
	}

	out := make([]model.Citation, 0, len(chunks))
	if len(cited) == 0 {
		for n := range chunks {
			out = append(out, citation(n, chunks[n].Chunk, false))
		}
		return out
	}
	for _, n := range cited {
		out = append(out, citation(n, chunks[n].Chunk, true))
	}
	return out
}

func citation(n int, c model.Chunk, explicit bool) model.Citation {
	return model.Citation{
		Tag:        Tag(n),
		Document:   c.DocumentName,
		ChunkIndex: c.Index,
		Page:       c.Page,
		Section:    c.Section,
		Explicit:   explicit,
	}
}
