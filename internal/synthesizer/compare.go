package synthesizer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"docqa/internal/model"
)

const MaxCompareModels = 5

// ModelResult is one model's answer in a comparison. Failed models keep their
// error and score zero.
type ModelResult struct {
	Model     string           `json:"model"`
	Answer    string           `json:"answer"`
	Citations []model.Citation `json:"citations"`
	Scores    Scores           `json:"scores"`
	LatencyMs int64            `json:"latencyMs"`
	Error     string           `json:"error,omitempty"`

	err error
}

// Comparison holds all model results ordered by overall score, best first.
type Comparison struct {
	Question  string         `json:"question"`
	Primary   *ModelResult   `json:"primary"`
	Results   []ModelResult  `json:"results"`
	Sources   []model.Source `json:"sources"`
	NoContext bool           `json:"noContext"`
}

// Compare runs every model against the same context concurrently and ranks
// the answers. Primary is the best successful answer; when every model fails
// the comparison is still returned together with the generation error.
func (s *Synthesizer) Compare(ctx context.Context, question string, chunks []model.ScoredChunk, cfg model.RuntimeConfig, models []string) (*Comparison, error) {
	models = normalizeModels(models)
	if len(models) == 0 {
		return nil, fmt.Errorf("%w: at least one model is required", model.ErrInvalidInput)
	}
	if len(models) > MaxCompareModels {
		return nil, fmt.Errorf("%w: at most %d models can be compared", model.ErrInvalidInput, MaxCompareModels)
	}

	messages := BuildMessages(question, nil, chunks)
	results := make([]ModelResult, len(models))

	var g errgroup.Group
	for n, name := range models {
		g.Go(func() error {
			start := time.Now()
			answer, err := s.Complete(ctx, name, cfg, messages)
			r := ModelResult{Model: name, LatencyMs: time.Since(start).Milliseconds(), Citations: []model.Citation{}}
			if err != nil {
				r.Error = err.Error()
				r.err = err
			} else {
				r.Answer = answer
				r.Citations = ExtractCitations(answer, chunks)
				r.Scores = Score(question, answer, chunks)
			}
			results[n] = r
			return nil
		})
	}
	_ = g.Wait()

	sort.SliceStable(results, func(a, b int) bool {
		if (results[a].err == nil) != (results[b].err == nil) {
			return results[a].err == nil
		}
		return results[a].Scores.Overall > results[b].Scores.Overall
	})

	cmp := &Comparison{
		Question: question,
		Results:  results,
		Sources:  model.Sources(chunks),
	}
	if results[0].err == nil {
		cmp.Primary = &cmp.Results[0]
		return cmp, nil
	}
	return cmp, allFailed(results)
}

func allFailed(results []ModelResult) error {
	for _, r := range results {
		if !errors.Is(r.err, model.ErrGenerationTimeout) {
			return fmt.Errorf("%w: all %d models failed", model.ErrGenerationFailed, len(results))
		}
	}
	return fmt.Errorf("%w: all %d models timed out", model.ErrGenerationTimeout, len(results))
}

func normalizeModels(models []string) []string {
	seen := make(map[string]struct{}, len(models))
	out := make([]string, 0, len(models))
	for _, m := range models {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}
