package synthesizer

import (
	"docqa/internal/model"
	"docqa/internal/pkg/textutil"
)

const completenessTerms = 20

// Scores rates an answer on [0, 1] axes. Overall is their mean.
type Scores struct {
	Relevance    float64 `json:"relevance"`
	Faithfulness float64 `json:"faithfulness"`
	Completeness float64 `json:"completeness"`
	Overall      float64 `json:"overall"`
}

// Score rates answer against the question and the supplied context using
// term overlap:
//   - relevance: share of question terms present in the answer
//   - faithfulness: share of answer terms present in the context
//   - completeness: share of the most frequent context terms present in the answer
func Score(question, answer string, chunks []model.ScoredChunk) Scores {
	contextText := joinTexts(chunks)
	answerTerms := textutil.TermSet(answer)
	if len(answerTerms) == 0 {
		return Scores{}
	}
	contextTerms := textutil.TermSet(contextText)

	s := Scores{
		Relevance:    coverage(setKeys(textutil.TermSet(question)), answerTerms),
		Faithfulness: coverage(setKeys(answerTerms), contextTerms),
		Completeness: coverage(textutil.TopTerms(contextText, completenessTerms), answerTerms),
	}
	s.Overall = (s.Relevance + s.Faithfulness + s.Completeness) / 3
	return s
}

// coverage is the fraction of terms found in set; 0 when terms is empty.
func coverage(terms []string, set map[string]struct{}) float64 {
	if len(terms) == 0 {
		return 0
	}
	hit := 0
	for _, t := range terms {
		if _, ok := set[t]; ok {
			hit++
		}
	}
	return float64(hit) / float64(len(terms))
}

func setKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

func joinTexts(chunks []model.ScoredChunk) string {
	n := 0
	for _, sc := range chunks {
		n += len(sc.Chunk.Text) + 1
	}
	buf := make([]byte, 0, n)
	for _, sc := range chunks {
		buf = append(buf, sc.Chunk.Text...)
		buf = append(buf, '\n')
	}
	return string(buf)
}
