package model

// Turn is one caller-held chat history entry.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Citation maps supporting evidence back to its source location.
type Citation struct {
	Tag        string `json:"tag"`
	Document   string `json:"document"`
	ChunkIndex int    `json:"chunkIndex"`
	Page       int    `json:"page,omitempty"`
	Section    string `json:"section,omitempty"`
	Explicit   bool   `json:"explicit"`
}

// Source is a retrieved chunk as reported to callers.
type Source struct {
	Document   string  `json:"document"`
	ChunkIndex int     `json:"chunkIndex"`
	Page       int     `json:"page,omitempty"`
	Section    string  `json:"section,omitempty"`
	Preview    string  `json:"preview"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

// QueryResult is the ephemeral outcome of one question.
type QueryResult struct {
	Question  string     `json:"question"`
	Answer    string     `json:"answer"`
	Model     string     `json:"model,omitempty"`
	Sources   []Source   `json:"sources"`
	Citations []Citation `json:"citations"`
	NoContext bool       `json:"noContext"`
}

// NewSource converts a scored chunk into its caller-facing form.
func NewSource(sc ScoredChunk) Source {
	return Source{
		Document:   sc.Chunk.DocumentName,
		ChunkIndex: sc.Chunk.Index,
		Page:       sc.Chunk.Page,
		Section:    sc.Chunk.Section,
		Preview:    sc.Chunk.Preview,
		Text:       sc.Chunk.Text,
		Score:      sc.Score,
	}
}

// Sources converts a ranked list into caller-facing sources, preserving order.
func Sources(ranked []ScoredChunk) []Source {
	out := make([]Source, len(ranked))
	for i := range ranked {
		out[i] = NewSource(ranked[i])
	}
	return out
}
