// Package vectorindex is an in-memory cosine-similarity index over chunk
// vectors. A single RWMutex makes every write (insert, replace, delete,
// rebuild, clear) exclusive while searches share the read lock, so a search
// sees a document either fully present or fully absent.
package vectorindex

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"docqa/internal/model"
)

type entry struct {
	chunk model.Chunk
	norm  float64
	seq   uint64
}

type Index struct {
	mu             sync.RWMutex
	dim            int
	embeddingModel string
	seq            uint64
	docs           map[string]model.Document
	entries        []entry // ascending seq
}

func New() *Index {
	return &Index{docs: make(map[string]model.Document)}
}

// Insert adds a single chunk. The owning document is registered on first use.
func (i *Index) Insert(chunk model.Chunk) error {
	if chunk.DocumentName == "" {
		return fmt.Errorf("%w: chunk has no document name", model.ErrInvalidInput)
	}
	if len(chunk.Vector) == 0 {
		return fmt.Errorf("%w: chunk %s/%d has no vector", model.ErrInvalidInput, chunk.DocumentName, chunk.Index)
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if len(i.entries) > 0 && len(chunk.Vector) != i.dim {
		return fmt.Errorf("%w: vector dimension %d, index dimension %d", model.ErrInvalidInput, len(chunk.Vector), i.dim)
	}
	if len(i.entries) == 0 {
		i.dim = len(chunk.Vector)
	}
	doc, ok := i.docs[chunk.DocumentName]
	if !ok {
		doc = model.Document{Name: chunk.DocumentName, Version: 1}
	}
	doc.ChunkCount++
	i.docs[chunk.DocumentName] = doc
	i.appendLocked(chunk)
	return nil
}

// ReplaceDocument swaps every chunk of doc.Name for chunks in one write.
// The document does not need to exist beforehand.
func (i *Index) ReplaceDocument(doc model.Document, chunks []model.Chunk) error {
	if doc.Name == "" {
		return fmt.Errorf("%w: document has no name", model.ErrInvalidInput)
	}
	if len(chunks) == 0 {
		return fmt.Errorf("%w: document %q has no chunks", model.ErrInvalidInput, doc.Name)
	}
	dim := len(chunks[0].Vector)
	for _, c := range chunks {
		if len(c.Vector) == 0 || len(c.Vector) != dim {
			return fmt.Errorf("%w: chunk %d of %q has vector dimension %d, want %d", model.ErrInvalidInput, c.Index, doc.Name, len(c.Vector), dim)
		}
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.compatibleLocked(doc.Name, doc.EmbeddingModel, dim); err != nil {
		return err
	}

	i.removeLocked(doc.Name)
	if len(i.entries) == 0 {
		i.dim = dim
		i.embeddingModel = doc.EmbeddingModel
	}
	doc.ChunkCount = len(chunks)
	i.docs[doc.Name] = doc
	for _, c := range chunks {
		c.DocumentName = doc.Name
		i.appendLocked(c)
	}
	return nil
}

// CheckCompatible reports whether a document embedded with embeddingModel at
// dimension dim may be stored under name. A dim of 0 skips the dimension check.
func (i *Index) CheckCompatible(name, embeddingModel string, dim int) error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.compatibleLocked(name, embeddingModel, dim)
}

func (i *Index) compatibleLocked(name, embeddingModel string, dim int) error {
	others := len(i.entries)
	if doc, ok := i.docs[name]; ok {
		others -= doc.ChunkCount
	}
	if others == 0 {
		return nil
	}
	if i.embeddingModel != "" && embeddingModel != "" && embeddingModel != i.embeddingModel {
		return &model.ConfigError{
			Field:  "embeddingModel",
			Reason: fmt.Sprintf("is %q but the index was built with %q; clear the corpus before switching", embeddingModel, i.embeddingModel),
		}
	}
	if dim > 0 && dim != i.dim {
		return fmt.Errorf("%w: vector dimension %d, index dimension %d", model.ErrEmbeddingUnavailable, dim, i.dim)
	}
	return nil
}

// DeleteByDocument removes a document and all of its chunks.
func (i *Index) DeleteByDocument(name string) (model.Document, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	doc, ok := i.docs[name]
	if !ok {
		return model.Document{}, fmt.Errorf("%w: %s", model.ErrDocumentNotFound, name)
	}
	i.removeLocked(name)
	return doc, nil
}

// Search returns at most k chunks by descending cosine similarity. Equal
// scores keep insertion order.
func (i *Index) Search(query []float32, k int) ([]model.ScoredChunk, error) {
	if k <= 0 {
		return nil, nil
	}
	qnorm := magnitude(query)

	i.mu.RLock()
	defer i.mu.RUnlock()

	if len(i.entries) == 0 {
		return nil, nil
	}
	if len(query) != i.dim {
		return nil, fmt.Errorf("%w: query dimension %d, index dimension %d", model.ErrInvalidInput, len(query), i.dim)
	}
	if qnorm == 0 {
		return nil, nil
	}

	scored := make([]model.ScoredChunk, 0, len(i.entries))
	for _, e := range i.entries {
		if e.norm == 0 {
			continue
		}
		scored = append(scored, model.ScoredChunk{
			Chunk: e.chunk,
			Score: dot(query, e.chunk.Vector) / (qnorm * e.norm),
		})
	}
	sort.SliceStable(scored, func(a, b int) bool {
		return scored[a].Score > scored[b].Score
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// Rebuild replaces the whole index with snap. The snapshot is fully validated
// before the swap; on error the index is unchanged.
func (i *Index) Rebuild(snap model.IndexSnapshot) error {
	docs := make(map[string]model.Document, len(snap.Documents))
	embeddingModel := ""
	for _, d := range snap.Documents {
		if d.Name == "" {
			return fmt.Errorf("%w: document without name", model.ErrIndexCorrupt)
		}
		if _, dup := docs[d.Name]; dup {
			return fmt.Errorf("%w: duplicate document %q", model.ErrIndexCorrupt, d.Name)
		}
		if embeddingModel == "" {
			embeddingModel = d.EmbeddingModel
		} else if d.EmbeddingModel != "" && d.EmbeddingModel != embeddingModel {
			return fmt.Errorf("%w: documents embedded with %q and %q", model.ErrIndexCorrupt, embeddingModel, d.EmbeddingModel)
		}
		docs[d.Name] = d
	}

	counts := make(map[string]int, len(docs))
	seen := make(map[string]struct{}, len(snap.Chunks))
	dim := 0
	entries := make([]entry, 0, len(snap.Chunks))
	for n, c := range snap.Chunks {
		if _, ok := docs[c.DocumentName]; !ok {
			return fmt.Errorf("%w: chunk %d references unknown document %q", model.ErrIndexCorrupt, n, c.DocumentName)
		}
		if len(c.Vector) == 0 {
			return fmt.Errorf("%w: chunk %d of %q has no vector", model.ErrIndexCorrupt, c.Index, c.DocumentName)
		}
		if dim == 0 {
			dim = len(c.Vector)
		} else if len(c.Vector) != dim {
			return fmt.Errorf("%w: chunk %d of %q has dimension %d, want %d", model.ErrIndexCorrupt, c.Index, c.DocumentName, len(c.Vector), dim)
		}
		key := fmt.Sprintf("%s\x00%d", c.DocumentName, c.Index)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: duplicate chunk %d of %q", model.ErrIndexCorrupt, c.Index, c.DocumentName)
		}
		seen[key] = struct{}{}
		counts[c.DocumentName]++

		c.Vector = append([]float32(nil), c.Vector...)
		entries = append(entries, entry{chunk: c, norm: magnitude(c.Vector), seq: uint64(n + 1)})
	}
	for name, d := range docs {
		if counts[name] == 0 {
			return fmt.Errorf("%w: document %q has no chunks", model.ErrIndexCorrupt, name)
		}
		if d.ChunkCount != counts[name] {
			return fmt.Errorf("%w: document %q records %d chunks, snapshot holds %d", model.ErrIndexCorrupt, name, d.ChunkCount, counts[name])
		}
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	i.docs = docs
	i.entries = entries
	i.seq = uint64(len(entries))
	i.dim = dim
	i.embeddingModel = embeddingModel
	return nil
}

// Snapshot returns a deep copy of the index contents.
func (i *Index) Snapshot() model.IndexSnapshot {
	i.mu.RLock()
	defer i.mu.RUnlock()

	snap := model.IndexSnapshot{
		Documents: i.documentsLocked(),
		Chunks:    make([]model.Chunk, len(i.entries)),
	}
	for n, e := range i.entries {
		c := e.chunk
		c.Vector = append([]float32(nil), e.chunk.Vector...)
		snap.Chunks[n] = c
	}
	return snap
}

// Clear removes everything and forgets the embedding model and dimension.
func (i *Index) Clear() (documents, chunks int) {
	i.mu.Lock()
	defer i.mu.Unlock()

	documents, chunks = len(i.docs), len(i.entries)
	i.docs = make(map[string]model.Document)
	i.entries = nil
	i.dim = 0
	i.embeddingModel = ""
	return documents, chunks
}

// Documents lists documents ordered by name.
func (i *Index) Documents() []model.Document {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.documentsLocked()
}

func (i *Index) Document(name string) (model.Document, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	d, ok := i.docs[name]
	return d, ok
}

// Stats returns the document and chunk totals.
func (i *Index) Stats() (documents, chunks int) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.docs), len(i.entries)
}

func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.entries)
}

// EmbeddingModel is the model the current contents were embedded with; empty
// when the index is empty.
func (i *Index) EmbeddingModel() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.embeddingModel
}

func (i *Index) Dimension() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.dim
}

// Sample picks up to limit chunks spread across documents: quotas are handed
// out round-robin over documents ordered by name, then each document
// contributes evenly spaced chunks.
func (i *Index) Sample(limit int) []model.Chunk {
	if limit <= 0 {
		return nil
	}
	i.mu.RLock()
	defer i.mu.RUnlock()

	byDoc := make(map[string][]model.Chunk, len(i.docs))
	for _, e := range i.entries {
		c := e.chunk
		c.Vector = nil
		byDoc[c.DocumentName] = append(byDoc[c.DocumentName], c)
	}
	names := make([]string, 0, len(byDoc))
	for name, chunks := range byDoc {
		sort.Slice(chunks, func(a, b int) bool { return chunks[a].Index < chunks[b].Index })
		names = append(names, name)
	}
	sort.Strings(names)

	quota := make(map[string]int, len(names))
	for assigned := 0; assigned < limit; {
		progressed := false
		for _, name := range names {
			if assigned == limit {
				break
			}
			if quota[name] < len(byDoc[name]) {
				quota[name]++
				assigned++
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}

	var out []model.Chunk
	for _, name := range names {
		chunks, q := byDoc[name], quota[name]
		for n := 0; n < q; n++ {
			out = append(out, chunks[n*len(chunks)/q])
		}
	}
	return out
}

func (i *Index) documentsLocked() []model.Document {
	out := make([]model.Document, 0, len(i.docs))
	for _, d := range i.docs {
		out = append(out, d)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

func (i *Index) appendLocked(c model.Chunk) {
	i.seq++
	i.entries = append(i.entries, entry{chunk: c, norm: magnitude(c.Vector), seq: i.seq})
}

func (i *Index) removeLocked(name string) {
	if _, ok := i.docs[name]; !ok {
		return
	}
	delete(i.docs, name)
	kept := i.entries[:0:0]
	for _, e := range i.entries {
		if e.chunk.DocumentName != name {
			kept = append(kept, e)
		}
	}
	i.entries = kept
	if len(i.entries) == 0 {
		i.dim = 0
		i.embeddingModel = ""
	}
}

func dot(a, b []float32) float64 {
	var s float64
	for n := range a {
		s += float64(a[n]) * float64(b[n])
	}
	return s
}

func magnitude(v []float32) float64 { return math.Sqrt(dot(v, v)) }
