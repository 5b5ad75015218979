package vectorindex

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/model"
)

func doc(name, embeddingModel string) model.Document {
	return model.Document{Name: name, Version: 1, EmbeddingModel: embeddingModel}
}

func chunk(docName string, idx int, vec ...float32) model.Chunk {
	return model.Chunk{
		ChunkID:      fmt.Sprintf("%s-%d", docName, idx),
		DocumentName: docName,
		Index:        idx,
		Text:         fmt.Sprintf("%s chunk %d", docName, idx),
		Vector:       vec,
	}
}

func TestSearch_OnlyChunkIsFound(t *testing.T) {
	idx := New()
	require.NoError(t, idx.ReplaceDocument(doc("a.txt", "m"), []model.Chunk{chunk("a.txt", 0, 0.3, 0.4, 0.5)}))

	res, err := idx.Search([]float32{0.3, 0.4, 0.5}, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "a.txt", res[0].Chunk.DocumentName)
	assert.InDelta(t, 1.0, res[0].Score, 1e-9)
}

func TestSearch_RankingAndTies(t *testing.T) {
	idx := New()
	require.NoError(t, idx.ReplaceDocument(doc("a.txt", "m"), []model.Chunk{
		chunk("a.txt", 0, 1, 0),
		chunk("a.txt", 1, 0, 1),
		chunk("a.txt", 2, 1, 0),
	}))
	require.NoError(t, idx.ReplaceDocument(doc("b.txt", "m"), []model.Chunk{
		chunk("b.txt", 0, 1, 1),
	}))

	res, err := idx.Search([]float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, 0, res[0].Chunk.Index)
	assert.Equal(t, "a.txt", res[0].Chunk.DocumentName)
	assert.Equal(t, 2, res[1].Chunk.Index)
	assert.Equal(t, "b.txt", res[2].Chunk.DocumentName)
	assert.GreaterOrEqual(t, res[0].Score, res[1].Score)
	assert.Greater(t, res[1].Score, res[2].Score)
}

func TestSearch_EmptyIndexAndZeroK(t *testing.T) {
	idx := New()
	res, err := idx.Search([]float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, res)

	require.NoError(t, idx.Insert(chunk("a.txt", 0, 1, 0)))
	res, err = idx.Search([]float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestSearch_DimensionMismatch(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Insert(chunk("a.txt", 0, 1, 0)))
	_, err := idx.Search([]float32{1, 0, 0}, 1)
	assert.True(t, errors.Is(err, model.ErrInvalidInput))
}

func TestInsert_RegistersDocument(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Insert(chunk("a.txt", 0, 1, 0)))
	require.NoError(t, idx.Insert(chunk("a.txt", 1, 0, 1)))

	d, ok := idx.Document("a.txt")
	require.True(t, ok)
	assert.Equal(t, 2, d.ChunkCount)
	assert.Error(t, idx.Insert(chunk("a.txt", 2, 1, 0, 0)))
	assert.Error(t, idx.Insert(model.Chunk{DocumentName: "a.txt"}))
}

func TestReplaceDocument_SwapsChunks(t *testing.T) {
	idx := New()
	require.NoError(t, idx.ReplaceDocument(doc("a.txt", "m"), []model.Chunk{
		chunk("a.txt", 0, 1, 0), chunk("a.txt", 1, 0, 1),
	}))
	d := doc("a.txt", "m")
	d.Version = 2
	require.NoError(t, idx.ReplaceDocument(d, []model.Chunk{chunk("a.txt", 0, 1, 1)}))

	docs, chunks := idx.Stats()
	assert.Equal(t, 1, docs)
	assert.Equal(t, 1, chunks)
	got, _ := idx.Document("a.txt")
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, 1, got.ChunkCount)
}

func TestReplaceDocument_EmbeddingModelMismatch(t *testing.T) {
	idx := New()
	require.NoError(t, idx.ReplaceDocument(doc("a.txt", "m1"), []model.Chunk{chunk("a.txt", 0, 1, 0)}))

	err := idx.ReplaceDocument(doc("b.txt", "m2"), []model.Chunk{chunk("b.txt", 0, 1, 0)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidConfiguration))
	var cfgErr *model.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "embeddingModel", cfgErr.Field)

	// the only document may be re-ingested under a new model
	require.NoError(t, idx.ReplaceDocument(doc("a.txt", "m2"), []model.Chunk{chunk("a.txt", 0, 1, 0, 0)}))
	assert.Equal(t, "m2", idx.EmbeddingModel())
	assert.Equal(t, 3, idx.Dimension())
}

func TestDeleteByDocument(t *testing.T) {
	idx := New()
	require.NoError(t, idx.ReplaceDocument(doc("a.txt", "m"), []model.Chunk{chunk("a.txt", 0, 1, 0)}))
	require.NoError(t, idx.ReplaceDocument(doc("b.txt", "m"), []model.Chunk{chunk("b.txt", 0, 1, 0)}))

	_, err := idx.DeleteByDocument("a.txt")
	require.NoError(t, err)

	res, err := idx.Search([]float32{1, 0}, 10)
	require.NoError(t, err)
	for _, r := range res {
		assert.NotEqual(t, "a.txt", r.Chunk.DocumentName)
	}

	_, err = idx.DeleteByDocument("a.txt")
	assert.True(t, errors.Is(err, model.ErrDocumentNotFound))
}

func TestDeleteByDocument_ConcurrentSearchSeesAllOrNothing(t *testing.T) {
	idx := New()
	const perDoc = 50
	var target []model.Chunk
	for n := 0; n < perDoc; n++ {
		target = append(target, chunk("gone.txt", n, 1, 0))
	}
	require.NoError(t, idx.ReplaceDocument(doc("gone.txt", "m"), target))
	require.NoError(t, idx.ReplaceDocument(doc("kept.txt", "m"), []model.Chunk{chunk("kept.txt", 0, 0, 1)}))

	var wg sync.WaitGroup
	partial := make(chan int, 64)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < 200; n++ {
				res, err := idx.Search([]float32{1, 0}, perDoc+1)
				if err != nil {
					continue
				}
				count := 0
				for _, r := range res {
					if r.Chunk.DocumentName == "gone.txt" {
						count++
					}
				}
				if count != 0 && count != perDoc {
					partial <- count
				}
			}
		}()
	}
	_, err := idx.DeleteByDocument("gone.txt")
	require.NoError(t, err)
	wg.Wait()
	close(partial)

	assert.Empty(t, partial)
	res, err := idx.Search([]float32{1, 0}, perDoc+1)
	require.NoError(t, err)
	for _, r := range res {
		assert.Equal(t, "kept.txt", r.Chunk.DocumentName)
	}
}

func TestSnapshotRebuildRoundTrip(t *testing.T) {
	idx := New()
	a := doc("a.txt", "m")
	require.NoError(t, idx.ReplaceDocument(a, []model.Chunk{chunk("a.txt", 0, 1, 0), chunk("a.txt", 1, 0.5, 0.5)}))
	require.NoError(t, idx.ReplaceDocument(doc("b.txt", "m"), []model.Chunk{chunk("b.txt", 0, 0, 1)}))
	snap := idx.Snapshot()

	other := New()
	require.NoError(t, other.Rebuild(snap))
	assert.Equal(t, snap, other.Snapshot())
	assert.Equal(t, "m", other.EmbeddingModel())
	assert.Equal(t, idx.Len(), other.Len())

	// snapshot is a deep copy
	snap.Chunks[0].Vector[0] = 42
	again := idx.Snapshot()
	assert.Equal(t, float32(1), again.Chunks[0].Vector[0])
}

func TestRebuild_FailureKeepsPriorState(t *testing.T) {
	idx := New()
	require.NoError(t, idx.ReplaceDocument(doc("a.txt", "m"), []model.Chunk{chunk("a.txt", 0, 1, 0)}))
	before := idx.Snapshot()

	bad := []model.IndexSnapshot{
		{Documents: []model.Document{{Name: "x", ChunkCount: 1}}, Chunks: []model.Chunk{chunk("y", 0, 1)}},
		{Documents: []model.Document{{Name: "x", ChunkCount: 1}}, Chunks: []model.Chunk{chunk("x", 0)}},
		{Documents: []model.Document{{Name: "x", ChunkCount: 2}}, Chunks: []model.Chunk{chunk("x", 0, 1, 0), chunk("x", 1, 1)}},
		{Documents: []model.Document{{Name: "x", ChunkCount: 3}}, Chunks: []model.Chunk{chunk("x", 0, 1), chunk("x", 1, 1)}},
		{Documents: []model.Document{{Name: "x", ChunkCount: 2}}, Chunks: []model.Chunk{chunk("x", 0, 1), chunk("x", 0, 1)}},
		{Documents: []model.Document{{Name: "x", ChunkCount: 1}}},
		{Documents: []model.Document{{Name: "x", ChunkCount: 1, EmbeddingModel: "m1"}, {Name: "y", ChunkCount: 1, EmbeddingModel: "m2"}},
			Chunks: []model.Chunk{chunk("x", 0, 1), chunk("y", 0, 1)}},
	}
	for n, snap := range bad {
		err := idx.Rebuild(snap)
		require.Error(t, err, "case %d", n)
		assert.True(t, errors.Is(err, model.ErrIndexCorrupt), "case %d", n)
		assert.Equal(t, before, idx.Snapshot(), "case %d", n)
	}
}

func TestClear(t *testing.T) {
	idx := New()
	require.NoError(t, idx.ReplaceDocument(doc("a.txt", "m"), []model.Chunk{chunk("a.txt", 0, 1, 0), chunk("a.txt", 1, 0, 1)}))

	docs, chunks := idx.Clear()
	assert.Equal(t, 1, docs)
	assert.Equal(t, 2, chunks)
	assert.Equal(t, 0, idx.Len())
	assert.Empty(t, idx.EmbeddingModel())
	require.NoError(t, idx.ReplaceDocument(doc("b.txt", "other"), []model.Chunk{chunk("b.txt", 0, 1, 0, 0)}))
}

func TestSample_Stratified(t *testing.T) {
	idx := New()
	var big []model.Chunk
	for n := 0; n < 20; n++ {
		big = append(big, chunk("big.txt", n, 1, 0))
	}
	require.NoError(t, idx.ReplaceDocument(doc("big.txt", "m"), big))
	require.NoError(t, idx.ReplaceDocument(doc("small.txt", "m"), []model.Chunk{chunk("small.txt", 0, 0, 1)}))

	got := idx.Sample(6)
	require.Len(t, got, 6)
	perDoc := map[string]int{}
	for _, c := range got {
		perDoc[c.DocumentName]++
		assert.Nil(t, c.Vector)
	}
	assert.Equal(t, 5, perDoc["big.txt"])
	assert.Equal(t, 1, perDoc["small.txt"])
	assert.Equal(t, 0, got[0].Index)
	assert.Equal(t, 4, got[1].Index)

	assert.Len(t, idx.Sample(100), 21)
	assert.Empty(t, New().Sample(5))
}
