package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/model"
	"docqa/internal/platform/sqlite"
	"docqa/internal/vectorindex"
)

func newStore(t *testing.T) *SQLiteSnapshotStore {
	t.Helper()
	ctx := context.Background()
	db, err := sqlite.New(ctx, filepath.Join(t.TempDir(), "docqa.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := NewSQLiteSnapshotStore(ctx, db)
	require.NoError(t, err)
	return store
}

func sampleDoc(name string, version int, vectors ...[]float32) (model.Document, []model.Chunk) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	doc := model.Document{
		Name: name, Format: "txt", SizeBytes: 1234, Version: version, ChunkCount: len(vectors),
		ChunkSize: 100, ChunkOverlap: 20, EmbeddingModel: "hash-384", IngestedAt: at,
	}
	chunks := make([]model.Chunk, len(vectors))
	for i, v := range vectors {
		chunks[i] = model.Chunk{
			ChunkID:      name + "-" + string(rune('a'+i)) + "-" + string(rune('0'+version)),
			DocumentName: name,
			Index:        i,
			Text:         "text of " + name,
			Page:         i + 1,
			Section:      "Intro",
			Preview:      "text of",
			CreatedAt:    at,
			Vector:       v,
		}
	}
	return doc, chunks
}

func TestSQLiteSnapshotStore_RoundTripThroughIndex(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	doc, chunks := sampleDoc("a.txt", 1, []float32{1, 0, 0.5}, []float32{0, 1, -0.25})
	require.NoError(t, store.SaveDocument(ctx, doc, chunks))
	doc2, chunks2 := sampleDoc("b.md", 1, []float32{0.5, 0.5, 0.5})
	require.NoError(t, store.SaveDocument(ctx, doc2, chunks2))

	snap, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Documents, 2)
	require.Len(t, snap.Chunks, 3)
	assert.Equal(t, doc.IngestedAt, snap.Documents[0].IngestedAt)
	assert.Equal(t, []float32{0, 1, -0.25}, snap.Chunks[1].Vector)
	assert.Equal(t, 2, snap.Chunks[1].Page)
	assert.Equal(t, "Intro", snap.Chunks[1].Section)

	idx := vectorindex.New()
	require.NoError(t, idx.Rebuild(snap))
	assert.Equal(t, 3, idx.Len())

	rebuilt := idx.Snapshot()
	require.Len(t, rebuilt.Chunks, 3)
	for i := range snap.Chunks {
		assert.Equal(t, snap.Chunks[i].Text, rebuilt.Chunks[i].Text)
		assert.Equal(t, snap.Chunks[i].Vector, rebuilt.Chunks[i].Vector)
		assert.Equal(t, snap.Chunks[i].ChunkID, rebuilt.Chunks[i].ChunkID)
	}
}

func TestSQLiteSnapshotStore_SaveReplaces(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	doc, chunks := sampleDoc("a.txt", 1, []float32{1, 0}, []float32{0, 1})
	require.NoError(t, store.SaveDocument(ctx, doc, chunks))
	doc, chunks = sampleDoc("a.txt", 2, []float32{1, 1})
	require.NoError(t, store.SaveDocument(ctx, doc, chunks))

	snap, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Documents, 1)
	assert.Equal(t, 2, snap.Documents[0].Version)
	assert.Len(t, snap.Chunks, 1)
}

func TestSQLiteSnapshotStore_DeleteAndClear(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		doc, chunks := sampleDoc(name, 1, []float32{1, 0})
		require.NoError(t, store.SaveDocument(ctx, doc, chunks))
	}
	require.NoError(t, store.DeleteDocument(ctx, "b.txt"))

	snap, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Documents, 2)
	for _, c := range snap.Chunks {
		assert.NotEqual(t, "b.txt", c.DocumentName)
	}

	require.NoError(t, store.Clear(ctx))
	snap, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Documents)
	assert.Empty(t, snap.Chunks)
}

func TestSQLiteSnapshotStore_Events(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, typ := range []model.IndexEventType{model.IndexEventIngested, model.IndexEventDeleted, model.IndexEventCleared} {
		ev := &model.IndexEvent{Type: typ, Document: "a.txt", Version: 1, Chunks: i, OccurredAt: at.Add(time.Duration(i) * time.Second)}
		require.NoError(t, store.RecordEvent(ctx, ev))
		assert.NotZero(t, ev.ID)
	}

	list, err := store.ListEvents(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, model.IndexEventCleared, list[0].Type)
	assert.Equal(t, model.IndexEventDeleted, list[1].Type)
	assert.Equal(t, at.Add(2*time.Second), list[0].OccurredAt)
}

func TestSQLiteSnapshotStore_MigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, store.migrate(ctx))
	require.NoError(t, store.Ping(ctx))
}
