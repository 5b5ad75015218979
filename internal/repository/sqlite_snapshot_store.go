package repository

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"docqa/internal/model"
	"docqa/internal/pkg/vecbin"
	"docqa/internal/repository/migrations"
)

// SQLiteSnapshotStore is the embedded counterpart of SnapshotRepository,
// storing vectors as little-endian float32 blobs.
type SQLiteSnapshotStore struct {
	db *sql.DB
}

// NewSQLiteSnapshotStore applies pending migrations to db.
func NewSQLiteSnapshotStore(ctx context.Context, db *sql.DB) (*SQLiteSnapshotStore, error) {
	s := &SQLiteSnapshotStore{db: db}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteSnapshotStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			applied_at INTEGER NOT NULL
		)`); err != nil {
		return fmt.Errorf("create schema_migrations failed: %w", err)
	}
	var current int
	if err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("read schema version failed: %w", err)
	}

	entries, err := fs.ReadDir(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("read migrations failed: %w", err)
	}
	var files []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil || version <= current {
			continue
		}
		content, err := fs.ReadFile(migrations.FS, name)
		if err != nil {
			return fmt.Errorf("read migration %s failed: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s failed: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)", version, time.Now().UnixNano()); err != nil {
			return fmt.Errorf("record migration %s failed: %w", name, err)
		}
	}
	return nil
}

func (s *SQLiteSnapshotStore) SaveDocument(ctx context.Context, doc model.Document, chunks []model.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction failed: %w", err)
	}
	defer tx.Rollback()

	if err := deleteDocumentTx(ctx, tx, doc.Name); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO documents (name, format, size_bytes, version, chunk_count, chunk_size, chunk_overlap, embedding_model, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.Name, doc.Format, doc.SizeBytes, doc.Version, doc.ChunkCount, doc.ChunkSize, doc.ChunkOverlap,
		doc.EmbeddingModel, doc.IngestedAt.UnixNano()); err != nil {
		return fmt.Errorf("insert document failed: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (chunk_id, document_name, chunk_index, text, page, section, preview, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert failed: %w", err)
	}
	defer stmt.Close()
	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.ChunkID, doc.Name, c.Index, c.Text, c.Page, c.Section, c.Preview,
			vecbin.Encode(c.Vector), c.CreatedAt.UnixNano()); err != nil {
			return fmt.Errorf("insert chunk %d failed: %w", c.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit document failed: %w", err)
	}
	return nil
}

func (s *SQLiteSnapshotStore) DeleteDocument(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction failed: %w", err)
	}
	defer tx.Rollback()
	if err := deleteDocumentTx(ctx, tx, name); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete failed: %w", err)
	}
	return nil
}

func deleteDocumentTx(ctx context.Context, tx *sql.Tx, name string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_name = ?", name); err != nil {
		return fmt.Errorf("delete chunks by document failed: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE name = ?", name); err != nil {
		return fmt.Errorf("delete document failed: %w", err)
	}
	return nil
}

func (s *SQLiteSnapshotStore) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction failed: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks"); err != nil {
		return fmt.Errorf("clear chunks failed: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM documents"); err != nil {
		return fmt.Errorf("clear documents failed: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear failed: %w", err)
	}
	return nil
}

// Load reads every document and chunk; chunks come back in insertion order.
func (s *SQLiteSnapshotStore) Load(ctx context.Context) (model.IndexSnapshot, error) {
	var snap model.IndexSnapshot

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, format, size_bytes, version, chunk_count, chunk_size, chunk_overlap, embedding_model, ingested_at
		FROM documents ORDER BY name`)
	if err != nil {
		return snap, fmt.Errorf("query documents failed: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			d          model.Document
			ingestedAt int64
		)
		if err := rows.Scan(&d.Name, &d.Format, &d.SizeBytes, &d.Version, &d.ChunkCount, &d.ChunkSize,
			&d.ChunkOverlap, &d.EmbeddingModel, &ingestedAt); err != nil {
			return model.IndexSnapshot{}, fmt.Errorf("scan document failed: %w", err)
		}
		d.IngestedAt = time.Unix(0, ingestedAt).UTC()
		snap.Documents = append(snap.Documents, d)
	}
	if err := rows.Err(); err != nil {
		return model.IndexSnapshot{}, fmt.Errorf("iterate documents failed: %w", err)
	}

	chunkRows, err := s.db.QueryContext(ctx, `
		SELECT id, chunk_id, document_name, chunk_index, text, page, section, preview, embedding, created_at
		FROM chunks ORDER BY id`)
	if err != nil {
		return model.IndexSnapshot{}, fmt.Errorf("query chunks failed: %w", err)
	}
	defer chunkRows.Close()
	for chunkRows.Next() {
		var (
			c         model.Chunk
			id        int64
			blob      []byte
			createdAt int64
		)
		if err := chunkRows.Scan(&id, &c.ChunkID, &c.DocumentName, &c.Index, &c.Text, &c.Page, &c.Section,
			&c.Preview, &blob, &createdAt); err != nil {
			return model.IndexSnapshot{}, fmt.Errorf("scan chunk failed: %w", err)
		}
		vec, err := vecbin.Decode(blob)
		if err != nil {
			return model.IndexSnapshot{}, fmt.Errorf("%w: chunk %d of %q: %v", model.ErrIndexCorrupt, c.Index, c.DocumentName, err)
		}
		c.ID = uint(id)
		c.Vector = vec
		c.CreatedAt = time.Unix(0, createdAt).UTC()
		snap.Chunks = append(snap.Chunks, c)
	}
	if err := chunkRows.Err(); err != nil {
		return model.IndexSnapshot{}, fmt.Errorf("iterate chunks failed: %w", err)
	}
	return snap, nil
}

func (s *SQLiteSnapshotStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite failed: %w", err)
	}
	return nil
}

func (s *SQLiteSnapshotStore) RecordEvent(ctx context.Context, ev *model.IndexEvent) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO index_events (type, document, version, chunks, occurred_at) VALUES (?, ?, ?, ?, ?)`,
		string(ev.Type), ev.Document, ev.Version, ev.Chunks, ev.OccurredAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert index event failed: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		ev.ID = uint(id)
	}
	return nil
}

// ListEvents returns the most recent events, newest first.
func (s *SQLiteSnapshotStore) ListEvents(ctx context.Context, limit int) ([]model.IndexEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, document, version, chunks, occurred_at FROM index_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query index events failed: %w", err)
	}
	defer rows.Close()

	var list []model.IndexEvent
	for rows.Next() {
		var (
			ev         model.IndexEvent
			id         int64
			typ        string
			occurredAt int64
		)
		if err := rows.Scan(&id, &typ, &ev.Document, &ev.Version, &ev.Chunks, &occurredAt); err != nil {
			return nil, fmt.Errorf("scan index event failed: %w", err)
		}
		ev.ID = uint(id)
		ev.Type = model.IndexEventType(typ)
		ev.OccurredAt = time.Unix(0, occurredAt).UTC()
		list = append(list, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate index events failed: %w", err)
	}
	return list, nil
}
