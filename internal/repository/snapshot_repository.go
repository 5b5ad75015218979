package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"docqa/internal/model"
)

const chunkBatchSize = 200

// SnapshotRepository persists documents and their chunks with gorm so the
// index can be rebuilt after a restart.
type SnapshotRepository struct {
	db *gorm.DB
}

func NewSnapshotRepository(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// AutoMigrate creates the snapshot and event tables.
func (r *SnapshotRepository) AutoMigrate() error {
	if err := r.db.AutoMigrate(&model.Document{}, &model.Chunk{}, &model.IndexEvent{}); err != nil {
		return fmt.Errorf("auto migrate snapshot tables failed: %w", err)
	}
	return nil
}

// SaveDocument replaces the stored document and chunks in one transaction.
func (r *SnapshotRepository) SaveDocument(ctx context.Context, doc model.Document, chunks []model.Chunk) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteDocument(tx, doc.Name); err != nil {
			return err
		}
		doc.ID = 0
		if err := tx.Create(&doc).Error; err != nil {
			return fmt.Errorf("create document failed: %w", err)
		}
		rows := make([]model.Chunk, len(chunks))
		for i := range chunks {
			rows[i] = chunks[i]
			rows[i].ID = 0
			rows[i].DocumentName = doc.Name
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(&rows, chunkBatchSize).Error; err != nil {
			return fmt.Errorf("create chunks batch failed: %w", err)
		}
		return nil
	})
}

func (r *SnapshotRepository) DeleteDocument(ctx context.Context, name string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteDocument(tx, name)
	})
}

func deleteDocument(tx *gorm.DB, name string) error {
	if err := tx.Where("document_name = ?", name).Delete(&model.Chunk{}).Error; err != nil {
		return fmt.Errorf("delete chunks by document failed: %w", err)
	}
	if err := tx.Where("name = ?", name).Delete(&model.Document{}).Error; err != nil {
		return fmt.Errorf("delete document failed: %w", err)
	}
	return nil
}

func (r *SnapshotRepository) Clear(ctx context.Context) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.Chunk{}).Error; err != nil {
			return fmt.Errorf("clear chunks failed: %w", err)
		}
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.Document{}).Error; err != nil {
			return fmt.Errorf("clear documents failed: %w", err)
		}
		return nil
	})
}

// Load reads every document and chunk; chunks come back in insertion order.
func (r *SnapshotRepository) Load(ctx context.Context) (model.IndexSnapshot, error) {
	var snap model.IndexSnapshot
	db := r.db.WithContext(ctx)
	if err := db.Order("name ASC").Find(&snap.Documents).Error; err != nil {
		return model.IndexSnapshot{}, fmt.Errorf("list documents failed: %w", err)
	}
	if err := db.Order("id ASC").Find(&snap.Chunks).Error; err != nil {
		return model.IndexSnapshot{}, fmt.Errorf("list chunks failed: %w", err)
	}
	return snap, nil
}

func (r *SnapshotRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("get sql db failed: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database failed: %w", err)
	}
	return nil
}

func (r *SnapshotRepository) RecordEvent(ctx context.Context, ev *model.IndexEvent) error {
	if err := r.db.WithContext(ctx).Create(ev).Error; err != nil {
		return fmt.Errorf("create index event failed: %w", err)
	}
	return nil
}

// ListEvents returns the most recent events, newest first.
func (r *SnapshotRepository) ListEvents(ctx context.Context, limit int) ([]model.IndexEvent, error) {
	var list []model.IndexEvent
	if err := r.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list index events failed: %w", err)
	}
	return list, nil
}
