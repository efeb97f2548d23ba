package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BaSui01/imageflow/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// HistoryStore is the append-only record of completed generation attempts.
type HistoryStore interface {
	Append(ctx context.Context, entry *types.HistoryEntry) error
	// Recent returns the latest n entries, newest first.
	Recent(ctx context.Context, n int) ([]types.HistoryEntry, error)
	Count(ctx context.Context) (int64, error)
	Delete(ctx context.Context, id string) error
}

// GormHistoryStore keeps history in the relational database alongside the
// provider configurations.
type GormHistoryStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewGormHistoryStore(db *gorm.DB, logger *zap.Logger) *GormHistoryStore {
	return &GormHistoryStore{db: db, logger: logger}
}

func (s *GormHistoryStore) Append(ctx context.Context, entry *types.HistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	images, _ := json.Marshal(entry.Images)
	rec := HistoryRecord{
		ID:        entry.ID,
		Prompt:    entry.Prompt,
		Success:   entry.Success,
		Images:    string(images),
		Params:    string(entry.Params),
		CreatedAt: entry.Timestamp,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return types.NewError(types.ErrInternalError, "append history").WithCause(err)
	}
	return nil
}

func (s *GormHistoryStore) Recent(ctx context.Context, n int) ([]types.HistoryEntry, error) {
	var records []HistoryRecord
	if err := s.db.WithContext(ctx).Order("created_at DESC").Limit(n).Find(&records).Error; err != nil {
		return nil, types.NewError(types.ErrInternalError, "load history").WithCause(err)
	}

	entries := make([]types.HistoryEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, recordToEntry(rec))
	}
	return entries, nil
}

func (s *GormHistoryStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&HistoryRecord{}).Count(&n).Error; err != nil {
		return 0, types.NewError(types.ErrInternalError, "count history").WithCause(err)
	}
	return n, nil
}

func (s *GormHistoryStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&HistoryRecord{}, "id = ?", id)
	if res.Error != nil {
		return types.NewError(types.ErrInternalError, "delete history entry").WithCause(res.Error)
	}
	if res.RowsAffected == 0 {
		return types.NewError(types.ErrNotFound, fmt.Sprintf("history entry %s not found", id))
	}
	return nil
}

func recordToEntry(rec HistoryRecord) types.HistoryEntry {
	var images []string
	if rec.Images != "" {
		_ = json.Unmarshal([]byte(rec.Images), &images)
	}
	if images == nil {
		images = []string{}
	}

	entry := types.HistoryEntry{
		ID:        rec.ID,
		Prompt:    rec.Prompt,
		Success:   rec.Success,
		Images:    images,
		Timestamp: rec.CreatedAt,
	}
	if rec.Params != "" {
		entry.Params = json.RawMessage(rec.Params)
	}
	return entry
}

var _ HistoryStore = (*GormHistoryStore)(nil)
