package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/teamsync/sprint-scribe/internal/domain/entities"
)

// MemoryRepository handles the append-only meeting memory store
type MemoryRepository struct {
	db *gorm.DB
}

// NewMemoryRepository creates a new memory repository
func NewMemoryRepository(db *gorm.DB) *MemoryRepository {
	return &MemoryRepository{db: db}
}

// CreateRecords stores the excerpts of one meeting in a single batch
func (r *MemoryRepository) CreateRecords(ctx context.Context, records []*entities.MemoryRecord) error {
	if len(records) == 0 {
		return errors.New("records cannot be empty")
	}
	return r.db.WithContext(ctx).Create(records).Error
}

// CountByMeetingID reports how many excerpts a meeting already has. Used for
// idempotent re-processing: a meeting with records is never re-embedded.
func (r *MemoryRepository) CountByMeetingID(ctx context.Context, meetingID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&entities.MemoryRecord{}).
		Where("meeting_id = ?", meetingID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ListByMeetingID retrieves the excerpts of a meeting in sequence order
func (r *MemoryRepository) ListByMeetingID(ctx context.Context, meetingID string) ([]entities.MemoryRecord, error) {
	var records []entities.MemoryRecord
	if err := r.db.WithContext(ctx).
		Where("meeting_id = ?", meetingID).
		Order("seq ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// ListAll retrieves every memory record. Similarity scoring happens in the
// usecase; the store is small enough to scan.
func (r *MemoryRepository) ListAll(ctx context.Context) ([]entities.MemoryRecord, error) {
	var records []entities.MemoryRecord
	if err := r.db.WithContext(ctx).
		Order("meeting_time ASC, seq ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// ListInRange retrieves records whose meeting time falls in [from, to],
// chronological
func (r *MemoryRepository) ListInRange(ctx context.Context, from, to time.Time) ([]entities.MemoryRecord, error) {
	var records []entities.MemoryRecord
	if err := r.db.WithContext(ctx).
		Where("meeting_time >= ? AND meeting_time <= ?", from, to).
		Order("meeting_time ASC, seq ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
