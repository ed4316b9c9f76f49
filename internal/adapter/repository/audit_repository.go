package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/teamsync/sprint-scribe/internal/domain/entities"
)

// AuditRepository handles the applied-key ledger and the audit trail
type AuditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// RecordAppliedKey inserts the applied-key row for a dedup key. Returns
// (false, nil) when the key was already recorded, which means another apply
// of the same fact won.
func (r *AuditRepository) RecordAppliedKey(ctx context.Context, key *entities.AppliedKey) (bool, error) {
	if key == nil {
		return false, errors.New("applied key cannot be nil")
	}
	err := r.db.WithContext(ctx).Create(key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// IsApplied reports whether a dedup key has already been applied
func (r *AuditRepository) IsApplied(ctx context.Context, dedupKey string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&entities.AppliedKey{}).
		Where("dedup_key = ?", dedupKey).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateAuditEntry appends one line to the audit trail
func (r *AuditRepository) CreateAuditEntry(ctx context.Context, entry *entities.AuditEntry) error {
	if entry == nil {
		return errors.New("audit entry cannot be nil")
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListAuditEntriesByMeetingID retrieves the audit trail for a meeting
func (r *AuditRepository) ListAuditEntriesByMeetingID(ctx context.Context, meetingID string) ([]entities.AuditEntry, error) {
	var entries []entities.AuditEntry
	if err := r.db.WithContext(ctx).
		Where("meeting_id = ?", meetingID).
		Order("timestamp ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// ListAuditEntriesByTicketKey retrieves the audit trail for a ticket
func (r *AuditRepository) ListAuditEntriesByTicketKey(ctx context.Context, ticketKey string, limit int) ([]entities.AuditEntry, error) {
	var entries []entities.AuditEntry
	if limit == 0 {
		limit = 100
	}
	if err := r.db.WithContext(ctx).
		Where("ticket_key = ?", ticketKey).
		Order("timestamp DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// ListAuditEntriesInRange retrieves audit entries in a time range, chronological
func (r *AuditRepository) ListAuditEntriesInRange(ctx context.Context, from, to time.Time) ([]entities.AuditEntry, error) {
	var entries []entities.AuditEntry
	if err := r.db.WithContext(ctx).
		Where("timestamp >= ? AND timestamp <= ?", from, to).
		Order("timestamp ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
