package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/teamsync/sprint-scribe/internal/domain/entities"
)

// SnapshotRepository handles sprint health snapshot data operations
type SnapshotRepository struct {
	db *gorm.DB
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// CreateSnapshot appends a new sprint health snapshot
func (r *SnapshotRepository) CreateSnapshot(ctx context.Context, snapshot *entities.SprintSnapshot) error {
	if snapshot == nil {
		return errors.New("snapshot cannot be nil")
	}
	return r.db.WithContext(ctx).Create(snapshot).Error
}

// GetLatestSnapshot retrieves the most recent snapshot for a sprint
func (r *SnapshotRepository) GetLatestSnapshot(ctx context.Context, sprintID string) (*entities.SprintSnapshot, error) {
	var snapshot entities.SprintSnapshot
	if err := r.db.WithContext(ctx).
		Where("sprint_id = ?", sprintID).
		Order("timestamp DESC").
		First(&snapshot).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &snapshot, nil
}

// ListSnapshots retrieves the snapshot history for a sprint, oldest first
func (r *SnapshotRepository) ListSnapshots(ctx context.Context, sprintID string, limit int) ([]entities.SprintSnapshot, error) {
	var snapshots []entities.SprintSnapshot
	if limit == 0 {
		limit = 100
	}
	if err := r.db.WithContext(ctx).
		Where("sprint_id = ?", sprintID).
		Order("timestamp ASC").
		Limit(limit).
		Find(&snapshots).Error; err != nil {
		return nil, err
	}
	return snapshots, nil
}
