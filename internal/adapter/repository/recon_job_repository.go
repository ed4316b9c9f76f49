package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/teamsync/sprint-scribe/internal/domain/entities"
)

// ReconJobRepository handles reconciliation job data operations
type ReconJobRepository struct {
	db *gorm.DB
}

// NewReconJobRepository creates a new reconciliation job repository
func NewReconJobRepository(db *gorm.DB) *ReconJobRepository {
	return &ReconJobRepository{db: db}
}

// CreateJob creates a new reconciliation job
func (r *ReconJobRepository) CreateJob(ctx context.Context, job *entities.ReconJob) error {
	if job == nil {
		return errors.New("job cannot be nil")
	}
	return r.db.WithContext(ctx).Create(job).Error
}

// GetJobByID retrieves a reconciliation job by ID
func (r *ReconJobRepository) GetJobByID(ctx context.Context, jobID uuid.UUID) (*entities.ReconJob, error) {
	var job entities.ReconJob
	if err := r.db.WithContext(ctx).Where("id = ?", jobID).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

// ListJobsByMeetingID retrieves all reconciliation jobs for a meeting
func (r *ReconJobRepository) ListJobsByMeetingID(ctx context.Context, meetingID string) ([]entities.ReconJob, error) {
	var jobs []entities.ReconJob
	if err := r.db.WithContext(ctx).
		Where("meeting_id = ?", meetingID).
		Order("created_at ASC").
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// UpdateJob saves the full job row
func (r *ReconJobRepository) UpdateJob(ctx context.Context, job *entities.ReconJob) error {
	if job == nil {
		return errors.New("job cannot be nil")
	}
	return r.db.WithContext(ctx).
		Model(&entities.ReconJob{}).
		Where("id = ?", job.ID).
		Save(job).Error
}

// CancelPendingByMeetingID skips every non-terminal job of a meeting with the
// cancelled reason. Used when a meeting is superseded mid-flight.
func (r *ReconJobRepository) CancelPendingByMeetingID(ctx context.Context, meetingID string) (int64, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&entities.ReconJob{}).
		Where("meeting_id = ? AND state IN ?", meetingID,
			[]entities.ReconState{entities.ReconStatePending, entities.ReconStateMatching}).
		Updates(map[string]interface{}{
			"state":        entities.ReconStateSkipped,
			"skip_reason":  entities.SkipReasonCancelled,
			"completed_at": now,
			"updated_at":   now,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
