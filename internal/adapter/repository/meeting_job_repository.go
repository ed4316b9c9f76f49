package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/teamsync/sprint-scribe/internal/domain/entities"
)

// MeetingJobRepository handles meeting job data operations
type MeetingJobRepository struct {
	db *gorm.DB
}

// NewMeetingJobRepository creates a new meeting job repository
func NewMeetingJobRepository(db *gorm.DB) *MeetingJobRepository {
	return &MeetingJobRepository{db: db}
}

// CreateJob creates a new meeting job
func (r *MeetingJobRepository) CreateJob(ctx context.Context, job *entities.MeetingJob) error {
	if job == nil {
		return errors.New("job cannot be nil")
	}
	return r.db.WithContext(ctx).Create(job).Error
}

// GetJobByID retrieves a job by ID
func (r *MeetingJobRepository) GetJobByID(ctx context.Context, jobID uuid.UUID) (*entities.MeetingJob, error) {
	var job entities.MeetingJob
	if err := r.db.WithContext(ctx).Where("id = ?", jobID).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

// GetJobByMeetingID retrieves the job for a meeting
func (r *MeetingJobRepository) GetJobByMeetingID(ctx context.Context, meetingID string) (*entities.MeetingJob, error) {
	var job entities.MeetingJob
	if err := r.db.WithContext(ctx).Where("meeting_id = ?", meetingID).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

// GetJobsForProcessing retrieves jobs that are ready for a worker
func (r *MeetingJobRepository) GetJobsForProcessing(ctx context.Context, limit int) ([]entities.MeetingJob, error) {
	var jobs []entities.MeetingJob
	if limit == 0 {
		limit = 10
	}
	if err := r.db.WithContext(ctx).
		Where("status IN ?", []entities.MeetingJobStatus{entities.MeetingJobStatusPending, entities.MeetingJobStatusRetrying}).
		Order("created_at ASC").
		Limit(limit).
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// ClaimJob atomically moves a pending/retrying job to extracting. Returns
// false when another worker won the race.
func (r *MeetingJobRepository) ClaimJob(ctx context.Context, jobID uuid.UUID, from entities.MeetingJobStatus) (bool, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&entities.MeetingJob{}).
		Where("id = ? AND status = ?", jobID, from).
		Updates(map[string]interface{}{
			"status":     entities.MeetingJobStatusExtracting,
			"started_at": now,
			"updated_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// UpdateJobStatus updates the status of a job
func (r *MeetingJobRepository) UpdateJobStatus(ctx context.Context, jobID uuid.UUID, status entities.MeetingJobStatus) error {
	return r.db.WithContext(ctx).
		Model(&entities.MeetingJob{}).
		Where("id = ?", jobID).
		Update("status", status).Error
}

// MarkJobAsCompleted marks a job as completed
func (r *MeetingJobRepository) MarkJobAsCompleted(ctx context.Context, jobID uuid.UUID) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&entities.MeetingJob{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"status":       entities.MeetingJobStatusCompleted,
			"completed_at": now,
			"updated_at":   now,
		}).Error
}

// MarkJobAsFailed marks a job as failed with error message
func (r *MeetingJobRepository) MarkJobAsFailed(ctx context.Context, jobID uuid.UUID, errMsg string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&entities.MeetingJob{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"status":     entities.MeetingJobStatusFailed,
			"last_error": errMsg,
			"updated_at": now,
		}).Error
}

// IncrementRetryCount increments the retry count and moves the job to retrying
func (r *MeetingJobRepository) IncrementRetryCount(ctx context.Context, jobID uuid.UUID, errMsg string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&entities.MeetingJob{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"retry_count": gorm.Expr("retry_count + 1"),
			"status":      entities.MeetingJobStatusRetrying,
			"last_error":  errMsg,
			"updated_at":  now,
		}).Error
}

// GetStuckJobs retrieves jobs that have been mid-flight longer than maxAge.
// Used by the zombie cleanup loop to rescue jobs whose worker died.
func (r *MeetingJobRepository) GetStuckJobs(ctx context.Context, maxAge time.Duration, limit int) ([]entities.MeetingJob, error) {
	var jobs []entities.MeetingJob
	if limit == 0 {
		limit = 10
	}
	cutoff := time.Now().Add(-maxAge)
	if err := r.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?",
			[]entities.MeetingJobStatus{entities.MeetingJobStatusExtracting, entities.MeetingJobStatusReconciling},
			cutoff).
		Order("updated_at ASC").
		Limit(limit).
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}
