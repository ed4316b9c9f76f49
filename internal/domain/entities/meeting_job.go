package entities

import (
	"time"

	"github.com/google/uuid"
)

// MeetingJobStatus represents the status of a meeting processing job
type MeetingJobStatus string

const (
	MeetingJobStatusPending     MeetingJobStatus = "pending"     // Waiting for a worker
	MeetingJobStatusExtracting  MeetingJobStatus = "extracting"  // LLM extraction in flight
	MeetingJobStatusReconciling MeetingJobStatus = "reconciling" // Applying facts to the ticket store
	MeetingJobStatusCompleted   MeetingJobStatus = "completed"   // All processing done
	MeetingJobStatusFailed      MeetingJobStatus = "failed"      // Processing failed
	MeetingJobStatusRetrying    MeetingJobStatus = "retrying"    // Retrying after failure
	MeetingJobStatusCancelled   MeetingJobStatus = "cancelled"   // Job was cancelled (meeting superseded)
)

// MeetingJob is the asynchronous unit of work that carries one transcript
// through extraction, memory recording and reconciliation.
type MeetingJob struct {
	ID        uuid.UUID        `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	MeetingID string           `json:"meeting_id" gorm:"type:varchar(255);not null;uniqueIndex"`
	Status    MeetingJobStatus `json:"status" gorm:"type:varchar(50);not null;index;default:'pending'"`

	StartedAt   *time.Time `json:"started_at,omitempty" gorm:"type:timestamp"`
	CompletedAt *time.Time `json:"completed_at,omitempty" gorm:"type:timestamp"`
	RetryCount  int        `json:"retry_count" gorm:"type:integer;default:0"`
	MaxRetries  int        `json:"max_retries" gorm:"type:integer;default:3"`
	LastError   *string    `json:"last_error,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (MeetingJob) TableName() string {
	return "meeting_jobs"
}

// NewMeetingJob creates a new pending job for a meeting
func NewMeetingJob(meetingID string, maxRetries int) *MeetingJob {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &MeetingJob{
		ID:         uuid.New(),
		MeetingID:  meetingID,
		Status:     MeetingJobStatusPending,
		RetryCount: 0,
		MaxRetries: maxRetries,
	}
}

// IsRetryable checks if job can be retried
func (j *MeetingJob) IsRetryable() bool {
	return j.RetryCount < j.MaxRetries && j.Status == MeetingJobStatusFailed
}

// IsTerminal reports whether the job reached a final state
func (j *MeetingJob) IsTerminal() bool {
	return j.Status == MeetingJobStatusCompleted ||
		j.Status == MeetingJobStatusCancelled ||
		(j.Status == MeetingJobStatusFailed && !j.IsRetryable())
}

// MarkAsFailed marks job as failed with error message
func (j *MeetingJob) MarkAsFailed(errMsg string) {
	j.Status = MeetingJobStatusFailed
	j.LastError = &errMsg
	j.UpdatedAt = time.Now()
}

// MarkAsCancelled marks job as cancelled
func (j *MeetingJob) MarkAsCancelled() {
	j.Status = MeetingJobStatusCancelled
	now := time.Now()
	j.CompletedAt = &now
	j.UpdatedAt = now
}
