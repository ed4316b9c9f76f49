package entities

import (
	"time"

	"github.com/google/uuid"
)

// ReconState is the per-fact reconciliation state machine:
// PENDING → MATCHING → APPLYING → {APPLIED | FAILED | SKIPPED}.
type ReconState string

const (
	ReconStatePending  ReconState = "pending"
	ReconStateMatching ReconState = "matching"
	ReconStateApplying ReconState = "applying"
	ReconStateApplied  ReconState = "applied"
	ReconStateFailed   ReconState = "failed"
	ReconStateSkipped  ReconState = "skipped"
)

// Skip reasons recorded on SKIPPED jobs.
const (
	SkipReasonUnresolvedReference = "unresolved-reference"
	SkipReasonDuplicate           = "duplicate"
	SkipReasonSuperseded          = "superseded"
	SkipReasonCancelled           = "cancelled"
)

// ReconJob tracks one candidate fact through matching and application.
// Owned exclusively by the reconciliation engine; rows in a terminal state
// are the archive.
type ReconJob struct {
	ID        uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	FactID    uuid.UUID  `json:"fact_id" gorm:"type:uuid;not null;index"`
	MeetingID string     `json:"meeting_id" gorm:"type:varchar(255);not null;index"`
	State     ReconState `json:"state" gorm:"type:varchar(20);not null;index;default:'pending'"`

	// TicketKey is the resolved target, nil until MATCHING succeeds.
	TicketKey *string `json:"ticket_key,omitempty" gorm:"type:varchar(64);index"`

	SkipReason string `json:"skip_reason,omitempty" gorm:"type:varchar(50)"`
	// SupersededBy holds the dedup key of the winning fact on a
	// superseded skip.
	SupersededBy string  `json:"superseded_by,omitempty" gorm:"type:varchar(64)"`
	AttemptCount int     `json:"attempt_count" gorm:"type:integer;default:0"`
	Requeued     bool    `json:"requeued" gorm:"default:false"`
	LastError    *string `json:"last_error,omitempty" gorm:"type:text"`

	CompletedAt *time.Time `json:"completed_at,omitempty" gorm:"type:timestamp"`
	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (ReconJob) TableName() string {
	return "recon_jobs"
}

// NewReconJob creates a pending reconciliation job for a fact
func NewReconJob(fact *Fact) *ReconJob {
	return &ReconJob{
		ID:        uuid.New(),
		FactID:    fact.ID,
		MeetingID: fact.MeetingID,
		State:     ReconStatePending,
	}
}

// IsTerminal reports whether the state machine finished
func (j *ReconJob) IsTerminal() bool {
	return j.State == ReconStateApplied || j.State == ReconStateFailed || j.State == ReconStateSkipped
}

// Skip transitions the job to SKIPPED with a reason
func (j *ReconJob) Skip(reason string) {
	j.State = ReconStateSkipped
	j.SkipReason = reason
	now := time.Now()
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// Fail transitions the job to FAILED with the error message
func (j *ReconJob) Fail(errMsg string) {
	j.State = ReconStateFailed
	j.LastError = &errMsg
	now := time.Now()
	j.CompletedAt = &now
	j.UpdatedAt = now
}
