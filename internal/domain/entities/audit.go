package entities

import (
	"time"

	"github.com/google/uuid"
)

// AppliedKey records that a dedup key was applied to the ticket store.
// Append-only; existence of a row is the at-most-once guarantee that
// survives crash and retry.
type AppliedKey struct {
	DedupKey  string    `json:"dedup_key" gorm:"type:varchar(64);primary_key"`
	MeetingID string    `json:"meeting_id" gorm:"type:varchar(255);not null;index"`
	TicketKey string    `json:"ticket_key" gorm:"type:varchar(64);not null;index"`
	Field     string    `json:"field" gorm:"type:varchar(100);not null"`
	AppliedAt time.Time `json:"applied_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for GORM
func (AppliedKey) TableName() string {
	return "applied_keys"
}

// AuditEntry is one line of the reconciliation audit trail.
type AuditEntry struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	MeetingID string    `json:"meeting_id" gorm:"type:varchar(255);not null;index"`
	TicketKey string    `json:"ticket_key" gorm:"type:varchar(64);not null;index"`
	Field     string    `json:"field" gorm:"type:varchar(100)"`
	OldValue  string    `json:"old_value,omitempty" gorm:"type:text"`
	NewValue  string    `json:"new_value,omitempty" gorm:"type:text"`
	// Note carries non-mutation audit detail, e.g. which dedup key
	// superseded this one or why a fact was excluded.
	Note      string    `json:"note,omitempty" gorm:"type:text"`
	Timestamp time.Time `json:"timestamp" gorm:"autoCreateTime;index"`
}

// TableName specifies the table name for GORM
func (AuditEntry) TableName() string {
	return "audit_entries"
}

// ReviewItem is a human-review queue entry for facts that could not be
// applied. Nothing is ever silently dropped; it lands here instead.
type ReviewItem struct {
	ID            uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	MeetingID     string    `json:"meeting_id" gorm:"type:varchar(255);not null;index"`
	Kind          string    `json:"kind" gorm:"type:varchar(50)"`
	OffendingText string    `json:"offending_text" gorm:"type:text;not null"`
	Reason        string    `json:"reason" gorm:"type:text;not null"`
	Resolved      bool      `json:"resolved" gorm:"default:false;index"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (ReviewItem) TableName() string {
	return "review_items"
}

// NewReviewItem creates an unresolved review entry
func NewReviewItem(meetingID, kind, offendingText, reason string) *ReviewItem {
	return &ReviewItem{
		ID:            uuid.New(),
		MeetingID:     meetingID,
		Kind:          kind,
		OffendingText: offendingText,
		Reason:        reason,
	}
}
