package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// FactKind discriminates the candidate fact variants
type FactKind string

const (
	FactKindActionItem   FactKind = "action_item"
	FactKindTicketUpdate FactKind = "ticket_update"
	FactKindBlocker      FactKind = "blocker"
	FactKindDecision     FactKind = "decision"
)

// FactStatus tracks whether a candidate fact made it into the ticket store
type FactStatus string

const (
	FactStatusProposed FactStatus = "proposed"
	FactStatusApplied  FactStatus = "applied"
	FactStatusRejected FactStatus = "rejected"
)

// Fact is one candidate fact extracted from a meeting: a discriminated
// variant over ActionItem, TicketUpdate, Blocker and Decision. Which columns
// are meaningful depends on Kind; the Schema Validator guarantees the
// combination is well formed before a Fact exists.
type Fact struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	MeetingID string    `json:"meeting_id" gorm:"type:varchar(255);not null;index"`
	Kind      FactKind  `json:"kind" gorm:"type:varchar(50);not null;index"`
	// DedupKey is the deterministic hash of (meeting id, kind, canonicalized
	// content). Unique across the store; the idempotency guarantee hangs on it.
	DedupKey string `json:"dedup_key" gorm:"type:varchar(64);not null;uniqueIndex"`

	Description string     `json:"description" gorm:"type:text"`
	Assignee    string     `json:"assignee,omitempty" gorm:"type:varchar(255)"`
	DueDate     *time.Time `json:"due_date,omitempty"`

	// TicketKey is the explicitly referenced ticket, empty when none was
	// mentioned. Required for ticket_update.
	TicketKey    string            `json:"ticket_key,omitempty" gorm:"type:varchar(64);index"`
	FieldChanges datatypes.JSONMap `json:"field_changes,omitempty" gorm:"type:jsonb"`
	Comment      string            `json:"comment,omitempty" gorm:"type:text"`

	LowConfidence       bool   `json:"low_confidence" gorm:"default:false"`
	LowConfidenceReason string `json:"low_confidence_reason,omitempty" gorm:"type:text"`

	Status    FactStatus `json:"status" gorm:"type:varchar(20);not null;default:'proposed'"`
	CreatedAt time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Fact) TableName() string {
	return "facts"
}

// NewFact creates a proposed fact of the given kind.
func NewFact(meetingID string, kind FactKind, dedupKey, description string) *Fact {
	return &Fact{
		ID:          uuid.New(),
		MeetingID:   meetingID,
		Kind:        kind,
		DedupKey:    dedupKey,
		Description: description,
		Status:      FactStatusProposed,
	}
}

// RequiresTicket reports whether the fact kind cannot be applied without a
// resolved target ticket. ActionItems and Blockers may create a new ticket
// instead; TicketUpdates and Decisions may not.
func (f *Fact) RequiresTicket() bool {
	return f.Kind == FactKindTicketUpdate || f.Kind == FactKindDecision
}
