package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// MemoryRecord is one embedded excerpt of a meeting transcript. Append-only,
// never mutated after write.
type MemoryRecord struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	MeetingID string    `json:"meeting_id" gorm:"type:varchar(255);not null;index"`
	// Seq orders excerpts within a meeting.
	Seq       int                          `json:"seq" gorm:"type:integer;not null"`
	Excerpt   string                       `json:"excerpt" gorm:"type:text;not null"`
	Embedding datatypes.JSONSlice[float32] `json:"embedding" gorm:"type:jsonb"`
	Topics    datatypes.JSONSlice[string]  `json:"topics,omitempty" gorm:"type:jsonb"`
	// MeetingTime is denormalized from the meeting for recency tie-breaks.
	MeetingTime time.Time `json:"meeting_time" gorm:"index"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for GORM
func (MemoryRecord) TableName() string {
	return "memory_records"
}

// ScoredMemoryRecord pairs a record with its similarity to a query.
type ScoredMemoryRecord struct {
	MemoryRecord
	Score float64 `json:"score"`
}
