package entities

import (
	"time"

	"gorm.io/datatypes"
)

// MeetingStatus represents the processing status of an ingested meeting
type MeetingStatus string

const (
	MeetingStatusReceived   MeetingStatus = "received"   // Stored, not yet processed
	MeetingStatusProcessing MeetingStatus = "processing" // Extraction/reconciliation in flight
	MeetingStatusProcessed  MeetingStatus = "processed"  // Fully reconciled
	MeetingStatusFailed     MeetingStatus = "failed"     // Terminal failure, see review queue
)

// Meeting is one ingested meeting transcript. The id, timestamp, participants
// and transcript are immutable after creation; only Status moves.
type Meeting struct {
	ID           string                      `json:"id" gorm:"type:varchar(255);primary_key"`
	Timestamp    time.Time                   `json:"timestamp" gorm:"not null;index"`
	Participants datatypes.JSONSlice[string] `json:"participants" gorm:"type:jsonb"`
	Transcript   string                      `json:"transcript" gorm:"type:text;not null"`
	Status       MeetingStatus               `json:"status" gorm:"type:varchar(50);not null;default:'received'"`
	// ArchiveObject is the object-storage key of the archived raw transcript,
	// empty when archival is disabled.
	ArchiveObject string `json:"archive_object,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Meeting) TableName() string {
	return "meetings"
}

// NewMeeting creates a meeting in the received state.
func NewMeeting(id string, timestamp time.Time, participants []string, transcript string) *Meeting {
	return &Meeting{
		ID:           id,
		Timestamp:    timestamp,
		Participants: participants,
		Transcript:   transcript,
		Status:       MeetingStatusReceived,
	}
}
