package meeting

import "time"

// IngestMeetingRequest is the transcript delivery payload from the
// chat-transport boundary.
type IngestMeetingRequest struct {
	MeetingID    string    `json:"meeting_id" validate:"required"`
	Timestamp    time.Time `json:"timestamp" validate:"required"`
	Participants []string  `json:"participants" validate:"required,min=1,dive,required"`
	Transcript   string    `json:"transcript" validate:"required"`
}

// SearchMemoryRequest carries the memory query parameters.
type SearchMemoryRequest struct {
	Topic string `query:"topic"`
	From  string `query:"from"`
	To    string `query:"to"`
	Limit int    `query:"limit"`
}
