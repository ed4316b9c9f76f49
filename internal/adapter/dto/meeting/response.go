package meeting

// IngestMeetingResponse acknowledges an accepted transcript. Processing is
// asynchronous; poll the report endpoint for the outcome.
type IngestMeetingResponse struct {
	JobID     string `json:"job_id"`
	MeetingID string `json:"meeting_id"`
	Status    string `json:"status"`
}

// MemoryExcerptResponse is one memory search hit.
type MemoryExcerptResponse struct {
	MeetingID   string  `json:"meeting_id"`
	MeetingTime string  `json:"meeting_time"`
	Excerpt     string  `json:"excerpt"`
	Score       float64 `json:"score,omitempty"`
}
