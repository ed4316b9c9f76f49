package entities

// Raw* shapes mirror the JSON the LLM collaborator is instructed to emit.
// Validation tags are enforced by the schema validator; entries failing them
// are dropped individually, not the whole batch.

// RawActionItem is an extracted task with an assignee
type RawActionItem struct {
	Task     string `json:"task" validate:"required,min=3"`
	Assignee string `json:"assignee" validate:"required"`
	DueDate  string `json:"due_date,omitempty"`
	Ticket   string `json:"ticket,omitempty"`
}

// RawTicketUpdate is a status/field change discussed for an existing ticket
type RawTicketUpdate struct {
	TicketKey   string   `json:"ticket_key" validate:"required"`
	Status      string   `json:"status,omitempty"`
	StoryPoints *float64 `json:"story_points,omitempty"`
	Assignee    string   `json:"assignee,omitempty"`
	Comment     string   `json:"comment,omitempty"`
}

// RawBlocker is an impediment mentioned in the meeting
type RawBlocker struct {
	Description string `json:"description" validate:"required,min=3"`
	ForTicket   string `json:"for_ticket,omitempty"`
	MentionedBy string `json:"mentioned_by,omitempty"`
}

// RawDecision is a decision made during the meeting
type RawDecision struct {
	Topic    string `json:"topic,omitempty"`
	Decision string `json:"decision" validate:"required,min=3"`
	Ticket   string `json:"ticket,omitempty"`
}

// RawFlag marks an ambiguous mention the LLM was not confident about
type RawFlag struct {
	Text   string `json:"text" validate:"required"`
	Reason string `json:"reason" validate:"required"`
}

// RawExtraction is the full structured payload requested from the LLM
type RawExtraction struct {
	ActionItems   []RawActionItem   `json:"action_items"`
	TicketUpdates []RawTicketUpdate `json:"ticket_updates"`
	Blockers      []RawBlocker      `json:"blockers"`
	Decisions     []RawDecision     `json:"decisions"`
	LowConfidence []RawFlag         `json:"low_confidence"`
}

// Empty reports whether the payload carries no facts at all.
func (r *RawExtraction) Empty() bool {
	return len(r.ActionItems) == 0 &&
		len(r.TicketUpdates) == 0 &&
		len(r.Blockers) == 0 &&
		len(r.Decisions) == 0
}

// ExtractionResult is the validated, typed output of one extraction run.
type ExtractionResult struct {
	ActionItems   []*Fact   `json:"action_items"`
	TicketUpdates []*Fact   `json:"ticket_updates"`
	Blockers      []*Fact   `json:"blockers"`
	Decisions     []*Fact   `json:"decisions"`
	Flags         []RawFlag `json:"low_confidence_flags"`
	// Dropped records why individual malformed entries were excluded.
	Dropped []string `json:"dropped,omitempty"`
}

// Facts returns every candidate fact in a single slice, extraction order.
func (r *ExtractionResult) Facts() []*Fact {
	out := make([]*Fact, 0, len(r.ActionItems)+len(r.TicketUpdates)+len(r.Blockers)+len(r.Decisions))
	out = append(out, r.ActionItems...)
	out = append(out, r.TicketUpdates...)
	out = append(out, r.Blockers...)
	out = append(out, r.Decisions...)
	return out
}
