package extraction

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/datatypes"

	"github.com/teamsync/sprint-scribe/internal/domain/entities"
)

// SchemaValidator checks raw collaborator output against the four fact
// shapes and converts valid entries into typed facts with dedup keys.
// Malformed entries are dropped individually, never the whole batch.
type SchemaValidator struct {
	validate *validator.Validate
	// storyPointsField is the tracker's custom field id for story points.
	storyPointsField string
}

// NewSchemaValidator creates a schema validator
func NewSchemaValidator(storyPointsField string) *SchemaValidator {
	if storyPointsField == "" {
		storyPointsField = "customfield_10002"
	}
	return &SchemaValidator{
		validate:         validator.New(),
		storyPointsField: storyPointsField,
	}
}

// Validate converts a raw extraction payload into an ExtractionResult for
// the given meeting. Each dropped entry is recorded with its reason.
func (v *SchemaValidator) Validate(meetingID string, raw *entities.RawExtraction) *entities.ExtractionResult {
	result := &entities.ExtractionResult{Flags: raw.LowConfidence}

	for i, item := range raw.ActionItems {
		if err := v.validate.Struct(item); err != nil {
			result.Dropped = append(result.Dropped, fmt.Sprintf("action_items[%d]: %v", i, err))
			continue
		}
		fact := entities.NewFact(meetingID, entities.FactKindActionItem,
			DedupKey(meetingID, entities.FactKindActionItem, item.Task+"|"+item.Assignee),
			strings.TrimSpace(item.Task))
		fact.Assignee = strings.TrimSpace(item.Assignee)
		fact.TicketKey = normalizeTicketKey(item.Ticket)
		if due, ok := parseDueDate(item.DueDate); ok {
			fact.DueDate = &due
		}
		result.ActionItems = append(result.ActionItems, fact)
	}

	for i, upd := range raw.TicketUpdates {
		if err := v.validate.Struct(upd); err != nil {
			result.Dropped = append(result.Dropped, fmt.Sprintf("ticket_updates[%d]: %v", i, err))
			continue
		}
		changes := datatypes.JSONMap{}
		if upd.Status != "" {
			changes["status"] = upd.Status
		}
		if upd.StoryPoints != nil {
			changes[v.storyPointsField] = *upd.StoryPoints
		}
		if upd.Assignee != "" {
			changes["assignee"] = upd.Assignee
		}
		if len(changes) == 0 && upd.Comment == "" {
			result.Dropped = append(result.Dropped, fmt.Sprintf("ticket_updates[%d]: no field changes or comment", i))
			continue
		}

		content := upd.TicketKey + "|" + canonicalChanges(changes) + "|" + upd.Comment
		fact := entities.NewFact(meetingID, entities.FactKindTicketUpdate,
			DedupKey(meetingID, entities.FactKindTicketUpdate, content),
			describeUpdate(upd, changes))
		fact.TicketKey = normalizeTicketKey(upd.TicketKey)
		fact.FieldChanges = changes
		fact.Comment = strings.TrimSpace(upd.Comment)
		result.TicketUpdates = append(result.TicketUpdates, fact)
	}

	for i, blocker := range raw.Blockers {
		if err := v.validate.Struct(blocker); err != nil {
			result.Dropped = append(result.Dropped, fmt.Sprintf("blockers[%d]: %v", i, err))
			continue
		}
		fact := entities.NewFact(meetingID, entities.FactKindBlocker,
			DedupKey(meetingID, entities.FactKindBlocker, blocker.Description+"|"+blocker.ForTicket),
			strings.TrimSpace(blocker.Description))
		fact.TicketKey = normalizeTicketKey(blocker.ForTicket)
		fact.Assignee = strings.TrimSpace(blocker.MentionedBy)
		result.Blockers = append(result.Blockers, fact)
	}

	for i, decision := range raw.Decisions {
		if err := v.validate.Struct(decision); err != nil {
			result.Dropped = append(result.Dropped, fmt.Sprintf("decisions[%d]: %v", i, err))
			continue
		}
		desc := strings.TrimSpace(decision.Decision)
		if decision.Topic != "" {
			desc = strings.TrimSpace(decision.Topic) + ": " + desc
		}
		fact := entities.NewFact(meetingID, entities.FactKindDecision,
			DedupKey(meetingID, entities.FactKindDecision, decision.Topic+"|"+decision.Decision),
			desc)
		fact.TicketKey = normalizeTicketKey(decision.Ticket)
		result.Decisions = append(result.Decisions, fact)
	}

	// Low-confidence flags mark matching facts so reconciliation can route
	// them with extra caution.
	for _, flag := range raw.LowConfidence {
		canonical := Canonicalize(flag.Text)
		for _, fact := range result.Facts() {
			if strings.Contains(Canonicalize(fact.Description), canonical) {
				fact.LowConfidence = true
				fact.LowConfidenceReason = flag.Reason
			}
		}
	}

	return result
}

func normalizeTicketKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

// canonicalChanges renders a field-change map in sorted key order so the
// dedup key does not depend on map iteration order.
func canonicalChanges(changes datatypes.JSONMap) string {
	keys := make([]string, 0, len(changes))
	for k := range changes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, changes[k]))
	}
	return strings.Join(parts, ",")
}

func describeUpdate(upd entities.RawTicketUpdate, changes datatypes.JSONMap) string {
	if len(changes) > 0 {
		return fmt.Sprintf("Update %s: %s", normalizeTicketKey(upd.TicketKey), canonicalChanges(changes))
	}
	return fmt.Sprintf("Comment on %s", normalizeTicketKey(upd.TicketKey))
}

// parseDueDate accepts the date formats the collaborator is instructed to
// emit. Unparseable dates are ignored rather than failing the fact.
func parseDueDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
