package extraction

import (
	"testing"

	"github.com/teamsync/sprint-scribe/internal/domain/entities"
)

func TestDedupKey_Deterministic(t *testing.T) {
	k1 := DedupKey("m1", entities.FactKindActionItem, "Update API docs|John")
	k2 := DedupKey("m1", entities.FactKindActionItem, "  update   API  DOCS |John ")
	if k1 != k2 {
		t.Fatalf("canonically identical content should hash identically: %s vs %s", k1, k2)
	}

	if DedupKey("m2", entities.FactKindActionItem, "Update API docs|John") == k1 {
		t.Fatal("different meetings must produce different keys")
	}
	if DedupKey("m1", entities.FactKindBlocker, "Update API docs|John") == k1 {
		t.Fatal("different kinds must produce different keys")
	}
}

func TestCanonicalize(t *testing.T) {
	got := Canonicalize("  Fix   the\tLogin\n Bug ")
	if got != "fix the login bug" {
		t.Fatalf("unexpected canonical form: %q", got)
	}
}

func TestValidate_DropsMalformedIndividually(t *testing.T) {
	v := NewSchemaValidator("")
	raw := &entities.RawExtraction{
		ActionItems: []entities.RawActionItem{
			{Task: "Update API documentation", Assignee: "John"},
			{Task: "ok task"}, // missing assignee
		},
		TicketUpdates: []entities.RawTicketUpdate{
			{TicketKey: "PROJ-1", Status: "Done"},
			{Status: "Done"}, // missing ticket key
			{TicketKey: "PROJ-2"}, // nothing to change
		},
	}

	result := v.Validate("m1", raw)
	if len(result.ActionItems) != 1 {
		t.Fatalf("expected 1 valid action item, got %d", len(result.ActionItems))
	}
	if len(result.TicketUpdates) != 1 {
		t.Fatalf("expected 1 valid ticket update, got %d", len(result.TicketUpdates))
	}
	if len(result.Dropped) != 3 {
		t.Fatalf("expected 3 dropped entries, got %d: %v", len(result.Dropped), result.Dropped)
	}
}

func TestValidate_StoryPointsBecomeFieldChange(t *testing.T) {
	v := NewSchemaValidator("customfield_10002")
	points := 5.0
	raw := &entities.RawExtraction{
		TicketUpdates: []entities.RawTicketUpdate{
			{TicketKey: "PROJ-125", StoryPoints: &points},
		},
	}

	result := v.Validate("m1", raw)
	if len(result.TicketUpdates) != 1 {
		t.Fatalf("expected 1 ticket update, got %d", len(result.TicketUpdates))
	}
	got, ok := result.TicketUpdates[0].FieldChanges["customfield_10002"]
	if !ok || got != points {
		t.Fatalf("story points not mapped into field changes: %v", result.TicketUpdates[0].FieldChanges)
	}
}

func TestValidate_LowConfidenceFlagsPropagate(t *testing.T) {
	v := NewSchemaValidator("")
	raw := &entities.RawExtraction{
		ActionItems: []entities.RawActionItem{
			{Task: "Follow up with the vendor", Assignee: "someone"},
		},
		LowConfidence: []entities.RawFlag{
			{Text: "follow up with the vendor", Reason: "vague assignee"},
		},
	}

	result := v.Validate("m1", raw)
	if !result.ActionItems[0].LowConfidence {
		t.Fatal("fact matching a low-confidence flag should be marked")
	}
	if result.ActionItems[0].LowConfidenceReason != "vague assignee" {
		t.Fatalf("reason not carried: %q", result.ActionItems[0].LowConfidenceReason)
	}
}

func TestValidate_DueDateParsing(t *testing.T) {
	v := NewSchemaValidator("")
	raw := &entities.RawExtraction{
		ActionItems: []entities.RawActionItem{
			{Task: "Prepare demo", Assignee: "Sarah", DueDate: "2026-02-10"},
			{Task: "Other task", Assignee: "John", DueDate: "next Tuesday"},
		},
	}

	result := v.Validate("m1", raw)
	if result.ActionItems[0].DueDate == nil {
		t.Fatal("ISO due date should parse")
	}
	if result.ActionItems[1].DueDate != nil {
		t.Fatal("unparseable due date should be ignored, not fail the fact")
	}
}
