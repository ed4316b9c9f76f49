package reconcile

import (
	"testing"

	"github.com/teamsync/sprint-scribe/internal/domain/entities"
	"github.com/teamsync/sprint-scribe/internal/infrastructure/external/tracker"
)

func TestExtractTicketKey(t *testing.T) {
	cases := map[string]string{
		"PROJ-123 is blocked on API access":   "PROJ-123",
		"let's pick up proj-45 tomorrow":      "PROJ-45",
		"no ticket mentioned here":            "",
		"ABC2-9 and DEF-10 both came up":      "ABC2-9",
	}
	for input, want := range cases {
		if got := ExtractTicketKey(input); got != want {
			t.Errorf("ExtractTicketKey(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestMatch_ExplicitKeyOnFact(t *testing.T) {
	m := NewMatcher(0.55)
	fact := entities.NewFact("m1", entities.FactKindTicketUpdate, "k", "move it to done")
	fact.TicketKey = "PROJ-7"

	key, ok := m.Match(fact, nil)
	if !ok || key != "PROJ-7" {
		t.Fatalf("expected PROJ-7, got %q ok=%v", key, ok)
	}
}

func TestMatch_KeyInDescription(t *testing.T) {
	m := NewMatcher(0.55)
	fact := entities.NewFact("m1", entities.FactKindBlocker, "k", "PROJ-123 is blocked on API access")

	key, ok := m.Match(fact, nil)
	if !ok || key != "PROJ-123" {
		t.Fatalf("expected PROJ-123, got %q ok=%v", key, ok)
	}
}

func TestMatch_FuzzySimilarity(t *testing.T) {
	m := NewMatcher(0.5)
	open := []tracker.Ticket{
		{Key: "PROJ-1", Fields: map[string]interface{}{"summary": "Fix login bug on mobile"}},
		{Key: "PROJ-2", Fields: map[string]interface{}{"summary": "Upgrade payment gateway"}},
	}
	fact := entities.NewFact("m1", entities.FactKindTicketUpdate, "k", "fix the login bug")

	key, ok := m.Match(fact, open)
	if !ok || key != "PROJ-1" {
		t.Fatalf("expected fuzzy match to PROJ-1, got %q ok=%v", key, ok)
	}
}

func TestMatch_BelowThreshold(t *testing.T) {
	m := NewMatcher(0.9)
	open := []tracker.Ticket{
		{Key: "PROJ-1", Fields: map[string]interface{}{"summary": "Fix login bug on mobile"}},
	}
	fact := entities.NewFact("m1", entities.FactKindDecision, "k", "we will adopt trunk based development")

	if _, ok := m.Match(fact, open); ok {
		t.Fatal("weak similarity should not match at high threshold")
	}
}

func TestSimilarity_Bounds(t *testing.T) {
	if s := Similarity("fix login bug", "fix login bug"); s != 1.0 {
		t.Fatalf("identical text should score 1.0, got %f", s)
	}
	if s := Similarity("alpha beta", "gamma delta"); s != 0.0 {
		t.Fatalf("disjoint text should score 0.0, got %f", s)
	}
	if s := Similarity("", "anything"); s != 0.0 {
		t.Fatalf("empty text should score 0.0, got %f", s)
	}
}
