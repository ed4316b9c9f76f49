package extraction

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	apperrors "github.com/teamsync/sprint-scribe/errors"
	"github.com/teamsync/sprint-scribe/internal/domain/entities"
	"github.com/teamsync/sprint-scribe/pkg/config"
	"github.com/teamsync/sprint-scribe/pkg/retry"
)

type fakeLLM struct {
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

func (f *fakeLLM) Complete(_ context.Context, _, prompt string) (string, error) {
	i := f.calls
	f.calls++
	f.prompts = append(f.prompts, prompt)
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	var resp string
	if i < len(f.responses) {
		resp = f.responses[i]
	}
	return resp, err
}

func newTestService(llm *fakeLLM) *Service {
	return NewService(
		llm,
		NewSchemaValidator("customfield_10002"),
		retry.Policy{MaxAttempts: 1},
		&config.ExtractConfig{ContextExcerpts: 5, MaxPromptBytes: 48000},
		nil,
	)
}

func testMeeting(transcript string) *entities.Meeting {
	return entities.NewMeeting("standup-2026-02-03", time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC), []string{"john", "sarah"}, transcript)
}

func contains(s, sub string) bool {
	return strings.Contains(s, sub)
}

const validPayload = `{
  "action_items": [{"task": "Update API documentation", "assignee": "John"}],
  "ticket_updates": [{"ticket_key": "proj-123", "status": "In Progress", "comment": "Working on auth flow"}],
  "blockers": [{"description": "Waiting for design input", "for_ticket": "PROJ-127", "mentioned_by": "David"}],
  "decisions": [{"topic": "API Design", "decision": "Use REST for the new endpoints"}],
  "low_confidence": []
}`

func TestExtract_Success(t *testing.T) {
	llm := &fakeLLM{responses: []string{validPayload}}
	svc := newTestService(llm)

	result, err := svc.Extract(context.Background(), testMeeting("standup transcript"), PromptContext{})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if llm.calls != 1 {
		t.Fatalf("expected 1 llm call, got %d", llm.calls)
	}
	if len(result.ActionItems) != 1 || len(result.TicketUpdates) != 1 || len(result.Blockers) != 1 || len(result.Decisions) != 1 {
		t.Fatalf("unexpected result counts: %+v", result)
	}
	if result.TicketUpdates[0].TicketKey != "PROJ-123" {
		t.Fatalf("ticket key not normalized: %s", result.TicketUpdates[0].TicketKey)
	}
}

func TestExtract_MarkdownFencedOutput(t *testing.T) {
	llm := &fakeLLM{responses: []string{"```json\n" + validPayload + "\n```"}}
	svc := newTestService(llm)

	result, err := svc.Extract(context.Background(), testMeeting("standup"), PromptContext{})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if len(result.ActionItems) != 1 {
		t.Fatalf("expected 1 action item, got %d", len(result.ActionItems))
	}
	if llm.calls != 1 {
		t.Fatalf("fenced output should not trigger a retry, got %d calls", llm.calls)
	}
}

func TestExtract_RetriesOnceWithStricterInstruction(t *testing.T) {
	llm := &fakeLLM{responses: []string{"I could not find any JSON here", validPayload}}
	svc := newTestService(llm)

	result, err := svc.Extract(context.Background(), testMeeting("standup"), PromptContext{})
	if err != nil {
		t.Fatalf("extract should succeed using retry result: %v", err)
	}
	if llm.calls != 2 {
		t.Fatalf("expected 2 llm calls, got %d", llm.calls)
	}
	if len(result.ActionItems) != 1 {
		t.Fatalf("expected retry result to be used")
	}
	if len(llm.prompts) != 2 || llm.prompts[1] == llm.prompts[0] {
		t.Fatalf("second prompt should carry the stricter instruction")
	}
}

func TestExtract_UnparseableAfterRetry(t *testing.T) {
	llm := &fakeLLM{responses: []string{"garbage", "still garbage"}}
	svc := newTestService(llm)

	_, err := svc.Extract(context.Background(), testMeeting("standup"), PromptContext{})
	if err == nil {
		t.Fatal("expected unparseable error")
	}
	if apperrors.CodeOf(err) != apperrors.ErrorCode_EXTRACTION_UNPARSEABLE {
		t.Fatalf("expected EXTRACTION_UNPARSEABLE, got %v", err)
	}
}

func TestExtract_CollaboratorError(t *testing.T) {
	llm := &fakeLLM{errs: []error{errors.New("boom")}}
	svc := newTestService(llm)

	_, err := svc.Extract(context.Background(), testMeeting("standup"), PromptContext{})
	if err == nil {
		t.Fatal("expected error from collaborator")
	}
}

func TestExtract_NoFactsPayload(t *testing.T) {
	llm := &fakeLLM{responses: []string{`{"action_items": [], "ticket_updates": [], "blockers": [], "decisions": [], "low_confidence": []}`}}
	svc := newTestService(llm)

	result, err := svc.Extract(context.Background(), testMeeting("nothing happened today"), PromptContext{})
	if err != nil {
		t.Fatalf("empty payload should not be an error: %v", err)
	}
	if len(result.ActionItems)+len(result.TicketUpdates)+len(result.Blockers)+len(result.Decisions) != 0 {
		t.Fatalf("expected no facts, got %+v", result)
	}
	if llm.calls != 1 {
		t.Fatalf("empty payload should not trigger a retry, got %d calls", llm.calls)
	}
	if !(&entities.RawExtraction{}).Empty() {
		t.Fatal("payload without facts should report empty")
	}
	withFact := &entities.RawExtraction{Decisions: []entities.RawDecision{{Topic: "t", Decision: "d"}}}
	if withFact.Empty() {
		t.Fatal("payload carrying a decision should not report empty")
	}
}

func TestExtract_EmptyTranscript(t *testing.T) {
	svc := newTestService(&fakeLLM{})
	_, err := svc.Extract(context.Background(), testMeeting("   "), PromptContext{})
	if apperrors.CodeOf(err) != apperrors.ErrorCode_VALIDATION_MISSING_FIELD {
		t.Fatalf("expected VALIDATION_MISSING_FIELD, got %v", err)
	}
}

func TestBuildPrompt_IncludesContext(t *testing.T) {
	prompt := BuildPrompt("the transcript body", PromptContext{
		MemoryExcerpts: []string{"last week we discussed auth"},
		OpenTicketKeys: []string{"PROJ-1", "PROJ-2"},
	}, 0)

	for _, want := range []string{"the transcript body", "last week we discussed auth", "PROJ-1, PROJ-2", "action_items"} {
		if !contains(prompt, want) {
			t.Fatalf("prompt missing %q", want)
		}
	}
}

func TestBuildPrompt_TruncatesTranscript(t *testing.T) {
	long := make([]byte, 1000)
	for i := range long {
		long[i] = 'a'
	}
	prompt := BuildPrompt(string(long), PromptContext{}, 100)
	if contains(prompt, string(long)) {
		t.Fatal("transcript should have been truncated")
	}
}

func TestBuildPrompt_TruncatesOnRuneBoundary(t *testing.T) {
	transcript := strings.Repeat("会議の議事録です ", 50)
	for _, maxBytes := range []int{100, 101, 102, 103} {
		prompt := BuildPrompt(transcript, PromptContext{}, maxBytes)
		if !utf8.ValidString(prompt) {
			t.Fatalf("maxBytes=%d produced invalid UTF-8", maxBytes)
		}
	}
}
