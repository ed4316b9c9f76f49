package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/teamsync/sprint-scribe/internal/domain/entities"
)

type fakeMemoryService struct {
	topic   string
	topK    int
	scored  []entities.ScoredMemoryRecord
	from    time.Time
	to      time.Time
	records []entities.MemoryRecord
}

func (f *fakeMemoryService) SearchTopic(_ context.Context, topic string, topK int) ([]entities.ScoredMemoryRecord, error) {
	f.topic = topic
	f.topK = topK
	return f.scored, nil
}

func (f *fakeMemoryService) SearchRange(_ context.Context, from, to time.Time) ([]entities.MemoryRecord, error) {
	f.from = from
	f.to = to
	return f.records, nil
}

func TestMemorySearchByTopic(t *testing.T) {
	e := newEcho()
	svc := &fakeMemoryService{scored: []entities.ScoredMemoryRecord{{
		MemoryRecord: entities.MemoryRecord{
			MeetingID:   "m1",
			Excerpt:     "we discussed the payment flow",
			MeetingTime: time.Date(2026, 2, 20, 9, 0, 0, 0, time.UTC),
		},
		Score: 0.91,
	}}}
	h := NewMemoryHandler(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/memory/search?topic=payments&limit=3", nil)
	rec := httptest.NewRecorder()

	if err := h.Search(e.NewContext(req, rec)); err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.topic != "payments" || svc.topK != 3 {
		t.Fatalf("query not forwarded: topic=%q topK=%d", svc.topic, svc.topK)
	}
	if !strings.Contains(rec.Body.String(), "payment flow") {
		t.Fatalf("excerpt missing from body: %s", rec.Body.String())
	}
}

func TestMemorySearchDefaultsLimit(t *testing.T) {
	e := newEcho()
	svc := &fakeMemoryService{}
	h := NewMemoryHandler(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/memory/search?topic=auth", nil)
	rec := httptest.NewRecorder()

	if err := h.Search(e.NewContext(req, rec)); err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if svc.topK != 5 {
		t.Fatalf("expected default limit 5, got %d", svc.topK)
	}
}

func TestMemorySearchByRange(t *testing.T) {
	e := newEcho()
	svc := &fakeMemoryService{records: []entities.MemoryRecord{{
		MeetingID:   "m2",
		Excerpt:     "sprint planning notes",
		MeetingTime: time.Date(2026, 2, 21, 9, 0, 0, 0, time.UTC),
	}}}
	h := NewMemoryHandler(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/memory/search?from=2026-02-01&to=2026-03-01", nil)
	rec := httptest.NewRecorder()

	if err := h.Search(e.NewContext(req, rec)); err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.from.IsZero() || svc.to.IsZero() {
		t.Fatal("range was not forwarded")
	}
	if !strings.Contains(rec.Body.String(), "sprint planning notes") {
		t.Fatalf("excerpt missing from body: %s", rec.Body.String())
	}
}

func TestMemorySearchRequiresTopicOrRange(t *testing.T) {
	e := newEcho()
	h := NewMemoryHandler(&fakeMemoryService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/memory/search", nil)
	rec := httptest.NewRecorder()

	if err := h.Search(e.NewContext(req, rec)); err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
