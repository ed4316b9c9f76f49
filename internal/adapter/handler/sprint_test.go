package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/teamsync/sprint-scribe/internal/domain/entities"
)

type fakeSprintAnalyzer struct {
	snapshot *entities.SprintSnapshot
	analyzed []string
}

func (f *fakeSprintAnalyzer) Analyze(_ context.Context, sprintID string) (*entities.SprintSnapshot, error) {
	f.analyzed = append(f.analyzed, sprintID)
	return f.snapshot, nil
}

func (f *fakeSprintAnalyzer) Latest(_ context.Context, sprintID string) (*entities.SprintSnapshot, error) {
	return f.snapshot, nil
}

func TestSprintAnalyze(t *testing.T) {
	e := newEcho()
	svc := &fakeSprintAnalyzer{snapshot: &entities.SprintSnapshot{
		SprintID:     "42",
		HealthStatus: entities.SprintHealthOnTrack,
	}}
	h := NewSprintHandler(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/sprints/42/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("42")

	if err := h.Analyze(c); err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(svc.analyzed) != 1 || svc.analyzed[0] != "42" {
		t.Fatalf("analyze not forwarded: %v", svc.analyzed)
	}
	if !strings.Contains(rec.Body.String(), "on_track") {
		t.Fatalf("health status missing from body: %s", rec.Body.String())
	}
}

func TestSprintLatestNotFound(t *testing.T) {
	e := newEcho()
	h := NewSprintHandler(&fakeSprintAnalyzer{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/sprints/42/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("42")

	if err := h.Latest(c); err != nil {
		t.Fatalf("Latest returned error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
