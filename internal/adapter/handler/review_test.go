package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/teamsync/sprint-scribe/internal/domain/entities"
)

type fakeReviewQueue struct {
	open     []entities.ReviewItem
	byID     []entities.ReviewItem
	limit    int
	resolved []uuid.UUID
}

func (f *fakeReviewQueue) ListOpenReviewItems(_ context.Context, limit int) ([]entities.ReviewItem, error) {
	f.limit = limit
	return f.open, nil
}

func (f *fakeReviewQueue) ListReviewItemsByMeetingID(_ context.Context, meetingID string) ([]entities.ReviewItem, error) {
	return f.byID, nil
}

func (f *fakeReviewQueue) ResolveReviewItem(_ context.Context, itemID uuid.UUID) error {
	f.resolved = append(f.resolved, itemID)
	return nil
}

func TestReviewListDefaultsLimit(t *testing.T) {
	e := newEcho()
	queue := &fakeReviewQueue{open: []entities.ReviewItem{
		*entities.NewReviewItem("m1", "unresolved_reference", "the auth thing", "no ticket identifiable"),
	}}
	h := NewReviewHandler(queue, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/review", nil)
	rec := httptest.NewRecorder()

	if err := h.List(e.NewContext(req, rec)); err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if queue.limit != 50 {
		t.Fatalf("expected default limit 50, got %d", queue.limit)
	}
}

func TestReviewListRejectsBadLimit(t *testing.T) {
	e := newEcho()
	h := NewReviewHandler(&fakeReviewQueue{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/review?limit=zero", nil)
	rec := httptest.NewRecorder()

	if err := h.List(e.NewContext(req, rec)); err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestReviewResolve(t *testing.T) {
	e := newEcho()
	queue := &fakeReviewQueue{}
	h := NewReviewHandler(queue, nil)

	id := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/review/"+id.String()+"/resolve", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id.String())

	if err := h.Resolve(c); err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(queue.resolved) != 1 || queue.resolved[0] != id {
		t.Fatalf("resolve not forwarded: %v", queue.resolved)
	}
}

func TestReviewResolveRejectsBadID(t *testing.T) {
	e := newEcho()
	h := NewReviewHandler(&fakeReviewQueue{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/review/not-a-uuid/resolve", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	if err := h.Resolve(c); err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
