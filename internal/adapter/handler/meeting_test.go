package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/teamsync/sprint-scribe/internal/domain/entities"
	"github.com/teamsync/sprint-scribe/internal/usecase/reconcile"
	"github.com/teamsync/sprint-scribe/pkg/validator"
)

type fakeIngestService struct {
	job       *entities.MeetingJob
	err       error
	ingested  []*entities.Meeting
	cancelled []string
}

func (f *fakeIngestService) Ingest(_ context.Context, m *entities.Meeting) (*entities.MeetingJob, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.ingested = append(f.ingested, m)
	return f.job, nil
}

func (f *fakeIngestService) Cancel(_ context.Context, meetingID string) error {
	f.cancelled = append(f.cancelled, meetingID)
	return f.err
}

type fakeReportService struct {
	report *reconcile.Report
	err    error
}

func (f *fakeReportService) Report(_ context.Context, meetingID string) (*reconcile.Report, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.report, nil
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = validator.New()
	return e
}

const ingestPayload = `{
	"meeting_id": "standup-2026-03-02",
	"timestamp": "2026-03-02T10:00:00Z",
	"participants": ["alice", "bob"],
	"transcript": "alice: PROJ-1 is done."
}`

func TestMeetingIngestAccepted(t *testing.T) {
	e := newEcho()
	svc := &fakeIngestService{job: entities.NewMeetingJob("standup-2026-03-02", 3)}
	h := NewMeetingHandler(svc, &fakeReportService{}, "", nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/meetings", strings.NewReader(ingestPayload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	if err := h.Ingest(e.NewContext(req, rec)); err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(svc.ingested) != 1 {
		t.Fatalf("expected 1 ingested meeting, got %d", len(svc.ingested))
	}
	m := svc.ingested[0]
	if m.ID != "standup-2026-03-02" || len(m.Participants) != 2 {
		t.Fatalf("meeting fields not mapped: %+v", m)
	}
	if !m.Timestamp.Equal(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("timestamp not mapped: %v", m.Timestamp)
	}
	if !strings.Contains(rec.Body.String(), `"job_id"`) {
		t.Fatalf("response missing job id: %s", rec.Body.String())
	}
}

func TestMeetingIngestRejectsMissingFields(t *testing.T) {
	e := newEcho()
	h := NewMeetingHandler(&fakeIngestService{}, &fakeReportService{}, "", nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/meetings",
		strings.NewReader(`{"meeting_id": "m1"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	if err := h.Ingest(e.NewContext(req, rec)); err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestMeetingIngestVerifiesSignature(t *testing.T) {
	e := newEcho()
	secret := "topsecret"
	svc := &fakeIngestService{job: entities.NewMeetingJob("standup-2026-03-02", 3)}
	h := NewMeetingHandler(svc, &fakeReportService{}, secret, nil)

	// Unsigned delivery is rejected.
	req := httptest.NewRequest(http.MethodPost, "/v1/meetings", strings.NewReader(ingestPayload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	if err := h.Ingest(e.NewContext(req, rec)); err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unsigned payload, got %d", rec.Code)
	}

	// Correctly signed delivery is accepted.
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ingestPayload))
	sig := hex.EncodeToString(mac.Sum(nil))

	req = httptest.NewRequest(http.MethodPost, "/v1/meetings", strings.NewReader(ingestPayload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("X-Signature", sig)
	rec = httptest.NewRecorder()
	if err := h.Ingest(e.NewContext(req, rec)); err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202 for signed payload, got %d", rec.Code)
	}
}

func TestMeetingReport(t *testing.T) {
	e := newEcho()
	report := &reconcile.Report{MeetingID: "m1"}
	h := NewMeetingHandler(&fakeIngestService{}, &fakeReportService{report: report}, "", nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/meetings/m1/report", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("m1")

	if err := h.Report(c); err != nil {
		t.Fatalf("Report returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"meeting_id":"m1"`) {
		t.Fatalf("report body missing meeting id: %s", rec.Body.String())
	}
}

func TestMeetingCancel(t *testing.T) {
	e := newEcho()
	svc := &fakeIngestService{}
	h := NewMeetingHandler(svc, &fakeReportService{}, "", nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/meetings/m1/cancel", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("m1")

	if err := h.Cancel(c); err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(svc.cancelled) != 1 || svc.cancelled[0] != "m1" {
		t.Fatalf("cancel not forwarded: %v", svc.cancelled)
	}
}
