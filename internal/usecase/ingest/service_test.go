package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/teamsync/sprint-scribe/errors"
	"github.com/teamsync/sprint-scribe/internal/domain/entities"
	"github.com/teamsync/sprint-scribe/internal/infrastructure/external/tracker"
	"github.com/teamsync/sprint-scribe/internal/usecase/extraction"
	"github.com/teamsync/sprint-scribe/internal/usecase/reconcile"
	"github.com/teamsync/sprint-scribe/pkg/config"
)

type fakeMeetingStore struct {
	meetings map[string]*entities.Meeting
	statuses []entities.MeetingStatus
}

func newFakeMeetingStore() *fakeMeetingStore {
	return &fakeMeetingStore{meetings: make(map[string]*entities.Meeting)}
}

func (f *fakeMeetingStore) CreateMeeting(_ context.Context, m *entities.Meeting) error {
	f.meetings[m.ID] = m
	return nil
}

func (f *fakeMeetingStore) GetMeetingByID(_ context.Context, id string) (*entities.Meeting, error) {
	return f.meetings[id], nil
}

func (f *fakeMeetingStore) UpdateMeetingStatus(_ context.Context, id string, status entities.MeetingStatus) error {
	if m, ok := f.meetings[id]; ok {
		m.Status = status
	}
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakeMeetingStore) SetArchiveObject(_ context.Context, id, key string) error {
	if m, ok := f.meetings[id]; ok {
		m.ArchiveObject = key
	}
	return nil
}

type fakeJobStore struct {
	jobs      map[uuid.UUID]*entities.MeetingJob
	byMeeting map[string]*entities.MeetingJob
	failed    []string
	retried   []string
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{
		jobs:      make(map[uuid.UUID]*entities.MeetingJob),
		byMeeting: make(map[string]*entities.MeetingJob),
	}
}

func (f *fakeJobStore) CreateJob(_ context.Context, job *entities.MeetingJob) error {
	f.jobs[job.ID] = job
	f.byMeeting[job.MeetingID] = job
	return nil
}

func (f *fakeJobStore) GetJobByMeetingID(_ context.Context, meetingID string) (*entities.MeetingJob, error) {
	return f.byMeeting[meetingID], nil
}

func (f *fakeJobStore) GetJobsForProcessing(_ context.Context, limit int) ([]entities.MeetingJob, error) {
	var out []entities.MeetingJob
	for _, j := range f.jobs {
		if j.Status == entities.MeetingJobStatusPending && len(out) < limit {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (f *fakeJobStore) ClaimJob(_ context.Context, jobID uuid.UUID, from entities.MeetingJobStatus) (bool, error) {
	job, ok := f.jobs[jobID]
	if !ok || job.Status != from {
		return false, nil
	}
	job.Status = entities.MeetingJobStatusExtracting
	return true, nil
}

func (f *fakeJobStore) UpdateJobStatus(_ context.Context, jobID uuid.UUID, status entities.MeetingJobStatus) error {
	if j, ok := f.jobs[jobID]; ok {
		j.Status = status
	}
	return nil
}

func (f *fakeJobStore) MarkJobAsCompleted(_ context.Context, jobID uuid.UUID) error {
	return f.UpdateJobStatus(nil, jobID, entities.MeetingJobStatusCompleted)
}

func (f *fakeJobStore) MarkJobAsFailed(_ context.Context, jobID uuid.UUID, errMsg string) error {
	f.failed = append(f.failed, errMsg)
	return f.UpdateJobStatus(nil, jobID, entities.MeetingJobStatusFailed)
}

func (f *fakeJobStore) IncrementRetryCount(_ context.Context, jobID uuid.UUID, errMsg string) error {
	f.retried = append(f.retried, errMsg)
	if j, ok := f.jobs[jobID]; ok {
		j.RetryCount++
		j.Status = entities.MeetingJobStatusRetrying
	}
	return nil
}

func (f *fakeJobStore) GetStuckJobs(_ context.Context, _ time.Duration, _ int) ([]entities.MeetingJob, error) {
	return nil, nil
}

type fakeFactStore struct {
	facts map[string]*entities.Fact
}

func newFakeFactStore() *fakeFactStore {
	return &fakeFactStore{facts: make(map[string]*entities.Fact)}
}

func (f *fakeFactStore) CreateFact(_ context.Context, fact *entities.Fact) (bool, error) {
	if _, ok := f.facts[fact.DedupKey]; ok {
		return false, nil
	}
	f.facts[fact.DedupKey] = fact
	return true, nil
}

func (f *fakeFactStore) GetFactByDedupKey(_ context.Context, dedupKey string) (*entities.Fact, error) {
	return f.facts[dedupKey], nil
}

type fakeReviewStore struct {
	items []*entities.ReviewItem
}

func (f *fakeReviewStore) CreateReviewItem(_ context.Context, item *entities.ReviewItem) error {
	f.items = append(f.items, item)
	return nil
}

type fakeExtractor struct {
	result *entities.ExtractionResult
	err    error
	pctx   extraction.PromptContext
	calls  int
}

func (f *fakeExtractor) Extract(_ context.Context, _ *entities.Meeting, pctx extraction.PromptContext) (*entities.ExtractionResult, error) {
	f.calls++
	f.pctx = pctx
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeReconciler struct {
	facts     []*entities.Fact
	cancelled []string
	err       error
}

func (f *fakeReconciler) Reconcile(_ context.Context, _ *entities.Meeting, facts []*entities.Fact) (*reconcile.Report, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.facts = facts
	return &reconcile.Report{}, nil
}

func (f *fakeReconciler) CancelMeeting(_ context.Context, meetingID string) (int64, error) {
	f.cancelled = append(f.cancelled, meetingID)
	return 1, nil
}

type fakeMemory struct {
	recorded []string
	excerpts []string
	err      error
}

func (f *fakeMemory) Record(_ context.Context, m *entities.Meeting) error {
	if f.err != nil {
		return f.err
	}
	f.recorded = append(f.recorded, m.ID)
	return nil
}

func (f *fakeMemory) ContextFor(_ context.Context, _ string, _ int) []string {
	return f.excerpts
}

type fakeTicketLister struct {
	tickets []tracker.Ticket
}

func (f *fakeTicketLister) ListOpenTickets(_ context.Context, _ string) ([]tracker.Ticket, error) {
	return f.tickets, nil
}

type ingestFixture struct {
	svc      *Service
	meetings *fakeMeetingStore
	jobs     *fakeJobStore
	facts    *fakeFactStore
	reviews  *fakeReviewStore
	ext      *fakeExtractor
	recon    *fakeReconciler
	memory   *fakeMemory
}

func newIngestFixture() *ingestFixture {
	fx := &ingestFixture{
		meetings: newFakeMeetingStore(),
		jobs:     newFakeJobStore(),
		facts:    newFakeFactStore(),
		reviews:  &fakeReviewStore{},
		ext:      &fakeExtractor{result: &entities.ExtractionResult{}},
		recon:    &fakeReconciler{},
		memory:   &fakeMemory{excerpts: []string{"earlier: discussed PROJ-1"}},
	}
	cfg := &config.IngestConfig{
		WorkerCount:  1,
		PollInterval: 10 * time.Millisecond,
		JobTimeout:   time.Minute,
		MaxRetries:   3,
	}
	fx.svc = NewService(
		fx.meetings, fx.jobs, fx.facts, fx.reviews,
		fx.ext, fx.recon, fx.memory,
		nil,
		&fakeTicketLister{tickets: []tracker.Ticket{{Key: "PROJ-1"}, {Key: "PROJ-2"}}},
		cfg, "PROJ", 5, nil,
	)
	return fx
}

func standupMeeting(id string) *entities.Meeting {
	return entities.NewMeeting(id, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		[]string{"alice", "bob"}, "alice: PROJ-1 is done. bob: I will review it.")
}

func TestIngestCreatesMeetingAndJob(t *testing.T) {
	fx := newIngestFixture()

	job, err := fx.svc.Ingest(context.Background(), standupMeeting("m1"))
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if job == nil || job.Status != entities.MeetingJobStatusPending {
		t.Fatalf("expected a pending job, got %+v", job)
	}
	if fx.meetings.meetings["m1"] == nil {
		t.Fatal("meeting was not persisted")
	}
}

func TestIngestIsIdempotentPerMeeting(t *testing.T) {
	fx := newIngestFixture()
	ctx := context.Background()

	first, err := fx.svc.Ingest(ctx, standupMeeting("m1"))
	if err != nil {
		t.Fatalf("first Ingest failed: %v", err)
	}
	second, err := fx.svc.Ingest(ctx, standupMeeting("m1"))
	if err != nil {
		t.Fatalf("second Ingest failed: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected the same job, got %s and %s", first.ID, second.ID)
	}
	if len(fx.jobs.jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(fx.jobs.jobs))
	}
}

func TestIngestRejectsEmptyTranscript(t *testing.T) {
	fx := newIngestFixture()

	m := standupMeeting("m1")
	m.Transcript = "   "
	_, err := fx.svc.Ingest(context.Background(), m)
	if apperrors.CodeOf(err) != apperrors.ErrorCode_VALIDATION_MISSING_FIELD {
		t.Fatalf("expected VALIDATION_MISSING_FIELD, got %v", err)
	}
}

func TestProcessJobRunsFullPipeline(t *testing.T) {
	fx := newIngestFixture()
	ctx := context.Background()

	fact := entities.NewFact("m1", entities.FactKindActionItem, "dk-1", "Review PROJ-1")
	fx.ext.result = &entities.ExtractionResult{ActionItems: []*entities.Fact{fact}}

	job, err := fx.svc.Ingest(ctx, standupMeeting("m1"))
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if err := fx.svc.ProcessJob(ctx, job); err != nil {
		t.Fatalf("ProcessJob failed: %v", err)
	}

	if len(fx.memory.recorded) != 1 || fx.memory.recorded[0] != "m1" {
		t.Fatalf("meeting was not recorded into memory: %v", fx.memory.recorded)
	}
	if len(fx.recon.facts) != 1 || fx.recon.facts[0].DedupKey != "dk-1" {
		t.Fatalf("reconciler did not receive the persisted fact: %+v", fx.recon.facts)
	}
	if got := fx.meetings.meetings["m1"].Status; got != entities.MeetingStatusProcessed {
		t.Fatalf("expected meeting processed, got %s", got)
	}
	// The prompt context must carry memory excerpts and open ticket keys.
	if len(fx.ext.pctx.MemoryExcerpts) != 1 {
		t.Fatalf("expected 1 memory excerpt, got %d", len(fx.ext.pctx.MemoryExcerpts))
	}
	if len(fx.ext.pctx.OpenTicketKeys) != 2 {
		t.Fatalf("expected 2 open ticket keys, got %v", fx.ext.pctx.OpenTicketKeys)
	}
}

func TestProcessJobReusesStoredFactOnReplay(t *testing.T) {
	fx := newIngestFixture()
	ctx := context.Background()

	stored := entities.NewFact("m1", entities.FactKindActionItem, "dk-1", "Review PROJ-1")
	stored.Status = entities.FactStatusApplied
	fx.facts.facts["dk-1"] = stored

	fresh := entities.NewFact("m1", entities.FactKindActionItem, "dk-1", "Review PROJ-1")
	fx.ext.result = &entities.ExtractionResult{ActionItems: []*entities.Fact{fresh}}

	job, _ := fx.svc.Ingest(ctx, standupMeeting("m1"))
	if err := fx.svc.ProcessJob(ctx, job); err != nil {
		t.Fatalf("ProcessJob failed: %v", err)
	}

	if len(fx.recon.facts) != 1 || fx.recon.facts[0].ID != stored.ID {
		t.Fatal("expected the previously stored fact to be reused")
	}
}

func TestProcessJobRoutesFlagsToReviewQueue(t *testing.T) {
	fx := newIngestFixture()
	ctx := context.Background()

	fx.ext.result = &entities.ExtractionResult{
		Flags:   []entities.RawFlag{{Text: "the auth thing", Reason: "no ticket identifiable"}},
		Dropped: []string{"action_items[0]: missing assignee"},
	}

	job, _ := fx.svc.Ingest(ctx, standupMeeting("m1"))
	if err := fx.svc.ProcessJob(ctx, job); err != nil {
		t.Fatalf("ProcessJob failed: %v", err)
	}

	if len(fx.reviews.items) != 2 {
		t.Fatalf("expected 2 review items, got %d", len(fx.reviews.items))
	}
	kinds := map[string]bool{}
	for _, item := range fx.reviews.items {
		kinds[item.Kind] = true
	}
	if !kinds["low_confidence"] || !kinds["malformed"] {
		t.Fatalf("unexpected review kinds: %v", kinds)
	}
}

func TestProcessJobUnparseableExtractionFilesReview(t *testing.T) {
	fx := newIngestFixture()
	ctx := context.Background()

	fx.ext.err = apperrors.ErrExtractionUnparseable(errors.New("not json"))

	job, _ := fx.svc.Ingest(ctx, standupMeeting("m1"))
	err := fx.svc.ProcessJob(ctx, job)
	if apperrors.CodeOf(err) != apperrors.ErrorCode_EXTRACTION_UNPARSEABLE {
		t.Fatalf("expected EXTRACTION_UNPARSEABLE, got %v", err)
	}
	if len(fx.reviews.items) != 1 || fx.reviews.items[0].Kind != "extraction" {
		t.Fatalf("expected an extraction review item, got %+v", fx.reviews.items)
	}
}

func TestHandleJobFailureRetriesThenFails(t *testing.T) {
	fx := newIngestFixture()
	ctx := context.Background()

	job, _ := fx.svc.Ingest(ctx, standupMeeting("m1"))
	cause := errors.New("tracker unavailable")

	fx.svc.handleJobFailure(ctx, job, cause)
	if len(fx.jobs.retried) != 1 {
		t.Fatalf("expected a retry, got retried=%v failed=%v", fx.jobs.retried, fx.jobs.failed)
	}

	job.RetryCount = job.MaxRetries - 1
	fx.svc.handleJobFailure(ctx, job, cause)
	if len(fx.jobs.failed) != 1 {
		t.Fatalf("expected a terminal failure, got %v", fx.jobs.failed)
	}
	if got := fx.meetings.meetings["m1"].Status; got != entities.MeetingStatusFailed {
		t.Fatalf("expected meeting failed, got %s", got)
	}
}

func TestHandleJobFailureUnparseableIsTerminal(t *testing.T) {
	fx := newIngestFixture()
	ctx := context.Background()

	job, _ := fx.svc.Ingest(ctx, standupMeeting("m1"))
	fx.svc.handleJobFailure(ctx, job, apperrors.ErrExtractionUnparseable(errors.New("not json")))

	if len(fx.jobs.retried) != 0 || len(fx.jobs.failed) != 1 {
		t.Fatalf("expected immediate failure, retried=%v failed=%v", fx.jobs.retried, fx.jobs.failed)
	}
}

func TestCancelSkipsPendingWork(t *testing.T) {
	fx := newIngestFixture()
	ctx := context.Background()

	job, _ := fx.svc.Ingest(ctx, standupMeeting("m1"))
	if err := fx.svc.Cancel(ctx, "m1"); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if fx.jobs.jobs[job.ID].Status != entities.MeetingJobStatusCancelled {
		t.Fatalf("expected cancelled job, got %s", fx.jobs.jobs[job.ID].Status)
	}
	if len(fx.recon.cancelled) != 1 || fx.recon.cancelled[0] != "m1" {
		t.Fatalf("reconciler was not told to cancel: %v", fx.recon.cancelled)
	}
}

func TestCancelUnknownMeeting(t *testing.T) {
	fx := newIngestFixture()

	err := fx.svc.Cancel(context.Background(), "nope")
	if apperrors.CodeOf(err) != apperrors.ErrorCode_NOT_FOUND {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}
