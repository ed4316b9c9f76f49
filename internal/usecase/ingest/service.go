package ingest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/teamsync/sprint-scribe/errors"
	"github.com/teamsync/sprint-scribe/internal/domain/entities"
	"github.com/teamsync/sprint-scribe/internal/infrastructure/external/tracker"
	"github.com/teamsync/sprint-scribe/internal/usecase/extraction"
	"github.com/teamsync/sprint-scribe/internal/usecase/reconcile"
	"github.com/teamsync/sprint-scribe/pkg/config"
	"github.com/teamsync/sprint-scribe/pkg/jobcontext"
)

// Extractor turns a transcript into candidate facts.
type Extractor interface {
	Extract(ctx context.Context, meeting *entities.Meeting, pctx extraction.PromptContext) (*entities.ExtractionResult, error)
}

// Reconciler applies candidate facts to the ticket store.
type Reconciler interface {
	Reconcile(ctx context.Context, meeting *entities.Meeting, facts []*entities.Fact) (*reconcile.Report, error)
	CancelMeeting(ctx context.Context, meetingID string) (int64, error)
}

// MemoryRecorder writes meetings into the memory store and retrieves
// extraction context.
type MemoryRecorder interface {
	Record(ctx context.Context, meeting *entities.Meeting) error
	ContextFor(ctx context.Context, topicHint string, limit int) []string
}

// MeetingStore persists meetings.
type MeetingStore interface {
	CreateMeeting(ctx context.Context, meeting *entities.Meeting) error
	GetMeetingByID(ctx context.Context, meetingID string) (*entities.Meeting, error)
	UpdateMeetingStatus(ctx context.Context, meetingID string, status entities.MeetingStatus) error
	SetArchiveObject(ctx context.Context, meetingID, objectKey string) error
}

// JobStore persists meeting jobs.
type JobStore interface {
	CreateJob(ctx context.Context, job *entities.MeetingJob) error
	GetJobByMeetingID(ctx context.Context, meetingID string) (*entities.MeetingJob, error)
	GetJobsForProcessing(ctx context.Context, limit int) ([]entities.MeetingJob, error)
	ClaimJob(ctx context.Context, jobID uuid.UUID, from entities.MeetingJobStatus) (bool, error)
	UpdateJobStatus(ctx context.Context, jobID uuid.UUID, status entities.MeetingJobStatus) error
	MarkJobAsCompleted(ctx context.Context, jobID uuid.UUID) error
	MarkJobAsFailed(ctx context.Context, jobID uuid.UUID, errMsg string) error
	IncrementRetryCount(ctx context.Context, jobID uuid.UUID, errMsg string) error
	GetStuckJobs(ctx context.Context, maxAge time.Duration, limit int) ([]entities.MeetingJob, error)
}

// FactStore persists candidate facts.
type FactStore interface {
	CreateFact(ctx context.Context, fact *entities.Fact) (bool, error)
	GetFactByDedupKey(ctx context.Context, dedupKey string) (*entities.Fact, error)
}

// ReviewStore receives extraction flags and terminal failures.
type ReviewStore interface {
	CreateReviewItem(ctx context.Context, item *entities.ReviewItem) error
}

// Archiver stores the raw transcript durably. Nil disables archival.
type Archiver interface {
	ArchiveTranscript(ctx context.Context, meetingID, transcript string) (string, error)
}

// OpenTicketLister supplies the open ticket keys used as extraction context.
type OpenTicketLister interface {
	ListOpenTickets(ctx context.Context, project string) ([]tracker.Ticket, error)
}

// Service is the ingestion pipeline: one asynchronous job per meeting,
// carried through memory recording, extraction and reconciliation by a
// ticker-driven worker pool.
type Service struct {
	meetings  MeetingStore
	jobs      JobStore
	facts     FactStore
	reviews   ReviewStore
	extractor Extractor
	recon     Reconciler
	memory    MemoryRecorder
	archiver  Archiver
	tickets   OpenTicketLister
	cfg       *config.IngestConfig
	project   string
	ctxLimit  int
	logger    *zap.Logger

	workerMutex  sync.Mutex
	workerWg     sync.WaitGroup
	workerStop   chan struct{}
	workersAlive bool
}

// NewService creates a new ingestion service
func NewService(
	meetings MeetingStore,
	jobs JobStore,
	facts FactStore,
	reviews ReviewStore,
	extractor Extractor,
	recon Reconciler,
	memory MemoryRecorder,
	archiver Archiver,
	tickets OpenTicketLister,
	cfg *config.IngestConfig,
	project string,
	ctxLimit int,
	logger *zap.Logger,
) *Service {
	return &Service{
		meetings:  meetings,
		jobs:      jobs,
		facts:     facts,
		reviews:   reviews,
		extractor: extractor,
		recon:     recon,
		memory:    memory,
		archiver:  archiver,
		tickets:   tickets,
		cfg:       cfg,
		project:   project,
		ctxLimit:  ctxLimit,
		logger:    logger,
	}
}

// Ingest accepts one meeting from the transcript boundary. Idempotent per
// meeting id: a meeting that already has a job returns the existing job.
func (s *Service) Ingest(ctx context.Context, meeting *entities.Meeting) (*entities.MeetingJob, error) {
	if meeting == nil || meeting.ID == "" {
		return nil, apperrors.ErrValidationMissingField("meeting_id")
	}
	if strings.TrimSpace(meeting.Transcript) == "" {
		return nil, apperrors.ErrValidationMissingField("transcript")
	}

	if existing, err := s.jobs.GetJobByMeetingID(ctx, meeting.ID); err != nil {
		return nil, err
	} else if existing != nil {
		if s.logger != nil {
			s.logger.Info("⏭️ Meeting already ingested",
				zap.String("meeting_id", meeting.ID),
				zap.String("job_status", string(existing.Status)),
			)
		}
		return existing, nil
	}

	if err := s.meetings.CreateMeeting(ctx, meeting); err != nil {
		return nil, err
	}

	if s.archiver != nil {
		if key, err := s.archiver.ArchiveTranscript(ctx, meeting.ID, meeting.Transcript); err != nil {
			// Archival is durable-original storage, not the processing path.
			if s.logger != nil {
				s.logger.Warn("⚠️ Transcript archival failed",
					zap.String("meeting_id", meeting.ID),
					zap.Error(err),
				)
			}
		} else if err := s.meetings.SetArchiveObject(ctx, meeting.ID, key); err != nil && s.logger != nil {
			s.logger.Warn("⚠️ Could not record archive key", zap.Error(err))
		}
	}

	job := entities.NewMeetingJob(meeting.ID, s.cfg.MaxRetries)
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("✅ Meeting ingested",
			zap.String("meeting_id", meeting.ID),
			zap.String("job_id", job.ID.String()),
		)
	}
	return job, nil
}

// StartWorkerPool starts the background workers that drain meeting jobs.
func (s *Service) StartWorkerPool(ctx context.Context) error {
	s.workerMutex.Lock()
	defer s.workerMutex.Unlock()

	if s.workersAlive {
		return fmt.Errorf("worker pool already running")
	}
	s.workersAlive = true
	s.workerStop = make(chan struct{})

	if s.logger != nil {
		s.logger.Info("🚀 Starting ingest worker pool",
			zap.Int("worker_count", s.cfg.WorkerCount),
		)
	}

	for i := 0; i < s.cfg.WorkerCount; i++ {
		s.workerWg.Add(1)
		go s.meetingWorker(ctx, i)
	}

	s.workerWg.Add(1)
	go s.zombieJobWorker(ctx)

	return nil
}

// StopWorkerPool gracefully stops all worker goroutines.
func (s *Service) StopWorkerPool() error {
	s.workerMutex.Lock()
	defer s.workerMutex.Unlock()

	if !s.workersAlive {
		return fmt.Errorf("worker pool not running")
	}

	if s.logger != nil {
		s.logger.Info("🛑 Stopping ingest worker pool...")
	}

	close(s.workerStop)
	s.workerWg.Wait()
	s.workersAlive = false

	if s.logger != nil {
		s.logger.Info("✅ Ingest worker pool stopped")
	}
	return nil
}

// meetingWorker polls for claimable jobs and runs the pipeline for each.
func (s *Service) meetingWorker(parentCtx context.Context, workerID int) {
	defer s.workerWg.Done()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	if s.logger != nil {
		s.logger.Info("👷 Worker started", zap.Int("worker_id", workerID))
	}

	for {
		select {
		case <-s.workerStop:
			if s.logger != nil {
				s.logger.Info("👷 Worker stopping", zap.Int("worker_id", workerID))
			}
			return

		case <-ticker.C:
			jobs, err := s.jobs.GetJobsForProcessing(parentCtx, 1)
			if err != nil {
				if s.logger != nil {
					s.logger.Error("❌ Failed to poll jobs",
						zap.Int("worker_id", workerID),
						zap.Error(err),
					)
				}
				continue
			}
			if len(jobs) == 0 {
				continue
			}
			job := jobs[0]

			// Only one worker wins the claim when several see the same job.
			claimed, err := s.jobs.ClaimJob(parentCtx, job.ID, job.Status)
			if err != nil {
				if s.logger != nil {
					s.logger.Error("❌ Failed to claim job",
						zap.String("job_id", job.ID.String()),
						zap.Error(err),
					)
				}
				continue
			}
			if !claimed {
				if s.logger != nil {
					s.logger.Info("⏭️ Job already claimed by another worker",
						zap.String("job_id", job.ID.String()),
					)
				}
				continue
			}

			if s.logger != nil {
				s.logger.Info("👷 Worker claimed job",
					zap.Int("worker_id", workerID),
					zap.String("job_id", job.ID.String()),
					zap.String("meeting_id", job.MeetingID),
				)
			}

			jobCtx, cancel := jobcontext.JobBegin(parentCtx, job.ID, "meeting_pipeline", workerID)
			err = s.ProcessJob(jobCtx, &job)
			cancel()

			if err != nil {
				s.handleJobFailure(parentCtx, &job, err)
			} else {
				if markErr := s.jobs.MarkJobAsCompleted(parentCtx, job.ID); markErr != nil && s.logger != nil {
					s.logger.Error("❌ Failed to mark job completed", zap.Error(markErr))
				}
				if s.logger != nil {
					s.logger.Info("✅ Job completed successfully",
						zap.String("job_id", job.ID.String()),
						zap.Duration("duration", jobcontext.Elapsed(jobCtx)),
					)
				}
			}
		}
	}
}

// ProcessJob runs the full pipeline for one claimed job: memory record,
// extraction, fact persistence, reconciliation.
func (s *Service) ProcessJob(ctx context.Context, job *entities.MeetingJob) error {
	meeting, err := s.meetings.GetMeetingByID(ctx, job.MeetingID)
	if err != nil {
		return err
	}
	if meeting == nil {
		return apperrors.ErrNotFound("meeting")
	}

	if err := s.meetings.UpdateMeetingStatus(ctx, meeting.ID, entities.MeetingStatusProcessing); err != nil {
		return err
	}

	// Memory write is independent of reconciliation outcome and idempotent.
	if err := s.memory.Record(ctx, meeting); err != nil {
		return err
	}

	pctx := s.buildPromptContext(ctx, meeting)

	result, err := s.extractor.Extract(ctx, meeting, pctx)
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.ErrorCode_EXTRACTION_UNPARSEABLE {
			// Terminal extraction failures surface in the review queue,
			// never as silent drops.
			s.review(ctx, entities.NewReviewItem(meeting.ID, "extraction",
				truncateForReview(meeting.Transcript), err.Error()))
		}
		return err
	}

	// Ambiguous mentions the extractor flagged go to the review queue.
	for _, flag := range result.Flags {
		s.review(ctx, entities.NewReviewItem(meeting.ID, "low_confidence", flag.Text, flag.Reason))
	}
	for _, reason := range result.Dropped {
		s.review(ctx, entities.NewReviewItem(meeting.ID, "malformed", reason, "dropped by schema validation"))
	}

	facts := make([]*entities.Fact, 0, len(result.Facts()))
	for _, fact := range result.Facts() {
		created, err := s.facts.CreateFact(ctx, fact)
		if err != nil {
			return err
		}
		if !created {
			// A prior run already stored this fact; reuse the stored row so
			// reconciliation jobs reference it.
			stored, err := s.facts.GetFactByDedupKey(ctx, fact.DedupKey)
			if err != nil {
				return err
			}
			if stored != nil {
				fact = stored
			}
		}
		facts = append(facts, fact)
	}

	if err := s.jobs.UpdateJobStatus(ctx, job.ID, entities.MeetingJobStatusReconciling); err != nil {
		return err
	}

	if _, err := s.recon.Reconcile(ctx, meeting, facts); err != nil {
		return err
	}

	return s.meetings.UpdateMeetingStatus(ctx, meeting.ID, entities.MeetingStatusProcessed)
}

// buildPromptContext assembles memory excerpts and open ticket keys for the
// extraction prompt. Both are best effort.
func (s *Service) buildPromptContext(ctx context.Context, meeting *entities.Meeting) extraction.PromptContext {
	hint := strings.Join(meeting.Participants, " ")
	if len(meeting.Transcript) > 200 {
		hint += " " + meeting.Transcript[:200]
	} else {
		hint += " " + meeting.Transcript
	}

	pctx := extraction.PromptContext{
		MemoryExcerpts: s.memory.ContextFor(ctx, hint, s.ctxLimit),
	}

	if s.tickets != nil {
		open, err := s.tickets.ListOpenTickets(ctx, s.project)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("⚠️ Could not list open tickets for context", zap.Error(err))
			}
		} else {
			for _, t := range open {
				pctx.OpenTicketKeys = append(pctx.OpenTicketKeys, t.Key)
			}
		}
	}
	return pctx
}

// handleJobFailure retries retryable jobs and parks the rest.
func (s *Service) handleJobFailure(ctx context.Context, job *entities.MeetingJob, cause error) {
	if s.logger != nil {
		s.logger.Error("❌ Job failed",
			zap.String("job_id", job.ID.String()),
			zap.String("meeting_id", job.MeetingID),
			zap.Int("retry_count", job.RetryCount),
			zap.Error(cause),
		)
	}

	retryable := !jobcontext.IsNonRetryableError(cause) &&
		apperrors.CodeOf(cause) != apperrors.ErrorCode_EXTRACTION_UNPARSEABLE

	if retryable && job.RetryCount < job.MaxRetries-1 {
		if err := s.jobs.IncrementRetryCount(ctx, job.ID, cause.Error()); err != nil && s.logger != nil {
			s.logger.Error("❌ Failed to requeue job", zap.Error(err))
		}
		return
	}

	if err := s.jobs.MarkJobAsFailed(ctx, job.ID, cause.Error()); err != nil && s.logger != nil {
		s.logger.Error("❌ Failed to mark job failed", zap.Error(err))
	}
	if err := s.meetings.UpdateMeetingStatus(ctx, job.MeetingID, entities.MeetingStatusFailed); err != nil && s.logger != nil {
		s.logger.Error("❌ Failed to mark meeting failed", zap.Error(err))
	}
}

// zombieJobWorker rescues jobs whose worker died mid-flight.
func (s *Service) zombieJobWorker(parentCtx context.Context) {
	defer s.workerWg.Done()

	interval := s.cfg.JobTimeout
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.workerStop:
			return
		case <-ticker.C:
			stuck, err := s.jobs.GetStuckJobs(parentCtx, 2*interval, 10)
			if err != nil {
				if s.logger != nil {
					s.logger.Error("❌ Zombie scan failed", zap.Error(err))
				}
				continue
			}
			for _, job := range stuck {
				if s.logger != nil {
					s.logger.Warn("🧹 Cleaning up zombie job",
						zap.String("job_id", job.ID.String()),
						zap.String("meeting_id", job.MeetingID),
					)
				}
				if job.RetryCount < job.MaxRetries-1 {
					if err := s.jobs.IncrementRetryCount(parentCtx, job.ID, "worker timed out"); err != nil && s.logger != nil {
						s.logger.Error("❌ Failed to reset zombie job", zap.Error(err))
					}
				} else {
					if err := s.jobs.MarkJobAsFailed(parentCtx, job.ID, "worker timed out"); err != nil && s.logger != nil {
						s.logger.Error("❌ Failed to fail zombie job", zap.Error(err))
					}
				}
			}
		}
	}
}

// Cancel marks a meeting's job cancelled and skips its not-yet-applying
// reconciliation jobs.
func (s *Service) Cancel(ctx context.Context, meetingID string) error {
	job, err := s.jobs.GetJobByMeetingID(ctx, meetingID)
	if err != nil {
		return err
	}
	if job == nil {
		return apperrors.ErrNotFound("meeting job")
	}
	if job.IsTerminal() {
		return apperrors.ErrInvalidArgument("job already in a terminal state")
	}

	if err := s.jobs.UpdateJobStatus(ctx, job.ID, entities.MeetingJobStatusCancelled); err != nil {
		return err
	}
	if _, err := s.recon.CancelMeeting(ctx, meetingID); err != nil {
		return err
	}
	return nil
}

func (s *Service) review(ctx context.Context, item *entities.ReviewItem) {
	if err := s.reviews.CreateReviewItem(ctx, item); err != nil && s.logger != nil {
		s.logger.Warn("⚠️ Could not enqueue review item", zap.Error(err))
	}
}

func truncateForReview(s string) string {
	if len(s) > 500 {
		return s[:500]
	}
	return s
}
