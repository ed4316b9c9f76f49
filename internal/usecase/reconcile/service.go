package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/teamsync/sprint-scribe/errors"
	"github.com/teamsync/sprint-scribe/internal/domain/entities"
	"github.com/teamsync/sprint-scribe/internal/infrastructure/cache"
	"github.com/teamsync/sprint-scribe/internal/infrastructure/external/tracker"
	"github.com/teamsync/sprint-scribe/pkg/config"
	"github.com/teamsync/sprint-scribe/pkg/retry"
)

// TrackerClient is the ticket-store collaborator boundary.
type TrackerClient interface {
	CreateTicket(ctx context.Context, fields map[string]interface{}) (string, error)
	GetTicket(ctx context.Context, key string) (*tracker.Ticket, error)
	UpdateTicket(ctx context.Context, key string, fields map[string]interface{}, revisionToken string) error
	AddComment(ctx context.Context, key, text string) error
	ListOpenTickets(ctx context.Context, project string) ([]tracker.Ticket, error)
}

// FactStore is the slice of fact persistence the engine needs.
type FactStore interface {
	UpdateFactStatus(ctx context.Context, factID uuid.UUID, status entities.FactStatus) error
	SetTicketKey(ctx context.Context, factID uuid.UUID, ticketKey string) error
	ListFactsByTicketKey(ctx context.Context, ticketKey string) ([]entities.Fact, error)
}

// ReconStore persists reconciliation jobs.
type ReconStore interface {
	CreateJob(ctx context.Context, job *entities.ReconJob) error
	UpdateJob(ctx context.Context, job *entities.ReconJob) error
	ListJobsByMeetingID(ctx context.Context, meetingID string) ([]entities.ReconJob, error)
	CancelPendingByMeetingID(ctx context.Context, meetingID string) (int64, error)
}

// AuditStore persists the applied-key ledger and the audit trail.
type AuditStore interface {
	RecordAppliedKey(ctx context.Context, key *entities.AppliedKey) (bool, error)
	IsApplied(ctx context.Context, dedupKey string) (bool, error)
	CreateAuditEntry(ctx context.Context, entry *entities.AuditEntry) error
}

// ReviewStore receives facts that could not be applied.
type ReviewStore interface {
	CreateReviewItem(ctx context.Context, item *entities.ReviewItem) error
}

// MeetingStore resolves meeting timestamps for conflict resolution.
type MeetingStore interface {
	GetMeetingByID(ctx context.Context, meetingID string) (*entities.Meeting, error)
}

// Report summarizes one reconciliation run.
type Report struct {
	MeetingID string             `json:"meeting_id"`
	Applied   []entities.ReconJob `json:"applied"`
	Skipped   []entities.ReconJob `json:"skipped"`
	Failed    []entities.ReconJob `json:"failed"`
}

// Service is the reconciliation engine: candidate facts in, idempotent
// ticket mutations plus an audit trail out. Per-ticket mutation is
// serialized through the ticket locker.
type Service struct {
	trackerClient TrackerClient
	locker        cache.TicketLocker
	factStore     FactStore
	reconStore    ReconStore
	auditStore    AuditStore
	reviewStore   ReviewStore
	meetingStore  MeetingStore
	matcher       *Matcher
	policy        retry.Policy
	project       string
	logger        *zap.Logger
}

// NewService creates a new reconciliation service
func NewService(
	trackerClient TrackerClient,
	locker cache.TicketLocker,
	factStore FactStore,
	reconStore ReconStore,
	auditStore AuditStore,
	reviewStore ReviewStore,
	meetingStore MeetingStore,
	cfg *config.ReconcileConfig,
	policy retry.Policy,
	project string,
	logger *zap.Logger,
) *Service {
	return &Service{
		trackerClient: trackerClient,
		locker:        locker,
		factStore:     factStore,
		reconStore:    reconStore,
		auditStore:    auditStore,
		reviewStore:   reviewStore,
		meetingStore:  meetingStore,
		matcher:       NewMatcher(cfg.MatchThreshold),
		policy:        policy,
		project:       project,
		logger:        logger,
	}
}

// Reconcile applies the facts of one meeting against the ticket store.
// Every fact ends in a terminal state; nothing is silently dropped.
func (s *Service) Reconcile(ctx context.Context, meeting *entities.Meeting, facts []*entities.Fact) (*Report, error) {
	if meeting == nil {
		return nil, apperrors.ErrValidationMissingField("meeting")
	}

	openTickets, err := s.trackerClient.ListOpenTickets(ctx, s.project)
	if err != nil {
		// Matching degrades to explicit keys only; facts needing fuzzy
		// resolution end up skipped rather than the whole run failing.
		if s.logger != nil {
			s.logger.Warn("⚠️ Could not list open tickets, matching degraded",
				zap.String("meeting_id", meeting.ID),
				zap.Error(err),
			)
		}
		openTickets = nil
	}

	report := &Report{MeetingID: meeting.ID}
	for _, fact := range facts {
		job := entities.NewReconJob(fact)
		if err := s.reconStore.CreateJob(ctx, job); err != nil {
			return nil, err
		}

		s.processFact(ctx, meeting, fact, job, openTickets)

		if err := s.reconStore.UpdateJob(ctx, job); err != nil {
			return nil, err
		}

		switch job.State {
		case entities.ReconStateApplied:
			report.Applied = append(report.Applied, *job)
		case entities.ReconStateSkipped:
			report.Skipped = append(report.Skipped, *job)
		default:
			report.Failed = append(report.Failed, *job)
		}
	}

	if s.logger != nil {
		s.logger.Info("✅ Reconciliation completed",
			zap.String("meeting_id", meeting.ID),
			zap.Int("applied", len(report.Applied)),
			zap.Int("skipped", len(report.Skipped)),
			zap.Int("failed", len(report.Failed)),
		)
	}
	return report, nil
}

// CancelMeeting skips every not-yet-applying job of a meeting. Once a fact
// entered APPLYING it runs to a terminal state regardless.
func (s *Service) CancelMeeting(ctx context.Context, meetingID string) (int64, error) {
	return s.reconStore.CancelPendingByMeetingID(ctx, meetingID)
}

// Report rebuilds the reconciliation report of a meeting from stored jobs.
func (s *Service) Report(ctx context.Context, meetingID string) (*Report, error) {
	jobs, err := s.reconStore.ListJobsByMeetingID(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	report := &Report{MeetingID: meetingID}
	for _, job := range jobs {
		switch job.State {
		case entities.ReconStateApplied:
			report.Applied = append(report.Applied, job)
		case entities.ReconStateSkipped:
			report.Skipped = append(report.Skipped, job)
		case entities.ReconStateFailed:
			report.Failed = append(report.Failed, job)
		}
	}
	return report, nil
}

// processFact drives one fact through MATCHING and APPLYING to a terminal
// state. A stale revision token requeues the fact into MATCHING once.
func (s *Service) processFact(ctx context.Context, meeting *entities.Meeting, fact *entities.Fact, job *entities.ReconJob, openTickets []tracker.Ticket) {
	for attempt := 0; ; attempt++ {
		job.State = entities.ReconStateMatching
		job.AttemptCount++

		targetKey, matched := s.matcher.Match(fact, openTickets)
		if !matched {
			if fact.RequiresTicket() {
				s.skipUnresolved(ctx, meeting, fact, job)
				return
			}
			// ActionItems and Blockers without a target become new tickets.
			s.applyAsNewTicket(ctx, meeting, fact, job)
			return
		}

		job.TicketKey = &targetKey
		if fact.TicketKey == "" {
			fact.TicketKey = targetKey
			if err := s.factStore.SetTicketKey(ctx, fact.ID, targetKey); err != nil && s.logger != nil {
				s.logger.Warn("⚠️ Could not persist resolved ticket key", zap.Error(err))
			}
		}

		err := s.applyToTicket(ctx, meeting, fact, job, targetKey)
		if errors.Is(err, tracker.ErrRevisionConflict) {
			if attempt == 0 {
				job.Requeued = true
				if s.logger != nil {
					s.logger.Info("🔄 Revision conflict, requeuing fact for one re-match",
						zap.String("ticket_key", targetKey),
						zap.String("dedup_key", fact.DedupKey),
					)
				}
				continue
			}
			s.failFact(ctx, meeting, fact, job, apperrors.ErrReconciliationConflict(targetKey, err))
			return
		}
		if err != nil {
			s.failFact(ctx, meeting, fact, job, err)
			return
		}
		return
	}
}

// applyToTicket performs the APPLYING phase for a fact with a resolved
// target, under the per-ticket lock.
func (s *Service) applyToTicket(ctx context.Context, meeting *entities.Meeting, fact *entities.Fact, job *entities.ReconJob, ticketKey string) error {
	release, err := s.locker.Acquire(ctx, ticketKey)
	if err != nil {
		return apperrors.ErrLockFailed(ticketKey, err)
	}
	defer release()

	job.State = entities.ReconStateApplying

	// Idempotency: a dedup key is applied at most once, crash-retry included.
	applied, err := s.auditStore.IsApplied(ctx, fact.DedupKey)
	if err != nil {
		return err
	}
	if applied {
		job.Skip(entities.SkipReasonDuplicate)
		return nil
	}

	// Later meeting wins on a contested (ticket, field).
	if winner, superseded := s.findSuperseder(ctx, meeting, fact, ticketKey); superseded {
		job.Skip(entities.SkipReasonSuperseded)
		job.SupersededBy = winner
		s.audit(ctx, &entities.AuditEntry{
			MeetingID: meeting.ID,
			TicketKey: ticketKey,
			Note:      fmt.Sprintf("superseded by fact %s from a later meeting", winner),
		})
		return nil
	}

	// Fresh revision token per operation; no ticket state is cached
	// across jobs.
	var current *tracker.Ticket
	err = s.policy.Do(ctx, func() error {
		var fetchErr error
		current, fetchErr = s.trackerClient.GetTicket(ctx, ticketKey)
		return fetchErr
	})
	if err != nil {
		return err
	}

	if len(fact.FieldChanges) > 0 {
		fields := map[string]interface{}(fact.FieldChanges)
		if err := s.updateWithRetry(ctx, ticketKey, fields, current.RevisionToken); err != nil {
			return err
		}
		for field, newValue := range fact.FieldChanges {
			s.audit(ctx, &entities.AuditEntry{
				MeetingID: meeting.ID,
				TicketKey: ticketKey,
				Field:     field,
				OldValue:  fmt.Sprintf("%v", current.Fields[field]),
				NewValue:  fmt.Sprintf("%v", newValue),
			})
		}
	}

	if text := s.commentText(meeting, fact); text != "" {
		err = s.policy.Do(ctx, func() error {
			return s.trackerClient.AddComment(ctx, ticketKey, text)
		})
		if err != nil {
			return err
		}
		s.audit(ctx, &entities.AuditEntry{
			MeetingID: meeting.ID,
			TicketKey: ticketKey,
			Field:     "comment",
			NewValue:  text,
		})
	}

	return s.finishApplied(ctx, meeting, fact, job, ticketKey)
}

// applyAsNewTicket creates a ticket for an unmatched ActionItem or Blocker.
func (s *Service) applyAsNewTicket(ctx context.Context, meeting *entities.Meeting, fact *entities.Fact, job *entities.ReconJob) {
	job.State = entities.ReconStateApplying

	applied, err := s.auditStore.IsApplied(ctx, fact.DedupKey)
	if err != nil {
		s.failFact(ctx, meeting, fact, job, err)
		return
	}
	if applied {
		job.Skip(entities.SkipReasonDuplicate)
		return
	}

	fields := map[string]interface{}{
		"project":     s.project,
		"summary":     fact.Description,
		"description": fmt.Sprintf("Created from meeting %s", meeting.ID),
	}
	if fact.Kind == entities.FactKindBlocker {
		fields["summary"] = "Blocker: " + fact.Description
		fields["labels"] = []string{"blocker"}
	}
	if fact.Assignee != "" {
		fields["assignee"] = fact.Assignee
	}
	if fact.DueDate != nil {
		fields["duedate"] = fact.DueDate.Format("2006-01-02")
	}

	var newKey string
	err = s.policy.Do(ctx, func() error {
		var createErr error
		newKey, createErr = s.trackerClient.CreateTicket(ctx, fields)
		return createErr
	})
	if err != nil {
		s.failFact(ctx, meeting, fact, job, err)
		return
	}

	job.TicketKey = &newKey
	fact.TicketKey = newKey
	if err := s.factStore.SetTicketKey(ctx, fact.ID, newKey); err != nil && s.logger != nil {
		s.logger.Warn("⚠️ Could not persist created ticket key", zap.Error(err))
	}

	s.audit(ctx, &entities.AuditEntry{
		MeetingID: meeting.ID,
		TicketKey: newKey,
		Field:     "created",
		NewValue:  fact.Description,
	})

	if err := s.finishApplied(ctx, meeting, fact, job, newKey); err != nil {
		s.failFact(ctx, meeting, fact, job, err)
	}
}

// finishApplied records the dedup key and moves fact and job to applied.
// A lost race on the key ledger resolves to a duplicate skip.
func (s *Service) finishApplied(ctx context.Context, meeting *entities.Meeting, fact *entities.Fact, job *entities.ReconJob, ticketKey string) error {
	field := "comment"
	if len(fact.FieldChanges) > 0 {
		field = "fields"
	} else if fact.Kind != entities.FactKindTicketUpdate {
		field = string(fact.Kind)
	}

	won, err := s.auditStore.RecordAppliedKey(ctx, &entities.AppliedKey{
		DedupKey:  fact.DedupKey,
		MeetingID: meeting.ID,
		TicketKey: ticketKey,
		Field:     field,
	})
	if err != nil {
		return err
	}
	if !won {
		job.Skip(entities.SkipReasonDuplicate)
		return nil
	}

	if err := s.factStore.UpdateFactStatus(ctx, fact.ID, entities.FactStatusApplied); err != nil {
		return err
	}

	job.State = entities.ReconStateApplied
	now := time.Now()
	job.CompletedAt = &now

	if s.logger != nil {
		s.logger.Info("✅ Fact applied",
			zap.String("meeting_id", meeting.ID),
			zap.String("ticket_key", ticketKey),
			zap.String("kind", string(fact.Kind)),
		)
	}
	return nil
}

// skipUnresolved marks a fact whose required target could not be resolved.
func (s *Service) skipUnresolved(ctx context.Context, meeting *entities.Meeting, fact *entities.Fact, job *entities.ReconJob) {
	job.Skip(entities.SkipReasonUnresolvedReference)

	s.review(ctx, entities.NewReviewItem(meeting.ID, string(fact.Kind), fact.Description, "no target ticket could be resolved"))
	s.audit(ctx, &entities.AuditEntry{
		MeetingID: meeting.ID,
		Note:      fmt.Sprintf("fact %s skipped: unresolved ticket reference", fact.DedupKey),
	})

	if err := s.factStore.UpdateFactStatus(ctx, fact.ID, entities.FactStatusRejected); err != nil && s.logger != nil {
		s.logger.Warn("⚠️ Could not mark fact rejected", zap.Error(err))
	}
}

// failFact parks a fact in the review queue after exhausted retries.
func (s *Service) failFact(ctx context.Context, meeting *entities.Meeting, fact *entities.Fact, job *entities.ReconJob, cause error) {
	job.Fail(cause.Error())

	s.review(ctx, entities.NewReviewItem(meeting.ID, string(fact.Kind), fact.Description, cause.Error()))
	if err := s.factStore.UpdateFactStatus(ctx, fact.ID, entities.FactStatusRejected); err != nil && s.logger != nil {
		s.logger.Warn("⚠️ Could not mark fact rejected", zap.Error(err))
	}

	if s.logger != nil {
		s.logger.Error("❌ Fact failed reconciliation",
			zap.String("meeting_id", meeting.ID),
			zap.String("dedup_key", fact.DedupKey),
			zap.Error(cause),
		)
	}
}

// findSuperseder looks for a proposed or applied fact from a later meeting
// contesting the same (ticket, field). Returns the winner's dedup key.
func (s *Service) findSuperseder(ctx context.Context, meeting *entities.Meeting, fact *entities.Fact, ticketKey string) (string, bool) {
	if len(fact.FieldChanges) == 0 {
		return "", false
	}

	others, err := s.factStore.ListFactsByTicketKey(ctx, ticketKey)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("⚠️ Conflict check failed, proceeding unguarded", zap.Error(err))
		}
		return "", false
	}

	for _, other := range others {
		if other.MeetingID == meeting.ID || other.Status == entities.FactStatusRejected {
			continue
		}
		if !sharesField(fact.FieldChanges, other.FieldChanges) {
			continue
		}
		otherMeeting, err := s.meetingStore.GetMeetingByID(ctx, other.MeetingID)
		if err != nil || otherMeeting == nil {
			continue
		}
		if otherMeeting.Timestamp.After(meeting.Timestamp) {
			return other.DedupKey, true
		}
	}
	return "", false
}

func sharesField(a, b map[string]interface{}) bool {
	for k := range a {
		if _, ok := b[k]; ok {
			return true
		}
	}
	return false
}

// updateWithRetry retries transient failures. A revision conflict is not
// transient, so the policy surfaces it immediately and the caller requeues
// into MATCHING.
func (s *Service) updateWithRetry(ctx context.Context, ticketKey string, fields map[string]interface{}, revisionToken string) error {
	return s.policy.Do(ctx, func() error {
		return s.trackerClient.UpdateTicket(ctx, ticketKey, fields, revisionToken)
	})
}

// commentText renders the ticket comment for a fact, empty when the fact
// carries nothing to say.
func (s *Service) commentText(meeting *entities.Meeting, fact *entities.Fact) string {
	switch fact.Kind {
	case entities.FactKindBlocker:
		reporter := fact.Assignee
		if reporter == "" {
			reporter = "someone"
		}
		return fmt.Sprintf("🚫 **BLOCKER** reported by %s: %s", reporter, fact.Description)
	case entities.FactKindDecision:
		return fmt.Sprintf("📌 Decision from meeting %s: %s", meeting.ID, fact.Description)
	case entities.FactKindActionItem:
		return fmt.Sprintf("📋 Action item from meeting %s: %s (assignee: %s)", meeting.ID, fact.Description, fact.Assignee)
	case entities.FactKindTicketUpdate:
		return fact.Comment
	}
	return ""
}

func (s *Service) audit(ctx context.Context, entry *entities.AuditEntry) {
	if err := s.auditStore.CreateAuditEntry(ctx, entry); err != nil && s.logger != nil {
		s.logger.Warn("⚠️ Could not append audit entry", zap.Error(err))
	}
}

func (s *Service) review(ctx context.Context, item *entities.ReviewItem) {
	if err := s.reviewStore.CreateReviewItem(ctx, item); err != nil && s.logger != nil {
		s.logger.Warn("⚠️ Could not enqueue review item", zap.Error(err))
	}
}
