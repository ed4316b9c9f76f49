package sprint

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/teamsync/sprint-scribe/errors"
	"github.com/teamsync/sprint-scribe/internal/domain/entities"
	"github.com/teamsync/sprint-scribe/internal/infrastructure/external/tracker"
	"github.com/teamsync/sprint-scribe/pkg/config"
	"github.com/teamsync/sprint-scribe/pkg/retry"
)

// SprintTracker is the slice of the ticket-store collaborator the analyzer
// reads. It only consumes reconciled ticket state, never transcripts.
type SprintTracker interface {
	GetSprint(ctx context.Context, sprintID string) (*tracker.Sprint, error)
	SprintTickets(ctx context.Context, sprintID string) ([]tracker.Ticket, error)
	TicketHistory(ctx context.Context, key string) ([]tracker.ChangeEvent, error)
}

// SnapshotStore persists computed snapshots.
type SnapshotStore interface {
	CreateSnapshot(ctx context.Context, snapshot *entities.SprintSnapshot) error
	GetLatestSnapshot(ctx context.Context, sprintID string) (*entities.SprintSnapshot, error)
	ListSnapshots(ctx context.Context, sprintID string, limit int) ([]entities.SprintSnapshot, error)
}

// Service computes sprint health snapshots: velocity, burndown delta and
// risk flags, plus a templated narrative.
type Service struct {
	trackerClient    SprintTracker
	snapshots        SnapshotStore
	policy           retry.Policy
	cfg              *config.SprintConfig
	storyPointsField string
	logger           *zap.Logger

	// now is injectable for deterministic tests.
	now func() time.Time
}

// NewService creates a new sprint health service
func NewService(trackerClient SprintTracker, snapshots SnapshotStore, policy retry.Policy, cfg *config.SprintConfig, storyPointsField string, logger *zap.Logger) *Service {
	return &Service{
		trackerClient:    trackerClient,
		snapshots:        snapshots,
		policy:           policy,
		cfg:              cfg,
		storyPointsField: storyPointsField,
		logger:           logger,
		now:              time.Now,
	}
}

// Analyze computes a fresh snapshot for the sprint and appends it to the
// snapshot history. Each run produces a new row; nothing is mutated.
func (s *Service) Analyze(ctx context.Context, sprintID string) (*entities.SprintSnapshot, error) {
	var sprint *tracker.Sprint
	err := s.policy.Do(ctx, func() error {
		var fetchErr error
		sprint, fetchErr = s.trackerClient.GetSprint(ctx, sprintID)
		return fetchErr
	})
	if err != nil {
		return nil, err
	}
	if sprint == nil {
		return nil, apperrors.ErrNotFound("sprint")
	}

	var tickets []tracker.Ticket
	err = s.policy.Do(ctx, func() error {
		var fetchErr error
		tickets, fetchErr = s.trackerClient.SprintTickets(ctx, sprintID)
		return fetchErr
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	snapshot := &entities.SprintSnapshot{
		SprintID:  sprintID,
		Timestamp: now,
	}

	var totalPoints, completedPoints float64
	for _, t := range tickets {
		points := s.storyPoints(&t)
		totalPoints += points
		if isDone(t.Status()) {
			completedPoints += points
		}
	}
	snapshot.TotalPoints = totalPoints
	snapshot.CompletedPoints = completedPoints

	totalDays := sprint.EndDate.Sub(sprint.StartDate).Hours() / 24
	elapsedDays := now.Sub(sprint.StartDate).Hours() / 24
	if elapsedDays < 0 {
		elapsedDays = 0
	}
	if totalDays > 0 && elapsedDays > totalDays {
		elapsedDays = totalDays
	}
	remainingDays := sprint.EndDate.Sub(now).Hours() / 24
	if remainingDays < 0 {
		remainingDays = 0
	}
	snapshot.ElapsedDays = elapsedDays
	snapshot.RemainingDays = remainingDays

	if elapsedDays > 0 {
		snapshot.Velocity = completedPoints / elapsedDays
	}

	idealRate := 0.0
	if totalDays > 0 {
		idealRate = elapsedDays / totalDays
	}
	actualRate := 0.0
	if totalPoints > 0 {
		actualRate = completedPoints / totalPoints
	}
	snapshot.BurndownDelta = actualRate - idealRate
	snapshot.HealthStatus = healthStatus(sprint, idealRate, actualRate)

	snapshot.RiskFlags = s.riskFlags(ctx, sprint, tickets, now)
	snapshot.Narrative = renderNarrative(sprint, snapshot)

	if err := s.snapshots.CreateSnapshot(ctx, snapshot); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("✅ Sprint snapshot computed",
			zap.String("sprint_id", sprintID),
			zap.Float64("velocity", snapshot.Velocity),
			zap.String("health", snapshot.HealthStatus),
			zap.Int("risk_flags", len(snapshot.RiskFlags)),
		)
	}
	return snapshot, nil
}

// Latest returns the most recent stored snapshot for a sprint.
func (s *Service) Latest(ctx context.Context, sprintID string) (*entities.SprintSnapshot, error) {
	return s.snapshots.GetLatestSnapshot(ctx, sprintID)
}

// healthStatus bands the sprint: critical below half the ideal completion
// rate, at risk below 80%, unknown without a sprint window.
func healthStatus(sprint *tracker.Sprint, idealRate, actualRate float64) string {
	if sprint.StartDate.IsZero() || sprint.EndDate.IsZero() {
		return entities.SprintHealthUnknown
	}
	switch {
	case actualRate < idealRate*0.5:
		return entities.SprintHealthCritical
	case actualRate < idealRate*0.8:
		return entities.SprintHealthAtRisk
	default:
		return entities.SprintHealthOnTrack
	}
}

// riskFlags scans ticket histories for scope creep, stalled tickets and
// long-blocked tickets.
func (s *Service) riskFlags(ctx context.Context, sprint *tracker.Sprint, tickets []tracker.Ticket, now time.Time) []entities.RiskFlag {
	var flags []entities.RiskFlag
	var addedPoints float64

	stalledAfter := time.Duration(s.cfg.StalledAfterDays) * 24 * time.Hour
	blockedAfter := time.Duration(s.cfg.BlockedAfterDays) * 24 * time.Hour

	for _, t := range tickets {
		history, err := s.trackerClient.TicketHistory(ctx, t.Key)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("⚠️ Could not fetch ticket history",
					zap.String("ticket_key", t.Key),
					zap.Error(err),
				)
			}
			continue
		}

		lastStatusChange := sprint.StartDate
		var blockedSince time.Time
		for _, event := range history {
			if event.Field == s.storyPointsField && event.At.After(sprint.StartDate) {
				addedPoints += pointsDelta(event)
			}
			if event.Field == "status" {
				if event.At.After(lastStatusChange) {
					lastStatusChange = event.At
				}
				if isBlocked(event.To) {
					blockedSince = event.At
				} else {
					blockedSince = time.Time{}
				}
			}
		}

		if !isDone(t.Status()) && now.Sub(lastStatusChange) > stalledAfter {
			flags = append(flags, entities.RiskFlag{
				Kind:      entities.RiskStalledTicket,
				TicketKey: t.Key,
				Detail:    fmt.Sprintf("no status change for %.0f days", now.Sub(lastStatusChange).Hours()/24),
			})
		}
		if !blockedSince.IsZero() && now.Sub(blockedSince) > blockedAfter {
			flags = append(flags, entities.RiskFlag{
				Kind:      entities.RiskBlockedTicket,
				TicketKey: t.Key,
				Detail:    fmt.Sprintf("blocked for %.0f days", now.Sub(blockedSince).Hours()/24),
			})
		}
	}

	if addedPoints > 0 {
		flags = append(flags, entities.RiskFlag{
			Kind:   entities.RiskScopeCreep,
			Detail: fmt.Sprintf("%.1f story points added after sprint start", addedPoints),
		})
	}
	return flags
}

func (s *Service) storyPoints(t *tracker.Ticket) float64 {
	if v, ok := t.Fields[s.storyPointsField]; ok {
		if f, ok := v.(float64); ok {
			return f
		}
	}
	return 0
}

func pointsDelta(event tracker.ChangeEvent) float64 {
	var from, to float64
	fmt.Sscanf(event.From, "%f", &from)
	fmt.Sscanf(event.To, "%f", &to)
	if to > from {
		return to - from
	}
	return 0
}

func isDone(status string) bool {
	switch strings.ToLower(status) {
	case "done", "closed", "resolved":
		return true
	}
	return false
}

func isBlocked(status string) bool {
	return strings.Contains(strings.ToLower(status), "blocked")
}

// renderNarrative fills the summary template with the computed figures.
func renderNarrative(sprint *tracker.Sprint, snapshot *entities.SprintSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Sprint Health: %s**\n\n", sprint.Name)
	fmt.Fprintf(&b, "**Progress**\n")
	fmt.Fprintf(&b, "- %.1f of %.1f story points completed\n", snapshot.CompletedPoints, snapshot.TotalPoints)
	fmt.Fprintf(&b, "- Velocity: %.1f points/day\n", snapshot.Velocity)
	fmt.Fprintf(&b, "- %.0f days elapsed, %.0f days remaining\n\n", snapshot.ElapsedDays, snapshot.RemainingDays)
	fmt.Fprintf(&b, "**Status: %s** (burndown delta %+.0f%%)\n", snapshot.HealthStatus, snapshot.BurndownDelta*100)

	if len(snapshot.RiskFlags) > 0 {
		fmt.Fprintf(&b, "\n**Risks**\n")
		for _, flag := range snapshot.RiskFlags {
			if flag.TicketKey != "" {
				fmt.Fprintf(&b, "- [%s] %s: %s\n", flag.Kind, flag.TicketKey, flag.Detail)
			} else {
				fmt.Fprintf(&b, "- [%s] %s\n", flag.Kind, flag.Detail)
			}
		}
	}
	return b.String()
}
