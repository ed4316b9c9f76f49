package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/teamsync/sprint-scribe/errors"
	"github.com/teamsync/sprint-scribe/internal/domain/entities"
	"github.com/teamsync/sprint-scribe/pkg/config"
	"github.com/teamsync/sprint-scribe/pkg/retry"
)

// EmbeddingClient is the collaborator boundary used to embed excerpts and
// topic queries.
type EmbeddingClient interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// RecordStore is the persistence boundary of the memory store.
type RecordStore interface {
	CreateRecords(ctx context.Context, records []*entities.MemoryRecord) error
	CountByMeetingID(ctx context.Context, meetingID string) (int64, error)
	ListAll(ctx context.Context) ([]entities.MemoryRecord, error)
	ListInRange(ctx context.Context, from, to time.Time) ([]entities.MemoryRecord, error)
}

// Service is the meeting memory store: append-only embedded excerpts with
// topic search and chronological range queries.
type Service struct {
	embedder EmbeddingClient
	store    RecordStore
	policy   retry.Policy
	cfg      *config.MemoryConfig
	logger   *zap.Logger

	// per-meeting write serialization
	mu       sync.Mutex
	inFlight map[string]*sync.Mutex
}

// NewService creates a new memory service
func NewService(embedder EmbeddingClient, store RecordStore, policy retry.Policy, cfg *config.MemoryConfig, logger *zap.Logger) *Service {
	return &Service{
		embedder: embedder,
		store:    store,
		policy:   policy,
		cfg:      cfg,
		logger:   logger,
		inFlight: make(map[string]*sync.Mutex),
	}
}

// Record chunks, embeds and stores a meeting transcript. Idempotent per
// meeting id: re-ingesting a meeting that already has records is a no-op.
func (s *Service) Record(ctx context.Context, meeting *entities.Meeting) error {
	if meeting == nil {
		return apperrors.ErrValidationMissingField("meeting")
	}

	unlock := s.lockMeeting(meeting.ID)
	defer unlock()

	count, err := s.store.CountByMeetingID(ctx, meeting.ID)
	if err != nil {
		return err
	}
	if count > 0 {
		if s.logger != nil {
			s.logger.Info("⏭️ Meeting already recorded, skipping",
				zap.String("meeting_id", meeting.ID),
				zap.Int64("records", count),
			)
		}
		return nil
	}

	excerpts := ChunkTranscript(meeting.Transcript, s.cfg.ChunkChars, s.cfg.ExcerptMaxChars)
	if len(excerpts) == 0 {
		return nil
	}

	var embeddings [][]float32
	err = s.policy.Do(ctx, func() error {
		var embedErr error
		embeddings, embedErr = s.embedder.Embed(ctx, excerpts)
		return embedErr
	})
	if err != nil {
		return err
	}

	records := make([]*entities.MemoryRecord, len(excerpts))
	for i, excerpt := range excerpts {
		records[i] = &entities.MemoryRecord{
			MeetingID:   meeting.ID,
			Seq:         i,
			Excerpt:     excerpt,
			Embedding:   embeddings[i],
			Topics:      nil,
			MeetingTime: meeting.Timestamp,
		}
	}

	if err := s.store.CreateRecords(ctx, records); err != nil {
		return err
	}

	if s.logger != nil {
		s.logger.Info("✅ Meeting recorded to memory",
			zap.String("meeting_id", meeting.ID),
			zap.Int("excerpts", len(records)),
		)
	}
	return nil
}

// SearchTopic embeds the topic and returns the top-K records by cosine
// similarity, ties broken by recency.
func (s *Service) SearchTopic(ctx context.Context, topic string, topK int) ([]entities.ScoredMemoryRecord, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, apperrors.ErrValidationMissingField("topic")
	}
	if topK <= 0 {
		topK = s.cfg.TopK
	}

	var queryEmbedding [][]float32
	err := s.policy.Do(ctx, func() error {
		var embedErr error
		queryEmbedding, embedErr = s.embedder.Embed(ctx, []string{topic})
		return embedErr
	})
	if err != nil {
		return nil, err
	}

	records, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	scored := make([]entities.ScoredMemoryRecord, 0, len(records))
	for _, record := range records {
		scored = append(scored, entities.ScoredMemoryRecord{
			MemoryRecord: record,
			Score:        CosineSimilarity(queryEmbedding[0], record.Embedding),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].MeetingTime.After(scored[j].MeetingTime)
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// SearchRange returns records whose meeting time falls within the window,
// in chronological order.
func (s *Service) SearchRange(ctx context.Context, from, to time.Time) ([]entities.MemoryRecord, error) {
	return s.store.ListInRange(ctx, from, to)
}

// ContextFor returns excerpt texts for extraction context: the most
// relevant past excerpts for the topic hint, capped at limit.
func (s *Service) ContextFor(ctx context.Context, topicHint string, limit int) []string {
	if strings.TrimSpace(topicHint) == "" {
		return nil
	}
	scored, err := s.SearchTopic(ctx, topicHint, limit)
	if err != nil {
		// Context retrieval is best effort; extraction proceeds without it.
		if s.logger != nil {
			s.logger.Warn("⚠️ Memory context retrieval failed", zap.Error(err))
		}
		return nil
	}
	out := make([]string, 0, len(scored))
	for _, record := range scored {
		out = append(out, record.Excerpt)
	}
	return out
}

func (s *Service) lockMeeting(meetingID string) func() {
	s.mu.Lock()
	m, ok := s.inFlight[meetingID]
	if !ok {
		m = &sync.Mutex{}
		s.inFlight[meetingID] = m
	}
	s.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// Zero for mismatched or zero-magnitude vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
