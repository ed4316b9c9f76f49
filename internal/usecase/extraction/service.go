package extraction

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/teamsync/sprint-scribe/errors"
	"github.com/teamsync/sprint-scribe/internal/domain/entities"
	"github.com/teamsync/sprint-scribe/pkg/config"
	"github.com/teamsync/sprint-scribe/pkg/retry"
)

// CompletionClient is the LLM collaborator boundary the engine depends on
type CompletionClient interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Service is the extraction engine: transcript + context in, validated
// candidate facts with dedup keys out. It never mutates ticket state.
type Service struct {
	llm       CompletionClient
	validator *SchemaValidator
	policy    retry.Policy
	cfg       *config.ExtractConfig
	logger    *zap.Logger
}

// NewService creates a new extraction service
func NewService(llm CompletionClient, validator *SchemaValidator, policy retry.Policy, cfg *config.ExtractConfig, logger *zap.Logger) *Service {
	return &Service{
		llm:       llm,
		validator: validator,
		policy:    policy,
		cfg:       cfg,
		logger:    logger,
	}
}

// Extract runs one extraction over a meeting transcript. Malformed entries
// are dropped individually; a completely unparseable response is retried
// once with a stricter instruction before the whole call fails.
func (s *Service) Extract(ctx context.Context, meeting *entities.Meeting, pctx PromptContext) (*entities.ExtractionResult, error) {
	if meeting == nil || strings.TrimSpace(meeting.Transcript) == "" {
		return nil, apperrors.ErrValidationMissingField("transcript")
	}

	prompt := BuildPrompt(meeting.Transcript, pctx, s.cfg.MaxPromptBytes)

	raw, err := s.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	parsed, parseErr := parseExtraction(raw)
	if parseErr != nil {
		if s.logger != nil {
			s.logger.Warn("⚠️ Unparseable extraction output, retrying with stricter instruction",
				zap.String("meeting_id", meeting.ID),
				zap.Error(parseErr),
			)
		}

		raw, err = s.complete(ctx, prompt+stricterInstruction)
		if err != nil {
			return nil, err
		}
		parsed, parseErr = parseExtraction(raw)
		if parseErr != nil {
			return nil, apperrors.ErrExtractionUnparseable(parseErr)
		}
	}

	if parsed.Empty() && s.logger != nil {
		s.logger.Info("⚠️ Extraction produced no facts", zap.String("meeting_id", meeting.ID))
	}

	result := s.validator.Validate(meeting.ID, parsed)

	if s.logger != nil {
		s.logger.Info("✅ Extraction completed",
			zap.String("meeting_id", meeting.ID),
			zap.Int("action_items", len(result.ActionItems)),
			zap.Int("ticket_updates", len(result.TicketUpdates)),
			zap.Int("blockers", len(result.Blockers)),
			zap.Int("decisions", len(result.Decisions)),
			zap.Int("dropped", len(result.Dropped)),
		)
		for _, reason := range result.Dropped {
			s.logger.Warn("⚠️ Dropped malformed fact", zap.String("reason", reason))
		}
	}

	return result, nil
}

// complete calls the collaborator under the retry policy. Transient
// failures are retried; a malformed body is not (that path is the stricter
// re-prompt, not a blind retry).
func (s *Service) complete(ctx context.Context, prompt string) (string, error) {
	var out string
	err := s.policy.Do(ctx, func() error {
		var callErr error
		out, callErr = s.llm.Complete(ctx, systemPrompt, prompt)
		return callErr
	})
	return out, err
}

// parseExtraction decodes the collaborator response, tolerating markdown
// code fences around the JSON body.
func parseExtraction(raw string) (*entities.RawExtraction, error) {
	cleaned := stripCodeFences(raw)

	var parsed entities.RawExtraction
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		// Some models wrap the object in prose; try the outermost braces.
		start := strings.Index(cleaned, "{")
		end := strings.LastIndex(cleaned, "}")
		if start >= 0 && end > start {
			if err2 := json.Unmarshal([]byte(cleaned[start:end+1]), &parsed); err2 == nil {
				return &parsed, nil
			}
		}
		return nil, err
	}
	return &parsed, nil
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
