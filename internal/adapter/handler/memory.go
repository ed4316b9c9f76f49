package handler

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	apperrors "github.com/teamsync/sprint-scribe/errors"
	meetingdto "github.com/teamsync/sprint-scribe/internal/adapter/dto/meeting"
	"github.com/teamsync/sprint-scribe/internal/domain/entities"
)

// MemoryService answers topic and time-range queries over past meetings.
type MemoryService interface {
	SearchTopic(ctx context.Context, topic string, topK int) ([]entities.ScoredMemoryRecord, error)
	SearchRange(ctx context.Context, from, to time.Time) ([]entities.MemoryRecord, error)
}

// Memory handles meeting-memory queries
type Memory struct {
	memory MemoryService
	logger *zap.Logger
}

// NewMemoryHandler creates a new memory handler
func NewMemoryHandler(memory MemoryService, logger *zap.Logger) *Memory {
	return &Memory{memory: memory, logger: logger}
}

// Search answers "what did we say about X" (topic) or "what was discussed
// between A and B" (from/to). Exactly one of the two modes applies; topic
// wins when both are present.
func (h *Memory) Search(c echo.Context) error {
	var req meetingdto.SearchMemoryRequest
	if err := c.Bind(&req); err != nil {
		return HandleError(h.logger, c, apperrors.ErrInvalidArgument("malformed query parameters"))
	}

	ctx := c.Request().Context()

	if req.Topic != "" {
		limit := req.Limit
		if limit <= 0 {
			limit = 5
		}
		hits, err := h.memory.SearchTopic(ctx, req.Topic, limit)
		if err != nil {
			return HandleError(h.logger, c, err)
		}
		out := make([]meetingdto.MemoryExcerptResponse, 0, len(hits))
		for _, hit := range hits {
			out = append(out, meetingdto.MemoryExcerptResponse{
				MeetingID:   hit.MeetingID,
				MeetingTime: hit.MeetingTime.Format(time.RFC3339),
				Excerpt:     hit.Excerpt,
				Score:       hit.Score,
			})
		}
		return HandleSuccess(h.logger, c, out)
	}

	if req.From == "" || req.To == "" {
		return HandleError(h.logger, c, apperrors.ErrValidationMissingField("topic or from/to"))
	}
	from, err := parseQueryTime(req.From)
	if err != nil {
		return HandleError(h.logger, c, apperrors.ErrInvalidArgument("from: "+err.Error()))
	}
	to, err := parseQueryTime(req.To)
	if err != nil {
		return HandleError(h.logger, c, apperrors.ErrInvalidArgument("to: "+err.Error()))
	}

	records, err := h.memory.SearchRange(ctx, from, to)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	out := make([]meetingdto.MemoryExcerptResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, meetingdto.MemoryExcerptResponse{
			MeetingID:   rec.MeetingID,
			MeetingTime: rec.MeetingTime.Format(time.RFC3339),
			Excerpt:     rec.Excerpt,
		})
	}
	return HandleSuccess(h.logger, c, out)
}

// parseQueryTime accepts RFC3339 or a bare date.
func parseQueryTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
