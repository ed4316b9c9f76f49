package handler

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	apperrors "github.com/teamsync/sprint-scribe/errors"
	"github.com/teamsync/sprint-scribe/internal/domain/entities"
)

// ReviewQueue lists and resolves human-review entries.
type ReviewQueue interface {
	ListOpenReviewItems(ctx context.Context, limit int) ([]entities.ReviewItem, error)
	ListReviewItemsByMeetingID(ctx context.Context, meetingID string) ([]entities.ReviewItem, error)
	ResolveReviewItem(ctx context.Context, itemID uuid.UUID) error
}

// Review handles the human-review queue
type Review struct {
	queue  ReviewQueue
	logger *zap.Logger
}

// NewReviewHandler creates a new review handler
func NewReviewHandler(queue ReviewQueue, logger *zap.Logger) *Review {
	return &Review{queue: queue, logger: logger}
}

// List returns unresolved review entries, oldest first. An optional
// meeting_id filter narrows to one meeting.
func (h *Review) List(c echo.Context) error {
	ctx := c.Request().Context()

	if meetingID := c.QueryParam("meeting_id"); meetingID != "" {
		items, err := h.queue.ListReviewItemsByMeetingID(ctx, meetingID)
		if err != nil {
			return HandleError(h.logger, c, err)
		}
		return HandleSuccess(h.logger, c, items)
	}

	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return HandleError(h.logger, c, apperrors.ErrInvalidArgument("limit must be a positive integer"))
		}
		limit = n
	}

	items, err := h.queue.ListOpenReviewItems(ctx, limit)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, items)
}

// Resolve marks one review entry handled.
func (h *Review) Resolve(c echo.Context) error {
	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return HandleError(h.logger, c, apperrors.ErrInvalidArgument("id must be a UUID"))
	}

	if err := h.queue.ResolveReviewItem(c.Request().Context(), itemID); err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, map[string]string{"id": itemID.String(), "status": "resolved"})
}
