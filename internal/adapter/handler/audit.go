package handler

import (
	"context"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	apperrors "github.com/teamsync/sprint-scribe/errors"
	"github.com/teamsync/sprint-scribe/internal/domain/entities"
)

// AuditTrail reads the append-only record of applied mutations.
type AuditTrail interface {
	ListAuditEntriesByTicketKey(ctx context.Context, ticketKey string, limit int) ([]entities.AuditEntry, error)
	ListAuditEntriesByMeetingID(ctx context.Context, meetingID string) ([]entities.AuditEntry, error)
}

// Audit handles audit-trail queries
type Audit struct {
	trail  AuditTrail
	logger *zap.Logger
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(trail AuditTrail, logger *zap.Logger) *Audit {
	return &Audit{trail: trail, logger: logger}
}

// List returns audit entries for a ticket or a meeting. One of the two
// filters is required.
func (h *Audit) List(c echo.Context) error {
	ctx := c.Request().Context()

	if ticket := c.QueryParam("ticket"); ticket != "" {
		limit := 100
		if raw := c.QueryParam("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				return HandleError(h.logger, c, apperrors.ErrInvalidArgument("limit must be a positive integer"))
			}
			limit = n
		}
		entries, err := h.trail.ListAuditEntriesByTicketKey(ctx, ticket, limit)
		if err != nil {
			return HandleError(h.logger, c, err)
		}
		return HandleSuccess(h.logger, c, entries)
	}

	if meetingID := c.QueryParam("meeting_id"); meetingID != "" {
		entries, err := h.trail.ListAuditEntriesByMeetingID(ctx, meetingID)
		if err != nil {
			return HandleError(h.logger, c, err)
		}
		return HandleSuccess(h.logger, c, entries)
	}

	return HandleError(h.logger, c, apperrors.ErrValidationMissingField("ticket or meeting_id"))
}
