package handler

import (
	"context"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	apperrors "github.com/teamsync/sprint-scribe/errors"
	"github.com/teamsync/sprint-scribe/internal/domain/entities"
)

// SprintAnalyzer computes and serves sprint health snapshots.
type SprintAnalyzer interface {
	Analyze(ctx context.Context, sprintID string) (*entities.SprintSnapshot, error)
	Latest(ctx context.Context, sprintID string) (*entities.SprintSnapshot, error)
}

// Sprint handles sprint health analysis
type Sprint struct {
	analyzer SprintAnalyzer
	logger   *zap.Logger
}

// NewSprintHandler creates a new sprint handler
func NewSprintHandler(analyzer SprintAnalyzer, logger *zap.Logger) *Sprint {
	return &Sprint{analyzer: analyzer, logger: logger}
}

// Analyze runs a fresh health analysis and stores the snapshot. The
// scheduled trigger calls this endpoint.
func (h *Sprint) Analyze(c echo.Context) error {
	sprintID := c.Param("id")
	if sprintID == "" {
		return HandleError(h.logger, c, apperrors.ErrValidationMissingField("id"))
	}

	snapshot, err := h.analyzer.Analyze(c.Request().Context(), sprintID)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, snapshot)
}

// Latest returns the most recent stored snapshot without recomputing.
func (h *Sprint) Latest(c echo.Context) error {
	sprintID := c.Param("id")
	if sprintID == "" {
		return HandleError(h.logger, c, apperrors.ErrValidationMissingField("id"))
	}

	snapshot, err := h.analyzer.Latest(c.Request().Context(), sprintID)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	if snapshot == nil {
		return HandleError(h.logger, c, apperrors.ErrNotFound("sprint snapshot"))
	}
	return HandleSuccess(h.logger, c, snapshot)
}
