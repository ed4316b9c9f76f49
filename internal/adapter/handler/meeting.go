package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	apperrors "github.com/teamsync/sprint-scribe/errors"
	meetingdto "github.com/teamsync/sprint-scribe/internal/adapter/dto/meeting"
	"github.com/teamsync/sprint-scribe/internal/domain/entities"
	"github.com/teamsync/sprint-scribe/internal/usecase/reconcile"
	"github.com/teamsync/sprint-scribe/pkg/signature"
)

// IngestService accepts transcripts and cancels queued meetings.
type IngestService interface {
	Ingest(ctx context.Context, meeting *entities.Meeting) (*entities.MeetingJob, error)
	Cancel(ctx context.Context, meetingID string) error
}

// ReportService returns the reconciliation outcome for a meeting.
type ReportService interface {
	Report(ctx context.Context, meetingID string) (*reconcile.Report, error)
}

// Meeting handles the transcript ingestion boundary
type Meeting struct {
	ingest        IngestService
	reports       ReportService
	webhookSecret string
	logger        *zap.Logger
}

// NewMeetingHandler creates a new meeting handler
func NewMeetingHandler(ingest IngestService, reports ReportService, webhookSecret string, logger *zap.Logger) *Meeting {
	return &Meeting{
		ingest:        ingest,
		reports:       reports,
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

// Ingest accepts one meeting transcript and queues its processing job.
// Responds 202; processing is asynchronous.
func (h *Meeting) Ingest(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return HandleError(h.logger, c, apperrors.ErrInvalidArgument("unreadable request body"))
	}

	// Signed deliveries carry an HMAC of the raw payload.
	if h.webhookSecret != "" {
		sig := c.Request().Header.Get("X-Signature")
		if !signature.VerifyHMAC(h.webhookSecret, body, sig) {
			if h.logger != nil {
				h.logger.Warn("⚠️ Rejected unsigned transcript delivery",
					zap.String("remote", c.RealIP()),
				)
			}
			return HandleError(h.logger, c, apperrors.ErrUnauthenticated())
		}
	}

	var req meetingdto.IngestMeetingRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return HandleError(h.logger, c, apperrors.ErrInvalidArgument("malformed JSON payload"))
	}
	if err := c.Validate(&req); err != nil {
		return HandleError(h.logger, c, apperrors.ErrInvalidArgument(err.Error()))
	}

	m := entities.NewMeeting(req.MeetingID, req.Timestamp, req.Participants, req.Transcript)
	job, err := h.ingest.Ingest(c.Request().Context(), m)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	return c.JSON(http.StatusAccepted, meetingdto.IngestMeetingResponse{
		JobID:     job.ID.String(),
		MeetingID: job.MeetingID,
		Status:    string(job.Status),
	})
}

// Report returns the per-meeting reconciliation report.
func (h *Meeting) Report(c echo.Context) error {
	meetingID := c.Param("id")
	if meetingID == "" {
		return HandleError(h.logger, c, apperrors.ErrValidationMissingField("id"))
	}

	report, err := h.reports.Report(c.Request().Context(), meetingID)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, report)
}

// Cancel stops a not-yet-applied meeting job and skips its pending facts.
func (h *Meeting) Cancel(c echo.Context) error {
	meetingID := c.Param("id")
	if meetingID == "" {
		return HandleError(h.logger, c, apperrors.ErrValidationMissingField("id"))
	}

	if err := h.ingest.Cancel(c.Request().Context(), meetingID); err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, map[string]string{"meeting_id": meetingID, "status": "cancelled"})
}
