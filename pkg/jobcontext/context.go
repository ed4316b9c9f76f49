package jobcontext

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// jobTimeout bounds one meeting pipeline run: memory write, extraction and
// reconciliation together must finish inside it.
const jobTimeout = 5 * time.Minute

type ctxKey string

const (
	keyJobID     ctxKey = "job_id"
	keyJobType   ctxKey = "job_type"
	keyWorkerID  ctxKey = "worker_id"
	keyStartTime ctxKey = "job_start_time"
)

// JobBegin derives the context a claimed job executes under: a deadline plus
// the job identity for downstream logging. Callers must invoke the returned
// cancel when the run finishes.
func JobBegin(parentCtx context.Context, jobID uuid.UUID, jobType string, workerID int) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parentCtx, jobTimeout)

	ctx = context.WithValue(ctx, keyJobID, jobID)
	ctx = context.WithValue(ctx, keyJobType, jobType)
	ctx = context.WithValue(ctx, keyWorkerID, workerID)
	ctx = context.WithValue(ctx, keyStartTime, time.Now())

	return ctx, cancel
}

// JobID extracts the job id from a job context.
func JobID(ctx context.Context) (uuid.UUID, bool) {
	jobID, ok := ctx.Value(keyJobID).(uuid.UUID)
	return jobID, ok
}

// JobType extracts the job type from a job context.
func JobType(ctx context.Context) (string, bool) {
	jobType, ok := ctx.Value(keyJobType).(string)
	return jobType, ok
}

// WorkerID extracts the claiming worker's id, -1 outside a job context.
func WorkerID(ctx context.Context) int {
	workerID, ok := ctx.Value(keyWorkerID).(int)
	if !ok {
		return -1
	}
	return workerID
}

// Elapsed reports how long the job has been running. Zero outside a job
// context. Values survive cancellation, so this is safe to call after the
// run finished.
func Elapsed(ctx context.Context) time.Duration {
	start, ok := ctx.Value(keyStartTime).(time.Time)
	if !ok {
		return 0
	}
	return time.Since(start)
}

// IsNonRetryableError checks if an error should NOT trigger a retry
func IsNonRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	// Client errors (4xx except 429)
	if strings.Contains(errStr, "400") ||
		strings.Contains(errStr, "401") ||
		strings.Contains(errStr, "403") ||
		strings.Contains(errStr, "404") ||
		strings.Contains(errStr, "invalid") ||
		strings.Contains(errStr, "bad request") {
		return true
	}

	// Data validation errors
	if strings.Contains(errStr, "validation failed") ||
		strings.Contains(errStr, "malformed") ||
		strings.Contains(errStr, "parse error") {
		return true
	}

	return false
}
