package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

// Dispatcher turns an integration request into a posted journal.
type Dispatcher interface {
	Dispatch(ctx context.Context, req integration.Request) (journals.JournalEntry, error)
}

// PostingRequestJob posts journals requested by other domains.
type PostingRequestJob struct {
	Hooks   Dispatcher
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewPostingRequestJob wires dependencies for the posting request handler.
func NewPostingRequestJob(hooks Dispatcher, logger *slog.Logger, metrics *jobmetrics.Metrics) *PostingRequestJob {
	return &PostingRequestJob{Hooks: hooks, Logger: logger, Metrics: metrics}
}

// Handle processes a TaskPostingRequest task. Rejections that a retry cannot
// fix are returned wrapped in asynq.SkipRetry.
func (j *PostingRequestJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Hooks == nil {
		return errors.New("posting request: handler not configured")
	}
	var req integration.Request
	if err := json.Unmarshal(t.Payload(), &req); err != nil {
		return fmt.Errorf("posting request: decode: %v: %w", err, asynq.SkipRetry)
	}

	tracker := metricsOrDefault(j.Metrics).Track(TaskPostingRequest)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := loggerOrDefault(j.Logger).With(slog.String("kind", req.Kind))
	entry, err := j.Hooks.Dispatch(ctx, req)
	if err != nil {
		if permanent(err) {
			logger.Warn("posting request rejected", slog.String("reason", shared.Kind(err)), slog.Any("error", err))
			return fmt.Errorf("posting request: %w: %w", err, asynq.SkipRetry)
		}
		logger.Error("posting request failed", slog.Any("error", err))
		return err
	}
	logger.Info("posting request applied",
		slog.Int64("tenant_id", entry.TenantID),
		slog.Int64("journal_id", entry.ID),
		slog.Int64("number", entry.Number))
	return nil
}

func permanent(err error) bool {
	switch {
	case errors.Is(err, shared.ErrValidation),
		errors.Is(err, shared.ErrUnbalanced),
		errors.Is(err, shared.ErrPeriodClosed),
		errors.Is(err, shared.ErrPeriodNotFound),
		errors.Is(err, shared.ErrMappingNotFound),
		errors.Is(err, shared.ErrAccountNotFound),
		errors.Is(err, shared.ErrUnknownTaxCode):
		return true
	}
	return false
}
