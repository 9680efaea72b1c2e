package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// SummaryInvalidator drops cached VAT summaries for a tenant.
type SummaryInvalidator interface {
	Invalidate(ctx context.Context, tenantID int64) error
}

// JournalPostedJob reacts to posting-completed notifications.
type JournalPostedJob struct {
	Summaries SummaryInvalidator
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewJournalPostedJob wires dependencies for the notification handler.
func NewJournalPostedJob(summaries SummaryInvalidator, logger *slog.Logger, metrics *jobmetrics.Metrics) *JournalPostedJob {
	return &JournalPostedJob{Summaries: summaries, Logger: logger, Metrics: metrics}
}

// Handle processes a TaskJournalPosted task.
func (j *JournalPostedJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil {
		return errors.New("journal posted: handler not configured")
	}
	var payload JournalPostedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.TenantID == 0 || payload.JournalID == 0 {
		return asynq.SkipRetry
	}

	tracker := metricsOrDefault(j.Metrics).Track(TaskJournalPosted)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := loggerOrDefault(j.Logger).With(
		slog.Int64("tenant_id", payload.TenantID),
		slog.Int64("journal_id", payload.JournalID),
		slog.Int64("number", payload.Number))

	taxed, err := hasTax(payload.TaxAmount)
	if err != nil {
		return fmt.Errorf("journal posted: tax_amount: %w: %w", err, asynq.SkipRetry)
	}
	if taxed && j.Summaries != nil {
		if err := j.Summaries.Invalidate(ctx, payload.TenantID); err != nil {
			logger.Error("invalidate vat summaries", slog.Any("error", err))
			return err
		}
	}
	logger.Info("journal posted",
		slog.String("entry_date", payload.EntryDate),
		slog.String("total", payload.Total),
		slog.Bool("reversal", payload.IsReversal))
	return nil
}

func hasTax(amount string) (bool, error) {
	if amount == "" {
		return false, nil
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return false, err
	}
	return !d.IsZero(), nil
}

func metricsOrDefault(m *jobmetrics.Metrics) *jobmetrics.Metrics {
	if m != nil {
		return m
	}
	return defaultJobMetrics
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}
