package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueLedger carries posting requests and posting-completed notifications.
	QueueLedger = "ledger"

	// TaskJournalPosted announces a committed posting or reversal.
	TaskJournalPosted = "ledger:journal.posted"
	// TaskPostingRequest carries a posting request from an external domain.
	TaskPostingRequest = "ledger:posting.request"
	// TaskIntegrityCheck runs the balance derivability check.
	TaskIntegrityCheck = "ledger:integrity.check"
)

// JournalPostedPayload is the posting-completed notification.
type JournalPostedPayload struct {
	TenantID          int64     `json:"tenant_id"`
	JournalID         int64     `json:"journal_id"`
	Number            int64     `json:"number"`
	EntryDate         string    `json:"entry_date"`
	PeriodID          int64     `json:"period_id"`
	Total             string    `json:"total"`
	TaxAmount         string    `json:"tax_amount"`
	TaxCode           string    `json:"tax_code,omitempty"`
	SourceModule      string    `json:"source_module,omitempty"`
	SourceID          string    `json:"source_id,omitempty"`
	IsReversal        bool      `json:"is_reversal"`
	ReversedJournalID int64     `json:"reversed_journal_id,omitempty"`
	PostedAt          time.Time `json:"posted_at"`
}

// NewJournalPostedPayload flattens a committed entry.
func NewJournalPostedPayload(e journals.JournalEntry) JournalPostedPayload {
	p := JournalPostedPayload{
		TenantID:     e.TenantID,
		JournalID:    e.ID,
		Number:       e.Number,
		EntryDate:    e.EntryDate.Format(time.DateOnly),
		Total:        e.TotalDebit.String(),
		TaxAmount:    e.TaxAmount.String(),
		TaxCode:      e.TaxCode,
		SourceModule: e.SourceModule,
		SourceID:     e.SourceID,
		IsReversal:   e.IsReversal,
	}
	if e.PeriodID != nil {
		p.PeriodID = *e.PeriodID
	}
	if e.ReversedJournalID != nil {
		p.ReversedJournalID = *e.ReversedJournalID
	}
	if e.PostDate != nil {
		p.PostedAt = *e.PostDate
	}
	return p
}

// NewJournalPostedTask constructs the notification task.
func NewJournalPostedTask(payload JournalPostedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskJournalPosted, data), nil
}

// NewPostingRequestTask wraps an integration request.
func NewPostingRequestTask(req integration.Request) (*asynq.Task, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPostingRequest, data), nil
}

// IntegrityCheckPayload scopes an integrity run. TenantID 0 checks every tenant.
type IntegrityCheckPayload struct {
	TenantID int64 `json:"tenant_id"`
}

// NewIntegrityCheckTask constructs the integrity task.
func NewIntegrityCheckTask(tenantID int64) (*asynq.Task, error) {
	data, err := json.Marshal(IntegrityCheckPayload{TenantID: tenantID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIntegrityCheck, data), nil
}
