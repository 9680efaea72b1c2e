package integration

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Ledger exposes journal posting operations required by integrations.
type Ledger interface {
	Post(ctx context.Context, tenantID int64, draft journals.Draft) (journals.JournalEntry, error)
}

// AccountMappingRepository provides mapping lookups.
type AccountMappingRepository interface {
	Get(ctx context.Context, tenantID int64, module, key string) (mappings.AccountMapping, error)
}

// Hooks wires domain events from operational modules into the general ledger.
type Hooks struct {
	ledger   Ledger
	mappings AccountMappingRepository
	logger   *slog.Logger
}

// NewHooks constructs integration hooks.
func NewHooks(ledger Ledger, mappingRepo AccountMappingRepository, logger *slog.Logger) *Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hooks{ledger: ledger, mappings: mappingRepo, logger: logger}
}

func (h *Hooks) post(ctx context.Context, tenantID int64, draft journals.Draft) (journals.JournalEntry, error) {
	draft.SourceType = journals.SourceTypeSystem
	entry, err := h.ledger.Post(ctx, tenantID, draft)
	if err != nil {
		return journals.JournalEntry{}, fmt.Errorf("integration: %s %s: %w", draft.SourceModule, draft.SourceID, err)
	}
	h.logger.Info("integration posting",
		slog.Int64("tenant_id", tenantID),
		slog.String("source_module", draft.SourceModule),
		slog.String("source_id", draft.SourceID),
		slog.Int64("journal_number", entry.Number))
	return entry, nil
}

// HandleInvoiceIssued posts receivable against revenue, splitting tax out of the gross.
func (h *Hooks) HandleInvoiceIssued(ctx context.Context, evt InvoiceIssuedEvent) (journals.JournalEntry, error) {
	if evt.IssuedAt.IsZero() {
		return journals.JournalEntry{}, shared.Invalid("issued_at", "required")
	}
	if !evt.Gross.IsPositive() {
		return journals.JournalEntry{}, shared.Invalid("gross", "must be positive")
	}
	keys := []string{"invoice.receivable", "invoice.revenue"}
	if evt.Taxable {
		keys = append(keys, "invoice.tax")
	}
	acc, err := h.accounts(ctx, evt.TenantID, "BILLING", keys...)
	if err != nil {
		return journals.JournalEntry{}, err
	}
	draft := journals.Draft{
		EntryDate:      evt.IssuedAt,
		Description:    fmt.Sprintf("Invoice %s", evt.Number),
		SourceModule:   "BILLING.INVOICE",
		SourceID:       evt.Number,
		IdempotencyKey: sourceKey("INVOICE", evt.TenantID, evt.ID),
		Lines: []journals.DraftLine{
			{AccountCode: acc["invoice.receivable"], Debit: evt.Gross},
			{AccountCode: acc["invoice.revenue"], Credit: evt.Gross, Taxable: evt.Taxable},
		},
	}
	if evt.Taxable {
		draft.Tax = taxTreatment(evt.TaxCode, acc["invoice.tax"])
	}
	return h.post(ctx, evt.TenantID, draft)
}

// HandlePaymentReceived settles a receivable into cash.
func (h *Hooks) HandlePaymentReceived(ctx context.Context, evt PaymentReceivedEvent) (journals.JournalEntry, error) {
	if evt.ReceivedAt.IsZero() {
		return journals.JournalEntry{}, shared.Invalid("received_at", "required")
	}
	if !evt.Amount.IsPositive() {
		return journals.JournalEntry{}, shared.Invalid("amount", "must be positive")
	}
	acc, err := h.accounts(ctx, evt.TenantID, "BILLING", "payment.cash", "payment.receivable")
	if err != nil {
		return journals.JournalEntry{}, err
	}
	return h.post(ctx, evt.TenantID, journals.Draft{
		EntryDate:      evt.ReceivedAt,
		Description:    fmt.Sprintf("Payment %s", evt.Reference),
		SourceModule:   "BILLING.PAYMENT",
		SourceID:       evt.Reference,
		IdempotencyKey: sourceKey("PAYMENT", evt.TenantID, evt.ID),
		Lines: []journals.DraftLine{
			{AccountCode: acc["payment.cash"], Debit: evt.Amount},
			{AccountCode: acc["payment.receivable"], Credit: evt.Amount},
		},
	})
}

// HandlePayrollRun books salary expense against withholding liability and cash.
func (h *Hooks) HandlePayrollRun(ctx context.Context, evt PayrollRunEvent) (journals.JournalEntry, error) {
	if evt.PaidAt.IsZero() {
		return journals.JournalEntry{}, shared.Invalid("paid_at", "required")
	}
	if !evt.Gross.IsPositive() || evt.Net.IsNegative() || evt.Withholding.IsNegative() {
		return journals.JournalEntry{}, shared.Invalid("amount", "gross must be positive, net and withholding non-negative")
	}
	if !evt.Gross.Equal(evt.Net.Add(evt.Withholding)) {
		return journals.JournalEntry{}, shared.Invalid("gross", "must equal net plus withholding")
	}
	acc, err := h.accounts(ctx, evt.TenantID, "PAYROLL", "run.expense", "run.withholding", "run.cash")
	if err != nil {
		return journals.JournalEntry{}, err
	}
	lines := []journals.DraftLine{{AccountCode: acc["run.expense"], Debit: evt.Gross}}
	if evt.Withholding.IsPositive() {
		lines = append(lines, journals.DraftLine{AccountCode: acc["run.withholding"], Credit: evt.Withholding})
	}
	if evt.Net.IsPositive() {
		lines = append(lines, journals.DraftLine{AccountCode: acc["run.cash"], Credit: evt.Net})
	}
	return h.post(ctx, evt.TenantID, journals.Draft{
		EntryDate:      evt.PaidAt,
		Description:    fmt.Sprintf("Payroll run %s", evt.RunCode),
		SourceModule:   "PAYROLL.RUN",
		SourceID:       evt.RunCode,
		IdempotencyKey: sourceKey("PAYROLL", evt.TenantID, evt.ID),
		Lines:          lines,
	})
}

// HandleDonationReceived books cash against restricted or unrestricted donation income.
func (h *Hooks) HandleDonationReceived(ctx context.Context, evt DonationReceivedEvent) (journals.JournalEntry, error) {
	if evt.ReceivedAt.IsZero() {
		return journals.JournalEntry{}, shared.Invalid("received_at", "required")
	}
	if !evt.Amount.IsPositive() {
		return journals.JournalEntry{}, shared.Invalid("amount", "must be positive")
	}
	incomeKey := "donation.unrestricted"
	if evt.Restricted {
		incomeKey = "donation.restricted"
	}
	acc, err := h.accounts(ctx, evt.TenantID, "FUNDRAISING", "donation.cash", incomeKey)
	if err != nil {
		return journals.JournalEntry{}, err
	}
	return h.post(ctx, evt.TenantID, journals.Draft{
		EntryDate:      evt.ReceivedAt,
		Description:    fmt.Sprintf("Donation %s", evt.Reference),
		SourceModule:   "FUNDRAISING.DONATION",
		SourceID:       evt.Reference,
		IdempotencyKey: sourceKey("DONATION", evt.TenantID, evt.ID),
		Lines: []journals.DraftLine{
			{AccountCode: acc["donation.cash"], Debit: evt.Amount},
			{AccountCode: acc[incomeKey], Credit: evt.Amount},
		},
	})
}

// HandleShipmentFee books a billed delivery fee, splitting tax out of the fee when taxable.
func (h *Hooks) HandleShipmentFee(ctx context.Context, evt ShipmentFeeEvent) (journals.JournalEntry, error) {
	if evt.BilledAt.IsZero() {
		return journals.JournalEntry{}, shared.Invalid("billed_at", "required")
	}
	if !evt.Fee.IsPositive() {
		return journals.JournalEntry{}, shared.Invalid("fee", "must be positive")
	}
	keys := []string{"fee.receivable", "fee.revenue"}
	if evt.Taxable {
		keys = append(keys, "fee.tax")
	}
	acc, err := h.accounts(ctx, evt.TenantID, "LOGISTICS", keys...)
	if err != nil {
		return journals.JournalEntry{}, err
	}
	draft := journals.Draft{
		EntryDate:      evt.BilledAt,
		Description:    fmt.Sprintf("Delivery fee %s", evt.Waybill),
		SourceModule:   "LOGISTICS.SHIPMENT",
		SourceID:       evt.Waybill,
		IdempotencyKey: sourceKey("SHIPMENT", evt.TenantID, evt.ID),
		Lines: []journals.DraftLine{
			{AccountCode: acc["fee.receivable"], Debit: evt.Fee},
			{AccountCode: acc["fee.revenue"], Credit: evt.Fee, Taxable: evt.Taxable},
		},
	}
	if evt.Taxable {
		draft.Tax = taxTreatment(evt.TaxCode, acc["fee.tax"])
	}
	return h.post(ctx, evt.TenantID, draft)
}
