package integration

import (
	"context"
	"encoding/json"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Event kinds accepted on the posting-request queue.
const (
	KindInvoiceIssued    = "invoice.issued"
	KindPaymentReceived  = "payment.received"
	KindPayrollRun       = "payroll.run"
	KindDonationReceived = "donation.received"
	KindShipmentFee      = "shipment.fee"
)

// Request is a posting request emitted by an external domain.
type Request struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Dispatch decodes the payload for its kind and runs the matching hook.
func (h *Hooks) Dispatch(ctx context.Context, req Request) (journals.JournalEntry, error) {
	switch req.Kind {
	case KindInvoiceIssued:
		return handle(ctx, req.Payload, h.HandleInvoiceIssued)
	case KindPaymentReceived:
		return handle(ctx, req.Payload, h.HandlePaymentReceived)
	case KindPayrollRun:
		return handle(ctx, req.Payload, h.HandlePayrollRun)
	case KindDonationReceived:
		return handle(ctx, req.Payload, h.HandleDonationReceived)
	case KindShipmentFee:
		return handle(ctx, req.Payload, h.HandleShipmentFee)
	default:
		return journals.JournalEntry{}, shared.Invalid("kind", "unknown posting request kind "+req.Kind)
	}
}

func handle[E any](ctx context.Context, payload json.RawMessage, fn func(context.Context, E) (journals.JournalEntry, error)) (journals.JournalEntry, error) {
	var evt E
	if err := json.Unmarshal(payload, &evt); err != nil {
		return journals.JournalEntry{}, shared.Invalid("payload", err.Error())
	}
	return fn(ctx, evt)
}
