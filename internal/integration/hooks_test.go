package integration

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

type fakeLedger struct {
	drafts []journals.Draft
}

func (f *fakeLedger) Post(_ context.Context, tenantID int64, draft journals.Draft) (journals.JournalEntry, error) {
	f.drafts = append(f.drafts, draft)
	return journals.JournalEntry{ID: int64(len(f.drafts)), TenantID: tenantID, Number: int64(len(f.drafts))}, nil
}

type fakeMappings map[string]string

func (f fakeMappings) Get(_ context.Context, tenantID int64, module, key string) (mappings.AccountMapping, error) {
	code, ok := f[module+"/"+key]
	if !ok {
		return mappings.AccountMapping{}, shared.ErrMappingNotFound
	}
	return mappings.AccountMapping{TenantID: tenantID, Module: module, Key: key, AccountCode: code}, nil
}

func newHooks() (*Hooks, *fakeLedger) {
	ledger := &fakeLedger{}
	m := fakeMappings{
		"BILLING/invoice.receivable":        "1100-AR",
		"BILLING/invoice.revenue":           "4000-Sales",
		"BILLING/invoice.tax":               "2100-VAT",
		"BILLING/payment.cash":              "1000-Cash",
		"BILLING/payment.receivable":        "1100-AR",
		"PAYROLL/run.expense":               "6100-Salaries",
		"PAYROLL/run.withholding":           "2200-PAYE",
		"PAYROLL/run.cash":                  "1000-Cash",
		"FUNDRAISING/donation.cash":         "1000-Cash",
		"FUNDRAISING/donation.unrestricted": "4500-Donations",
		"LOGISTICS/fee.receivable":          "1100-AR",
		"LOGISTICS/fee.revenue":             "4200-Delivery",
	}
	return NewHooks(ledger, m, nil), ledger
}

var issued = time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

func TestInvoiceIssuedSplitsTax(t *testing.T) {
	hooks, ledger := newHooks()
	_, err := hooks.HandleInvoiceIssued(t.Context(), InvoiceIssuedEvent{
		TenantID: 7, ID: 42, Number: "INV-42", IssuedAt: issued, Gross: decimal.RequireFromString("11500"), Taxable: true,
	})
	require.NoError(t, err)

	require.Len(t, ledger.drafts, 1)
	draft := ledger.drafts[0]
	require.Equal(t, journals.SourceTypeSystem, draft.SourceType)
	require.Equal(t, "BILLING.INVOICE", draft.SourceModule)
	require.Equal(t, "INV-42", draft.SourceID)
	require.NotNil(t, draft.Tax)
	require.True(t, draft.Tax.Inclusive)
	require.Equal(t, "2100-VAT", draft.Tax.AccountCode)
	require.True(t, draft.Lines[1].Taxable)
	require.Equal(t, "1100-AR", draft.Lines[0].AccountCode)
}

func TestIdempotencyKeysAreStable(t *testing.T) {
	hooks, ledger := newHooks()
	evt := PaymentReceivedEvent{TenantID: 7, ID: 9, Reference: "RCPT-9", ReceivedAt: issued, Amount: decimal.NewFromInt(500)}
	_, err := hooks.HandlePaymentReceived(t.Context(), evt)
	require.NoError(t, err)
	_, err = hooks.HandlePaymentReceived(t.Context(), evt)
	require.NoError(t, err)

	require.Equal(t, ledger.drafts[0].IdempotencyKey, ledger.drafts[1].IdempotencyKey)
	require.NotEqual(t, sourceKey("PAYMENT", 7, 9), sourceKey("PAYMENT", 8, 9))
	require.NotEqual(t, sourceKey("PAYMENT", 7, 9), sourceKey("INVOICE", 7, 9))
}

func TestPayrollRunLines(t *testing.T) {
	hooks, ledger := newHooks()
	_, err := hooks.HandlePayrollRun(t.Context(), PayrollRunEvent{
		TenantID: 7, ID: 3, RunCode: "PR-2025-01", PaidAt: issued,
		Gross: decimal.NewFromInt(1000), Withholding: decimal.NewFromInt(150), Net: decimal.NewFromInt(850),
	})
	require.NoError(t, err)
	lines := ledger.drafts[0].Lines
	require.Len(t, lines, 3)
	require.Equal(t, "6100-Salaries", lines[0].AccountCode)
	require.True(t, lines[1].Credit.Equal(decimal.NewFromInt(150)))
	require.True(t, lines[2].Credit.Equal(decimal.NewFromInt(850)))

	_, err = hooks.HandlePayrollRun(t.Context(), PayrollRunEvent{
		TenantID: 7, ID: 4, RunCode: "PR-2025-02", PaidAt: issued,
		Gross: decimal.NewFromInt(1000), Withholding: decimal.NewFromInt(100), Net: decimal.NewFromInt(850),
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestMissingMappingFailsWithoutPosting(t *testing.T) {
	hooks, ledger := newHooks()
	_, err := hooks.HandleDonationReceived(t.Context(), DonationReceivedEvent{
		TenantID: 7, ID: 1, Reference: "DN-1", ReceivedAt: issued, Amount: decimal.NewFromInt(20), Restricted: true,
	})
	require.ErrorIs(t, err, shared.ErrMappingNotFound)
	require.Empty(t, ledger.drafts)

	_, err = hooks.HandleShipmentFee(t.Context(), ShipmentFeeEvent{
		TenantID: 7, ID: 2, Waybill: "WB-2", BilledAt: issued, Fee: decimal.NewFromInt(30), Taxable: true,
	})
	require.ErrorIs(t, err, shared.ErrMappingNotFound)
}

func TestDispatch(t *testing.T) {
	hooks, ledger := newHooks()
	payload, err := json.Marshal(ShipmentFeeEvent{TenantID: 7, ID: 5, Waybill: "WB-5", BilledAt: issued, Fee: decimal.NewFromInt(40)})
	require.NoError(t, err)

	_, err = hooks.Dispatch(t.Context(), Request{Kind: KindShipmentFee, Payload: payload})
	require.NoError(t, err)
	require.Equal(t, "LOGISTICS.SHIPMENT", ledger.drafts[0].SourceModule)
	require.Nil(t, ledger.drafts[0].Tax)

	_, err = hooks.Dispatch(t.Context(), Request{Kind: "stock.moved", Payload: payload})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = hooks.Dispatch(t.Context(), Request{Kind: KindShipmentFee, Payload: json.RawMessage(`{"fee":`)})
	require.ErrorIs(t, err, shared.ErrValidation)
}
