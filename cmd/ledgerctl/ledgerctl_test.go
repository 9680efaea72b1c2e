package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
)

type fakePeriods struct {
	closed   []string
	reopened []string
	created  []periods.CreateInput
	items    []periods.Period
}

func (f *fakePeriods) List(context.Context, int64, periods.Filters) ([]periods.Period, error) {
	return f.items, nil
}

func (f *fakePeriods) Create(_ context.Context, in periods.CreateInput) (periods.Period, error) {
	f.created = append(f.created, in)
	return periods.Period{Code: in.Code, StartDate: in.StartDate, EndDate: in.EndDate}, nil
}

func (f *fakePeriods) Close(_ context.Context, _ int64, code string, _ int64) (periods.Period, error) {
	f.closed = append(f.closed, code)
	return periods.Period{Code: code, Status: periods.PeriodStatusClosed}, nil
}

func (f *fakePeriods) Reopen(_ context.Context, _ int64, code string, _ int64) (periods.Period, error) {
	f.reopened = append(f.reopened, code)
	return periods.Period{Code: code, Status: periods.PeriodStatusOpen}, nil
}

type fakeLedger struct {
	accounts []ledger.Account
	reports  []ledger.IntegrityReport
}

func (f *fakeLedger) ListAccounts(context.Context, int64) ([]ledger.Account, error) {
	return f.accounts, nil
}

func (f *fakeLedger) CheckIntegrity(_ context.Context, tenantID int64) (ledger.IntegrityReport, error) {
	for _, r := range f.reports {
		if r.TenantID == tenantID {
			return r, nil
		}
	}
	return ledger.IntegrityReport{TenantID: tenantID}, nil
}

func (f *fakeLedger) CheckAll(context.Context) ([]ledger.IntegrityReport, error) {
	return f.reports, nil
}

type fakeMappings struct {
	saved []mappings.AccountMapping
}

func (f *fakeMappings) Get(context.Context, int64, string, string) (mappings.AccountMapping, error) {
	return mappings.AccountMapping{}, nil
}

func (f *fakeMappings) List(context.Context, int64, string) ([]mappings.AccountMapping, error) {
	return f.saved, nil
}

func (f *fakeMappings) Upsert(_ context.Context, m mappings.AccountMapping) (mappings.AccountMapping, error) {
	f.saved = append(f.saved, m)
	return m, nil
}

type fakeQueue struct {
	integrity []int64
	requests  []integration.Request
}

func (f *fakeQueue) EnqueueIntegrityCheck(_ context.Context, tenantID int64) (*asynq.TaskInfo, error) {
	f.integrity = append(f.integrity, tenantID)
	return &asynq.TaskInfo{ID: "t1", Queue: "default"}, nil
}

func (f *fakeQueue) EnqueuePostingRequest(_ context.Context, req integration.Request) (*asynq.TaskInfo, error) {
	f.requests = append(f.requests, req)
	return &asynq.TaskInfo{ID: "t2", Queue: "ledger"}, nil
}

type harness struct {
	periods  *fakePeriods
	ledger   *fakeLedger
	mappings *fakeMappings
	queue    *fakeQueue
}

func newHarness() *harness {
	return &harness{periods: &fakePeriods{}, ledger: &fakeLedger{}, mappings: &fakeMappings{}, queue: &fakeQueue{}}
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	b := &backend{
		periods:  func(context.Context) (PeriodAdmin, error) { return h.periods, nil },
		ledger:   func(context.Context) (LedgerAdmin, error) { return h.ledger, nil },
		mappings: func(context.Context) (mappings.Repository, error) { return h.mappings, nil },
		queue:    func() (QueueAdmin, error) { return h.queue, nil },
		close:    func() error { return nil },
	}
	var out bytes.Buffer
	root := newRootCmd(b, &out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestPeriodsCommands(t *testing.T) {
	h := newHarness()

	out, err := h.run(t, "periods", "close", "2025-01", "--tenant", "7", "--actor", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "closed period 2025-01")

	_, err = h.run(t, "periods", "reopen", "2025-01", "--tenant", "7", "--actor", "3")
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-01"}, h.periods.closed)
	assert.Equal(t, []string{"2025-01"}, h.periods.reopened)

	_, err = h.run(t, "periods", "create", "2025-02", "--tenant", "7", "--actor", "3", "--start", "2025-02-01", "--end", "2025-02-28")
	require.NoError(t, err)
	require.Len(t, h.periods.created, 1)
	assert.Equal(t, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), h.periods.created[0].EndDate)

	_, err = h.run(t, "periods", "close", "2025-01", "--tenant", "7")
	assert.ErrorContains(t, err, "--actor")
	_, err = h.run(t, "periods", "list")
	assert.ErrorContains(t, err, "--tenant")
}

func TestBalancesCommandFormatsDisplayBalance(t *testing.T) {
	h := newHarness()
	h.ledger.accounts = []ledger.Account{
		{AccountCode: "1000", AccountName: "Cash", NormalBalance: "DEBIT", Balance: decimal.RequireFromString("10750"), EntryCount: 1},
		{AccountCode: "4000", AccountName: "Sales", NormalBalance: "CREDIT", Balance: decimal.RequireFromString("-1234567.5"), EntryCount: 3},
	}
	out, err := h.run(t, "balances", "--tenant", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "10,750.00")
	assert.Contains(t, out, "1,234,567.50")
	assert.NotContains(t, out, "-1,234,567.50")
}

func TestBalancesCommandHonoursPrecision(t *testing.T) {
	h := newHarness()
	h.ledger.accounts = []ledger.Account{
		{AccountCode: "1000", AccountName: "Cash", NormalBalance: "DEBIT", Balance: decimal.RequireFromString("0.0049"), EntryCount: 1},
	}
	out, err := h.run(t, "balances", "--tenant", "7", "--precision", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "0.0049")
}

func TestIntegrityCommandFailsOnViolations(t *testing.T) {
	h := newHarness()
	h.ledger.reports = []ledger.IntegrityReport{
		{TenantID: 7, AccountsChecked: 3},
		{TenantID: 8, Drifts: []ledger.Drift{{AccountCode: "1000", Cached: decimal.NewFromInt(10), Derived: decimal.NewFromInt(12)}}},
	}

	out, err := h.run(t, "integrity", "--tenant", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "tenant 7: ok")

	out, err = h.run(t, "integrity", "--all")
	assert.ErrorIs(t, err, errViolations)
	assert.Contains(t, out, "drift 1000: cached 10.00, derived 12.00")
}

func TestMappingsSet(t *testing.T) {
	h := newHarness()
	out, err := h.run(t, "mappings", "set", "billing", "invoice.revenue", "4000", "--tenant", "7")
	require.NoError(t, err)
	require.Len(t, h.mappings.saved, 1)
	assert.Equal(t, "BILLING", h.mappings.saved[0].Module)
	assert.Contains(t, out, "-> 4000")

	out, err = h.run(t, "mappings", "list", "--tenant", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "invoice.revenue")
}

func TestJobsCommands(t *testing.T) {
	h := newHarness()
	_, err := h.run(t, "jobs", "integrity")
	require.NoError(t, err)
	assert.Equal(t, []int64{0}, h.queue.integrity)

	path := filepath.Join(t.TempDir(), "invoice.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"tenant_id":7,"invoice_id":"INV-1"}`), 0o600))
	out, err := h.run(t, "jobs", "post", "--kind", integration.KindInvoiceIssued, "--file", path)
	require.NoError(t, err)
	require.Len(t, h.queue.requests, 1)
	assert.Equal(t, integration.KindInvoiceIssued, h.queue.requests[0].Kind)
	assert.Contains(t, out, "invoice.issued")

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{`), 0o600))
	_, err = h.run(t, "jobs", "post", "--kind", integration.KindInvoiceIssued, "--file", bad)
	assert.Error(t, err)
}

func TestFormatMoney(t *testing.T) {
	cases := map[string]string{
		"0":          "0.00",
		"999.999":    "1,000.00",
		"1234567.5":  "1,234,567.50",
		"-10697.674": "-10,697.67",
		"-0.001":     "0.00",
	}
	for in, want := range cases {
		assert.Equal(t, want, formatMoney(decimal.RequireFromString(in), 2), in)
	}
}
