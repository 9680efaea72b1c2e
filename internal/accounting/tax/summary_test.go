package tax

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

type fakeRepo struct {
	mu        sync.Mutex
	lines     []SummaryLine
	snapshots map[int64]Summary
	calls     atomic.Int32
}

func (f *fakeRepo) Aggregate(context.Context, int64, int64) ([]SummaryLine, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SummaryLine(nil), f.lines...), nil
}

func (f *fakeRepo) GetFinalized(_ context.Context, _ int64, periodID int64) (Summary, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.snapshots[periodID]
	return s, ok, nil
}

func (f *fakeRepo) InsertFinalized(_ context.Context, s Summary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.snapshots[s.PeriodID]; ok {
		return shared.ErrVATSummaryFinalized
	}
	f.snapshots[s.PeriodID] = s
	return nil
}

type periodStub map[string]periods.Period

func (p periodStub) Get(_ context.Context, _ int64, code string) (periods.Period, error) {
	period, ok := p[code]
	if !ok {
		return periods.Period{}, shared.ErrPeriodNotFound
	}
	return period, nil
}

func newSummaryFixture(t *testing.T) (*SummaryService, *fakeRepo, periodStub) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	repo := &fakeRepo{
		snapshots: map[int64]Summary{},
		lines: []SummaryLine{
			{TaxCode: "VAT-7.5", OutputTax: decimal.RequireFromString("802.33"), InputTax: decimal.RequireFromString("150"), EntryCount: 3},
		},
	}
	ps := periodStub{
		"2025-01": {ID: 1, TenantID: 1, Code: "2025-01", Status: periods.PeriodStatusOpen},
		"2024-12": {ID: 2, TenantID: 1, Code: "2024-12", Status: periods.PeriodStatusClosed},
	}
	return NewSummaryService(repo, ps, NewCache(client, time.Minute), nil, nil), repo, ps
}

func TestGenerateCachesUntilInvalidated(t *testing.T) {
	svc, repo, _ := newSummaryFixture(t)
	ctx := context.Background()

	s, err := svc.Generate(ctx, 1, "2025-01")
	require.NoError(t, err)
	require.Equal(t, "652.33", s.NetPayable.StringFixed(2))
	require.Equal(t, "652.33", s.Lines[0].NetTax.StringFixed(2))
	require.False(t, s.Finalized)

	_, err = svc.Generate(ctx, 1, "2025-01")
	require.NoError(t, err)
	require.Equal(t, int32(1), repo.calls.Load())

	require.NoError(t, svc.Invalidate(ctx, 1))
	_, err = svc.Generate(ctx, 1, "2025-01")
	require.NoError(t, err)
	require.Equal(t, int32(2), repo.calls.Load())
}

func TestFinalizeRequiresClosedPeriodOnce(t *testing.T) {
	svc, _, _ := newSummaryFixture(t)
	ctx := context.Background()

	_, err := svc.Finalize(ctx, 1, "2025-01", 7)
	require.ErrorIs(t, err, shared.ErrPeriodNotClosed)

	s, err := svc.Finalize(ctx, 1, "2024-12", 7)
	require.NoError(t, err)
	require.True(t, s.Finalized)
	require.Equal(t, int64(7), *s.FinalizedBy)

	_, err = svc.Finalize(ctx, 1, "2024-12", 7)
	require.ErrorIs(t, err, shared.ErrVATSummaryFinalized)

	frozen, err := svc.Generate(ctx, 1, "2024-12")
	require.NoError(t, err)
	require.True(t, frozen.Finalized)

	_, err = svc.Generate(ctx, 1, "2099-01")
	require.ErrorIs(t, err, shared.ErrPeriodNotFound)
}

func TestGenerateWithoutRedis(t *testing.T) {
	repo := &fakeRepo{snapshots: map[int64]Summary{}}
	svc := NewSummaryService(repo, periodStub{"2025-01": {ID: 1, TenantID: 1, Code: "2025-01"}}, nil, nil, nil)
	s, err := svc.Generate(context.Background(), 1, "2025-01")
	require.NoError(t, err)
	require.Empty(t, s.Lines)
	require.True(t, s.NetPayable.IsZero())
}
