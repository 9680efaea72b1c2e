package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	common "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type stubRepo struct {
	drifts     map[int64][]Drift
	imbalances map[int64][]Imbalance
	tenants    []int64
	lastPage   common.PageRequest
}

func (s *stubRepo) ListAccounts(context.Context, int64) ([]Account, error) { return nil, nil }

func (s *stubRepo) ListEntries(_ context.Context, _ int64, _ EntryFilters, page common.PageRequest) ([]Entry, int, error) {
	s.lastPage = page
	return []Entry{{ID: 1}}, 41, nil
}

func (s *stubRepo) AccountDrifts(_ context.Context, tenantID int64) (int, []Drift, error) {
	return 3, s.drifts[tenantID], nil
}

func (s *stubRepo) UnbalancedJournals(_ context.Context, tenantID int64) (int, []Imbalance, error) {
	return 5, s.imbalances[tenantID], nil
}

func (s *stubRepo) ListTenants(context.Context) ([]int64, error) { return s.tenants, nil }

func TestDisplayBalanceFollowsNormalSide(t *testing.T) {
	signed := decimal.NewFromInt(-50000)
	require.True(t, Account{Balance: signed, NormalBalance: "CREDIT"}.DisplayBalance().Equal(decimal.NewFromInt(50000)))
	require.True(t, Account{Balance: signed, NormalBalance: "DEBIT"}.DisplayBalance().Equal(signed))
}

func TestCheckAllReportsDrift(t *testing.T) {
	repo := &stubRepo{
		tenants: []int64{1, 2},
		drifts: map[int64][]Drift{
			2: {{LedgerAccountID: 9, AccountCode: "1000", Cached: decimal.NewFromInt(10), Derived: decimal.NewFromInt(7)}},
		},
	}
	svc := NewService(repo, nil)
	reports, err := svc.CheckAll(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 2)
	require.True(t, reports[0].OK())
	require.False(t, reports[1].OK())
	require.Equal(t, 3, reports[1].AccountsChecked)
	require.Equal(t, 5, reports[1].JournalsChecked)
}

func TestListEntriesNormalisesPage(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo, nil)
	_, page, err := svc.ListEntries(context.Background(), 1, EntryFilters{AccountCode: " 1000 "}, common.PageRequest{PerPage: 10})
	require.NoError(t, err)
	require.Equal(t, 1, repo.lastPage.Page)
	require.Equal(t, 5, page.TotalPages)

	from := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, -1)
	_, _, err = svc.ListEntries(context.Background(), 1, EntryFilters{From: &from, To: &to}, common.PageRequest{})
	require.ErrorIs(t, err, shared.ErrValidation)
}
