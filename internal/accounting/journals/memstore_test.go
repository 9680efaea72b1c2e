package journals

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	common "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type memAccount struct {
	AccountRef
	TenantID int64
}

type memLedger struct {
	ID       int64
	TenantID int64
	ChartID  int64
	Balance  decimal.Decimal
	Count    int
}

type memState struct {
	accounts   map[int64]memAccount
	periods    map[int64]periods.Period
	journals   map[int64]JournalEntry
	draftLines map[int64][]ledger.Entry
	entries    []ledger.Entry
	ledgers    map[[2]int64]memLedger
	seq        map[int64]int64
	ids        map[string]int64
}

func (s memState) clone() memState {
	out := memState{
		accounts:   make(map[int64]memAccount, len(s.accounts)),
		periods:    make(map[int64]periods.Period, len(s.periods)),
		journals:   make(map[int64]JournalEntry, len(s.journals)),
		draftLines: make(map[int64][]ledger.Entry, len(s.draftLines)),
		entries:    append([]ledger.Entry(nil), s.entries...),
		ledgers:    make(map[[2]int64]memLedger, len(s.ledgers)),
		seq:        make(map[int64]int64, len(s.seq)),
		ids:        make(map[string]int64, len(s.ids)),
	}
	for k, v := range s.accounts {
		out.accounts[k] = v
	}
	for k, v := range s.periods {
		out.periods[k] = v
	}
	for k, v := range s.journals {
		out.journals[k] = v
	}
	for k, v := range s.draftLines {
		out.draftLines[k] = append([]ledger.Entry(nil), v...)
	}
	for k, v := range s.ledgers {
		out.ledgers[k] = v
	}
	for k, v := range s.seq {
		out.seq[k] = v
	}
	for k, v := range s.ids {
		out.ids[k] = v
	}
	return out
}

func (s *memState) nextID(kind string) int64 {
	s.ids[kind]++
	return s.ids[kind]
}

// memStore serialises transactions and applies them copy-on-write, so a failed
// transaction leaves no trace.
type memStore struct {
	mu    sync.Mutex
	state memState

	failLedgerInsertAt int
	ledgerInserts      int
	hideKeyOnce        bool
}

func newMemStore() *memStore {
	return &memStore{state: memState{
		accounts:   map[int64]memAccount{},
		periods:    map[int64]periods.Period{},
		journals:   map[int64]JournalEntry{},
		draftLines: map[int64][]ledger.Entry{},
		ledgers:    map[[2]int64]memLedger{},
		seq:        map[int64]int64{},
		ids:        map[string]int64{},
	}}
}

func (m *memStore) addAccount(tenantID int64, code, name, typ string, active bool) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.state.nextID("account")
	m.state.accounts[id] = memAccount{TenantID: tenantID, AccountRef: AccountRef{ChartAccountID: id, Code: code, Name: name, Type: typ, IsActive: active}}
	return id
}

func (m *memStore) addPeriod(tenantID int64, code string, start, end time.Time, status periods.PeriodStatus) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.state.nextID("period")
	m.state.periods[id] = periods.Period{ID: id, TenantID: tenantID, Code: code, FiscalYear: start.Year(), StartDate: start, EndDate: end, Status: status}
	return id
}

func (m *memStore) setPeriodStatus(tenantID int64, code string, status periods.PeriodStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range m.state.periods {
		if p.TenantID == tenantID && p.Code == code {
			p.Status = status
			m.state.periods[id] = p
		}
	}
}

func (m *memStore) snapshot() memState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

func (m *memStore) balance(tenantID int64, code string) decimal.Decimal {
	snap := m.snapshot()
	for _, a := range snap.accounts {
		if a.TenantID == tenantID && a.Code == code {
			return snap.ledgers[[2]int64{tenantID, a.ChartAccountID}].Balance
		}
	}
	return decimal.Zero
}

func (s memState) withLines(e JournalEntry) JournalEntry {
	if e.Status == JournalStatusDraft {
		e.Lines = append([]ledger.Entry(nil), s.draftLines[e.ID]...)
		return e
	}
	e.Lines = nil
	for _, l := range s.entries {
		if l.JournalEntryID == e.ID {
			e.Lines = append(e.Lines, l)
		}
	}
	sort.Slice(e.Lines, func(i, j int) bool { return e.Lines[i].LineNumber < e.Lines[j].LineNumber })
	return e
}

func (m *memStore) Get(_ context.Context, tenantID, id int64) (JournalEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.state.journals[id]
	if !ok || e.TenantID != tenantID {
		return JournalEntry{}, shared.ErrJournalNotFound
	}
	return m.state.withLines(e), nil
}

func (m *memStore) GetByIdempotencyKey(_ context.Context, tenantID int64, key string) (JournalEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hideKeyOnce {
		m.hideKeyOnce = false
		return JournalEntry{}, shared.ErrJournalNotFound
	}
	for _, e := range m.state.journals {
		if e.TenantID == tenantID && e.IdempotencyKey == key {
			return m.state.withLines(e), nil
		}
	}
	return JournalEntry{}, shared.ErrJournalNotFound
}

func (m *memStore) List(_ context.Context, tenantID int64, f ListFilters, page common.PageRequest) ([]JournalEntry, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []JournalEntry
	for _, e := range m.state.journals {
		if e.TenantID != tenantID || (f.Status != "" && e.Status != f.Status) || (f.SourceType != "" && e.SourceType != f.SourceType) {
			continue
		}
		all = append(all, e)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Number > all[j].Number })
	total := len(all)
	start := min(page.Offset(), total)
	end := min(start+page.Limit(), total)
	return all[start:end], total, nil
}

func (m *memStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	work := m.state.clone()
	if err := fn(ctx, &memTx{store: m, s: &work}); err != nil {
		return err
	}
	m.state = work
	return nil
}

// FindByDate and EnsureMonthly make memStore a PeriodProvisioner.
func (m *memStore) FindByDate(_ context.Context, tenantID int64, date time.Time) (periods.Period, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.periodFor(tenantID, date)
}

func (m *memStore) EnsureMonthly(ctx context.Context, tenantID int64, date time.Time) (periods.Period, error) {
	if p, err := m.FindByDate(ctx, tenantID, date); err == nil {
		return p, nil
	}
	start, end := periods.MonthBounds(date)
	m.addPeriod(tenantID, periods.MonthlyCode(date), start, end, periods.PeriodStatusOpen)
	return m.FindByDate(ctx, tenantID, date)
}

func (s memState) periodFor(tenantID int64, date time.Time) (periods.Period, error) {
	for _, p := range s.periods {
		if p.TenantID == tenantID && p.Covers(date) {
			return p, nil
		}
	}
	return periods.Period{}, shared.ErrPeriodNotFound
}

type memTx struct {
	store *memStore
	s     *memState
}

func (t *memTx) ResolveAccounts(_ context.Context, tenantID int64, codes []string) (map[string]AccountRef, error) {
	out := map[string]AccountRef{}
	for _, a := range t.s.accounts {
		for _, c := range codes {
			if a.TenantID == tenantID && a.Code == c {
				out[c] = a.AccountRef
			}
		}
	}
	return out, nil
}

func (t *memTx) LockPeriodForPosting(_ context.Context, tenantID int64, date time.Time) (periods.Period, error) {
	return t.s.periodFor(tenantID, date)
}

func (t *memTx) NextJournalNumber(_ context.Context, tenantID int64) (int64, error) {
	t.s.seq[tenantID]++
	return t.s.seq[tenantID], nil
}

func (t *memTx) InsertJournalEntry(_ context.Context, e JournalEntry) (JournalEntry, error) {
	for _, existing := range t.s.journals {
		if existing.TenantID != e.TenantID {
			continue
		}
		if e.IdempotencyKey != "" && existing.IdempotencyKey == e.IdempotencyKey {
			return JournalEntry{}, shared.ErrDuplicateIdempotencyKey
		}
		if e.ReversedJournalID != nil && existing.ReversedJournalID != nil && *existing.ReversedJournalID == *e.ReversedJournalID {
			return JournalEntry{}, shared.ErrAlreadyVoided
		}
	}
	e.ID = t.s.nextID("journal")
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	e.Lines = nil
	t.s.journals[e.ID] = e
	return e, nil
}

func (t *memTx) InsertDraftLines(_ context.Context, _ int64, journalID int64, lines []ledger.Entry) error {
	for _, l := range lines {
		l.ID = t.s.nextID("draft_line")
		t.s.draftLines[journalID] = append(t.s.draftLines[journalID], l)
	}
	return nil
}

func (t *memTx) GetDraftLines(_ context.Context, _ int64, journalID int64) ([]ledger.Entry, error) {
	return append([]ledger.Entry(nil), t.s.draftLines[journalID]...), nil
}

func (t *memTx) GetPostedLines(_ context.Context, _ int64, journalID int64) ([]ledger.Entry, error) {
	return t.s.withLines(t.s.journals[journalID]).Lines, nil
}

func (t *memTx) LockLedgerAccounts(_ context.Context, tenantID int64, chartIDs []int64) (map[int64]LedgerState, error) {
	if !sort.SliceIsSorted(chartIDs, func(i, j int) bool { return chartIDs[i] < chartIDs[j] }) {
		return nil, errors.New("memstore: ledger accounts must be locked in chart account order")
	}
	out := map[int64]LedgerState{}
	for _, id := range chartIDs {
		key := [2]int64{tenantID, id}
		row, ok := t.s.ledgers[key]
		if !ok {
			row = memLedger{ID: t.s.nextID("ledger"), TenantID: tenantID, ChartID: id}
			t.s.ledgers[key] = row
		}
		out[id] = LedgerState{LedgerAccountID: row.ID, ChartAccountID: id, Balance: row.Balance}
	}
	return out, nil
}

func (t *memTx) InsertLedgerEntry(_ context.Context, e ledger.Entry) (ledger.Entry, error) {
	t.store.ledgerInserts++
	if t.store.failLedgerInsertAt > 0 && t.store.ledgerInserts == t.store.failLedgerInsertAt {
		return ledger.Entry{}, fmt.Errorf("memstore: storage fault")
	}
	e.ID = t.s.nextID("entry")
	e.CreatedAt = time.Now()
	t.s.entries = append(t.s.entries, e)
	return e, nil
}

func (t *memTx) UpdateLedgerBalance(_ context.Context, ledgerAccountID int64, balance decimal.Decimal, entries int, _ time.Time) error {
	for key, row := range t.s.ledgers {
		if row.ID == ledgerAccountID {
			row.Balance = balance
			row.Count += entries
			t.s.ledgers[key] = row
			return nil
		}
	}
	return errors.New("memstore: ledger account missing")
}

func (t *memTx) GetJournalForUpdate(_ context.Context, tenantID, id int64) (JournalEntry, error) {
	e, ok := t.s.journals[id]
	if !ok || e.TenantID != tenantID {
		return JournalEntry{}, shared.ErrJournalNotFound
	}
	return e, nil
}

func (t *memTx) MarkPosted(_ context.Context, _ int64, id, periodID int64, postDate time.Time) error {
	e := t.s.journals[id]
	if e.Status != JournalStatusDraft {
		return shared.ErrJournalNotFound
	}
	e.Status, e.PeriodID, e.PostDate = JournalStatusPosted, &periodID, &postDate
	t.s.journals[id] = e
	delete(t.s.draftLines, id)
	return nil
}

func (t *memTx) MarkVoided(_ context.Context, _ int64, id, reversalID int64, reason string, actorID int64, at time.Time) error {
	e := t.s.journals[id]
	if e.Status != JournalStatusPosted {
		return shared.ErrAlreadyVoided
	}
	e.Status, e.ReversedByJournalID, e.VoidReason, e.VoidedBy, e.VoidedAt = JournalStatusVoided, &reversalID, reason, &actorID, &at
	t.s.journals[id] = e
	return nil
}
