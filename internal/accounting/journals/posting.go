package journals

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/tax"
)

// prepared is a validated, tax-expanded and balanced draft.
type prepared struct {
	draft       Draft
	lines       []DraftLine
	totalDebit  decimal.Decimal
	totalCredit decimal.Decimal
	taxAmount   decimal.Decimal
	taxCode     string
}

// Post records a system-originated draft immediately.
func (s *Service) Post(ctx context.Context, tenantID int64, draft Draft) (JournalEntry, error) {
	return s.CreateAndPost(ctx, tenantID, draft, 0, true)
}

// CreateAndPost validates the draft and commits it as POSTED, or as DRAFT when autoPost is false.
// A repeated idempotency key returns the entry created by the first call.
func (s *Service) CreateAndPost(ctx context.Context, tenantID int64, draft Draft, actorID int64, autoPost bool) (JournalEntry, error) {
	entry, replayed, err := s.create(ctx, tenantID, draft, actorID, autoPost)
	if err != nil {
		s.observePosting(shared.Kind(err))
		return JournalEntry{}, err
	}
	if replayed {
		s.observePosting("replayed")
		return entry, nil
	}
	s.observePosting(strings.ToLower(string(entry.Status)))
	action := "journal.post"
	if entry.Status == JournalStatusDraft {
		action = "journal.draft"
	}
	s.afterCommit(ctx, entry, actorID, action, map[string]any{
		"source_module": entry.SourceModule,
		"source_id":     entry.SourceID,
	})
	return entry, nil
}

func (s *Service) create(ctx context.Context, tenantID int64, draft Draft, actorID int64, autoPost bool) (JournalEntry, bool, error) {
	if tenantID <= 0 {
		return JournalEntry{}, false, shared.Invalid("tenant_id", "required")
	}
	draft = normalizedCopy(draft)
	if err := draft.validate(s.cfg.Precision); err != nil {
		return JournalEntry{}, false, err
	}
	if key := draft.IdempotencyKey; key != "" {
		existing, err := s.repo.GetByIdempotencyKey(ctx, tenantID, key)
		if err == nil {
			return existing, true, nil
		}
		if !errors.Is(err, shared.ErrJournalNotFound) {
			return JournalEntry{}, false, err
		}
	}
	if autoPost {
		if err := s.gatePeriod(ctx, tenantID, draft.EntryDate); err != nil {
			return JournalEntry{}, false, err
		}
	}
	p, err := s.prepare(ctx, tenantID, draft)
	if err != nil {
		return JournalEntry{}, false, err
	}

	var entry JournalEntry
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		refs, err := s.resolveAccounts(ctx, tx, tenantID, p.lines)
		if err != nil {
			return err
		}
		header := JournalEntry{
			TenantID:       tenantID,
			EntryDate:      p.draft.EntryDate,
			Description:    p.draft.Description,
			SourceType:     p.draft.SourceType,
			SourceModule:   p.draft.SourceModule,
			SourceID:       p.draft.SourceID,
			Status:         JournalStatusDraft,
			TotalDebit:     p.totalDebit,
			TotalCredit:    p.totalCredit,
			TaxAmount:      p.taxAmount,
			TaxCode:        p.taxCode,
			IdempotencyKey: p.draft.IdempotencyKey,
			CreatedBy:      actorID,
		}
		if autoPost {
			period, err := lockOpenPeriod(ctx, tx, tenantID, header.EntryDate)
			if err != nil {
				return err
			}
			postDate := s.now()
			header.Status, header.PeriodID, header.PostDate = JournalStatusPosted, &period.ID, &postDate
		}
		if header.Number, err = tx.NextJournalNumber(ctx, tenantID); err != nil {
			return err
		}
		inserted, err := tx.InsertJournalEntry(ctx, header)
		if err != nil {
			return err
		}
		lines := toEntries(tenantID, inserted.ID, p.lines, refs)
		if autoPost {
			if inserted.Lines, err = s.applyLines(ctx, tx, inserted, lines); err != nil {
				return err
			}
		} else {
			if err := tx.InsertDraftLines(ctx, tenantID, inserted.ID, lines); err != nil {
				return err
			}
			inserted.Lines = lines
		}
		entry = inserted
		return nil
	})
	if errors.Is(err, shared.ErrDuplicateIdempotencyKey) {
		// a concurrent request with the same key committed first
		existing, lookupErr := s.repo.GetByIdempotencyKey(ctx, tenantID, p.draft.IdempotencyKey)
		if lookupErr != nil {
			return JournalEntry{}, false, lookupErr
		}
		return existing, true, nil
	}
	if err != nil {
		return JournalEntry{}, false, err
	}
	return entry, false, nil
}

// PostDraft moves a DRAFT entry to POSTED, applying its lines to the ledger.
func (s *Service) PostDraft(ctx context.Context, tenantID, id, actorID int64) (JournalEntry, error) {
	entry, err := s.postDraft(ctx, tenantID, id)
	if err != nil {
		s.observePosting(shared.Kind(err))
		return JournalEntry{}, err
	}
	s.observePosting("posted")
	s.afterCommit(ctx, entry, actorID, "journal.post", map[string]any{"from_draft": true})
	return entry, nil
}

func (s *Service) postDraft(ctx context.Context, tenantID, id int64) (JournalEntry, error) {
	current, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return JournalEntry{}, err
	}
	if current.Status != JournalStatusDraft {
		return JournalEntry{}, shared.Invalid("status", "only DRAFT entries can be posted")
	}
	if err := s.gatePeriod(ctx, tenantID, current.EntryDate); err != nil {
		return JournalEntry{}, err
	}
	var entry JournalEntry
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		locked, err := tx.GetJournalForUpdate(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if locked.Status != JournalStatusDraft {
			return shared.Invalid("status", "only DRAFT entries can be posted")
		}
		lines, err := tx.GetDraftLines(ctx, tenantID, id)
		if err != nil {
			return err
		}
		codes := make([]DraftLine, 0, len(lines))
		for _, l := range lines {
			codes = append(codes, DraftLine{AccountCode: l.AccountCode})
		}
		if _, err := s.resolveAccounts(ctx, tx, tenantID, codes); err != nil {
			return err
		}
		period, err := lockOpenPeriod(ctx, tx, tenantID, locked.EntryDate)
		if err != nil {
			return err
		}
		if locked.Lines, err = s.applyLines(ctx, tx, locked, lines); err != nil {
			return err
		}
		postDate := s.now()
		if err := tx.MarkPosted(ctx, tenantID, id, period.ID, postDate); err != nil {
			return err
		}
		locked.Status, locked.PeriodID, locked.PostDate = JournalStatusPosted, &period.ID, &postDate
		entry = locked
		return nil
	})
	return entry, err
}

// normalizedCopy leaves the caller's slices untouched.
func normalizedCopy(draft Draft) Draft {
	draft.Lines = append([]DraftLine(nil), draft.Lines...)
	if draft.Tax != nil {
		t := *draft.Tax
		draft.Tax = &t
	}
	draft.normalize()
	return draft
}

// prepare expands tax on a validated draft and checks the balance.
func (s *Service) prepare(ctx context.Context, tenantID int64, draft Draft) (prepared, error) {
	lines, taxAmount, taxCode, err := s.expandTax(ctx, tenantID, draft)
	if err != nil {
		return prepared{}, err
	}
	debit, credit := decimal.Zero, decimal.Zero
	for _, line := range lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if !debit.Equal(credit) {
		return prepared{}, &shared.UnbalancedEntryError{TotalDebit: debit, TotalCredit: credit, Precision: s.cfg.Precision}
	}
	return prepared{draft: draft, lines: lines, totalDebit: debit, totalCredit: credit, taxAmount: taxAmount, taxCode: taxCode}, nil
}

// expandTax splits Taxable lines and appends one tax line per split on the same side.
func (s *Service) expandTax(ctx context.Context, tenantID int64, d Draft) ([]DraftLine, decimal.Decimal, string, error) {
	if d.Tax == nil {
		return d.Lines, decimal.Zero, "", nil
	}
	if s.taxes == nil {
		return nil, decimal.Zero, "", shared.Invalid("tax", "tax calculation not configured")
	}
	out := make([]DraftLine, 0, len(d.Lines)*2)
	var (
		taxLines []DraftLine
		total    = decimal.Zero
		code     string
	)
	for i, line := range d.Lines {
		if !line.Taxable {
			out = append(out, line)
			continue
		}
		b, err := s.taxes.Calculate(ctx, tenantID, line.Amount(), d.Tax.Code, d.Tax.Inclusive)
		if err != nil {
			return nil, decimal.Zero, "", err
		}
		code = b.Code
		debitSide := line.Debit.IsPositive()
		if d.Tax.Inclusive {
			if debitSide {
				line.Debit = b.Net
			} else {
				line.Credit = b.Net
			}
		}
		out = append(out, line)
		if b.TaxAmount.IsZero() {
			continue
		}
		taxLine := DraftLine{
			AccountCode:   d.Tax.AccountCode,
			Description:   fmt.Sprintf("%s on line %d", b.Code, i+1),
			ReferenceType: tax.ReferenceType,
			ReferenceID:   b.Code,
		}
		if debitSide {
			taxLine.Debit = b.TaxAmount
		} else {
			taxLine.Credit = b.TaxAmount
		}
		taxLines = append(taxLines, taxLine)
		total = total.Add(b.TaxAmount)
	}
	return append(out, taxLines...), total, code, nil
}

func (s *Service) resolveAccounts(ctx context.Context, tx TxRepository, tenantID int64, lines []DraftLine) (map[string]AccountRef, error) {
	codes := make([]string, 0, len(lines))
	seen := make(map[string]struct{}, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.AccountCode]; !ok {
			seen[l.AccountCode] = struct{}{}
			codes = append(codes, l.AccountCode)
		}
	}
	refs, err := tx.ResolveAccounts(ctx, tenantID, codes)
	if err != nil {
		return nil, err
	}
	for i, l := range lines {
		ref, ok := refs[l.AccountCode]
		if !ok {
			return nil, shared.InvalidLine(i+1, "account_code", fmt.Sprintf("unknown account %q", l.AccountCode))
		}
		if !ref.IsActive {
			return nil, shared.InvalidLine(i+1, "account_code", fmt.Sprintf("account %q is inactive", l.AccountCode))
		}
	}
	return refs, nil
}

// gatePeriod rejects dates in a CLOSED period before any other check, and
// lazily creates the monthly period when configured. The authoritative check
// runs again inside the posting transaction.
func (s *Service) gatePeriod(ctx context.Context, tenantID int64, date time.Time) error {
	if s.periods == nil {
		return nil
	}
	period, err := s.periods.FindByDate(ctx, tenantID, date)
	switch {
	case err == nil:
		if period.Status != periods.PeriodStatusOpen {
			return fmt.Errorf("%w: %s", shared.ErrPeriodClosed, period.Code)
		}
		return nil
	case errors.Is(err, shared.ErrPeriodNotFound) && s.cfg.AutoCreatePeriods:
		_, err = s.periods.EnsureMonthly(ctx, tenantID, date)
		return err
	case errors.Is(err, shared.ErrPeriodNotFound):
		return fmt.Errorf("%w: no period covers %s", shared.ErrPeriodNotFound, date.Format(time.DateOnly))
	default:
		return err
	}
}

// lockOpenPeriod re-validates the period inside the transaction that writes the entry.
func lockOpenPeriod(ctx context.Context, tx TxRepository, tenantID int64, date time.Time) (periods.Period, error) {
	period, err := tx.LockPeriodForPosting(ctx, tenantID, date)
	if err != nil {
		if errors.Is(err, shared.ErrPeriodNotFound) {
			return periods.Period{}, fmt.Errorf("%w: no period covers %s", shared.ErrPeriodNotFound, date.Format(time.DateOnly))
		}
		return periods.Period{}, err
	}
	if period.Status != periods.PeriodStatusOpen {
		return periods.Period{}, fmt.Errorf("%w: %s", shared.ErrPeriodClosed, period.Code)
	}
	return period, nil
}

// applyLines is the only writer of ledger balances. Accounts are locked in
// ascending chart account order before any line is written.
func (s *Service) applyLines(ctx context.Context, tx TxRepository, header JournalEntry, lines []ledger.Entry) ([]ledger.Entry, error) {
	ids := make([]int64, 0, len(lines))
	seen := make(map[int64]struct{}, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.ChartAccountID]; !ok {
			seen[l.ChartAccountID] = struct{}{}
			ids = append(ids, l.ChartAccountID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	states, err := tx.LockLedgerAccounts(ctx, header.TenantID, ids)
	if err != nil {
		return nil, err
	}
	counts := make(map[int64]int, len(ids))
	out := make([]ledger.Entry, 0, len(lines))
	for _, line := range lines {
		state, ok := states[line.ChartAccountID]
		if !ok {
			return nil, fmt.Errorf("journals: ledger account for chart account %d not locked", line.ChartAccountID)
		}
		state.Balance = state.Balance.Add(line.DebitAmount).Sub(line.CreditAmount)
		states[line.ChartAccountID] = state

		line.TenantID = header.TenantID
		line.JournalEntryID = header.ID
		line.LedgerAccountID = state.LedgerAccountID
		line.BalanceAfter = state.Balance
		line.EntryDate = header.EntryDate
		inserted, err := tx.InsertLedgerEntry(ctx, line)
		if err != nil {
			return nil, err
		}
		out = append(out, inserted)
		counts[line.ChartAccountID]++
	}
	at := s.now()
	for _, id := range ids {
		state := states[id]
		if err := tx.UpdateLedgerBalance(ctx, state.LedgerAccountID, state.Balance, counts[id], at); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func toEntries(tenantID, journalID int64, lines []DraftLine, refs map[string]AccountRef) []ledger.Entry {
	out := make([]ledger.Entry, 0, len(lines))
	for i, l := range lines {
		ref := refs[l.AccountCode]
		out = append(out, ledger.Entry{
			TenantID:       tenantID,
			JournalEntryID: journalID,
			ChartAccountID: ref.ChartAccountID,
			LineNumber:     i + 1,
			DebitAmount:    l.Debit,
			CreditAmount:   l.Credit,
			Description:    l.Description,
			ReferenceType:  l.ReferenceType,
			ReferenceID:    l.ReferenceID,
			AccountCode:    ref.Code,
			AccountName:    ref.Name,
			AccountType:    ref.Type,
		})
	}
	return out
}
