package journals

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Void neutralises a POSTED entry with a mirror-image reversal and marks the
// original VOIDED. It returns the reversal.
func (s *Service) Void(ctx context.Context, in VoidInput) (JournalEntry, error) {
	reversal, err := s.void(ctx, in)
	if err != nil {
		s.observeVoid(shared.Kind(err))
		return JournalEntry{}, err
	}
	s.observeVoid("voided")
	s.afterCommit(ctx, reversal, in.ActorID, "journal.void", map[string]any{
		"original_id": in.EntryID,
		"reason":      strings.TrimSpace(in.Reason),
	})
	return reversal, nil
}

func (s *Service) void(ctx context.Context, in VoidInput) (JournalEntry, error) {
	in.Reason = strings.TrimSpace(in.Reason)
	if in.Reason == "" {
		return JournalEntry{}, shared.Invalid("reason", "required")
	}
	if in.EntryID <= 0 {
		return JournalEntry{}, shared.Invalid("id", "required")
	}
	original, err := s.repo.Get(ctx, in.TenantID, in.EntryID)
	if err != nil {
		return JournalEntry{}, err
	}
	if err := checkVoidable(original); err != nil {
		return JournalEntry{}, err
	}
	date, err := s.reversalDate(ctx, original)
	if err != nil {
		return JournalEntry{}, err
	}

	var reversal JournalEntry
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		locked, err := tx.GetJournalForUpdate(ctx, in.TenantID, in.EntryID)
		if err != nil {
			return err
		}
		if err := checkVoidable(locked); err != nil {
			return err
		}
		lines, err := tx.GetPostedLines(ctx, in.TenantID, locked.ID)
		if err != nil {
			return err
		}
		period, err := lockOpenPeriod(ctx, tx, in.TenantID, date)
		if err != nil {
			return err
		}
		postDate := s.now()
		header := JournalEntry{
			TenantID:          in.TenantID,
			PeriodID:          &period.ID,
			EntryDate:         date,
			PostDate:          &postDate,
			Description:       fmt.Sprintf("Void of JE #%d: %s", locked.Number, in.Reason),
			SourceType:        locked.SourceType,
			SourceModule:      locked.SourceModule,
			SourceID:          locked.SourceID,
			Status:            JournalStatusPosted,
			TotalDebit:        locked.TotalCredit,
			TotalCredit:       locked.TotalDebit,
			TaxAmount:         locked.TaxAmount,
			TaxCode:           locked.TaxCode,
			IsReversal:        true,
			ReversedJournalID: &locked.ID,
			IdempotencyKey:    voidKey(locked.ID),
			CreatedBy:         in.ActorID,
		}
		if header.Number, err = tx.NextJournalNumber(ctx, in.TenantID); err != nil {
			return err
		}
		inserted, err := tx.InsertJournalEntry(ctx, header)
		if errors.Is(err, shared.ErrDuplicateIdempotencyKey) {
			return shared.ErrAlreadyVoided
		}
		if err != nil {
			return err
		}
		if inserted.Lines, err = s.applyLines(ctx, tx, inserted, mirrorLines(lines)); err != nil {
			return err
		}
		if err := tx.MarkVoided(ctx, in.TenantID, locked.ID, inserted.ID, in.Reason, in.ActorID, postDate); err != nil {
			return err
		}
		reversal = inserted
		return nil
	})
	return reversal, err
}

func checkVoidable(e JournalEntry) error {
	switch {
	case e.Status == JournalStatusVoided:
		return fmt.Errorf("%w: JE #%d", shared.ErrAlreadyVoided, e.Number)
	case e.Status == JournalStatusDraft:
		return shared.Invalid("status", "draft entries are not posted and cannot be voided")
	case e.IsReversal:
		return shared.Invalid("status", "reversal entries cannot be voided")
	}
	return nil
}

// reversalDate keeps the original date while its period is OPEN. Otherwise the
// reversal lands on today, in the current period, when the engine allows it.
func (s *Service) reversalDate(ctx context.Context, original JournalEntry) (time.Time, error) {
	if s.periods == nil {
		return original.EntryDate, nil
	}
	period, err := s.periods.FindByDate(ctx, original.TenantID, original.EntryDate)
	if err != nil && !errors.Is(err, shared.ErrPeriodNotFound) {
		return time.Time{}, err
	}
	if err == nil && period.Status == periods.PeriodStatusOpen {
		return original.EntryDate, nil
	}
	if !s.cfg.VoidIntoCurrentPeriod {
		return original.EntryDate, nil
	}
	today := s.today()
	if err := s.gatePeriod(ctx, original.TenantID, today); err != nil {
		return time.Time{}, err
	}
	return today, nil
}

// mirrorLines swaps debit and credit per line, keeping account and references.
func mirrorLines(lines []ledger.Entry) []ledger.Entry {
	out := make([]ledger.Entry, 0, len(lines))
	for _, l := range lines {
		out = append(out, ledger.Entry{
			TenantID:       l.TenantID,
			ChartAccountID: l.ChartAccountID,
			LineNumber:     l.LineNumber,
			DebitAmount:    l.CreditAmount,
			CreditAmount:   l.DebitAmount,
			Description:    l.Description,
			ReferenceType:  l.ReferenceType,
			ReferenceID:    l.ReferenceID,
			AccountCode:    l.AccountCode,
			AccountName:    l.AccountName,
			AccountType:    l.AccountType,
		})
	}
	return out
}
