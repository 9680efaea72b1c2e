package journals

import (
	"context"
	"strings"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	common "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// List pages through journal headers, newest number first.
func (s *Service) List(ctx context.Context, tenantID int64, filters ListFilters, page common.PageRequest) ([]JournalEntry, common.Pagination, error) {
	filters.Status = JournalStatus(strings.ToUpper(string(filters.Status)))
	filters.SourceType = SourceType(strings.ToUpper(string(filters.SourceType)))
	switch filters.Status {
	case "", JournalStatusDraft, JournalStatusPosted, JournalStatusVoided:
	default:
		return nil, common.Pagination{}, shared.Invalid("status", "must be DRAFT, POSTED or VOIDED")
	}
	if filters.SourceType != "" && !filters.SourceType.Valid() {
		return nil, common.Pagination{}, shared.Invalid("source_type", "must be MANUAL or SYSTEM")
	}
	if filters.From != nil && filters.To != nil && filters.To.Before(*filters.From) {
		return nil, common.Pagination{}, shared.Invalid("date_range", "to before from")
	}
	page = page.Normalize()
	entries, total, err := s.repo.List(ctx, tenantID, filters, page)
	if err != nil {
		return nil, common.Pagination{}, err
	}
	return entries, common.NewPagination(page.Page, page.PerPage, total), nil
}

// Get returns an entry with its lines and their account code, name and type.
func (s *Service) Get(ctx context.Context, tenantID, id int64) (JournalEntry, error) {
	return s.repo.Get(ctx, tenantID, id)
}
