package accounts

import (
	"context"
	"strings"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Service maintains the per-tenant chart of accounts catalogue.
type Service struct {
	repo Repository
}

// NewService constructs the catalogue service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns the tenant's accounts ordered by code.
func (s *Service) List(ctx context.Context, tenantID int64) ([]Account, error) {
	return s.repo.List(ctx, tenantID)
}

// GetByCode resolves a single account.
func (s *Service) GetByCode(ctx context.Context, tenantID int64, code string) (Account, error) {
	return s.repo.GetByCode(ctx, tenantID, strings.TrimSpace(code))
}

// Create adds an account to the catalogue.
func (s *Service) Create(ctx context.Context, in CreateInput) (Account, error) {
	if err := in.Validate(); err != nil {
		return Account{}, err
	}
	return s.repo.Create(ctx, in)
}

// Update applies a catalogue edit. Code and type are frozen once postings reference the account.
func (s *Service) Update(ctx context.Context, in UpdateInput) (Account, error) {
	current, err := s.repo.Get(ctx, in.TenantID, in.ID)
	if err != nil {
		return Account{}, err
	}
	if in.touchesStructure(current) {
		used, err := s.repo.HasLedgerEntries(ctx, in.TenantID, in.ID)
		if err != nil {
			return Account{}, err
		}
		if used {
			return Account{}, shared.ErrAccountInUse
		}
	}
	next := current
	if in.Name != nil {
		next.Name = strings.TrimSpace(*in.Name)
		if next.Name == "" {
			return Account{}, shared.Invalid("name", "required")
		}
	}
	if in.Code != nil {
		next.Code = strings.TrimSpace(*in.Code)
		if next.Code == "" {
			return Account{}, shared.Invalid("code", "required")
		}
	}
	if in.Type != nil {
		if !in.Type.Valid() {
			return Account{}, shared.Invalid("type", "unknown account type")
		}
		next.Type = *in.Type
		next.NormalBalance = next.Type.DefaultNormalBalance()
	}
	if in.IsActive != nil {
		next.IsActive = *in.IsActive
	}
	return s.repo.Update(ctx, next)
}
