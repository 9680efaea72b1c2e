package accounts

import (
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Valid reports whether t is one of the five CoA categories.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// DefaultNormalBalance returns the conventional side for the category.
func (t AccountType) DefaultNormalBalance() NormalBalance {
	if t == AccountTypeAsset || t == AccountTypeExpense {
		return NormalBalanceDebit
	}
	return NormalBalanceCredit
}

// NormalBalance is the side on which an account grows.
type NormalBalance string

const (
	NormalBalanceDebit  NormalBalance = "DEBIT"
	NormalBalanceCredit NormalBalance = "CREDIT"
)

// Account models a chart of accounts node.
type Account struct {
	ID            int64
	TenantID      int64
	Code          string
	Name          string
	Type          AccountType
	NormalBalance NormalBalance
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CreateInput describes a new chart account.
type CreateInput struct {
	TenantID      int64
	Code          string
	Name          string
	Type          AccountType
	NormalBalance NormalBalance
}

// Validate normalises and checks the input.
func (in *CreateInput) Validate() error {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	in.Type = AccountType(strings.ToUpper(string(in.Type)))
	in.NormalBalance = NormalBalance(strings.ToUpper(string(in.NormalBalance)))
	if in.TenantID == 0 {
		return shared.Invalid("tenant_id", "required")
	}
	if in.Code == "" {
		return shared.Invalid("code", "required")
	}
	if in.Name == "" {
		return shared.Invalid("name", "required")
	}
	if !in.Type.Valid() {
		return shared.Invalid("type", "must be ASSET, LIABILITY, EQUITY, REVENUE or EXPENSE")
	}
	switch in.NormalBalance {
	case "":
		in.NormalBalance = in.Type.DefaultNormalBalance()
	case NormalBalanceDebit, NormalBalanceCredit:
	default:
		return shared.Invalid("normal_balance", "must be DEBIT or CREDIT")
	}
	return nil
}

// UpdateInput edits a chart account. Nil fields stay untouched.
type UpdateInput struct {
	TenantID int64
	ID       int64
	Name     *string
	Code     *string
	Type     *AccountType
	IsActive *bool
}

// touchesStructure reports whether the edit changes code or type.
func (in UpdateInput) touchesStructure(current Account) bool {
	if in.Code != nil && strings.TrimSpace(*in.Code) != current.Code {
		return true
	}
	if in.Type != nil && *in.Type != current.Type {
		return true
	}
	return false
}
