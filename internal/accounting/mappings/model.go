package mappings

import (
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// AccountMapping links an integration key to a chart account code of one tenant.
type AccountMapping struct {
	TenantID    int64
	Module      string
	Key         string
	AccountCode string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Normalize upper-cases the module and trims every field.
func (m *AccountMapping) Normalize() {
	m.Module = strings.ToUpper(strings.TrimSpace(m.Module))
	m.Key = strings.ToLower(strings.TrimSpace(m.Key))
	m.AccountCode = strings.TrimSpace(m.AccountCode)
}

// Validate checks a normalized mapping.
func (m AccountMapping) Validate() error {
	switch {
	case m.TenantID <= 0:
		return shared.Invalid("tenant_id", "required")
	case m.Module == "":
		return shared.Invalid("module", "required")
	case m.Key == "":
		return shared.Invalid("key", "required")
	case m.AccountCode == "":
		return shared.Invalid("account_code", "required")
	}
	return nil
}
