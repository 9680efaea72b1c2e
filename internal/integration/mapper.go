package integration

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
)

// sourceKey derives a stable idempotency key so a redelivered event replays the original posting.
func sourceKey(kind string, tenantID, id int64) string {
	return uuid.NewSHA1(uuid.Nil, fmt.Appendf(nil, "%s:%d:%d", kind, tenantID, id)).String()
}

// accounts resolves several mapping keys of one module, stopping at the first miss.
func (h *Hooks) accounts(ctx context.Context, tenantID int64, module string, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		mapping, err := h.mappings.Get(ctx, tenantID, module, key)
		if err != nil {
			return nil, err
		}
		out[key] = mapping.AccountCode
	}
	return out, nil
}

func taxTreatment(code, accountCode string) *journals.TaxTreatment {
	return &journals.TaxTreatment{Code: code, Inclusive: true, AccountCode: accountCode}
}
