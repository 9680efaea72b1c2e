package accounting

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	common "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// calculateTax answers GET /tax/calculate?amount=11500&tax_code=VAT-7.5&inclusive=true.
func (h *Handler) calculateTax(w http.ResponseWriter, r *http.Request) {
	principal, _ := common.PrincipalFromContext(r.Context())
	q := r.URL.Query()
	amount, err := decimal.NewFromString(q.Get("amount"))
	if err != nil {
		httpx.RespondError(w, shared.Invalid("amount", "must be a decimal number"))
		return
	}
	inclusive := false
	if raw := q.Get("inclusive"); raw != "" {
		if inclusive, err = strconv.ParseBool(raw); err != nil {
			httpx.RespondError(w, shared.Invalid("inclusive", "must be true or false"))
			return
		}
	}
	b, err := h.svc.Taxes.Calculate(r.Context(), principal.TenantID, amount, q.Get("tax_code"), inclusive)
	if err != nil {
		h.fail(w, "calculate tax", err)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}

func (h *Handler) vatSummary(w http.ResponseWriter, r *http.Request) {
	principal, _ := common.PrincipalFromContext(r.Context())
	summary, err := h.svc.VAT.Generate(r.Context(), principal.TenantID, chi.URLParam(r, "period"))
	if err != nil {
		h.fail(w, "vat summary", err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) finalizeVAT(w http.ResponseWriter, r *http.Request) {
	principal, _ := common.PrincipalFromContext(r.Context())
	summary, err := h.svc.VAT.Finalize(r.Context(), principal.TenantID, chi.URLParam(r, "period"), principal.ActorID)
	if err != nil {
		h.fail(w, "finalize vat summary", err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}
