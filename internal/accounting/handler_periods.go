package accounting

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	common "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type periodResponse struct {
	ID         int64                `json:"id"`
	Code       string               `json:"code"`
	FiscalYear int                  `json:"fiscal_year"`
	StartDate  string               `json:"start_date"`
	EndDate    string               `json:"end_date"`
	Status     periods.PeriodStatus `json:"status"`
	IsCurrent  bool                 `json:"is_current"`
	ClosedAt   *time.Time           `json:"closed_at,omitempty"`
	ClosedBy   *int64               `json:"closed_by,omitempty"`
}

type createPeriodRequest struct {
	Code      string `json:"code" validate:"required,max=32"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

func toPeriodResponse(p periods.Period) periodResponse {
	return periodResponse{
		ID:         p.ID,
		Code:       p.Code,
		FiscalYear: p.FiscalYear,
		StartDate:  dateString(p.StartDate),
		EndDate:    dateString(p.EndDate),
		Status:     p.Status,
		IsCurrent:  p.IsCurrent,
		ClosedAt:   p.ClosedAt,
		ClosedBy:   p.ClosedBy,
	}
}

func (h *Handler) listPeriods(w http.ResponseWriter, r *http.Request) {
	principal, _ := common.PrincipalFromContext(r.Context())
	q := r.URL.Query()
	filters := periods.Filters{Status: periods.PeriodStatus(q.Get("status"))}
	if raw := q.Get("fiscal_year"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			httpx.RespondError(w, shared.Invalid("fiscal_year", "must be an integer"))
			return
		}
		filters.FiscalYear = year
	}
	list, err := h.svc.Periods.List(r.Context(), principal.TenantID, filters)
	if err != nil {
		h.fail(w, "list periods", err)
		return
	}
	out := make([]periodResponse, 0, len(list))
	for _, p := range list {
		out = append(out, toPeriodResponse(p))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"periods": out})
}

func (h *Handler) createPeriod(w http.ResponseWriter, r *http.Request) {
	principal, _ := common.PrincipalFromContext(r.Context())
	var req createPeriodRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	start, _ := time.Parse(time.DateOnly, req.StartDate)
	end, _ := time.Parse(time.DateOnly, req.EndDate)
	period, err := h.svc.Periods.Create(r.Context(), periods.CreateInput{
		TenantID:  principal.TenantID,
		Code:      req.Code,
		StartDate: start,
		EndDate:   end,
		ActorID:   principal.ActorID,
	})
	if err != nil {
		h.fail(w, "create period", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPeriodResponse(period))
}

func (h *Handler) closePeriod(w http.ResponseWriter, r *http.Request) {
	principal, _ := common.PrincipalFromContext(r.Context())
	period, err := h.svc.Periods.Close(r.Context(), principal.TenantID, chi.URLParam(r, "code"), principal.ActorID)
	if err != nil {
		h.fail(w, "close period", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPeriodResponse(period))
}

func (h *Handler) reopenPeriod(w http.ResponseWriter, r *http.Request) {
	principal, _ := common.PrincipalFromContext(r.Context())
	period, err := h.svc.Periods.Reopen(r.Context(), principal.TenantID, chi.URLParam(r, "code"), principal.ActorID)
	if err != nil {
		h.fail(w, "reopen period", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPeriodResponse(period))
}
