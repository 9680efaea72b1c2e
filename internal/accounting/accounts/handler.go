package accounts

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Handler exposes the chart of accounts catalogue.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler constructs a catalogue handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

type accountResponse struct {
	ID            int64         `json:"id"`
	Code          string        `json:"code"`
	Name          string        `json:"name"`
	Type          AccountType   `json:"type"`
	NormalBalance NormalBalance `json:"normal_balance"`
	IsActive      bool          `json:"is_active"`
}

type createRequest struct {
	Code          string `json:"code" validate:"required,max=32"`
	Name          string `json:"name" validate:"required,max=128"`
	Type          string `json:"type" validate:"required,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE"`
	NormalBalance string `json:"normal_balance" validate:"omitempty,oneof=DEBIT CREDIT"`
}

type updateRequest struct {
	Code     *string `json:"code" validate:"omitempty,max=32"`
	Name     *string `json:"name" validate:"omitempty,max=128"`
	Type     *string `json:"type" validate:"omitempty,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE"`
	IsActive *bool   `json:"is_active"`
}

func toResponse(a Account) accountResponse {
	return accountResponse{ID: a.ID, Code: a.Code, Name: a.Name, Type: a.Type, NormalBalance: a.NormalBalance, IsActive: a.IsActive}
}

// MountRoutes registers catalogue routes. manage guards mutations.
func (h *Handler) MountRoutes(r chi.Router, manage func(http.Handler) http.Handler) {
	r.Get("/", h.List)
	r.With(manage).Post("/", h.Create)
	r.With(manage).Patch("/{id}", h.Update)
}

// List returns the tenant's chart.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	accounts, err := h.service.List(r.Context(), principal.TenantID)
	if err != nil {
		h.fail(w, "list accounts", err)
		return
	}
	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toResponse(a))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": out})
}

// Create adds a chart account.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	var req createRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	account, err := h.service.Create(r.Context(), CreateInput{
		TenantID:      principal.TenantID,
		Code:          req.Code,
		Name:          req.Name,
		Type:          AccountType(req.Type),
		NormalBalance: NormalBalance(req.NormalBalance),
	})
	if err != nil {
		h.fail(w, "create account", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(account))
}

// Update edits a chart account.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid account id")
		return
	}
	var req updateRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in := UpdateInput{TenantID: principal.TenantID, ID: id, Code: req.Code, Name: req.Name, IsActive: req.IsActive}
	if req.Type != nil {
		t := AccountType(*req.Type)
		in.Type = &t
	}
	account, err := h.service.Update(r.Context(), in)
	if err != nil {
		h.fail(w, "update account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(account))
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if httpx.IsServerError(err) && h.logger != nil {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
