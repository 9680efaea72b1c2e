package journals

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/rbac"
	common "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type journalService interface {
	List(ctx context.Context, tenantID int64, filters ListFilters, page common.PageRequest) ([]JournalEntry, common.Pagination, error)
	Get(ctx context.Context, tenantID, id int64) (JournalEntry, error)
	CreateAndPost(ctx context.Context, tenantID int64, draft Draft, actorID int64, autoPost bool) (JournalEntry, error)
	PostDraft(ctx context.Context, tenantID, id, actorID int64) (JournalEntry, error)
	Void(ctx context.Context, in VoidInput) (JournalEntry, error)
}

// Handler exposes journal endpoints.
type Handler struct {
	service   journalService
	logger    *slog.Logger
	rbac      rbac.Middleware
	precision int32
}

// NewHandler constructs a journal handler.
func NewHandler(logger *slog.Logger, service journalService, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, precision: shared.DefaultPrecision}
}

// WithPrecision sets the scale used to render header totals.
func (h *Handler) WithPrecision(precision int32) *Handler {
	if shared.ValidPrecision(precision) {
		h.precision = precision
	}
	return h
}

type taxRequest struct {
	Code        string `json:"code" validate:"max=32"`
	Inclusive   bool   `json:"inclusive"`
	AccountCode string `json:"account_code" validate:"required,max=32"`
}

type lineRequest struct {
	AccountCode   string          `json:"account_code" validate:"required,max=32"`
	Debit         decimal.Decimal `json:"debit"`
	Credit        decimal.Decimal `json:"credit"`
	Description   string          `json:"description" validate:"max=500"`
	ReferenceType string          `json:"reference_type" validate:"max=32"`
	ReferenceID   string          `json:"reference_id" validate:"max=128"`
	Taxable       bool            `json:"taxable"`
}

type createRequest struct {
	EntryDate      string        `json:"entry_date" validate:"required,datetime=2006-01-02"`
	Description    string        `json:"description" validate:"max=500"`
	SourceType     string        `json:"source_type" validate:"omitempty,oneof=MANUAL SYSTEM"`
	SourceModule   string        `json:"source_module" validate:"max=64"`
	SourceID       string        `json:"source_id" validate:"max=128"`
	IdempotencyKey string        `json:"idempotency_key" validate:"max=128"`
	AutoPost       *bool         `json:"auto_post"`
	Tax            *taxRequest   `json:"tax"`
	Lines          []lineRequest `json:"lines" validate:"required,min=2,dive"`
}

type voidRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type lineResponse struct {
	LineNumber    int             `json:"line_number"`
	AccountCode   string          `json:"account_code"`
	AccountName   string          `json:"account_name"`
	AccountType   string          `json:"account_type"`
	Debit         decimal.Decimal `json:"debit"`
	Credit        decimal.Decimal `json:"credit"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	Description   string          `json:"description,omitempty"`
	ReferenceType string          `json:"reference_type,omitempty"`
	ReferenceID   string          `json:"reference_id,omitempty"`
}

type journalResponse struct {
	ID                  int64          `json:"id"`
	Number              int64          `json:"journal_number"`
	PeriodID            *int64         `json:"period_id,omitempty"`
	EntryDate           string         `json:"entry_date"`
	PostDate            *time.Time     `json:"post_date,omitempty"`
	Description         string         `json:"description"`
	SourceType          SourceType     `json:"source_type"`
	SourceModule        string         `json:"source_module,omitempty"`
	SourceID            string         `json:"source_id,omitempty"`
	Status              JournalStatus  `json:"status"`
	TotalDebit          string         `json:"total_debit"`
	TotalCredit         string         `json:"total_credit"`
	TaxAmount           string         `json:"tax_amount"`
	TaxCode             string         `json:"tax_code,omitempty"`
	IsReversal          bool           `json:"is_reversal"`
	ReversedJournalID   *int64         `json:"reversed_journal_id,omitempty"`
	ReversedByJournalID *int64         `json:"reversed_by_journal_id,omitempty"`
	VoidReason          string         `json:"void_reason,omitempty"`
	VoidedAt            *time.Time     `json:"voided_at,omitempty"`
	IdempotencyKey      string         `json:"idempotency_key,omitempty"`
	Lines               []lineResponse `json:"lines,omitempty"`
}

func toLineResponse(l ledger.Entry) lineResponse {
	return lineResponse{
		LineNumber:    l.LineNumber,
		AccountCode:   l.AccountCode,
		AccountName:   l.AccountName,
		AccountType:   l.AccountType,
		Debit:         l.DebitAmount,
		Credit:        l.CreditAmount,
		BalanceAfter:  l.BalanceAfter,
		Description:   l.Description,
		ReferenceType: l.ReferenceType,
		ReferenceID:   l.ReferenceID,
	}
}

func (h *Handler) toResponse(e JournalEntry) journalResponse {
	out := journalResponse{
		ID:                  e.ID,
		Number:              e.Number,
		PeriodID:            e.PeriodID,
		EntryDate:           e.EntryDate.Format(time.DateOnly),
		PostDate:            e.PostDate,
		Description:         e.Description,
		SourceType:          e.SourceType,
		SourceModule:        e.SourceModule,
		SourceID:            e.SourceID,
		Status:              e.Status,
		TotalDebit:          shared.FormatMoney(e.TotalDebit, h.precision),
		TotalCredit:         shared.FormatMoney(e.TotalCredit, h.precision),
		TaxAmount:           shared.FormatMoney(e.TaxAmount, h.precision),
		TaxCode:             e.TaxCode,
		IsReversal:          e.IsReversal,
		ReversedJournalID:   e.ReversedJournalID,
		ReversedByJournalID: e.ReversedByJournalID,
		VoidReason:          e.VoidReason,
		VoidedAt:            e.VoidedAt,
		IdempotencyKey:      e.IdempotencyKey,
	}
	for _, l := range e.Lines {
		out.Lines = append(out.Lines, toLineResponse(l))
	}
	return out
}

func (req createRequest) toDraft(r *http.Request) (Draft, bool) {
	date, _ := time.Parse(time.DateOnly, req.EntryDate)
	draft := Draft{
		EntryDate:      date,
		Description:    req.Description,
		SourceType:     SourceType(req.SourceType),
		SourceModule:   req.SourceModule,
		SourceID:       req.SourceID,
		IdempotencyKey: req.IdempotencyKey,
		Lines:          make([]DraftLine, 0, len(req.Lines)),
	}
	if draft.IdempotencyKey == "" {
		draft.IdempotencyKey = strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	}
	if req.Tax != nil {
		draft.Tax = &TaxTreatment{Code: req.Tax.Code, Inclusive: req.Tax.Inclusive, AccountCode: req.Tax.AccountCode}
	}
	for _, l := range req.Lines {
		draft.Lines = append(draft.Lines, DraftLine(l))
	}
	autoPost := req.AutoPost == nil || *req.AutoPost
	return draft, autoPost
}

// List returns journal headers.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	principal, _ := common.PrincipalFromContext(r.Context())
	q := r.URL.Query()
	filters := ListFilters{
		Status:     JournalStatus(q.Get("status")),
		SourceType: SourceType(q.Get("source_type")),
	}
	if raw := q.Get("period_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.RespondError(w, shared.Invalid("period_id", "must be an integer"))
			return
		}
		filters.PeriodID = id
	}
	var err error
	if filters.From, filters.To, err = httpx.DateRange(q); err != nil {
		httpx.RespondError(w, err)
		return
	}
	entries, page, err := h.service.List(r.Context(), principal.TenantID, filters, common.PageFromQuery(q))
	if err != nil {
		h.fail(w, "list journals", err)
		return
	}
	out := make([]journalResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, h.toResponse(e))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"journals": out, "pagination": page})
}

// Show returns a single entry with lines.
func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	principal, _ := common.PrincipalFromContext(r.Context())
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	entry, err := h.service.Get(r.Context(), principal.TenantID, id)
	if err != nil {
		h.fail(w, "get journal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.toResponse(entry))
}

// Create validates and posts (or drafts) a journal entry.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	principal, _ := common.PrincipalFromContext(r.Context())
	var req createRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	draft, autoPost := req.toDraft(r)
	entry, err := h.service.CreateAndPost(r.Context(), principal.TenantID, draft, principal.ActorID, autoPost)
	if err != nil {
		h.fail(w, "create journal", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, h.toResponse(entry))
}

// Post moves a draft to POSTED.
func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	principal, _ := common.PrincipalFromContext(r.Context())
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	entry, err := h.service.PostDraft(r.Context(), principal.TenantID, id, principal.ActorID)
	if err != nil {
		h.fail(w, "post draft", err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.toResponse(entry))
}

// Void reverses a posted entry.
func (h *Handler) Void(w http.ResponseWriter, r *http.Request) {
	principal, _ := common.PrincipalFromContext(r.Context())
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	var req voidRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	reversal, err := h.service.Void(r.Context(), VoidInput{TenantID: principal.TenantID, EntryID: id, ActorID: principal.ActorID, Reason: req.Reason})
	if err != nil {
		h.fail(w, "void journal", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, h.toResponse(reversal))
}

func entryID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, shared.Invalid("id", "invalid journal id"))
		return 0, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if httpx.IsServerError(err) && h.logger != nil {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
