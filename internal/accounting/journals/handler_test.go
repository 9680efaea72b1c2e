package journals

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/rbac"
	common "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type stubJournalService struct {
	draft    Draft
	autoPost bool
	void     VoidInput
	err      error
}

func (s *stubJournalService) List(context.Context, int64, ListFilters, common.PageRequest) ([]JournalEntry, common.Pagination, error) {
	return nil, common.NewPagination(1, 20, 0), s.err
}

func (s *stubJournalService) Get(_ context.Context, tenantID, id int64) (JournalEntry, error) {
	return JournalEntry{ID: id, TenantID: tenantID, Status: JournalStatusPosted}, s.err
}

func (s *stubJournalService) CreateAndPost(_ context.Context, tenantID int64, draft Draft, _ int64, autoPost bool) (JournalEntry, error) {
	s.draft, s.autoPost = draft, autoPost
	if s.err != nil {
		return JournalEntry{}, s.err
	}
	return JournalEntry{ID: 11, TenantID: tenantID, Number: 1, EntryDate: draft.EntryDate, Status: JournalStatusPosted}, nil
}

func (s *stubJournalService) PostDraft(_ context.Context, tenantID, id, _ int64) (JournalEntry, error) {
	return JournalEntry{ID: id, TenantID: tenantID, Status: JournalStatusPosted}, s.err
}

func (s *stubJournalService) Void(_ context.Context, in VoidInput) (JournalEntry, error) {
	s.void = in
	return JournalEntry{ID: 12, TenantID: in.TenantID, IsReversal: true, ReversedJournalID: &in.EntryID, Status: JournalStatusPosted}, s.err
}

func newTestRouter(svc journalService, principal *common.Principal, caps ...string) http.Handler {
	h := NewHandler(nil, svc, rbac.Middleware{Service: rbac.StaticAuthorizer(caps)})
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if principal != nil {
				req = req.WithContext(common.ContextWithPrincipal(req.Context(), *principal))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Route("/journals", h.MountRoutes)
	return r
}

const createBody = `{"entry_date":"2025-01-15","description":"cash sale","lines":[
{"account_code":"1000-Cash","debit":"50000"},{"account_code":"4000-Sales","credit":"50000"}]}`

func TestHandlerCreate(t *testing.T) {
	svc := &stubJournalService{}
	router := newTestRouter(svc, &common.Principal{TenantID: 7, ActorID: 3}, common.CapJournalPost)

	req := httptest.NewRequest(http.MethodPost, "/journals/", strings.NewReader(createBody))
	req.Header.Set("Idempotency-Key", "evt-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.True(t, svc.autoPost)
	require.Equal(t, "evt-123", svc.draft.IdempotencyKey)
	require.Len(t, svc.draft.Lines, 2)
	require.True(t, svc.draft.Lines[0].Debit.Equal(d("50000")))

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "2025-01-15", body["entry_date"])
	require.Equal(t, "POSTED", body["status"])
}

func TestHandlerRendersTotalsAtConfiguredPrecision(t *testing.T) {
	entry := JournalEntry{ID: 1, TotalDebit: d("0.0049"), TotalCredit: d("0.0049"), TaxAmount: d("0.0004")}

	fine := NewHandler(nil, &stubJournalService{}, rbac.Middleware{}).WithPrecision(4).toResponse(entry)
	require.Equal(t, "0.0049", fine.TotalDebit)
	require.Equal(t, "0.0049", fine.TotalCredit)
	require.Equal(t, "0.0004", fine.TaxAmount)

	standard := NewHandler(nil, &stubJournalService{}, rbac.Middleware{}).toResponse(JournalEntry{TotalDebit: d("12.5")})
	require.Equal(t, "12.50", standard.TotalDebit)
}

func TestHandlerCreateDraft(t *testing.T) {
	svc := &stubJournalService{}
	router := newTestRouter(svc, &common.Principal{TenantID: 7, ActorID: 3}, common.CapJournalPost)

	body := strings.Replace(createBody, `"description"`, `"auto_post":false,"description"`, 1)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/journals/", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.False(t, svc.autoPost)
}

func TestHandlerCreateErrors(t *testing.T) {
	principal := &common.Principal{TenantID: 7, ActorID: 3}
	cases := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"one line", `{"entry_date":"2025-01-15","lines":[{"account_code":"1000-Cash","debit":"1"}]}`, nil, http.StatusBadRequest},
		{"bad date", `{"entry_date":"15/01/2025","lines":[{"account_code":"A","debit":"1"},{"account_code":"B","credit":"1"}]}`, nil, http.StatusBadRequest},
		{"malformed", `{"entry_date":`, nil, http.StatusBadRequest},
		{"unbalanced", createBody, &shared.UnbalancedEntryError{TotalDebit: d("2"), TotalCredit: d("1")}, http.StatusUnprocessableEntity},
		{"closed period", createBody, shared.ErrPeriodClosed, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(&stubJournalService{err: tc.err}, principal, common.CapJournalPost)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/journals/", strings.NewReader(tc.body)))
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
		})
	}
}

func TestHandlerVoidRequiresCapability(t *testing.T) {
	principal := &common.Principal{TenantID: 7, ActorID: 3}
	body := `{"reason":"duplicate"}`

	rec := httptest.NewRecorder()
	newTestRouter(&stubJournalService{}, principal, common.CapJournalPost).
		ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/journals/5/void", strings.NewReader(body)))
	require.Equal(t, http.StatusForbidden, rec.Code)

	svc := &stubJournalService{}
	rec = httptest.NewRecorder()
	newTestRouter(svc, principal, common.CapJournalVoid).
		ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/journals/5/void", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, VoidInput{TenantID: 7, EntryID: 5, ActorID: 3, Reason: "duplicate"}, svc.void)
}

func TestHandlerRejectsMissingPrincipal(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(&stubJournalService{}, nil, common.CapJournalView).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/journals/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlerShowRejectsBadID(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(&stubJournalService{}, &common.Principal{TenantID: 7, ActorID: 3}, common.CapJournalView).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/journals/abc", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
