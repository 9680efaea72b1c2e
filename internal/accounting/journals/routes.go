package journals

import (
	"github.com/go-chi/chi/v5"

	common "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// MountRoutes registers journal routes under the current router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(common.CapJournalView, common.CapJournalPost))
		r.Get("/", h.List)
		r.Get("/{id}", h.Show)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(common.CapJournalPost))
		r.Post("/", h.Create)
		r.Post("/{id}/post", h.Post)
	})
	r.With(h.rbac.RequireAll(common.CapJournalVoid)).Post("/{id}/void", h.Void)
}
