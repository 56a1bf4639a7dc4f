package stock

import "github.com/go-chi/chi/v5"

// MountRoutes registers the stock endpoint under the POS router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/orders/{id}/stock", h.reconcile)
}
