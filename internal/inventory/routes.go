package inventory

import "github.com/go-chi/chi/v5"

// MountRoutes registers the inventory endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.levels)
	r.Post("/ajuste", h.adjust)
	r.Get("/{productID}", h.detail)
}
