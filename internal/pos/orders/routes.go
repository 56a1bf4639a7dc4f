package orders

import "github.com/go-chi/chi/v5"

// MountRoutes registers the order endpoints under the POS router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/orders", h.list)
	r.Post("/orders", h.create)
	r.Get("/orders/{id}", h.get)
	r.Post("/orders/{id}/lines", h.addLine)
	r.Delete("/orders/{id}/lines/{lineID}", h.removeLine)
	r.Post("/orders/{id}/discount", h.discount)
}
