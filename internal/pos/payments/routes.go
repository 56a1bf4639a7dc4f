package payments

import "github.com/go-chi/chi/v5"

// MountRoutes registers the payment endpoints under the POS router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/orders/{id}/payment", h.pay)
	r.Get("/payment-methods", h.methods)
}
