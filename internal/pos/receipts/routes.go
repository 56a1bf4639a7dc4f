package receipts

import "github.com/go-chi/chi/v5"

// MountRoutes registers the receipt endpoints under the POS router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/orders/{id}/receipt", h.json)
	r.Get("/orders/{id}/receipt/html", h.html)
	r.Get("/orders/{id}/receipt/pdf", h.pdf)
}
