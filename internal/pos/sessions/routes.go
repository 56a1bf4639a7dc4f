package sessions

import "github.com/go-chi/chi/v5"

// MountRoutes registers the session endpoints under the POS router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/session", h.current)
	r.Get("/sessions", h.list)
	r.Post("/session/open", h.open)
	r.Post("/session/activate", h.activate)
	r.Post("/session/close", h.close)
	r.Post("/session/force-close", h.forceClose)
}
