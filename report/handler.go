package report

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/modaboutique/backoffice/internal/platform/httpx"
)

// Handler reports the PDF renderer status.
type Handler struct {
	client *Client
	logger *slog.Logger
}

// NewHandler creates a report handler.
func NewHandler(client *Client, logger *slog.Logger) *Handler {
	return &Handler{client: client, logger: logger}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/ping", h.ping)
}

func (h *Handler) ping(w http.ResponseWriter, r *http.Request) {
	if h.client == nil {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "disabled", "fallback": "fpdf"})
		return
	}
	if err := h.client.Ping(r.Context()); err != nil {
		h.logger.WarnContext(r.Context(), "gotenberg ping failed", slog.Any("error", err))
		httpx.Error(w, http.StatusServiceUnavailable, "renderer_unavailable", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
