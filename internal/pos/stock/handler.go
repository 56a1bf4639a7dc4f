package stock

import (
	"log/slog"
	"net/http"

	"github.com/modaboutique/backoffice/internal/platform/httpx"
)

// Handler exposes manual reconciliation.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.Reconcile(r.Context(), id)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "reconcile stock", slog.Int64("order_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}
