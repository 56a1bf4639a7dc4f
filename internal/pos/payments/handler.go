package payments

import (
	"log/slog"
	"net/http"

	"github.com/modaboutique/backoffice/internal/platform/httpx"
)

// IdempotencyHeader carries the optional client request key.
const IdempotencyHeader = "Idempotency-Key"

// Handler exposes the payment endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	configID int64
}

// NewHandler constructs the handler; configID scopes the method listing.
func NewHandler(logger *slog.Logger, service *Service, configID int64) *Handler {
	return &Handler{logger: logger, service: service, configID: configID}
}

func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req PaymentInput
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	req.OrderID = id
	req.IdempotencyKey = r.Header.Get(IdempotencyHeader)
	res, err := h.service.Process(r.Context(), req)
	if err != nil {
		h.logger.WarnContext(r.Context(), "payment rejected", slog.Int64("order_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) methods(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Methods(r.Context(), h.configID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}
