package sessions

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/modaboutique/backoffice/internal/platform/httpx"
)

// Handler exposes the session endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) current(w http.ResponseWriter, r *http.Request) {
	sess, err := h.service.Active(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sess)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.service.List(r.Context(), limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) open(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Open(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "open session", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	status := http.StatusCreated
	if res.Reused {
		status = http.StatusOK
	}
	httpx.JSON(w, status, res)
}

func (h *Handler) target(r *http.Request) (*int64, error) {
	var req TargetRequest
	if err := httpx.DecodeOptionalJSON(r, &req); err != nil {
		return nil, err
	}
	if req.SessionID == nil {
		if raw := r.URL.Query().Get("session_id"); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err == nil {
				req.SessionID = &id
			}
		}
	}
	if err := httpx.Validate(req); err != nil {
		return nil, err
	}
	return req.SessionID, nil
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	id, err := h.target(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	sess, err := h.service.Activate(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sess)
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request) {
	id, err := h.target(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	sess, err := h.service.Close(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sess)
}

func (h *Handler) forceClose(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.ForceClose(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "force close sessions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}
