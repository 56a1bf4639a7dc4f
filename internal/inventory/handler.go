package inventory

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/modaboutique/backoffice/internal/platform/httpx"
	"github.com/modaboutique/backoffice/internal/pos/stock"
	"github.com/modaboutique/backoffice/internal/shared"
)

// Handler exposes /inventario.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) levels(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageParams(r)
	filter := LevelFilter{Page: page, PerPage: perPage}
	if raw := r.URL.Query().Get("product_ids"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil || id <= 0 {
				httpx.Error(w, http.StatusBadRequest, "validation_error", "product_ids must be a comma separated list of ids")
				return
			}
			filter.ProductIDs = append(filter.ProductIDs, id)
		}
	}
	items, pagination, err := h.service.Levels(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "pagination": pagination})
}

func (h *Handler) detail(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "productID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := r.URL.Query()
	var filter StockCardFilter
	for key, dst := range map[string]*time.Time{"from": &filter.From, "to": &filter.To} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		parsed, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			httpx.Error(w, http.StatusBadRequest, "validation_error", key+" must be YYYY-MM-DD")
			return
		}
		*dst = parsed
	}
	if !filter.To.IsZero() {
		filter.To = filter.To.Add(24*time.Hour - time.Second)
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	detail, err := h.service.Detail(r.Context(), id, filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	var req stock.AdjustInput
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.Adjust(r.Context(), req)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "adjust stock", slog.Int64("product_id", req.ProductID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}
