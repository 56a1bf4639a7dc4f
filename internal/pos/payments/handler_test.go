package payments

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modaboutique/backoffice/internal/erp/erptest"
	"github.com/modaboutique/backoffice/internal/platform/httpx"
)

func TestHandlerPayment(t *testing.T) {
	f := newFixture(t)
	f.env.OpenSession()
	order := f.order(t)
	r := chi.NewRouter()
	r.Route("/pos", NewHandler(slog.Default(), f.payments, erptest.ConfigID).MountRoutes)
	path := fmt.Sprintf("/pos/orders/%d/payment", order.ID)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"method":"cash","amount":50}`)))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	var errBody httpx.ErrorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &errBody))
	assert.Equal(t, "validation_error", errBody.Error)

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"method":"cash","amount":90}`))
	req.Header.Set(IdempotencyHeader, "abc")
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var res struct {
		State        string          `json:"state"`
		ChangeAmount decimal.Decimal `json:"change_amount"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Equal(t, "paid", res.State)
	assert.True(t, res.ChangeAmount.IsZero())

	req = httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"method":"cash","amount":90}`))
	req.Header.Set(IdempotencyHeader, "abc")
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/pos/payment-methods", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var methods struct {
		Items []Method `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &methods))
	assert.Len(t, methods.Items, 2)
}
