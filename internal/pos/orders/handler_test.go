package orders

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modaboutique/backoffice/internal/erp/erptest"
	"github.com/modaboutique/backoffice/internal/platform/httpx"
)

func newRouter(svc *Service) http.Handler {
	r := chi.NewRouter()
	r.Route("/pos", NewHandler(slog.Default(), svc).MountRoutes)
	return r
}

func TestHandlerOrderFlow(t *testing.T) {
	svc, env := newService(t)
	env.OpenSession()
	router := newRouter(svc)

	body := fmt.Sprintf(`{"lines":[{"product_id":%d,"qty":2,"discount":10}]}`, erptest.DressID)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/pos/orders", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var created Order
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Equal(t, "90.00", created.AmountTotal.StringFixed(2))

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/pos/orders/%d", created.ID), nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, fmt.Sprintf("/pos/orders/%d/lines", created.ID),
		strings.NewReader(fmt.Sprintf(`{"product_id":%d}`, erptest.ShirtID))))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var updated Order
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &updated))
	require.Len(t, updated.Lines, 2)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete,
		fmt.Sprintf("/pos/orders/%d/lines/%d", created.ID, updated.Lines[1].ID), nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/pos/orders?state=draft", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var listing struct {
		Items []Order `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listing))
	assert.Len(t, listing.Items, 1)
}

func TestHandlerRejectsBadInput(t *testing.T) {
	svc, env := newService(t)
	env.OpenSession()
	router := newRouter(svc)

	for _, body := range []string{`{"lines":[]}`, `{"lines":[{"product_id":0}]}`, `{"bogus":1}`, `not json`} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/pos/orders", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rr.Code, body)
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/pos/orders/1/discount", strings.NewReader(`{"type":"bogus","value":1}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/pos/orders/999", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
	var errBody httpx.ErrorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &errBody))
	assert.Equal(t, "not_found", errBody.Error)
}

func TestHandlerPaidOrderIsInvalidState(t *testing.T) {
	svc, env := newService(t)
	sessionID := env.OpenSession()
	orderID := env.DraftOrder(sessionID, erptest.DressID, 1, 50)
	env.ERP.Update("pos.order", orderID, erptest.Record{"state": "paid"})
	router := newRouter(svc)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, fmt.Sprintf("/pos/orders/%d/discount", orderID),
		strings.NewReader(`{"type":"percentage","value":5}`)))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	var errBody httpx.ErrorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &errBody))
	assert.Equal(t, "invalid_state", errBody.Error)
}
