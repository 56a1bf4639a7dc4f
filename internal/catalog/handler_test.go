package catalog

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerProductos(t *testing.T) {
	svc, _ := newService(t)
	r := chi.NewRouter()
	r.Route("/productos", NewHandler(slog.Default(), svc).MountRoutes)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/productos?q=camisa", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var listing struct {
		Items      []Product `json:"items"`
		Pagination struct {
			Total int `json:"total"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listing))
	assert.Equal(t, 1, listing.Pagination.Total)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/productos", strings.NewReader(`{"name":"Blusa","list_price":25}`)))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var created Product
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/productos", strings.NewReader(`{"list_price":-1}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/productos/70", strings.NewReader(`{"list_price":55}`)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/productos/70/variantes", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var variants struct {
		Items []Variant `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &variants))
	assert.Len(t, variants.Items, 2)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/productos/999", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
