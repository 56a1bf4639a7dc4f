package sessions

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

	"github.com/modaboutique/backoffice/internal/platform/httpx"
)

func newRouter(svc *Service) http.Handler {
	r := chi.NewRouter()
	r.Route("/pos", NewHandler(slog.Default(), svc).MountRoutes)
	return r
}

func TestHandlerSessionLifecycle(t *testing.T) {
	svc, _ := newService(t)
	router := newRouter(svc)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/pos/session", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
	var errBody httpx.ErrorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &errBody))
	assert.Equal(t, "not_found", errBody.Error)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/pos/session/open", nil))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var opened OpenResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &opened))
	assert.Equal(t, StateOpened, opened.Session.State)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/pos/session", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/pos/session/close", strings.NewReader(`{"session_id": 0}`)))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/pos/session/close", nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var closed Session
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &closed))
	assert.Equal(t, StateClosed, closed.State)
}
