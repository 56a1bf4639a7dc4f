package app

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/modaboutique/backoffice/internal/erp/erptest"
	"github.com/modaboutique/backoffice/internal/observability"
)

type gateway struct {
	t      *testing.T
	server *httptest.Server
	token  string
}

func newGateway(t *testing.T) *gateway {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("caja-1234"), bcrypt.MinCost)
	require.NoError(t, err)
	cfg := &Config{
		AppEnv:                  "test",
		JWTSecret:               "s3cret",
		JWTTTL:                  time.Hour,
		POSOperatorUsername:     "caja",
		POSOperatorPasswordHash: string(hash),
		ERPPOSConfigID:          erptest.ConfigID,
		LockTTL:                 5 * time.Second,
		StockReconcileMode:      "inline",
		ReceiptLocale:           "es",
		ReceiptTimezone:         "UTC",
	}
	erp := erptest.NewPOS(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	container, err := NewContainer(cfg, slog.Default(), Backends{
		ERP:     erp.Client(t),
		Redis:   rdb,
		Metrics: observability.NewMetrics(),
	})
	require.NoError(t, err)
	srv := httptest.NewServer(NewRouter(RouterParams{Container: container}))
	t.Cleanup(srv.Close)
	return &gateway{t: t, server: srv}
}

func (g *gateway) do(method, path, body string) (int, []byte) {
	g.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, g.server.URL+path, reader)
	require.NoError(g.t, err)
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(g.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(g.t, err)
	return resp.StatusCode, data
}

func TestGatewayCheckoutFlow(t *testing.T) {
	g := newGateway(t)

	code, _ := g.do(http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, code)

	code, body := g.do(http.MethodGet, "/pos/session", "")
	require.Equal(t, http.StatusUnauthorized, code)
	assert.Contains(t, string(body), `"error":"unauthorized"`)

	code, body = g.do(http.MethodPost, "/auth/login", `{"username":"caja","password":"caja-1234"}`)
	require.Equal(t, http.StatusOK, code, string(body))
	var token struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(body, &token))
	g.token = token.AccessToken

	code, body = g.do(http.MethodPost, "/pos/session/open", "")
	require.Equal(t, http.StatusCreated, code, string(body))

	code, body = g.do(http.MethodPost, "/pos/orders", `{"lines":[{"product_id":7,"qty":2,"discount":10}]}`)
	require.Equal(t, http.StatusCreated, code, string(body))
	var order struct {
		ID          int64           `json:"id"`
		AmountTotal decimal.Decimal `json:"amount_total"`
	}
	require.NoError(t, json.Unmarshal(body, &order))
	assert.Equal(t, "90", order.AmountTotal.String())
	assert.Contains(t, string(body), `"amount_total":90`, "money is rendered as JSON numbers")

	code, body = g.do(http.MethodPost, fmt.Sprintf("/pos/orders/%d/payment", order.ID), `{"method":"cash","amount":50}`)
	require.Equal(t, http.StatusBadRequest, code, string(body))

	code, body = g.do(http.MethodPost, fmt.Sprintf("/pos/orders/%d/payment", order.ID), `{"method":"cash","amount":90}`)
	require.Equal(t, http.StatusOK, code, string(body))
	var paid struct {
		State string `json:"state"`
		Stock struct {
			Mode string `json:"mode"`
		} `json:"stock"`
	}
	require.NoError(t, json.Unmarshal(body, &paid))
	assert.Equal(t, "paid", paid.State)
	assert.Equal(t, "inline", paid.Stock.Mode)

	code, body = g.do(http.MethodGet, fmt.Sprintf("/pos/orders/%d/receipt/html", order.ID), "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "90,00")

	code, body = g.do(http.MethodGet, "/inventario/7", "")
	require.Equal(t, http.StatusOK, code, string(body))
	assert.Contains(t, string(body), `"qty":8`)

	code, body = g.do(http.MethodPost, "/pos/session/close", "")
	require.Equal(t, http.StatusOK, code, string(body))
}

func TestGatewayAmbientRoutes(t *testing.T) {
	g := newGateway(t)

	code, body := g.do(http.MethodGet, "/jobs/health", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), `"queue":"default"`)

	code, body = g.do(http.MethodGet, "/report/ping", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "fpdf")

	code, body = g.do(http.MethodGet, "/productos", "")
	assert.Equal(t, http.StatusUnauthorized, code, string(body))

	code, body = g.do(http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, string(body), `"error":"not_found"`)

	code, body = g.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "backoffice_http_requests_total")
}
