package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/modaboutique/backoffice/internal/auth"
	"github.com/modaboutique/backoffice/internal/shared"
)

const secret = "test-secret"

func newService(t *testing.T, ttl time.Duration) *auth.Service {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.MinCost)
	require.NoError(t, err)
	return auth.NewService(auth.NewStaticRepository("caja1", string(hashed)), secret, ttl)
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	svc := newService(t, time.Hour)
	token, err := svc.Login(context.Background(), auth.LoginInput{Username: "caja1", Password: "correctpass"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.WithinDuration(t, time.Now().Add(time.Hour), token.ExpiresAt, time.Minute)

	claims, err := svc.Verify(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "caja1", claims.Username)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newService(t, time.Hour)
	for _, in := range []auth.LoginInput{
		{Username: "caja1", Password: "wrongpass"},
		{Username: "caja2", Password: "correctpass"},
	} {
		_, err := svc.Login(context.Background(), in)
		assert.True(t, errors.Is(err, shared.ErrInvalidCredentials), in.Username)
	}

	disabled := auth.NewService(auth.NewStaticRepository("caja1", ""), secret, time.Hour)
	_, err := disabled.Login(context.Background(), auth.LoginInput{Username: "caja1", Password: "correctpass"})
	assert.True(t, errors.Is(err, shared.ErrInvalidCredentials))
}

func TestVerifyRejectsForeignAndExpiredTokens(t *testing.T) {
	svc := newService(t, time.Hour)

	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		Username:         "caja1",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "backoffice"},
	}).SignedString([]byte("other-secret"))
	require.NoError(t, err)
	_, err = svc.Verify(foreign)
	assert.True(t, errors.Is(err, shared.ErrUnauthorized))

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		Username: "caja1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "backoffice",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	_, err = svc.Verify(expired)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestLoginHandlerAndMiddleware(t *testing.T) {
	svc := newService(t, time.Hour)
	r := chi.NewRouter()
	r.Route("/auth", auth.NewHandler(slog.Default(), svc).MountRoutes)
	r.With(auth.Middleware(svc)).Get("/pos/whoami", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(shared.OperatorFromContext(r.Context())))
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"caja1","password":"wrongpass"}`)))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"caja1"}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"caja1","password":"correctpass"}`)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var token auth.Token
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &token))

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/pos/whoami", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), `"error":"unauthorized"`)

	req := httptest.NewRequest(http.MethodGet, "/pos/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "caja1", rr.Body.String())
}
