package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/modaboutique/backoffice/internal/platform/httpx"
	"github.com/modaboutique/backoffice/internal/shared"
)

// Middleware rejects requests without a valid Bearer token and stores the
// operator name in the request context.
func Middleware(s *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				httpx.RespondError(w, fmt.Errorf("%w: bearer token required", shared.ErrUnauthorized))
				return
			}
			claims, err := s.Verify(strings.TrimSpace(raw))
			if err != nil {
				httpx.RespondError(w, err)
				return
			}
			ctx := shared.ContextWithOperator(r.Context(), claims.Username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
