// internal/auth/middleware.go
package auth

import (
	"net/http"
	"strings"

	"lending/internal/httpx"
)

// Authenticate resolves a bearer token into a Requester on the request
// context and rejects the request with 401 otherwise.
func Authenticate(tokens *TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
				httpx.Error(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
				return
			}

			requester, err := tokens.Parse(strings.TrimSpace(header[7:]))
			if err != nil {
				httpx.Error(w, http.StatusUnauthorized, "Given token not valid for any token type")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithRequester(r.Context(), requester)))
		})
	}
}

// RequireStaff rejects authenticated non-staff requesters with 403.
func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requester, ok := RequesterFrom(r.Context())
		if !ok {
			httpx.Error(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
			return
		}
		if !requester.IsStaff {
			httpx.Error(w, http.StatusForbidden, "You do not have permission to perform this action.")
			return
		}
		next.ServeHTTP(w, r)
	})
}
