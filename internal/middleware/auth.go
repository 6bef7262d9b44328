package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/pulse-analytics/pulse/internal/ctxkeys"
	"github.com/pulse-analytics/pulse/internal/model"
	"github.com/pulse-analytics/pulse/internal/response"
	"github.com/pulse-analytics/pulse/internal/service"
)

// Authenticator resolves a bearer access token to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*model.User, error)
}

// RequireAuth rejects requests without a valid bearer token and adds the
// user to the context otherwise. Disabled and unverified accounts are
// refused even when their token is still valid.
func RequireAuth(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				unauthenticated(w)
				return
			}

			user, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				if errors.Is(err, service.ErrUnauthenticated) {
					unauthenticated(w)
					return
				}
				response.Internal(w, r, err)
				return
			}

			if !user.IsActive {
				response.Error(w, http.StatusBadRequest, response.CodeAccountDisabled, "Account is disabled")
				return
			}
			if !user.IsVerified {
				response.Error(w, http.StatusForbidden, response.CodeEmailNotVerified, "Please verify your email address first")
				return
			}

			// Security: Remove password hash from context
			user.PasswordHash = ""

			ctx := ctxkeys.WithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthenticated(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	response.Error(w, http.StatusUnauthorized, response.CodeUnauthenticated, "Could not validate credentials")
}
