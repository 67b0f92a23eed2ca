package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/ayush/estate-market/internal/apierr"
	"github.com/ayush/estate-market/internal/auth"
	"github.com/ayush/estate-market/internal/httpx"
)

type ctxKey struct{}

// Authenticator resolves a raw access token into an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (auth.Identity, error)
}

// RequireAuth validates the access token from the access_token cookie or an
// Authorization: Bearer header and injects the identity into the request context.
func RequireAuth(gate Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFrom(r)
			if token == "" {
				httpx.WriteError(w, r, apierr.Unauthenticated("Unauthorized"))
				return
			}
			id, err := gate.Authenticate(r.Context(), token)
			if err != nil {
				httpx.WriteError(w, r, apierr.Unauthenticated("Unauthorized"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func tokenFrom(r *http.Request) string {
	if c, err := r.Cookie(auth.AccessCookie); err == nil && c.Value != "" {
		return c.Value
	}
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id auth.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IdentityFrom returns the identity injected by RequireAuth.
func IdentityFrom(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(auth.Identity)
	return id, ok
}

// UserID is the authenticated user id, or "" outside RequireAuth.
func UserID(ctx context.Context) string {
	id, _ := IdentityFrom(ctx)
	return id.UserID
}
