package auth

import (
	"context"
	"net/http"
	"strings"
)

// DefaultUserHeader carries the end-user identifier forwarded by the trusted bot frontend.
const DefaultUserHeader = "X-Bistro-User"

// Identity describes the authenticated end user for a request.
type Identity struct {
	UserID string
}

type identityContextKey struct{}

// WithIdentity stores the identity on the context.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	if identity == nil {
		return ctx
	}
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext retrieves the identity from the context, if present.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(*Identity)
	if !ok || identity == nil || identity.UserID == "" {
		return nil, false
	}
	return identity, true
}

// RequireUser extracts the forwarded user identifier and rejects requests without one.
// The bot frontend is the trusted caller; it authenticates end users on its own side
// and forwards a stable identifier per chat.
func RequireUser(header string) func(http.Handler) http.Handler {
	headerName := strings.TrimSpace(header)
	if headerName == "" {
		headerName = DefaultUserHeader
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.Header.Get(headerName))
			if userID == "" {
				respondAuthError(w, http.StatusUnauthorized, "user_missing", "user header missing")
				return
			}

			identity := &Identity{UserID: userID}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}
