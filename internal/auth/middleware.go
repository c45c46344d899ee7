package auth

import (
	"net/http"
	"strings"

	"github.com/taskdeck/taskdeck/pkg/cerr"
	"github.com/taskdeck/taskdeck/pkg/clog"
)

// Middleware resolves the bearer token into an Identity and stores it on the
// request context. Requests without a valid token are rejected before any
// handler runs.
func Middleware(verifier *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				cerr.SetNewJSONError(r.Context(), cerr.Unauthenticated, "missing bearer token", nil)
				return
			}
			id, err := verifier.Verify(token)
			if err != nil {
				cerr.SetJSONError(r.Context(), err)
				return
			}
			ctx := ContextWithIdentity(r.Context(), id)
			clog.AddAttributes(ctx, map[string]any{
				"user_id": id.UserID,
				"role":    string(id.Role),
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return header[7:]
	}
	return ""
}

// MustIdentity returns the caller identity; the auth middleware guarantees
// presence on all routes it guards.
func MustIdentity(r *http.Request) Identity {
	id, _ := IdentityFromContext(r.Context())
	return id
}
