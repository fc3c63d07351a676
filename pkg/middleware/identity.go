package middleware

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/iota-uz/servicedesk/pkg/composables"
	"github.com/iota-uz/servicedesk/pkg/configuration"
	"github.com/iota-uz/servicedesk/pkg/httpapi"
)

// ProvideActor reads the identity asserted by the upstream proxy. Requests
// without a user id or with an unknown role pass through anonymous.
func ProvideActor(opts configuration.IdentityOptions) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(opts.UserHeader))
			role, ok := composables.ParseRole(r.Header.Get(opts.RoleHeader))
			if id == "" || !ok {
				next.ServeHTTP(w, r)
				return
			}
			actor := composables.Actor{
				ID:    id,
				Role:  role,
				Name:  strings.TrimSpace(r.Header.Get(opts.NameHeader)),
				Email: strings.TrimSpace(r.Header.Get(opts.EmailHeader)),
			}
			composables.UseLogger(r.Context()).WithField("actor", actor.ID).Debug("actor resolved")
			next.ServeHTTP(w, r.WithContext(composables.WithActor(r.Context(), actor)))
		})
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	_ = httpapi.WriteError(w, status, code, message, nil)
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func RequireActor() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := composables.UseActor(r.Context()); err != nil {
				writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "authentication required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin sends browsers without an admin session to loginPath and
// answers API clients with 403.
func RequireAdmin(loginPath string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, err := composables.UseActor(r.Context())
			if err == nil && actor.IsAdmin() {
				next.ServeHTTP(w, r)
				return
			}
			if wantsHTML(r) {
				http.Redirect(w, r, loginPath, http.StatusFound)
				return
			}
			if err != nil {
				writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "authentication required")
				return
			}
			writeError(w, http.StatusForbidden, "PERMISSION_DENIED", "admin role required")
		})
	}
}
