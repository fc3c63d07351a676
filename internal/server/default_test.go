package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/servicedesk/pkg/application"
	"github.com/iota-uz/servicedesk/pkg/composables"
	"github.com/iota-uz/servicedesk/pkg/configuration"
	"github.com/iota-uz/servicedesk/pkg/logging"
)

type whoamiController struct{}

func (whoamiController) Key() string { return "/whoami" }

func (whoamiController) Register(r *mux.Router) {
	r.HandleFunc("/whoami", func(w http.ResponseWriter, r *http.Request) {
		actor, err := composables.UseActor(r.Context())
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(actor.ID + ":" + string(actor.Role)))
	}).Methods(http.MethodGet)
}

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	logger := logging.ConsoleLogger(logrus.ErrorLevel)
	app := application.New(&application.ApplicationOptions{Logger: logger})
	app.RegisterControllers(whoamiController{})
	conf := &configuration.Configuration{
		AllowedOrigins:  "http://localhost:3000",
		RequestIDHeader: "X-Request-ID",
		RealIPHeader:    "X-Real-IP",
		Identity: configuration.IdentityOptions{
			UserHeader:  "X-User-ID",
			RoleHeader:  "X-User-Role",
			NameHeader:  "X-User-Name",
			EmailHeader: "X-User-Email",
		},
	}
	return Default(&DefaultOptions{Logger: logger, Configuration: conf, Application: app}).Router()
}

func TestDefault_ResolvesActorAndRequestID(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-User-ID", "u-1")
	req.Header.Set("X-User-Role", "customer")
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "u-1:customer", rec.Body.String())
	require.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}

func TestDefault_JSONFallbacks(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.JSONEq(t, `{"code":"NOT_FOUND","message":"Not Found"}`, rec.Body.String())
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/whoami", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	require.Contains(t, rec.Body.String(), "METHOD_NOT_ALLOWED")
}
