package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/servicedesk/modules/servicedesk"
	"github.com/iota-uz/servicedesk/pkg/application"
	"github.com/iota-uz/servicedesk/pkg/authz"
	"github.com/iota-uz/servicedesk/pkg/composables"
	"github.com/iota-uz/servicedesk/pkg/configuration"
	"github.com/iota-uz/servicedesk/pkg/middleware"
)

var (
	testNow  = time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)
	admin    = composables.Actor{ID: "admin-1", Role: composables.RoleAdmin, Name: "Ops"}
	customer = composables.Actor{ID: "cust-1", Role: composables.RoleCustomer, Name: "Asha Rao", Email: "asha@example.com"}
	stranger = composables.Actor{ID: "cust-2", Role: composables.RoleCustomer, Name: "Ravi", Email: "ravi@example.com"}
)

var identity = configuration.IdentityOptions{
	UserHeader:  "X-User-ID",
	RoleHeader:  "X-User-Role",
	NameHeader:  "X-User-Name",
	EmailHeader: "X-User-Email",
}

type testServer struct {
	t   *testing.T
	app application.Application
	srv *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	authorizer, err := authz.NewService(authz.Config{FlagProvider: authz.StaticFlagProvider(authz.ModeEnforce), Logger: logger})
	require.NoError(t, err)

	app := application.New(&application.ApplicationOptions{Logger: logger})
	module := servicedesk.NewModule(&servicedesk.ModuleOptions{
		Authorizer: authorizer,
		Now:        func() time.Time { return testNow },
	})
	require.NoError(t, module.Register(app))

	router := mux.NewRouter()
	router.Use(
		middleware.WithLogger(logger, middleware.DefaultLoggerOptions()),
		middleware.ProvideActor(identity),
	)
	for _, c := range app.Controllers() {
		c.Register(router)
	}
	srv := httptest.NewServer(router)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	for _, worker := range app.Workers() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = worker(ctx)
		}()
	}
	t.Cleanup(func() {
		srv.Close()
		cancel()
		wg.Wait()
	})
	return &testServer{t: t, app: app, srv: srv}
}

func actorHeaders(actor composables.Actor) http.Header {
	h := http.Header{}
	if actor.ID == "" {
		return h
	}
	h.Set(identity.UserHeader, actor.ID)
	h.Set(identity.RoleHeader, string(actor.Role))
	h.Set(identity.NameHeader, actor.Name)
	h.Set(identity.EmailHeader, actor.Email)
	return h
}

func (s *testServer) do(actor composables.Actor, method, path string, body any) *http.Response {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, s.srv.URL+path, reader)
	require.NoError(s.t, err)
	req.Header = actorHeaders(actor)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(s.t, err)
	s.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

type requestView struct {
	ID                 string   `json:"id"`
	CustomerID         string   `json:"customerId"`
	DeviceCategory     string   `json:"deviceCategory"`
	Status             string   `json:"status"`
	OSVersionOrVendor  string   `json:"osVersionOrVendor"`
	Cost               string   `json:"cost"`
	CostDisplay        string   `json:"costDisplay"`
	InvoiceNotes       string   `json:"invoiceNotes"`
	AllowedTransitions []string `json:"allowedTransitions"`
	SubmittedAt        string   `json:"submittedAt"`
}

type apiError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields"`
	Meta    map[string]string `json:"meta"`
}

func submitBody(overrides map[string]string) map[string]string {
	body := map[string]string{
		"customerName":      "Asha Rao",
		"customerEmail":     "asha@example.com",
		"deviceCategory":    "Laptop",
		"brand":             "Dell",
		"osVersionOrVendor": "Windows 11",
		"issueDescription":  "Laptop shuts down after ten minutes of use",
	}
	for k, v := range overrides {
		body[k] = v
	}
	return body
}

// submit stores a record for actor and returns it.
func (s *testServer) submit(actor composables.Actor, overrides map[string]string) requestView {
	s.t.Helper()
	resp := s.do(actor, http.MethodPost, "/servicedesk/api/requests", submitBody(overrides))
	require.Equal(s.t, http.StatusCreated, resp.StatusCode)
	return decode[requestView](s.t, resp)
}

func (s *testServer) setStatus(actor composables.Actor, id, status string) *http.Response {
	return s.do(actor, http.MethodPost, "/servicedesk/api/requests/"+id+"/status", map[string]string{"status": status})
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}
