package controllers_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/servicedesk/pkg/composables"
)

func TestRequestAPI_SubmitAndList(t *testing.T) {
	s := newTestServer(t)

	created := s.submit(customer, nil)
	require.Equal(t, "Pending", created.Status)
	require.Equal(t, customer.ID, created.CustomerID)
	require.Empty(t, created.AllowedTransitions)

	printer := s.submit(customer, map[string]string{"deviceCategory": "Printer", "brand": "Canon", "osVersionOrVendor": ""})
	require.Equal(t, "N/A", printer.OSVersionOrVendor)

	s.submit(stranger, nil)

	resp := s.do(customer, http.MethodGet, "/servicedesk/api/requests", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	own := decode[struct {
		Items []requestView `json:"items"`
		Total int           `json:"total"`
	}](t, resp)
	require.Equal(t, 2, own.Total)

	resp = s.do(admin, http.MethodGet, "/servicedesk/api/requests?category=Printer", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	filtered := decode[struct {
		Items []requestView `json:"items"`
	}](t, resp)
	require.Len(t, filtered.Items, 1)
	require.Equal(t, printer.ID, filtered.Items[0].ID)
	require.Equal(t, []string{"In Progress", "Completed", "Cancelled"}, filtered.Items[0].AllowedTransitions)
}

func TestRequestAPI_SubmitWithoutWaiting(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(customer, http.MethodPost, "/servicedesk/api/requests?wait=false", submitBody(nil))
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	optimistic := decode[requestView](t, resp)
	require.Equal(t, "Pending", optimistic.Status)
	require.NotEmpty(t, optimistic.ID)
	require.NotEqual(t, "0001-01-01T00:00:00Z", optimistic.SubmittedAt)

	require.Eventually(t, func() bool {
		return s.do(customer, http.MethodGet, "/servicedesk/api/requests/"+optimistic.ID, nil).StatusCode == http.StatusOK
	}, time.Second, 10*time.Millisecond)
}

func TestRequestAPI_SubmitValidation(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(customer, http.MethodPost, "/servicedesk/api/requests", submitBody(map[string]string{
		"customerEmail":            "asha-at-example",
		"requestedAppointmentDate": "2024-03-09",
	}))
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	body := decode[apiError](t, resp)
	require.Equal(t, "VALIDATION_FAILED", body.Code)
	require.Contains(t, body.Fields, "customerEmail")
	require.Contains(t, body.Fields, "requestedAppointmentDate")
	require.NotEmpty(t, body.Meta["request_id"])

	resp = s.do(customer, http.MethodGet, "/servicedesk/api/requests", nil)
	empty := decode[struct {
		Total int `json:"total"`
	}](t, resp)
	require.Zero(t, empty.Total)
}

func TestRequestAPI_RejectsMalformedInput(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(customer, http.MethodGet, "/servicedesk/api/requests/not-a-uuid", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "INVALID_ID", decode[apiError](t, resp).Code)

	resp = s.do(customer, http.MethodPost, "/servicedesk/api/requests", "just a string")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "INVALID_JSON", decode[apiError](t, resp).Code)

	resp = s.do(admin, http.MethodGet, "/servicedesk/api/requests?status=Lost", nil)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.Contains(t, decode[apiError](t, resp).Fields, "status")
}

func TestRequestAPI_RequiresActor(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(composables.Actor{}, http.MethodGet, "/servicedesk/api/requests", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRequestAPI_Get(t *testing.T) {
	s := newTestServer(t)
	created := s.submit(customer, nil)

	require.Equal(t, http.StatusOK, s.do(customer, http.MethodGet, "/servicedesk/api/requests/"+created.ID, nil).StatusCode)
	require.Equal(t, http.StatusOK, s.do(admin, http.MethodGet, "/servicedesk/api/requests/"+created.ID, nil).StatusCode)
	require.Equal(t, http.StatusForbidden, s.do(stranger, http.MethodGet, "/servicedesk/api/requests/"+created.ID, nil).StatusCode)

	resp := s.do(admin, http.MethodGet, "/servicedesk/api/requests/6f1d2c3b-0000-4000-8000-000000000000", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "REQUEST_NOT_FOUND", decode[apiError](t, resp).Code)
}

func TestRequestAPI_TransitionGuards(t *testing.T) {
	s := newTestServer(t)
	created := s.submit(customer, nil)

	resp := s.setStatus(customer, created.ID, "Scheduled")
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = s.setStatus(admin, created.ID, "Scheduled")
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	guard := decode[apiError](t, resp)
	require.Equal(t, "TRANSITION_GUARD_FAILED", guard.Code)
	require.Equal(t, "Pending", guard.Meta["from"])
	require.Equal(t, "Scheduled", guard.Meta["to"])

	resp = s.setStatus(admin, created.ID, "Paid")
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, "INVALID_TRANSITION", decode[apiError](t, resp).Code)

	resp = s.setStatus(admin, created.ID, "Lost")
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.Contains(t, decode[apiError](t, resp).Fields, "status")
}

func TestRequestAPI_LifecycleWithBilling(t *testing.T) {
	s := newTestServer(t)
	created := s.submit(customer, map[string]string{"requestedAppointmentDate": "2024-03-12"})

	for _, status := range []string{"Scheduled", "In Progress", "Awaiting Parts", "In Progress"} {
		resp := s.setStatus(admin, created.ID, status)
		require.Equal(t, http.StatusOK, resp.StatusCode, status)
		require.Equal(t, status, decode[requestView](t, resp).Status)
	}

	resp := s.setStatus(admin, created.ID, "Completed")
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = s.do(admin, http.MethodPost, "/servicedesk/api/requests/"+created.ID+"/complete", map[string]any{"cost": "0"})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.Contains(t, decode[apiError](t, resp).Fields, "cost")

	resp = s.do(admin, http.MethodPost, "/servicedesk/api/requests/"+created.ID+"/complete", map[string]any{
		"cost":         "1499.50",
		"invoiceNotes": "Replaced fan",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	completed := decode[requestView](t, resp)
	require.Equal(t, "Completed", completed.Status)
	require.Equal(t, "1499.50", completed.Cost)
	require.Equal(t, "₹1,499.50", completed.CostDisplay)
	require.Equal(t, "Replaced fan", completed.InvoiceNotes)
	require.Equal(t, []string{"Paid"}, completed.AllowedTransitions)

	resp = s.setStatus(admin, created.ID, "Paid")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "Paid", decode[requestView](t, resp).Status)
}

func TestRequestAPI_Catalog(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(customer, http.MethodGet, "/servicedesk/api/catalog", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[struct {
		Items []struct {
			Category string   `json:"category"`
			Brands   []string `json:"brands"`
			AsksOS   bool     `json:"asksOs"`
		} `json:"items"`
	}](t, resp)
	require.Len(t, body.Items, 4)
	require.Equal(t, "Printer", body.Items[2].Category)
	require.False(t, body.Items[2].AsksOS)
}
