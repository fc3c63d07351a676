package controllers_test

import (
	"bytes"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestAdmin_RequiresAdmin(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(customer, http.MethodGet, "/servicedesk/admin/api/revenue", nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, s.srv.URL+"/servicedesk/admin/export.xlsx", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "text/html")
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	resp, err = client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/admin/login", resp.Header.Get("Location"))
}

func TestAdmin_Revenue(t *testing.T) {
	s := newTestServer(t)
	billed := s.submit(customer, map[string]string{"requestedAppointmentDate": "2024-03-12"})
	s.submit(stranger, nil)
	for _, status := range []string{"Scheduled", "In Progress"} {
		require.Equal(t, http.StatusOK, s.setStatus(admin, billed.ID, status).StatusCode)
	}
	resp := s.do(admin, http.MethodPost, "/servicedesk/api/requests/"+billed.ID+"/complete", map[string]any{"cost": 2500})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.do(admin, http.MethodGet, "/servicedesk/admin/api/revenue", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[struct {
		Currency     string         `json:"currency"`
		Total        string         `json:"total"`
		TotalDisplay string         `json:"totalDisplay"`
		Billed       int            `json:"billed"`
		ByStatus     map[string]int `json:"byStatus"`
		ByDay        []struct {
			Day   string `json:"day"`
			Label string `json:"label"`
			Total string `json:"total"`
		} `json:"byDay"`
	}](t, resp)
	require.Equal(t, "INR", body.Currency)
	require.Equal(t, "2500.00", body.Total)
	require.Equal(t, "₹2,500.00", body.TotalDisplay)
	require.Equal(t, 1, body.Billed)
	require.Equal(t, 1, body.ByStatus["Completed"])
	require.Equal(t, 1, body.ByStatus["Pending"])
	require.Zero(t, body.ByStatus["Paid"])
	require.Len(t, body.ByDay, 1)
	require.Equal(t, "2024-03-10", body.ByDay[0].Day)
	require.Equal(t, "Mar 10", body.ByDay[0].Label)
}

func TestAdmin_Export(t *testing.T) {
	s := newTestServer(t)
	s.submit(customer, nil)
	s.submit(stranger, map[string]string{"deviceCategory": "Printer", "brand": "Epson"})

	resp := s.do(admin, http.MethodGet, "/servicedesk/admin/export.xlsx?category=Printer", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", resp.Header.Get("Content-Type"))
	require.Equal(t, "1", resp.Header.Get("X-Total-Count"))
	require.Contains(t, resp.Header.Get("Content-Disposition"), "service-requests-20240310.xlsx")

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Requests")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "Printer", rows[1][5])

	resp = s.do(admin, http.MethodGet, "/servicedesk/admin/export.xlsx?from=yesterday", nil)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}
