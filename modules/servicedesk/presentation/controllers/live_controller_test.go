package controllers_test

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/servicedesk/pkg/composables"
)

type frame struct {
	Type      string            `json:"type"`
	State     string            `json:"state"`
	Version   uint64            `json:"version"`
	Data      []requestView     `json:"data"`
	Error     string            `json:"error"`
	Code      string            `json:"code"`
	Kind      string            `json:"kind"`
	Operation string            `json:"operation"`
	Fields    map[string]string `json:"fields"`
	Watch     struct {
		Scope  string `json:"scope"`
		Filter struct {
			Category string `json:"category"`
		} `json:"filter"`
	} `json:"watch"`
}

func (s *testServer) dial(actor composables.Actor) *websocket.Conn {
	s.t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(s.srv, "/servicedesk/live/ws"), actorHeaders(actor))
	require.NoError(s.t, err)
	require.Equal(s.t, http.StatusSwitchingProtocols, resp.StatusCode)
	s.t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

// next reads frames until match accepts one.
func next(t *testing.T, conn *websocket.Conn, match func(frame) bool) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, payload, err := conn.ReadMessage()
		require.NoError(t, err)
		var f frame
		require.NoError(t, json.Unmarshal(payload, &f))
		if match(f) {
			return f
		}
	}
}

func readySnapshot(n int) func(frame) bool {
	return func(f frame) bool {
		return f.Type == "snapshot" && f.State == "ready" && len(f.Data) == n
	}
}

func TestLive_RequiresActor(t *testing.T) {
	s := newTestServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(s.srv, "/servicedesk/live/ws"), nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLive_WatchFollowsWrites(t *testing.T) {
	s := newTestServer(t)
	s.submit(customer, nil)
	s.submit(stranger, nil)

	conn := s.dial(customer)
	send(t, conn, map[string]any{"action": "watch"})
	first := next(t, conn, readySnapshot(1))
	require.Equal(t, customer.ID, first.Data[0].CustomerID)

	s.submit(customer, map[string]string{"deviceCategory": "Printer", "brand": "HP"})
	next(t, conn, readySnapshot(2))

	// Repeating the same watch re-sends the current snapshot.
	send(t, conn, map[string]any{"action": "watch"})
	again := next(t, conn, readySnapshot(2))
	require.GreaterOrEqual(t, again.Version, uint64(2))
}

func TestLive_AdminFilteredWatch(t *testing.T) {
	s := newTestServer(t)
	s.submit(customer, nil)
	printer := s.submit(stranger, map[string]string{"deviceCategory": "Printer", "brand": "HP"})

	conn := s.dial(admin)
	send(t, conn, map[string]any{"action": "watch", "scope": "all", "filter": map[string]string{"category": "Printer"}})
	snap := next(t, conn, readySnapshot(1))
	require.Equal(t, printer.ID, snap.Data[0].ID)
	require.NotEmpty(t, snap.Data[0].AllowedTransitions)

	send(t, conn, map[string]any{"action": "watch", "id": printer.ID})
	one := next(t, conn, readySnapshot(1))
	require.Equal(t, printer.ID, one.Data[0].ID)

	require.Equal(t, http.StatusOK, s.setStatus(admin, printer.ID, "In Progress").StatusCode)
	moved := next(t, conn, func(f frame) bool {
		return f.Type == "snapshot" && len(f.Data) == 1 && f.Data[0].Status == "In Progress"
	})
	require.Equal(t, printer.ID, moved.Data[0].ID)
}

func TestLive_RewatchWithNewFilterDropsPreviousFrames(t *testing.T) {
	s := newTestServer(t)
	laptop := s.submit(customer, nil)
	printer := map[string]string{"deviceCategory": "Printer", "brand": "HP"}
	s.submit(stranger, printer)

	conn := s.dial(admin)
	watchCategory := func(category string) map[string]any {
		return map[string]any{"action": "watch", "scope": "all", "filter": map[string]string{"category": category}}
	}
	send(t, conn, watchCategory("Printer"))
	next(t, conn, readySnapshot(1))

	send(t, conn, watchCategory("Laptop"))
	current := next(t, conn, func(f frame) bool {
		return f.Type == "snapshot" && f.State == "ready" && f.Watch.Filter.Category == "Laptop"
	})
	require.Equal(t, laptop.ID, current.Data[0].ID)

	// A write the old filter would match must not produce a frame for it.
	s.submit(stranger, printer)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var f frame
		require.NoError(t, json.Unmarshal(payload, &f))
		if f.Type != "snapshot" {
			continue
		}
		require.Equal(t, "Laptop", f.Watch.Filter.Category)
		for _, r := range f.Data {
			require.Equal(t, "Laptop", r.DeviceCategory)
		}
	}
}

func TestLive_DeniedWatchIsReportedToTheCaller(t *testing.T) {
	s := newTestServer(t)

	owner := s.dial(customer)
	other := s.dial(stranger)
	send(t, owner, map[string]any{"action": "watch", "scope": "all"})

	errFrame := next(t, owner, func(f frame) bool { return f.Type == "error" })
	require.Equal(t, "AUTHZ_FORBIDDEN", errFrame.Code)

	note := next(t, owner, func(f frame) bool { return f.Type == "notification" })
	require.Equal(t, "permission-denied", note.Kind)
	require.Equal(t, "watch_records", note.Operation)

	// The notification is routed to the failing actor only.
	send(t, other, map[string]any{"action": "watch"})
	next(t, other, readySnapshot(0))
	require.NoError(t, other.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := other.ReadMessage()
	require.Error(t, err)
}

func TestLive_RejectsBadMessages(t *testing.T) {
	s := newTestServer(t)
	conn := s.dial(customer)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	require.Equal(t, "INVALID_JSON", next(t, conn, func(f frame) bool { return f.Type == "error" }).Code)

	send(t, conn, map[string]any{"action": "dance"})
	require.Equal(t, "UNKNOWN_ACTION", next(t, conn, func(f frame) bool { return f.Type == "error" }).Code)

	send(t, conn, map[string]any{"action": "watch", "scope": "everything"})
	require.Equal(t, "UNKNOWN_SCOPE", next(t, conn, func(f frame) bool { return f.Type == "error" }).Code)

	send(t, conn, map[string]any{"action": "watch", "id": "nope"})
	bad := next(t, conn, func(f frame) bool { return f.Type == "error" })
	require.Equal(t, "VALIDATION_FAILED", bad.Code)
	require.Contains(t, bad.Fields, "id")
}
