package request_test

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/servicedesk/modules/servicedesk/domain/aggregates/request"
)

func fixture() []request.Request {
	return []request.Request{
		request.New("c1", "Alice Smith", "alice@example.com", request.CategoryLaptop, "Dell", "Windows 11",
			"Battery drains within an hour of use",
			request.WithSubmittedAt(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))),
		request.New("c2", "Bob Stone", "bob@example.com", request.CategoryPrinter, "HP", request.NotApplicable,
			"Printer jams every third page consistently",
			request.WithStatus(request.StatusCompleted),
			request.WithSubmittedAt(time.Date(2024, 5, 3, 23, 30, 0, 0, time.UTC))),
		request.New("c1", "Alice Smith", "alice@example.com", request.CategoryDesktop, "HP", "Ubuntu 22.04",
			"Fans run at full speed all the time",
			request.WithStatus(request.StatusInProgress),
			request.WithSubmittedAt(time.Date(2024, 5, 5, 8, 0, 0, 0, time.UTC))),
	}
}

func TestFilter_StatusScenario(t *testing.T) {
	records := fixture()[:2]
	got, err := request.Filter{Status: "Completed"}.Apply(records, time.UTC)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, records[1].ID(), got[0].ID())
}

func TestFilter_Apply(t *testing.T) {
	records := fixture()
	tests := []struct {
		name   string
		filter request.Filter
		want   []int
	}{
		{"empty sorts newest first", request.Filter{}, []int{2, 1, 0}},
		{"search name", request.Filter{Search: "ALICE"}, []int{2, 0}},
		{"search email", request.Filter{Search: "bob@"}, []int{1}},
		{"search id", request.Filter{Search: records[1].ID().String()[:8]}, []int{1}},
		{"fuzzy", request.Filter{Search: "alsmth", Fuzzy: true}, []int{2, 0}},
		{"category", request.Filter{Category: "Printer"}, []int{1}},
		{"brand", request.Filter{Brand: "HP"}, []int{2, 1}},
		{"compact status", request.Filter{Status: "InProgress"}, []int{2}},
		{"from only", request.Filter{From: "2024-05-03"}, []int{2, 1}},
		{"to includes whole day", request.Filter{To: "2024-05-03"}, []int{1, 0}},
		{"range", request.Filter{From: "2024-05-02", To: "2024-05-04"}, []int{1}},
		{"combined", request.Filter{Search: "alice", Brand: "Dell"}, []int{0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.filter.Apply(records, time.UTC)
			require.NoError(t, err)
			ids := make([]string, 0, len(got))
			for _, r := range got {
				ids = append(ids, r.ID().String())
			}
			want := make([]string, 0, len(tt.want))
			for _, i := range tt.want {
				want = append(want, records[i].ID().String())
			}
			require.Equal(t, want, ids)
		})
	}
}

func TestFilter_DateBoundsUseLocation(t *testing.T) {
	kolkata := time.FixedZone("IST", 5*3600+1800)
	// 2024-05-03 23:30 UTC is 2024-05-04 05:00 in IST.
	got, err := request.Filter{From: "2024-05-04", To: "2024-05-04"}.Apply(fixture(), kolkata)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "Bob Stone", got[0].CustomerName())
}

func TestFilter_InvalidInput(t *testing.T) {
	_, err := request.Filter{Status: "Archived", From: "yesterday"}.Apply(fixture(), time.UTC)
	require.Error(t, err)
}

func TestParseFilter(t *testing.T) {
	f, err := request.ParseFilter(url.Values{
		"q":        {"alice"},
		"fuzzy":    {"true"},
		"category": {"Laptop"},
		"status":   {"Pending"},
		"from":     {"2024-05-01"},
	})
	require.NoError(t, err)
	require.Equal(t, request.Filter{Search: "alice", Fuzzy: true, Category: "Laptop", Status: "Pending", From: "2024-05-01"}, f)
}

func TestQuery_Key(t *testing.T) {
	require.Equal(t, "all", request.AllRequests().Key())
	require.Equal(t, "customer:c1", request.ForCustomer(" c1 ").Key())
	require.NotEqual(t, request.ForCustomer("c1"), request.ForCustomer("c2"))
	require.True(t, request.ForCustomer("c1").Matches(fixture()[0]))
	require.False(t, request.ForCustomer("c1").Matches(fixture()[1]))
}
