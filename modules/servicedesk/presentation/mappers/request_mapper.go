package mappers

import (
	"time"

	"github.com/iota-uz/servicedesk/modules/servicedesk/domain/aggregates/request"
	"github.com/iota-uz/servicedesk/modules/servicedesk/presentation/viewmodels"
	"github.com/iota-uz/servicedesk/modules/servicedesk/services"
	"github.com/iota-uz/servicedesk/pkg/livequery"
	"github.com/iota-uz/servicedesk/pkg/money"
	"github.com/iota-uz/servicedesk/pkg/notify"
)

func RequestToViewModel(r request.Request, admin bool) *viewmodels.Request {
	vm := &viewmodels.Request{
		ID:                r.ID().String(),
		CustomerID:        r.CustomerID(),
		CustomerName:      r.CustomerName(),
		CustomerEmail:     r.CustomerEmail(),
		DeviceCategory:    string(r.Category()),
		Brand:             r.Brand(),
		OSVersionOrVendor: r.OSVersionOrVendor(),
		IssueDescription:  r.IssueDescription(),
		ErrorMessages:     r.ErrorMessages(),
		Status:            string(r.Status()),
		InvoiceNotes:      r.InvoiceNotes(),
		SubmittedAt:       r.SubmittedAt(),
		UpdatedAt:         r.UpdatedAt(),
	}
	if d, ok := r.AppointmentDate(); ok {
		vm.RequestedAppointmentDate = d.Format(request.DateLayout)
	}
	if cost, ok := r.Cost(); ok {
		vm.Cost = cost.StringFixed(2)
		vm.CostDisplay = money.Format(cost, money.INR)
	}
	if admin {
		for _, s := range request.AllowedTransitions(r) {
			vm.AllowedTransitions = append(vm.AllowedTransitions, string(s))
		}
	}
	return vm
}

func RequestsToViewModels(records []request.Request, admin bool) []*viewmodels.Request {
	out := make([]*viewmodels.Request, 0, len(records))
	for _, r := range records {
		out = append(out, RequestToViewModel(r, admin))
	}
	return out
}

func RevenueToViewModel(s services.RevenueSummary) *viewmodels.Revenue {
	vm := &viewmodels.Revenue{
		Currency:     s.Currency,
		Total:        s.Total.StringFixed(2),
		TotalDisplay: s.DisplayTotal(),
		Billed:       s.Billed,
		ByDay:        make([]viewmodels.RevenueDay, 0, len(s.ByDay)),
		ByStatus:     make(map[string]int, len(s.ByStatus)),
	}
	for _, d := range s.ByDay {
		vm.ByDay = append(vm.ByDay, viewmodels.RevenueDay{
			Day:          d.Day.Format(request.DateLayout),
			Label:        d.Label,
			Total:        d.Total.StringFixed(2),
			TotalDisplay: money.Format(d.Total, s.Currency),
		})
	}
	for status, n := range s.ByStatus {
		vm.ByStatus[string(status)] = n
	}
	return vm
}

// SnapshotToViewModel renders a live snapshot. errMessage replaces the raw
// error of a failed snapshot.
func SnapshotToViewModel(w services.Watch, snap livequery.Snapshot[[]request.Request], admin bool, errMessage string) *viewmodels.Snapshot {
	vm := &viewmodels.Snapshot{
		Type:    "snapshot",
		State:   snap.State.String(),
		Version: snap.Version,
		At:      snap.At,
		Watch:   WatchToViewModel(w),
		Data:    []*viewmodels.Request{},
	}
	switch snap.State {
	case livequery.StateReady:
		vm.Data = RequestsToViewModels(snap.Data, admin)
	case livequery.StateFailed:
		vm.Error = errMessage
	}
	return vm
}

func WatchToViewModel(w services.Watch) viewmodels.Watch {
	vm := viewmodels.Watch{Scope: w.Scope, ID: w.ID}
	if f := w.Filter; f != (request.Filter{}) {
		vm.Filter = &viewmodels.WatchFilter{
			Search:   f.Search,
			Fuzzy:    f.Fuzzy,
			Category: f.Category,
			Brand:    f.Brand,
			Status:   f.Status,
			From:     f.From,
			To:       f.To,
		}
	}
	return vm
}

func NotificationToViewModel(n notify.Notification) *viewmodels.Notification {
	at := n.At
	if at.IsZero() {
		at = time.Now()
	}
	return &viewmodels.Notification{
		Type:      "notification",
		Kind:      string(n.Kind),
		Operation: n.Operation,
		Subject:   n.Subject,
		Title:     n.Title,
		Message:   n.Message,
		At:        at,
	}
}
