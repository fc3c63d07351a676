package servicedesk

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iota-uz/servicedesk/modules/servicedesk/domain/aggregates/request"
	"github.com/iota-uz/servicedesk/pkg/application"
	"github.com/iota-uz/servicedesk/pkg/composables"
)

// demoRequest is walked through steps after insert. A step to Completed
// carries cost.
type demoRequest struct {
	record request.Request
	steps  []request.Status
	cost   string
	notes  string
}

func demoRequests(today time.Time) []demoRequest {
	appointment := request.WithAppointmentDate(today.AddDate(0, 0, 2))
	return []demoRequest{
		{
			record: request.New("demo-customer-1", "Asha Rao", "asha@example.com", request.CategoryLaptop, "Dell",
				"Windows 11", "Laptop shuts down after ten minutes of use",
				request.WithID(uuid.MustParse("5b1f7c4e-1f0e-4a51-9d6a-0f6e3b8f2a01"))),
		},
		{
			record: request.New("demo-customer-1", "Asha Rao", "asha@example.com", request.CategoryDesktop, "HP",
				"Windows 10", "Desktop does not detect the second monitor",
				request.WithID(uuid.MustParse("5b1f7c4e-1f0e-4a51-9d6a-0f6e3b8f2a02")), appointment),
			steps: []request.Status{request.StatusScheduled},
		},
		{
			record: request.New("demo-customer-2", "Ravi Menon", "ravi@example.com", request.CategoryPrinter, "Canon",
				request.NotApplicable, "Paper jams on every second page printed",
				request.WithID(uuid.MustParse("5b1f7c4e-1f0e-4a51-9d6a-0f6e3b8f2a03")), appointment,
				request.WithErrorMessages("E02 paper jam")),
			steps: []request.Status{request.StatusScheduled, request.StatusInProgress, request.StatusAwaitingParts},
		},
		{
			record: request.New("demo-customer-2", "Ravi Menon", "ravi@example.com", request.CategorySoftware, request.BrandAntivirus,
				"Quick Heal", "Anti-virus subscription expired and needs renewal",
				request.WithID(uuid.MustParse("5b1f7c4e-1f0e-4a51-9d6a-0f6e3b8f2a04")), appointment),
			steps: []request.Status{request.StatusScheduled, request.StatusInProgress, request.StatusCompleted},
			cost:  "1499.50",
			notes: "Renewed one-year licence",
		},
		{
			record: request.New("demo-customer-1", "Asha Rao", "asha@example.com", request.CategoryLaptop, "Lenovo",
				"Ubuntu 22.04", "Keyboard keys stopped responding after a spill",
				request.WithID(uuid.MustParse("5b1f7c4e-1f0e-4a51-9d6a-0f6e3b8f2a05")), appointment),
			steps: []request.Status{request.StatusScheduled, request.StatusInProgress, request.StatusCompleted, request.StatusPaid},
			cost:  "2500",
			notes: "Replaced keyboard",
		},
		{
			record: request.New("demo-customer-3", "Meera Iyer", "meera@example.com", request.CategoryPrinter, "Epson",
				request.NotApplicable, "Printer needs a new ink tank fitted",
				request.WithID(uuid.MustParse("5b1f7c4e-1f0e-4a51-9d6a-0f6e3b8f2a06")), appointment),
			steps: []request.Status{request.StatusDeclined},
		},
	}
}

// seedRequests inserts the demo records. Records that already exist are left
// untouched, so seeding twice is harmless.
func seedRequests(repo request.Repository) application.SeedFunc {
	return func(ctx context.Context, app application.Application) error {
		logger := app.Logger().WithField("component", "servicedesk-seed")
		for _, demo := range demoRequests(time.Now()) {
			stored, err := repo.Create(ctx, demo.record)
			if errors.Is(err, request.ErrConflict) {
				continue
			}
			if err != nil {
				return err
			}
			for _, to := range demo.steps {
				if to == request.StatusCompleted {
					stored, err = repo.Complete(ctx, stored.ID(), stored.Status(), decimal.RequireFromString(demo.cost), demo.notes)
				} else {
					stored, err = repo.UpdateStatus(ctx, stored.ID(), stored.Status(), to)
				}
				if err != nil {
					return err
				}
			}
			logger.WithField("request", stored.ID().String()).Debug("seeded service request")
		}
		return nil
	}
}

// SystemActor is used by CLI commands that act outside an HTTP request.
var SystemActor = composables.Actor{ID: "system", Role: composables.RoleAdmin, Name: "System"}
