package services_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/servicedesk/modules/servicedesk/domain/aggregates/request"
	"github.com/iota-uz/servicedesk/modules/servicedesk/infrastructure/persistence"
	"github.com/iota-uz/servicedesk/modules/servicedesk/services"
	"github.com/iota-uz/servicedesk/pkg/authz"
	"github.com/iota-uz/servicedesk/pkg/composables"
	"github.com/iota-uz/servicedesk/pkg/eventbus"
	"github.com/iota-uz/servicedesk/pkg/livequery"
	"github.com/iota-uz/servicedesk/pkg/notify"
)

var (
	testNow  = time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)
	admin    = composables.Actor{ID: "admin-1", Role: composables.RoleAdmin, Name: "Ops"}
	customer = composables.Actor{ID: "cust-1", Role: composables.RoleCustomer, Name: "Asha Rao", Email: "asha@example.com"}
	stranger = composables.Actor{ID: "cust-2", Role: composables.RoleCustomer, Name: "Ravi", Email: "ravi@example.com"}
)

// faultyRepo fails the operations whose error is set. A non-nil hold delays
// Create until it is closed; a non-nil stale is served by GetByID in place of
// the stored record.
type faultyRepo struct {
	request.Repository
	createErr error
	updateErr error
	hold      chan struct{}
	failReads atomic.Bool
	stale     request.Request
}

func (r *faultyRepo) Create(ctx context.Context, entity request.Request) (request.Request, error) {
	if r.hold != nil {
		<-r.hold
	}
	if r.createErr != nil {
		return nil, r.createErr
	}
	return r.Repository.Create(ctx, entity)
}

func (r *faultyRepo) GetByID(ctx context.Context, id uuid.UUID) (request.Request, error) {
	if r.failReads.Load() {
		return nil, notify.ErrPermissionDenied
	}
	if r.stale != nil && r.stale.ID() == id {
		return r.stale, nil
	}
	return r.Repository.GetByID(ctx, id)
}

func (r *faultyRepo) List(ctx context.Context, q request.Query) ([]request.Request, error) {
	if r.failReads.Load() {
		return nil, errors.New("store unavailable")
	}
	return r.Repository.List(ctx, q)
}

func (r *faultyRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to request.Status) (request.Request, error) {
	if r.updateErr != nil {
		return nil, r.updateErr
	}
	return r.Repository.UpdateStatus(ctx, id, from, to)
}

type fixture struct {
	t        *testing.T
	feed     *livequery.Feed
	repo     *faultyRepo
	bus      eventbus.EventBus
	notifier *notify.Channel
	requests *services.RequestService
	live     *services.LiveService

	mu            sync.Mutex
	notifications []notify.Notification
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	authorizer, err := authz.NewService(authz.Config{FlagProvider: authz.StaticFlagProvider(authz.ModeEnforce), Logger: logger})
	require.NoError(t, err)

	clock := testNow
	var clockMu sync.Mutex
	storeNow := func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}

	f := &fixture{t: t, feed: livequery.NewFeed(), bus: eventbus.NewEventPublisher(logger)}
	f.repo = &faultyRepo{Repository: persistence.NewMemoryRepository(f.feed, storeNow)}
	f.notifier = notify.New(notify.Options{Buffer: 32, Logger: logger})
	f.requests = services.NewRequestService(f.repo, f.bus, f.notifier, authorizer,
		services.WithClock(func() time.Time { return testNow }),
		services.WithLogger(logger),
	)
	f.live = services.NewLiveService(f.requests, f.repo, f.feed)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = f.notifier.Listen(ctx, func(_ context.Context, n notify.Notification) {
			f.mu.Lock()
			f.notifications = append(f.notifications, n)
			f.mu.Unlock()
		})
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return f
}

func (f *fixture) as(actor composables.Actor) context.Context {
	return composables.WithActor(context.Background(), actor)
}

func (f *fixture) received() []notify.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notify.Notification(nil), f.notifications...)
}

func (f *fixture) awaitNotification(kind notify.Kind, op string) notify.Notification {
	f.t.Helper()
	var found notify.Notification
	require.Eventually(f.t, func() bool {
		for _, n := range f.received() {
			if n.Kind == kind && n.Operation == op {
				found = n
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)
	return found
}

// quiet asserts that nothing reached the channel, allowing for delivery lag.
func (f *fixture) quiet() {
	f.t.Helper()
	time.Sleep(20 * time.Millisecond)
	require.Empty(f.t, f.received())
	require.Zero(f.t, f.notifier.Pending())
}

func validDTO() *request.SubmitDTO {
	return &request.SubmitDTO{
		CustomerName:      "Asha Rao",
		CustomerEmail:     "asha@example.com",
		DeviceCategory:    "Laptop",
		Brand:             "Dell",
		OSVersionOrVendor: "Windows 11",
		IssueDescription:  "Laptop shuts down after ten minutes of use",
	}
}

// seed stores a record through the repository, bypassing the service.
func (f *fixture) seed(customerID string, opts ...request.Option) request.Request {
	f.t.Helper()
	r := request.New(customerID, "Asha Rao", "asha@example.com", request.CategoryLaptop, "Dell",
		"Windows 11", "Laptop shuts down after ten minutes of use", opts...)
	stored, err := f.repo.Repository.Create(context.Background(), r)
	require.NoError(f.t, err)
	return stored
}

func withAppointment() request.Option {
	return request.WithAppointmentDate(testNow.AddDate(0, 0, 3))
}

func mustCost(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}
