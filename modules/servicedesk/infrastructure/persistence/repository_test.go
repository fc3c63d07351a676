package persistence_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/servicedesk/modules/servicedesk/domain/aggregates/request"
	"github.com/iota-uz/servicedesk/pkg/livequery"
)

type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type repoFactory func(t *testing.T, feed *livequery.Feed) request.Repository

func laptopRequest(customerID string, opts ...request.Option) request.Request {
	return request.New(
		customerID,
		"Asha Rao",
		"asha@example.com",
		request.CategoryLaptop,
		"Dell",
		"Windows 11",
		"Laptop shuts down after ten minutes of use",
		opts...,
	)
}

func awaitSnapshot[T any](t *testing.T, sub *livequery.Subscription[T], ok func(T) bool) T {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case snap, open := <-sub.Updates():
			require.True(t, open, "subscription ended early")
			require.NoError(t, snap.Err)
			if snap.State == livequery.StateReady && ok(snap.Data) {
				return snap.Data
			}
		case <-timeout:
			t.Fatal("timed out waiting for snapshot")
		}
	}
}

func runRepositoryContract(t *testing.T, newRepo repoFactory) {
	t.Helper()

	t.Run("create and get", func(t *testing.T) {
		repo := newRepo(t, livequery.NewFeed())
		ctx := context.Background()
		appointment := time.Date(2031, 5, 20, 0, 0, 0, 0, time.UTC)
		created, err := repo.Create(ctx, request.New(
			"cust-1", "Asha Rao", "asha@example.com",
			request.CategorySoftware, request.BrandAntivirus, "Kaspersky",
			"Antivirus blocks every update since Monday",
			request.WithErrorMessages("0x80070005"),
			request.WithAppointmentDate(appointment),
		))
		require.NoError(t, err)
		require.False(t, created.SubmittedAt().IsZero())
		require.Equal(t, created.SubmittedAt(), created.UpdatedAt())

		got, err := repo.GetByID(ctx, created.ID())
		require.NoError(t, err)
		require.Equal(t, request.StatusPending, got.Status())
		require.Equal(t, request.CategorySoftware, got.Category())
		require.Equal(t, "Kaspersky", got.OSVersionOrVendor())
		require.Equal(t, "0x80070005", got.ErrorMessages())
		d, ok := got.AppointmentDate()
		require.True(t, ok)
		require.Equal(t, "2031-05-20", d.Format(request.DateLayout))
		_, billed := got.Cost()
		require.False(t, billed)
	})

	t.Run("duplicate id conflicts", func(t *testing.T) {
		repo := newRepo(t, livequery.NewFeed())
		ctx := context.Background()
		r := laptopRequest("cust-1")
		_, err := repo.Create(ctx, r)
		require.NoError(t, err)
		_, err = repo.Create(ctx, r)
		require.ErrorIs(t, err, request.ErrConflict)
	})

	t.Run("unknown id", func(t *testing.T) {
		repo := newRepo(t, livequery.NewFeed())
		_, err := repo.GetByID(context.Background(), uuid.New())
		require.ErrorIs(t, err, request.ErrNotFound)
		_, err = repo.UpdateStatus(context.Background(), uuid.New(), request.StatusPending, request.StatusScheduled)
		require.ErrorIs(t, err, request.ErrNotFound)
	})

	t.Run("list is scoped and newest first", func(t *testing.T) {
		repo := newRepo(t, livequery.NewFeed())
		ctx := context.Background()
		first, err := repo.Create(ctx, laptopRequest("cust-1"))
		require.NoError(t, err)
		second, err := repo.Create(ctx, laptopRequest("cust-2"))
		require.NoError(t, err)
		third, err := repo.Create(ctx, laptopRequest("cust-1"))
		require.NoError(t, err)

		all, err := repo.List(ctx, request.AllRequests())
		require.NoError(t, err)
		require.Len(t, all, 3)
		require.Equal(t, []uuid.UUID{third.ID(), second.ID(), first.ID()}, ids(all))

		own, err := repo.List(ctx, request.ForCustomer("cust-1"))
		require.NoError(t, err)
		require.Equal(t, []uuid.UUID{third.ID(), first.ID()}, ids(own))

		none, err := repo.List(ctx, request.ForCustomer("nobody"))
		require.NoError(t, err)
		require.Empty(t, none)
	})

	t.Run("conditional status update", func(t *testing.T) {
		repo := newRepo(t, livequery.NewFeed())
		ctx := context.Background()
		created, err := repo.Create(ctx, laptopRequest("cust-1"))
		require.NoError(t, err)

		updated, err := repo.UpdateStatus(ctx, created.ID(), request.StatusPending, request.StatusScheduled)
		require.NoError(t, err)
		require.Equal(t, request.StatusScheduled, updated.Status())
		require.False(t, updated.UpdatedAt().Before(created.UpdatedAt()))
		require.Equal(t, created.SubmittedAt(), updated.SubmittedAt())

		_, err = repo.UpdateStatus(ctx, created.ID(), request.StatusPending, request.StatusDeclined)
		require.ErrorIs(t, err, request.ErrConflict)

		got, err := repo.GetByID(ctx, created.ID())
		require.NoError(t, err)
		require.Equal(t, request.StatusScheduled, got.Status())
	})

	t.Run("complete keeps first billing", func(t *testing.T) {
		repo := newRepo(t, livequery.NewFeed())
		ctx := context.Background()
		created, err := repo.Create(ctx, laptopRequest("cust-1"))
		require.NoError(t, err)
		_, err = repo.UpdateStatus(ctx, created.ID(), request.StatusPending, request.StatusScheduled)
		require.NoError(t, err)

		done, err := repo.Complete(ctx, created.ID(), request.StatusScheduled, decimal.RequireFromString("1499.50"), "replaced fan")
		require.NoError(t, err)
		require.Equal(t, request.StatusCompleted, done.Status())
		cost, ok := done.Cost()
		require.True(t, ok)
		require.True(t, cost.Equal(decimal.RequireFromString("1499.5")))
		require.Equal(t, "replaced fan", done.InvoiceNotes())

		again, err := repo.Complete(ctx, created.ID(), request.StatusCompleted, decimal.NewFromInt(10), "other")
		require.NoError(t, err)
		cost, _ = again.Cost()
		require.True(t, cost.Equal(decimal.RequireFromString("1499.5")))
		require.Equal(t, "replaced fan", again.InvoiceNotes())

		_, err = repo.Complete(ctx, created.ID(), request.StatusInProgress, decimal.NewFromInt(10), "")
		require.ErrorIs(t, err, request.ErrConflict)
	})
}

func runFeedContract(t *testing.T, newRepo repoFactory) {
	t.Helper()

	feed := livequery.NewFeed()
	repo := newRepo(t, feed)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	created, err := repo.Create(ctx, laptopRequest("cust-1"))
	require.NoError(t, err)

	list := livequery.Subscribe(ctx, feed, livequery.MatchCollection(request.Collection),
		func(ctx context.Context) ([]request.Request, error) {
			return repo.List(ctx, request.ForCustomer("cust-1"))
		})
	defer list.Close()
	doc := livequery.Subscribe(ctx, feed, livequery.MatchDocument(request.Collection, created.ID().String()),
		func(ctx context.Context) (request.Request, error) {
			return repo.GetByID(ctx, created.ID())
		})
	defer doc.Close()

	awaitSnapshot(t, list, func(rs []request.Request) bool { return len(rs) == 1 })
	awaitSnapshot(t, doc, func(r request.Request) bool { return r.Status() == request.StatusPending })

	_, err = repo.Create(ctx, laptopRequest("cust-1"))
	require.NoError(t, err)
	awaitSnapshot(t, list, func(rs []request.Request) bool { return len(rs) == 2 })

	_, err = repo.UpdateStatus(ctx, created.ID(), request.StatusPending, request.StatusScheduled)
	require.NoError(t, err)
	awaitSnapshot(t, doc, func(r request.Request) bool { return r.Status() == request.StatusScheduled })
}

func ids(rs []request.Request) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.ID())
	}
	return out
}
