package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iota-uz/servicedesk/modules/servicedesk/domain/aggregates/request"
	"github.com/iota-uz/servicedesk/pkg/livequery"
)

type MemoryRepository struct {
	mu      sync.RWMutex
	records map[uuid.UUID]request.Request
	feed    *livequery.Feed
	now     func() time.Time
}

// NewMemoryRepository keeps records in process memory. now defaults to
// time.Now.
func NewMemoryRepository(feed *livequery.Feed, now func() time.Time) *MemoryRepository {
	if now == nil {
		now = time.Now
	}
	return &MemoryRepository{
		records: make(map[uuid.UUID]request.Request),
		feed:    feed,
		now:     now,
	}
}

func (r *MemoryRepository) publish(id uuid.UUID) {
	if r.feed != nil {
		r.feed.Publish(livequery.Change{Collection: request.Collection, ID: id.String()})
	}
}

func (r *MemoryRepository) Create(ctx context.Context, entity request.Request) (request.Request, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	if _, exists := r.records[entity.ID()]; exists {
		r.mu.Unlock()
		return nil, request.ErrConflict
	}
	stored := entity.Stamp(r.now())
	r.records[stored.ID()] = stored
	r.mu.Unlock()

	r.publish(stored.ID())
	return stored, nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (request.Request, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	entity, ok := r.records[id]
	if !ok {
		return nil, request.ErrNotFound
	}
	return entity, nil
}

func (r *MemoryRepository) List(ctx context.Context, q request.Query) ([]request.Request, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]request.Request, 0, len(r.records))
	for _, entity := range r.records {
		if q.Matches(entity) {
			out = append(out, entity)
		}
	}
	r.mu.RUnlock()
	request.SortNewestFirst(out)
	return out, nil
}

func (r *MemoryRepository) swap(id uuid.UUID, from request.Status, apply func(request.Request) request.Request) (request.Request, error) {
	r.mu.Lock()
	current, ok := r.records[id]
	if !ok {
		r.mu.Unlock()
		return nil, request.ErrNotFound
	}
	if current.Status() != from {
		r.mu.Unlock()
		return nil, request.ErrConflict
	}
	updated := apply(current)
	r.records[id] = updated
	r.mu.Unlock()

	r.publish(id)
	return updated, nil
}

func (r *MemoryRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to request.Status) (request.Request, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.swap(id, from, func(current request.Request) request.Request {
		return current.WithStatus(to, r.now())
	})
}

func (r *MemoryRepository) Complete(ctx context.Context, id uuid.UUID, from request.Status, cost decimal.Decimal, notes string) (request.Request, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.swap(id, from, func(current request.Request) request.Request {
		return current.Complete(cost, notes, r.now())
	})
}
