package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/iota-uz/servicedesk/modules/servicedesk/domain/aggregates/request"
	"github.com/iota-uz/servicedesk/pkg/livequery"
	"github.com/iota-uz/servicedesk/pkg/serrors"
)

const (
	ScopeDefault = "default"
	ScopeMine    = "mine"
	ScopeAll     = "all"
)

var ErrUnknownScope = serrors.NewError("UNKNOWN_SCOPE", "unknown watch scope", "ServiceDesk.Errors.UnknownScope")

// Watch identifies one live view. Equal values select the same view, which
// lets a livequery.Binding keep its subscription across repeated requests.
type Watch struct {
	Scope  string
	ID     string
	Filter request.Filter
}

type LiveService struct {
	requests *RequestService
	repo     request.Repository
	feed     *livequery.Feed
}

func NewLiveService(requests *RequestService, repo request.Repository, feed *livequery.Feed) *LiveService {
	return &LiveService{
		requests: requests,
		repo:     repo,
		feed:     feed,
	}
}

// WatchRecords keeps the caller bound to the filtered record list of scope.
// A failed fetch ends the subscription and is reported to the notification
// channel.
func (s *LiveService) WatchRecords(ctx context.Context, scope string, filter request.Filter) (*livequery.Subscription[[]request.Request], error) {
	q, err := s.requests.QueryForScope(ctx, scope)
	if err != nil {
		s.requests.report(ctx, OpWatchRecords, uuid.Nil, err)
		return nil, err
	}
	loc := s.requests.Location()
	if _, err := filter.Apply(nil, loc); err != nil {
		return nil, err
	}
	fetch := func(ctx context.Context) ([]request.Request, error) {
		records, err := s.repo.List(ctx, q)
		if err != nil {
			return nil, err
		}
		return filter.Apply(records, loc)
	}
	return livequery.Subscribe(ctx, s.feed, livequery.MatchCollection(request.Collection), fetch,
		livequery.WithName(OpWatchRecords),
		livequery.WithErrorHandler(func(err error) {
			s.requests.report(ctx, OpWatchRecords, uuid.Nil, err)
		}),
	), nil
}

// WatchRecord keeps the caller bound to one record.
func (s *LiveService) WatchRecord(ctx context.Context, id uuid.UUID) (*livequery.Subscription[request.Request], error) {
	return subscribeRecord(ctx, s, id, func(r request.Request) request.Request { return r })
}

// Open serves a livequery.Binding. A watch on a single record yields a list
// of one element so both views share a snapshot type.
func (s *LiveService) Open(ctx context.Context, w Watch) (*livequery.Subscription[[]request.Request], error) {
	if w.ID == "" {
		return s.WatchRecords(ctx, w.Scope, w.Filter)
	}
	id, err := uuid.Parse(w.ID)
	if err != nil {
		return nil, serrors.ValidationErrors{
			"id": serrors.NewFieldError("id", "VALIDATION_UUID", "id must be a UUID", "ValidationErrors.uuid"),
		}
	}
	return subscribeRecord(ctx, s, id, func(r request.Request) []request.Request { return []request.Request{r} })
}

// NewBinding returns a per-connection binding over Open.
func (s *LiveService) NewBinding() *livequery.Binding[Watch, []request.Request] {
	return livequery.NewBinding(s.Open)
}

// subscribeRecord checks access once up front so an unknown or foreign id
// fails the call instead of producing a failed first snapshot.
func subscribeRecord[T any](ctx context.Context, s *LiveService, id uuid.UUID, wrap func(request.Request) T) (*livequery.Subscription[T], error) {
	if _, err := s.requests.Get(ctx, id); err != nil {
		s.requests.report(ctx, OpWatchRecord, id, err)
		return nil, err
	}
	fetch := func(ctx context.Context) (T, error) {
		r, err := s.requests.Get(ctx, id)
		if err != nil {
			var zero T
			return zero, err
		}
		return wrap(r), nil
	}
	return livequery.Subscribe(ctx, s.feed, livequery.MatchDocument(request.Collection, id.String()), fetch,
		livequery.WithName(OpWatchRecord),
		livequery.WithErrorHandler(func(err error) {
			s.requests.report(ctx, OpWatchRecord, id, err)
		}),
	), nil
}
