package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iota-uz/servicedesk/modules/servicedesk/domain/aggregates/request"
	"github.com/iota-uz/servicedesk/modules/servicedesk/permissions"
	"github.com/iota-uz/servicedesk/pkg/eventbus"
	"github.com/iota-uz/servicedesk/pkg/notify"
)

// Operation names used in notifications and metrics.
const (
	OpSubmit       = "submit"
	OpTransition   = "transition"
	OpComplete     = "complete"
	OpWatchRecords = "watch_records"
	OpWatchRecord  = "watch_record"
	OpRevenue      = "revenue"
	OpExport       = "export"
)

const loggerComponent = "servicedesk"

type RequestServiceOption func(*RequestService)

// WithLocation sets the zone that decides "today" and filter day bounds.
func WithLocation(loc *time.Location) RequestServiceOption {
	return func(s *RequestService) {
		if loc != nil {
			s.location = loc
		}
	}
}

func WithClock(now func() time.Time) RequestServiceOption {
	return func(s *RequestService) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(logger *logrus.Logger) RequestServiceOption {
	return func(s *RequestService) {
		if logger != nil {
			s.logger = logger.WithField("component", loggerComponent)
		}
	}
}

type RequestService struct {
	repo       request.Repository
	publisher  eventbus.EventBus
	notifier   *notify.Channel
	authorizer Authorizer
	location   *time.Location
	now        func() time.Time
	logger     *logrus.Entry
	writes     sync.WaitGroup
}

func NewRequestService(
	repo request.Repository,
	publisher eventbus.EventBus,
	notifier *notify.Channel,
	authorizer Authorizer,
	opts ...RequestServiceOption,
) *RequestService {
	s := &RequestService{
		repo:       repo,
		publisher:  publisher,
		notifier:   notifier,
		authorizer: authorizer,
		location:   time.UTC,
		now:        time.Now,
		logger:     logrus.WithField("component", loggerComponent),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RequestService) Location() *time.Location { return s.location }

func (s *RequestService) Now() time.Time { return s.now() }

func (s *RequestService) today() time.Time {
	return s.now().In(s.location)
}

// report routes a failure to the notification channel.
func (s *RequestService) report(ctx context.Context, op string, id uuid.UUID, err error) {
	subject := ""
	if id != uuid.Nil {
		subject = id.String()
	}
	if s.notifier != nil {
		s.notifier.Report(ctx, op, subject, err)
	}
	s.logger.WithFields(logrus.Fields{
		"operation": op,
		"subject":   subject,
	}).WithError(err).Warn("service request operation failed")
}

func (s *RequestService) publish(ctx context.Context, ev any) {
	if s.publisher != nil {
		s.publisher.Publish(ctx, ev)
	}
}

func startSpan(ctx context.Context, name string, id uuid.UUID) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{}
	if id != uuid.Nil {
		attrs = append(attrs, attribute.String("servicedesk.request_id", id.String()))
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Submission is an accepted submit whose write may still be in flight.
type Submission struct {
	record request.Request
	done   chan struct{}
	stored request.Request
	err    error
}

// Record is the optimistic copy, available before the write completes.
func (s *Submission) Record() request.Request { return s.record }

func (s *Submission) Done() <-chan struct{} { return s.done }

// Wait blocks until the write completes or ctx ends. Abandoning the wait does
// not cancel the write.
func (s *Submission) Wait(ctx context.Context) (request.Request, error) {
	select {
	case <-s.done:
		return s.stored, s.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Submit validates dto and starts the write of a new Pending record owned by
// the caller. Validation errors are returned and never reach the store.
func (s *RequestService) Submit(ctx context.Context, dto *request.SubmitDTO) (*Submission, error) {
	ctx, span := startSpan(ctx, "servicedesk.Submit", uuid.Nil)

	if verrs := dto.Validate(s.today()); verrs != nil {
		observe(OpSubmit, verrs)
		endSpan(span, nil)
		return nil, verrs
	}
	actor, err := authorize(ctx, s.authorizer, RequestsAuthzObject, permissions.ActionSubmit)
	if err != nil {
		s.report(ctx, OpSubmit, uuid.Nil, err)
		observe(OpSubmit, err)
		endSpan(span, err)
		return nil, err
	}

	// The store stamps its own time on write.
	entity := dto.ToEntity(actor.ID).Stamp(s.now())
	span.SetAttributes(attribute.String("servicedesk.request_id", entity.ID().String()))
	sub := &Submission{record: entity, done: make(chan struct{})}

	writeCtx := context.WithoutCancel(ctx)
	s.writes.Add(1)
	go func() {
		defer s.writes.Done()
		defer close(sub.done)

		stored, err := s.repo.Create(writeCtx, entity)
		observe(OpSubmit, err)
		endSpan(span, err)
		if err != nil {
			s.report(writeCtx, OpSubmit, entity.ID(), err)
			sub.err = err
			return
		}
		sub.stored = stored
		s.publish(writeCtx, &request.SubmittedEvent{Request: stored, ActorID: actor.ID})
	}()
	return sub, nil
}

// Drain waits for in-flight submit writes.
func (s *RequestService) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.writes.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TransitionStatus moves a record to status to along a policy edge.
// Completion needs billing and goes through CompleteWithBilling.
func (s *RequestService) TransitionStatus(ctx context.Context, id uuid.UUID, to request.Status) (request.Request, error) {
	ctx, span := startSpan(ctx, "servicedesk.TransitionStatus", id)
	span.SetAttributes(attribute.String("servicedesk.to", string(to)))
	updated, err := s.transition(ctx, id, to)
	observe(OpTransition, err)
	endSpan(span, err)
	return updated, err
}

func (s *RequestService) transition(ctx context.Context, id uuid.UUID, to request.Status) (request.Request, error) {
	actor, err := authorize(ctx, s.authorizer, RequestsAuthzObject, permissions.ActionTransition)
	if err != nil {
		s.report(ctx, OpTransition, id, err)
		return nil, err
	}
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.report(ctx, OpTransition, id, err)
		return nil, err
	}
	if err := request.CanTransition(current, to); err != nil {
		return nil, err
	}
	if to == request.StatusCompleted {
		return nil, request.BillingRequired(current)
	}
	updated, err := s.repo.UpdateStatus(ctx, id, current.Status(), to)
	if err != nil {
		s.report(ctx, OpTransition, id, err)
		return nil, err
	}
	s.publish(ctx, &request.StatusChangedEvent{
		Request: updated,
		From:    current.Status(),
		To:      to,
		ActorID: actor.ID,
		At:      updated.UpdatedAt(),
	})
	return updated, nil
}

// CompleteWithBilling validates the billing, then moves the record to
// Completed storing cost and notes.
func (s *RequestService) CompleteWithBilling(ctx context.Context, id uuid.UUID, dto *request.CompleteDTO) (request.Request, error) {
	ctx, span := startSpan(ctx, "servicedesk.CompleteWithBilling", id)
	updated, err := s.complete(ctx, id, dto)
	observe(OpComplete, err)
	endSpan(span, err)
	return updated, err
}

func (s *RequestService) complete(ctx context.Context, id uuid.UUID, dto *request.CompleteDTO) (request.Request, error) {
	if verrs := dto.Validate(); verrs != nil {
		return nil, verrs
	}
	actor, err := authorize(ctx, s.authorizer, RequestsAuthzObject, permissions.ActionComplete)
	if err != nil {
		s.report(ctx, OpComplete, id, err)
		return nil, err
	}
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.report(ctx, OpComplete, id, err)
		return nil, err
	}
	if err := request.CanComplete(current, dto.Cost); err != nil {
		return nil, err
	}
	updated, err := s.repo.Complete(ctx, id, current.Status(), dto.Cost, dto.InvoiceNotes)
	if err != nil {
		s.report(ctx, OpComplete, id, err)
		return nil, err
	}
	s.publish(ctx, &request.CompletedEvent{
		Request: updated,
		From:    current.Status(),
		ActorID: actor.ID,
	})
	return updated, nil
}

func (s *RequestService) Accept(ctx context.Context, id uuid.UUID) (request.Request, error) {
	return s.TransitionStatus(ctx, id, request.StatusScheduled)
}

func (s *RequestService) Decline(ctx context.Context, id uuid.UUID) (request.Request, error) {
	return s.TransitionStatus(ctx, id, request.StatusDeclined)
}

func (s *RequestService) StartWork(ctx context.Context, id uuid.UUID) (request.Request, error) {
	return s.TransitionStatus(ctx, id, request.StatusInProgress)
}

func (s *RequestService) AwaitParts(ctx context.Context, id uuid.UUID) (request.Request, error) {
	return s.TransitionStatus(ctx, id, request.StatusAwaitingParts)
}

func (s *RequestService) Cancel(ctx context.Context, id uuid.UUID) (request.Request, error) {
	return s.TransitionStatus(ctx, id, request.StatusCancelled)
}

func (s *RequestService) ConfirmPayment(ctx context.Context, id uuid.UUID) (request.Request, error) {
	return s.TransitionStatus(ctx, id, request.StatusPaid)
}

// QueryForCaller returns the record set the caller may see: everything for
// admins, own records for customers.
func (s *RequestService) QueryForCaller(ctx context.Context) (request.Query, error) {
	actor, err := authorize(ctx, s.authorizer, RequestsAuthzObject, permissions.ActionView)
	if err != nil {
		return request.Query{}, err
	}
	if actor.IsAdmin() {
		if _, err := authorize(ctx, s.authorizer, RequestsAuthzObject, permissions.ActionViewAll); err != nil {
			return request.Query{}, err
		}
		return request.AllRequests(), nil
	}
	return request.ForCustomer(actor.ID), nil
}

// QueryForScope resolves an explicit scope. "mine" is always the caller's own
// records; "all" needs view_all.
func (s *RequestService) QueryForScope(ctx context.Context, scope string) (request.Query, error) {
	actor, err := authorize(ctx, s.authorizer, RequestsAuthzObject, permissions.ActionView)
	if err != nil {
		return request.Query{}, err
	}
	switch scope {
	case "", ScopeDefault:
		return s.QueryForCaller(ctx)
	case ScopeMine:
		return request.ForCustomer(actor.ID), nil
	case ScopeAll:
		if _, err := authorize(ctx, s.authorizer, RequestsAuthzObject, permissions.ActionViewAll); err != nil {
			return request.Query{}, err
		}
		return request.AllRequests(), nil
	default:
		return request.Query{}, ErrUnknownScope
	}
}

// Get returns a record the caller may see. Customers get
// request.ErrPermissionDenied for records they do not own.
func (s *RequestService) Get(ctx context.Context, id uuid.UUID) (request.Request, error) {
	actor, err := authorize(ctx, s.authorizer, RequestsAuthzObject, permissions.ActionView)
	if err != nil {
		return nil, err
	}
	entity, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && entity.CustomerID() != actor.ID {
		return nil, request.ErrPermissionDenied
	}
	return entity, nil
}

// List returns the caller's visible records narrowed by filter, newest first.
func (s *RequestService) List(ctx context.Context, filter request.Filter) ([]request.Request, error) {
	q, err := s.QueryForCaller(ctx)
	if err != nil {
		return nil, err
	}
	records, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, err
	}
	return filter.Apply(records, s.location)
}

// Catalog returns the device categories offered on the submit form.
func (s *RequestService) Catalog(ctx context.Context) ([]request.Variant, error) {
	if _, err := authorize(ctx, s.authorizer, CatalogAuthzObject, permissions.ActionView); err != nil {
		return nil, err
	}
	return request.Catalog(), nil
}
