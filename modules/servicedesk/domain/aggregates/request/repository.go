package request

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Scope string

const (
	ScopeAll      Scope = "all"
	ScopeCustomer Scope = "customer"
)

// Query selects a live record list. Comparable values with equal Key select
// the same records.
type Query struct {
	Scope      Scope
	CustomerID string
}

func AllRequests() Query {
	return Query{Scope: ScopeAll}
}

func ForCustomer(customerID string) Query {
	return Query{Scope: ScopeCustomer, CustomerID: strings.TrimSpace(customerID)}
}

func (q Query) Key() string {
	if q.Scope == ScopeCustomer {
		return string(ScopeCustomer) + ":" + q.CustomerID
	}
	return string(ScopeAll)
}

func (q Query) Matches(r Request) bool {
	if q.Scope == ScopeCustomer {
		return r.CustomerID() == q.CustomerID
	}
	return true
}

// Repository stores records. Implementations stamp submittedAt and updatedAt
// with their own clock and announce every committed change on the feed they
// were built with.
type Repository interface {
	Create(ctx context.Context, r Request) (Request, error)
	GetByID(ctx context.Context, id uuid.UUID) (Request, error)
	// List returns the records selected by q, newest first.
	List(ctx context.Context, q Query) ([]Request, error)
	// UpdateStatus writes status only if the stored status still equals from,
	// and returns ErrConflict otherwise.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (Request, error)
	// Complete moves the record from the expected status to Completed and
	// stores the billing, under the same condition as UpdateStatus.
	Complete(ctx context.Context, id uuid.UUID, from Status, cost decimal.Decimal, notes string) (Request, error)
}
