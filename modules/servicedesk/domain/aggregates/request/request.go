package request

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Collection names the record set in change feeds and the legacy document store.
const Collection = "serviceRequests"

type Status string

const (
	StatusPending       Status = "Pending"
	StatusScheduled     Status = "Scheduled"
	StatusDeclined      Status = "Declined"
	StatusInProgress    Status = "In Progress"
	StatusAwaitingParts Status = "Awaiting Parts"
	StatusCompleted     Status = "Completed"
	StatusCancelled     Status = "Cancelled"
	StatusPaid          Status = "Paid"
)

var Statuses = []Status{
	StatusPending,
	StatusScheduled,
	StatusDeclined,
	StatusInProgress,
	StatusAwaitingParts,
	StatusCompleted,
	StatusCancelled,
	StatusPaid,
}

func statusKey(v string) string {
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(strings.ToLower(strings.TrimSpace(v)))
}

// ParseStatus accepts the stored literal as well as compact spellings such
// as "InProgress" or "awaiting_parts".
func ParseStatus(v string) (Status, bool) {
	key := statusKey(v)
	for _, s := range Statuses {
		if statusKey(string(s)) == key {
			return s, true
		}
	}
	return "", false
}

func (s Status) IsTerminal() bool {
	switch s {
	case StatusDeclined, StatusCancelled, StatusPaid:
		return true
	}
	return false
}

func (s Status) IsActive() bool {
	switch s {
	case StatusPending, StatusScheduled, StatusInProgress, StatusAwaitingParts:
		return true
	}
	return false
}

type Request interface {
	ID() uuid.UUID
	CustomerID() string
	CustomerName() string
	CustomerEmail() string
	Category() Category
	Brand() string
	OSVersionOrVendor() string
	IssueDescription() string
	ErrorMessages() string
	AppointmentDate() (time.Time, bool)
	Status() Status
	Cost() (decimal.Decimal, bool)
	InvoiceNotes() string
	SubmittedAt() time.Time
	UpdatedAt() time.Time

	WithStatus(status Status, at time.Time) Request
	Complete(cost decimal.Decimal, notes string, at time.Time) Request
	Stamp(at time.Time) Request
}

type serviceRequest struct {
	id                uuid.UUID
	customerID        string
	customerName      string
	customerEmail     string
	category          Category
	brand             string
	osVersionOrVendor string
	issueDescription  string
	errorMessages     string
	appointmentDate   *time.Time
	status            Status
	cost              decimal.NullDecimal
	invoiceNotes      string
	submittedAt       time.Time
	updatedAt         time.Time
}

// New builds a Pending record with a fresh id.
func New(
	customerID, customerName, customerEmail string,
	category Category,
	brand, osVersionOrVendor, issueDescription string,
	opts ...Option,
) Request {
	r := &serviceRequest{
		id:                uuid.New(),
		customerID:        customerID,
		customerName:      customerName,
		customerEmail:     customerEmail,
		category:          category,
		brand:             brand,
		osVersionOrVendor: osVersionOrVendor,
		issueDescription:  issueDescription,
		status:            StatusPending,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type Option func(*serviceRequest)

func WithID(id uuid.UUID) Option {
	return func(r *serviceRequest) {
		if id != uuid.Nil {
			r.id = id
		}
	}
}

func WithErrorMessages(v string) Option {
	return func(r *serviceRequest) { r.errorMessages = v }
}

// WithAppointmentDate keeps only the calendar day of t.
func WithAppointmentDate(t time.Time) Option {
	return func(r *serviceRequest) {
		if t.IsZero() {
			r.appointmentDate = nil
			return
		}
		d := DateOf(t)
		r.appointmentDate = &d
	}
}

// WithStatus is meant for hydration from storage only.
func WithStatus(s Status) Option {
	return func(r *serviceRequest) { r.status = s }
}

func WithBilling(cost decimal.Decimal, notes string) Option {
	return func(r *serviceRequest) {
		r.cost = decimal.NullDecimal{Decimal: cost, Valid: true}
		r.invoiceNotes = notes
	}
}

func WithSubmittedAt(t time.Time) Option {
	return func(r *serviceRequest) { r.submittedAt = t }
}

func WithUpdatedAt(t time.Time) Option {
	return func(r *serviceRequest) { r.updatedAt = t }
}

// DateOf returns midnight UTC of t's calendar day in t's own location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (r *serviceRequest) ID() uuid.UUID             { return r.id }
func (r *serviceRequest) CustomerID() string        { return r.customerID }
func (r *serviceRequest) CustomerName() string      { return r.customerName }
func (r *serviceRequest) CustomerEmail() string     { return r.customerEmail }
func (r *serviceRequest) Category() Category        { return r.category }
func (r *serviceRequest) Brand() string             { return r.brand }
func (r *serviceRequest) OSVersionOrVendor() string { return r.osVersionOrVendor }
func (r *serviceRequest) IssueDescription() string  { return r.issueDescription }
func (r *serviceRequest) ErrorMessages() string     { return r.errorMessages }
func (r *serviceRequest) Status() Status            { return r.status }
func (r *serviceRequest) InvoiceNotes() string      { return r.invoiceNotes }
func (r *serviceRequest) SubmittedAt() time.Time    { return r.submittedAt }
func (r *serviceRequest) UpdatedAt() time.Time      { return r.updatedAt }

func (r *serviceRequest) AppointmentDate() (time.Time, bool) {
	if r.appointmentDate == nil {
		return time.Time{}, false
	}
	return *r.appointmentDate, true
}

func (r *serviceRequest) Cost() (decimal.Decimal, bool) {
	return r.cost.Decimal, r.cost.Valid
}

func (r *serviceRequest) clone() *serviceRequest {
	cp := *r
	if r.appointmentDate != nil {
		d := *r.appointmentDate
		cp.appointmentDate = &d
	}
	return &cp
}

func (r *serviceRequest) WithStatus(status Status, at time.Time) Request {
	cp := r.clone()
	cp.status = status
	cp.updatedAt = at
	return cp
}

// Complete sets billing on the first completion only; later calls keep the
// original cost and notes.
func (r *serviceRequest) Complete(cost decimal.Decimal, notes string, at time.Time) Request {
	cp := r.clone()
	cp.status = StatusCompleted
	cp.updatedAt = at
	if !cp.cost.Valid {
		cp.cost = decimal.NullDecimal{Decimal: cost, Valid: true}
		cp.invoiceNotes = notes
	}
	return cp
}

// Stamp sets both store timestamps, as done on insert.
func (r *serviceRequest) Stamp(at time.Time) Request {
	cp := r.clone()
	cp.submittedAt = at
	cp.updatedAt = at
	return cp
}
