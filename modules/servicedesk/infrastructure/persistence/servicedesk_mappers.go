package persistence

import (
	"database/sql"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iota-uz/servicedesk/modules/servicedesk/domain/aggregates/request"
)

// requestRow is the column set shared by the SQL stores.
type requestRow struct {
	ID                uuid.UUID
	CustomerID        string
	CustomerName      string
	CustomerEmail     string
	Category          string
	Brand             string
	OSVersionOrVendor string
	IssueDescription  string
	ErrorMessages     string
	AppointmentDate   *time.Time
	Status            string
	Cost              sql.NullString
	InvoiceNotes      string
	SubmittedAt       time.Time
	UpdatedAt         time.Time
}

func toDomainRequest(row requestRow) (request.Request, error) {
	status, ok := request.ParseStatus(row.Status)
	if !ok {
		return nil, gerrors.Errorf("stored status %q of %s is unknown", row.Status, row.ID)
	}
	opts := []request.Option{
		request.WithID(row.ID),
		request.WithStatus(status),
		request.WithErrorMessages(row.ErrorMessages),
		request.WithSubmittedAt(row.SubmittedAt),
		request.WithUpdatedAt(row.UpdatedAt),
	}
	if row.AppointmentDate != nil {
		opts = append(opts, request.WithAppointmentDate(*row.AppointmentDate))
	}
	if row.Cost.Valid {
		cost, err := decimal.NewFromString(row.Cost.String)
		if err != nil {
			return nil, gerrors.Wrapf(err, "stored cost of %s", row.ID)
		}
		opts = append(opts, request.WithBilling(cost, row.InvoiceNotes))
	}
	return request.New(
		row.CustomerID,
		row.CustomerName,
		row.CustomerEmail,
		request.Category(row.Category),
		row.Brand,
		row.OSVersionOrVendor,
		row.IssueDescription,
		opts...,
	), nil
}
