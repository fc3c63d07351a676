package request

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/iota-uz/servicedesk/pkg/constants"
	"github.com/iota-uz/servicedesk/pkg/serrors"
)

const DateLayout = "2006-01-02"

const maxInvoiceNotes = 2000

type SubmitDTO struct {
	CustomerName             string `json:"customerName" validate:"required,min=2"`
	CustomerEmail            string `json:"customerEmail" validate:"required,email"`
	DeviceCategory           string `json:"deviceCategory" validate:"required,oneof=Laptop Desktop Printer Software"`
	Brand                    string `json:"brand" validate:"required"`
	OSVersionOrVendor        string `json:"osVersionOrVendor" validate:"required,min=2"`
	IssueDescription         string `json:"issueDescription" validate:"required,min=20"`
	ErrorMessages            string `json:"errorMessages"`
	RequestedAppointmentDate string `json:"requestedAppointmentDate" validate:"omitempty,datetime=2006-01-02"`
}

func submitFieldLocaleKey(field string) string {
	switch field {
	case "CustomerName", "CustomerEmail", "DeviceCategory", "Brand",
		"OSVersionOrVendor", "IssueDescription", "RequestedAppointmentDate":
		return fmt.Sprintf("ServiceDesk.Fields.%s", field)
	default:
		return ""
	}
}

// Normalize trims input and fixes the OS field of categories that do not ask for it.
func (d *SubmitDTO) Normalize() {
	d.CustomerName = strings.TrimSpace(d.CustomerName)
	d.CustomerEmail = strings.TrimSpace(d.CustomerEmail)
	d.DeviceCategory = strings.TrimSpace(d.DeviceCategory)
	d.Brand = strings.TrimSpace(d.Brand)
	d.OSVersionOrVendor = strings.TrimSpace(d.OSVersionOrVendor)
	d.IssueDescription = strings.TrimSpace(d.IssueDescription)
	d.ErrorMessages = strings.TrimSpace(d.ErrorMessages)
	d.RequestedAppointmentDate = strings.TrimSpace(d.RequestedAppointmentDate)
	if v, ok := VariantOf(Category(d.DeviceCategory)); ok && !v.AsksOS {
		d.OSVersionOrVendor = NotApplicable
	}
}

// Validate normalizes d and checks it against today, the caller's calendar
// day. It returns nil when d is acceptable.
func (d *SubmitDTO) Validate(today time.Time) serrors.ValidationErrors {
	d.Normalize()

	errs := serrors.ValidationErrors{}
	if err := constants.Validate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			errs["_"] = serrors.NewError("VALIDATION_INTERNAL", err.Error(), "")
			return errs
		}
		errs = serrors.ProcessValidatorErrors(verrs, submitFieldLocaleKey)
	}
	if v, ok := VariantOf(Category(d.DeviceCategory)); ok {
		for field, e := range v.check(d.Brand, d.OSVersionOrVendor) {
			if _, exists := errs[field]; !exists {
				errs[field] = e
			}
		}
	}
	if _, exists := errs["requestedAppointmentDate"]; !exists && d.RequestedAppointmentDate != "" {
		date, _ := time.Parse(DateLayout, d.RequestedAppointmentDate)
		if date.Before(DateOf(today)) {
			errs["requestedAppointmentDate"] = serrors.NewFieldError(
				"requestedAppointmentDate", "VALIDATION_PAST_DATE",
				"requestedAppointmentDate must be today or later", "ValidationErrors.past_date",
			)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// ToEntity builds the Pending record owned by customerID. d must be valid.
func (d *SubmitDTO) ToEntity(customerID string) Request {
	opts := []Option{
		WithErrorMessages(d.ErrorMessages),
	}
	if d.RequestedAppointmentDate != "" {
		if date, err := time.Parse(DateLayout, d.RequestedAppointmentDate); err == nil {
			opts = append(opts, WithAppointmentDate(date))
		}
	}
	return New(
		customerID,
		d.CustomerName,
		d.CustomerEmail,
		Category(d.DeviceCategory),
		d.Brand,
		d.OSVersionOrVendor,
		d.IssueDescription,
		opts...,
	)
}

type CompleteDTO struct {
	Cost         decimal.Decimal `json:"cost"`
	InvoiceNotes string          `json:"invoiceNotes"`
}

func (d *CompleteDTO) Validate() serrors.ValidationErrors {
	d.InvoiceNotes = strings.TrimSpace(d.InvoiceNotes)
	errs := serrors.ValidationErrors{}
	switch {
	case !d.Cost.IsPositive():
		errs["cost"] = serrors.NewFieldError("cost", "VALIDATION_GT", "cost must be greater than 0", "ValidationErrors.gt")
	case !d.Cost.Equal(d.Cost.Round(2)):
		errs["cost"] = serrors.NewFieldError("cost", "VALIDATION_DECIMALS", "cost allows at most 2 decimal places", "ValidationErrors.decimals")
	}
	if len(d.InvoiceNotes) > maxInvoiceNotes {
		errs["invoiceNotes"] = serrors.NewFieldError("invoiceNotes", "VALIDATION_MAX", "invoiceNotes is too long", "ValidationErrors.max")
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}
