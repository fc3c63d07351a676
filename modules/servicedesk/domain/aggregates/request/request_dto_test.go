package request_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/servicedesk/modules/servicedesk/domain/aggregates/request"
)

func validSubmit() request.SubmitDTO {
	return request.SubmitDTO{
		CustomerName:      "Jane Doe",
		CustomerEmail:     "jane@x.com",
		DeviceCategory:    "Laptop",
		Brand:             "Dell",
		OSVersionOrVendor: "Windows 11",
		IssueDescription:  "Screen flickers after waking from sleep",
	}
}

func TestSubmitDTO_Printer(t *testing.T) {
	dto := request.SubmitDTO{
		CustomerName:     "Jane Doe",
		CustomerEmail:    "jane@x.com",
		DeviceCategory:   "Printer",
		Brand:            "HP",
		IssueDescription: "Printer jams every third page consistently",
	}
	require.Nil(t, dto.Validate(now))
	require.Equal(t, request.NotApplicable, dto.OSVersionOrVendor)

	r := dto.ToEntity("cust-1")
	require.Equal(t, request.StatusPending, r.Status())
	require.Equal(t, "N/A", r.OSVersionOrVendor())
	_, hasCost := r.Cost()
	require.False(t, hasCost)
}

func TestSubmitDTO_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *request.SubmitDTO)
		field  string
	}{
		{"short name", func(d *request.SubmitDTO) { d.CustomerName = "J" }, "customerName"},
		{"bad email", func(d *request.SubmitDTO) { d.CustomerEmail = "jane-at-x" }, "customerEmail"},
		{"unknown category", func(d *request.SubmitDTO) { d.DeviceCategory = "Phone" }, "deviceCategory"},
		{"missing brand", func(d *request.SubmitDTO) { d.Brand = "" }, "brand"},
		{"brand of another category", func(d *request.SubmitDTO) { d.Brand = "Canon" }, "brand"},
		{"short os", func(d *request.SubmitDTO) { d.OSVersionOrVendor = "W" }, "osVersionOrVendor"},
		{"short issue", func(d *request.SubmitDTO) { d.IssueDescription = "broken" }, "issueDescription"},
		{"bad date", func(d *request.SubmitDTO) { d.RequestedAppointmentDate = "03/06/2024" }, "requestedAppointmentDate"},
		{"past date", func(d *request.SubmitDTO) { d.RequestedAppointmentDate = "2024-06-02" }, "requestedAppointmentDate"},
		{"antivirus with an os instead of a vendor", func(d *request.SubmitDTO) {
			d.DeviceCategory = "Software"
			d.Brand = request.BrandAntivirus
		}, "osVersionOrVendor"},
		{"antivirus unknown vendor", func(d *request.SubmitDTO) {
			d.DeviceCategory = "Software"
			d.Brand = request.BrandAntivirus
			d.OSVersionOrVendor = "Norton"
		}, "osVersionOrVendor"},
		{"antivirus without vendor", func(d *request.SubmitDTO) {
			d.DeviceCategory = "Software"
			d.Brand = request.BrandAntivirus
			d.OSVersionOrVendor = ""
		}, "osVersionOrVendor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dto := validSubmit()
			tt.mutate(&dto)
			errs := dto.Validate(now)
			require.NotNil(t, errs)
			require.Contains(t, errs.Fields(), tt.field)
		})
	}
}

func TestSubmitDTO_AcceptsTodayAndNestedVendor(t *testing.T) {
	dto := validSubmit()
	dto.RequestedAppointmentDate = "2024-06-03"
	require.Nil(t, dto.Validate(now))

	r := dto.ToEntity("cust-1")
	date, ok := r.AppointmentDate()
	require.True(t, ok)
	require.Equal(t, time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), date)

	sw := request.SubmitDTO{
		CustomerName:      "Ravi Kumar",
		CustomerEmail:     "ravi@x.com",
		DeviceCategory:    "Software",
		Brand:             request.BrandAntivirus,
		OSVersionOrVendor: "McAfee",
		IssueDescription:  "Subscription expired and scans no longer run",
	}
	require.Nil(t, sw.Validate(now))
	require.Equal(t, "McAfee", sw.ToEntity("cust-1").OSVersionOrVendor())

	// Brands without nested vendors keep a free-form OS value.
	other := sw
	other.Brand = "OS Installation"
	other.OSVersionOrVendor = "Ubuntu 24.04"
	require.Nil(t, other.Validate(now))
}

func TestCompleteDTO_Validate(t *testing.T) {
	tests := []struct {
		cost  string
		valid bool
	}{
		{"1500.00", true},
		{"0.01", true},
		{"0", false},
		{"-10", false},
		{"12.345", false},
	}
	for _, tt := range tests {
		t.Run(tt.cost, func(t *testing.T) {
			dto := request.CompleteDTO{Cost: decimal.RequireFromString(tt.cost)}
			errs := dto.Validate()
			if tt.valid {
				require.Nil(t, errs)
				return
			}
			require.Contains(t, errs.Fields(), "cost")
		})
	}
}

func TestCatalog(t *testing.T) {
	variants := request.Catalog()
	require.Len(t, variants, 4)
	require.Equal(t, request.CategoryLaptop, variants[0].Category)
	require.Contains(t, variants[3].Vendors[request.BrandAntivirus], "NPAV")

	variants[0].Brands[0] = "mutated"
	v, ok := request.VariantOf(request.CategoryLaptop)
	require.True(t, ok)
	require.Equal(t, "HP", v.Brands[0])
	require.False(t, v.HasBrand("Canon"))
}
