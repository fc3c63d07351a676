package viewmodels

import "time"

type Request struct {
	ID                       string    `json:"id"`
	CustomerID               string    `json:"customerId"`
	CustomerName             string    `json:"customerName"`
	CustomerEmail            string    `json:"customerEmail"`
	DeviceCategory           string    `json:"deviceCategory"`
	Brand                    string    `json:"brand"`
	OSVersionOrVendor        string    `json:"osVersionOrVendor"`
	IssueDescription         string    `json:"issueDescription"`
	ErrorMessages            string    `json:"errorMessages,omitempty"`
	RequestedAppointmentDate string    `json:"requestedAppointmentDate,omitempty"`
	Status                   string    `json:"status"`
	Cost                     string    `json:"cost,omitempty"`
	CostDisplay              string    `json:"costDisplay,omitempty"`
	InvoiceNotes             string    `json:"invoiceNotes,omitempty"`
	SubmittedAt              time.Time `json:"submittedAt"`
	UpdatedAt                time.Time `json:"updatedAt"`
	// AllowedTransitions is only filled for admins.
	AllowedTransitions []string `json:"allowedTransitions,omitempty"`
}

type RevenueDay struct {
	Day          string `json:"day"`
	Label        string `json:"label"`
	Total        string `json:"total"`
	TotalDisplay string `json:"totalDisplay"`
}

type Revenue struct {
	Currency     string         `json:"currency"`
	Total        string         `json:"total"`
	TotalDisplay string         `json:"totalDisplay"`
	Billed       int            `json:"billed"`
	ByDay        []RevenueDay   `json:"byDay"`
	ByStatus     map[string]int `json:"byStatus"`
}

type Watch struct {
	Scope  string       `json:"scope,omitempty"`
	ID     string       `json:"id,omitempty"`
	Filter *WatchFilter `json:"filter,omitempty"`
}

type WatchFilter struct {
	Search   string `json:"q,omitempty"`
	Fuzzy    bool   `json:"fuzzy,omitempty"`
	Category string `json:"category,omitempty"`
	Brand    string `json:"brand,omitempty"`
	Status   string `json:"status,omitempty"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
}

// Snapshot is the frame pushed to live clients on every refresh.
type Snapshot struct {
	Type    string     `json:"type"`
	State   string     `json:"state"`
	Version uint64     `json:"version"`
	At      time.Time  `json:"at"`
	Watch   Watch      `json:"watch"`
	Data    []*Request `json:"data"`
	Error   string     `json:"error,omitempty"`
}

type Notification struct {
	Type      string    `json:"type"`
	Kind      string    `json:"kind"`
	Operation string    `json:"operation"`
	Subject   string    `json:"subject,omitempty"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	At        time.Time `json:"at"`
}
