package request

import (
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/form"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/iota-uz/servicedesk/pkg/serrors"
)

var filterDecoder = form.NewDecoder()

// Filter narrows a record list the way the admin records screen does.
// Zero fields do not constrain.
type Filter struct {
	Search   string `form:"q" json:"q,omitempty"`
	Fuzzy    bool   `form:"fuzzy" json:"fuzzy,omitempty"`
	Category string `form:"category" json:"category,omitempty"`
	Brand    string `form:"brand" json:"brand,omitempty"`
	Status   string `form:"status" json:"status,omitempty"`
	From     string `form:"from" json:"from,omitempty"`
	To       string `form:"to" json:"to,omitempty"`
}

func ParseFilter(values url.Values) (Filter, error) {
	var f Filter
	if err := filterDecoder.Decode(&f, values); err != nil {
		return Filter{}, err
	}
	return f, nil
}

type compiledFilter struct {
	search   string
	fuzzy    bool
	category Category
	brand    string
	status   Status
	from     time.Time
	to       time.Time
}

// compile resolves the status spelling and the date bounds in loc. From is
// inclusive from start of day; To is inclusive through end of day.
func (f Filter) compile(loc *time.Location) (compiledFilter, serrors.ValidationErrors) {
	errs := serrors.ValidationErrors{}
	c := compiledFilter{
		search:   strings.TrimSpace(f.Search),
		fuzzy:    f.Fuzzy,
		category: Category(strings.TrimSpace(f.Category)),
		brand:    strings.TrimSpace(f.Brand),
	}
	if v := strings.TrimSpace(f.Status); v != "" {
		s, ok := ParseStatus(v)
		if !ok {
			errs["status"] = serrors.NewFieldError("status", "VALIDATION_ONEOF", "unknown status", "ValidationErrors.oneof")
		}
		c.status = s
	}
	if v := strings.TrimSpace(f.From); v != "" {
		t, err := time.ParseInLocation(DateLayout, v, loc)
		if err != nil {
			errs["from"] = serrors.NewFieldError("from", "VALIDATION_DATETIME", "from must be YYYY-MM-DD", "ValidationErrors.datetime")
		}
		c.from = t
	}
	if v := strings.TrimSpace(f.To); v != "" {
		t, err := time.ParseInLocation(DateLayout, v, loc)
		if err != nil {
			errs["to"] = serrors.NewFieldError("to", "VALIDATION_DATETIME", "to must be YYYY-MM-DD", "ValidationErrors.datetime")
		}
		c.to = t.AddDate(0, 0, 1)
	}
	if len(errs) > 0 {
		return compiledFilter{}, errs
	}
	return c, nil
}

func (c compiledFilter) textMatch(r Request) bool {
	if c.search == "" {
		return true
	}
	fields := []string{r.ID().String(), r.CustomerName(), r.CustomerEmail()}
	for _, field := range fields {
		if c.fuzzy {
			if fuzzy.MatchNormalizedFold(c.search, field) {
				return true
			}
			continue
		}
		if strings.Contains(strings.ToLower(field), strings.ToLower(c.search)) {
			return true
		}
	}
	return false
}

func (c compiledFilter) match(r Request) bool {
	if c.category != "" && r.Category() != c.category {
		return false
	}
	if c.brand != "" && r.Brand() != c.brand {
		return false
	}
	if c.status != "" && r.Status() != c.status {
		return false
	}
	if !c.from.IsZero() && r.SubmittedAt().Before(c.from) {
		return false
	}
	if !c.to.IsZero() && !r.SubmittedAt().Before(c.to) {
		return false
	}
	return c.textMatch(r)
}

// Apply returns the matching records ordered newest first.
func (f Filter) Apply(records []Request, loc *time.Location) ([]Request, error) {
	if loc == nil {
		loc = time.UTC
	}
	c, errs := f.compile(loc)
	if errs != nil {
		return nil, errs
	}
	out := make([]Request, 0, len(records))
	for _, r := range records {
		if c.match(r) {
			out = append(out, r)
		}
	}
	SortNewestFirst(out)
	return out, nil
}

// SortNewestFirst orders by submittedAt desc, then id for a stable result.
func SortNewestFirst(records []Request) {
	slices.SortStableFunc(records, func(a, b Request) int {
		if c := b.SubmittedAt().Compare(a.SubmittedAt()); c != 0 {
			return c
		}
		return strings.Compare(a.ID().String(), b.ID().String())
	})
}
