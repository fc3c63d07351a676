package services

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iota-uz/servicedesk/modules/servicedesk/domain/aggregates/request"
	"github.com/iota-uz/servicedesk/modules/servicedesk/permissions"
	"github.com/iota-uz/servicedesk/pkg/money"
)

const (
	revenueWindow   = 30 * 24 * time.Hour
	revenueDayLabel = "Jan 2"
)

type DayRevenue struct {
	Day   time.Time
	Label string
	Total decimal.Decimal
}

type RevenueSummary struct {
	Currency string
	Total    decimal.Decimal
	// Billed counts the records that contribute to Total.
	Billed   int
	ByDay    []DayRevenue
	ByStatus map[request.Status]int
}

func (r RevenueSummary) DisplayTotal() string {
	return money.Format(r.Total, r.Currency)
}

// Summarize totals the cost of Completed and Paid records. Paid records stay
// in the total, so confirming a payment never lowers revenue. ByDay covers the
// window ending at now, grouped by the calendar day in loc on which the record
// was last updated, oldest first.
func Summarize(records []request.Request, now time.Time, loc *time.Location) RevenueSummary {
	summary := RevenueSummary{
		Currency: money.INR,
		Total:    decimal.Zero,
		ByStatus: make(map[request.Status]int, len(request.Statuses)),
	}
	for _, s := range request.Statuses {
		summary.ByStatus[s] = 0
	}
	since := now.Add(-revenueWindow)
	days := map[time.Time]decimal.Decimal{}
	for _, r := range records {
		summary.ByStatus[r.Status()]++
		if r.Status() != request.StatusCompleted && r.Status() != request.StatusPaid {
			continue
		}
		cost, ok := r.Cost()
		if !ok {
			continue
		}
		summary.Total = summary.Total.Add(cost)
		summary.Billed++
		if r.UpdatedAt().Before(since) {
			continue
		}
		day := request.DateOf(r.UpdatedAt().In(loc))
		days[day] = days[day].Add(cost)
	}
	for day, total := range days {
		summary.ByDay = append(summary.ByDay, DayRevenue{Day: day, Label: day.Format(revenueDayLabel), Total: total})
	}
	sort.Slice(summary.ByDay, func(i, j int) bool {
		return summary.ByDay[i].Day.Before(summary.ByDay[j].Day)
	})
	return summary
}

type RevenueService struct {
	requests *RequestService
	repo     request.Repository
}

func NewRevenueService(requests *RequestService, repo request.Repository) *RevenueService {
	return &RevenueService{requests: requests, repo: repo}
}

func (s *RevenueService) Summary(ctx context.Context) (RevenueSummary, error) {
	ctx, span := startSpan(ctx, "servicedesk.RevenueSummary", uuid.Nil)
	summary, err := s.summary(ctx)
	endSpan(span, err)
	return summary, err
}

func (s *RevenueService) summary(ctx context.Context) (RevenueSummary, error) {
	if _, err := authorize(ctx, s.requests.authorizer, RevenueAuthzObject, permissions.ActionView); err != nil {
		s.requests.report(ctx, OpRevenue, uuid.Nil, err)
		return RevenueSummary{}, err
	}
	records, err := s.repo.List(ctx, request.AllRequests())
	if err != nil {
		s.requests.report(ctx, OpRevenue, uuid.Nil, err)
		return RevenueSummary{}, err
	}
	return Summarize(records, s.requests.now(), s.requests.Location()), nil
}
