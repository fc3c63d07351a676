package request

import (
	"errors"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/iota-uz/servicedesk/pkg/composables"
	"github.com/iota-uz/servicedesk/pkg/serrors"
)

var (
	ErrInvalidTransition = serrors.NewError("INVALID_TRANSITION", "transition not allowed", "ServiceDesk.Errors.InvalidTransition")
	ErrGuardFailed       = serrors.NewError("TRANSITION_GUARD_FAILED", "transition guard failed", "ServiceDesk.Errors.GuardFailed")
)

type Trigger string

const (
	TriggerAccept         Trigger = "accept"
	TriggerDecline        Trigger = "decline"
	TriggerStartWork      Trigger = "start_work"
	TriggerAwaitParts     Trigger = "await_parts"
	TriggerComplete       Trigger = "complete"
	TriggerConfirmPayment Trigger = "confirm_payment"
	TriggerCancel         Trigger = "cancel"
)

// Violation describes a rejected transition. It unwraps to ErrInvalidTransition
// or ErrGuardFailed.
type Violation struct {
	From   Status
	To     Status
	Reason string
	kind   error
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s -> %s: %s", v.From, v.To, v.Reason)
}

func (v *Violation) Unwrap() error { return v.kind }

type Transition struct {
	from    []Status
	to      Status
	trigger Trigger
	role    composables.Role
	guard   func(Request) string
}

func (t Transition) From() []Status         { return slices.Clone(t.from) }
func (t Transition) To() Status             { return t.to }
func (t Transition) Trigger() Trigger       { return t.trigger }
func (t Transition) Role() composables.Role { return t.role }

var activeStatuses = []Status{StatusPending, StatusScheduled, StatusInProgress, StatusAwaitingParts}

func requireAppointment(r Request) string {
	if _, ok := r.AppointmentDate(); !ok {
		return "no appointment date requested"
	}
	return ""
}

var transitions = []Transition{
	{from: []Status{StatusPending}, to: StatusScheduled, trigger: TriggerAccept, role: composables.RoleAdmin, guard: requireAppointment},
	{from: []Status{StatusPending}, to: StatusDeclined, trigger: TriggerDecline, role: composables.RoleAdmin, guard: requireAppointment},
	{from: []Status{StatusPending, StatusScheduled, StatusAwaitingParts}, to: StatusInProgress, trigger: TriggerStartWork, role: composables.RoleAdmin},
	{from: []Status{StatusInProgress}, to: StatusAwaitingParts, trigger: TriggerAwaitParts, role: composables.RoleAdmin},
	{from: activeStatuses, to: StatusCompleted, trigger: TriggerComplete, role: composables.RoleAdmin},
	{from: []Status{StatusCompleted}, to: StatusPaid, trigger: TriggerConfirmPayment, role: composables.RoleAdmin},
	{from: activeStatuses, to: StatusCancelled, trigger: TriggerCancel, role: composables.RoleAdmin},
}

// Transitions returns the lifecycle edge table.
func Transitions() []Transition {
	return slices.Clone(transitions)
}

func TransitionTo(to Status) (Transition, bool) {
	for _, t := range transitions {
		if t.to == to {
			return t, true
		}
	}
	return Transition{}, false
}

// CanTransition checks the edge and its guard. Moving to the current status
// is not an edge.
func CanTransition(r Request, to Status) error {
	from := r.Status()
	t, ok := TransitionTo(to)
	if !ok || !slices.Contains(t.from, from) {
		reason := "no such edge"
		if from.IsTerminal() {
			reason = "record is in a terminal status"
		} else if from == to {
			reason = "record already has this status"
		}
		return &Violation{From: from, To: to, Reason: reason, kind: ErrInvalidTransition}
	}
	if t.guard != nil {
		if reason := t.guard(r); reason != "" {
			return &Violation{From: from, To: to, Reason: reason, kind: ErrGuardFailed}
		}
	}
	return nil
}

// CanComplete adds the billing guard to the Completed edge.
func CanComplete(r Request, cost decimal.Decimal) error {
	if err := CanTransition(r, StatusCompleted); err != nil {
		return err
	}
	if !cost.IsPositive() {
		return &Violation{From: r.Status(), To: StatusCompleted, Reason: "cost must be positive", kind: ErrGuardFailed}
	}
	return nil
}

// AllowedTransitions lists every status r may move to, in table order.
func AllowedTransitions(r Request) []Status {
	var out []Status
	for _, t := range transitions {
		if CanTransition(r, t.to) == nil {
			out = append(out, t.to)
		}
	}
	return out
}

// BillingRequired rejects a plain status change to Completed.
func BillingRequired(r Request) error {
	return &Violation{From: r.Status(), To: StatusCompleted, Reason: "completion requires billing", kind: ErrGuardFailed}
}

func IsViolation(err error) bool {
	return errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrGuardFailed)
}
