package composables

import (
	"context"
	"errors"
	"strings"

	"github.com/iota-uz/servicedesk/pkg/constants"
)

var ErrNoActor = errors.New("no authenticated actor in context")

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
)

func ParseRole(v string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(v))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleCustomer:
		return RoleCustomer, true
	default:
		return "", false
	}
}

// Actor is the authenticated caller as asserted by the identity provider.
type Actor struct {
	ID    string
	Role  Role
	Name  string
	Email string
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, constants.ActorKey, actor)
}

func UseActor(ctx context.Context) (Actor, error) {
	actor, ok := ctx.Value(constants.ActorKey).(Actor)
	if !ok || actor.ID == "" {
		return Actor{}, ErrNoActor
	}
	return actor, nil
}
