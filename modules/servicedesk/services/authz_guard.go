package services

import (
	"context"

	"github.com/iota-uz/servicedesk/modules/servicedesk/domain/aggregates/request"
	"github.com/iota-uz/servicedesk/modules/servicedesk/permissions"
	"github.com/iota-uz/servicedesk/pkg/authz"
	"github.com/iota-uz/servicedesk/pkg/composables"
)

var (
	RequestsAuthzObject = permissions.RequestsObject
	RevenueAuthzObject  = permissions.RevenueObject
	CatalogAuthzObject  = permissions.CatalogObject
)

// Authorizer is satisfied by *authz.Service.
type Authorizer interface {
	Authorize(ctx context.Context, req authz.Request) error
}

// authorize resolves the caller and checks action on object for its role.
// Anonymous callers are denied without consulting the policy.
func authorize(ctx context.Context, authorizer Authorizer, object, action string) (composables.Actor, error) {
	actor, err := composables.UseActor(ctx)
	if err != nil {
		return composables.Actor{}, request.ErrPermissionDenied
	}
	if authorizer == nil {
		return actor, nil
	}
	req := authz.NewRequest(authz.SubjectForRole(string(actor.Role)), object, action)
	if err := authorizer.Authorize(ctx, req); err != nil {
		return composables.Actor{}, err
	}
	return actor, nil
}
