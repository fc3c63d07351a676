// Package permissions names the policy objects and actions of the service
// desk. pkg/authz/defaults/policy.csv grants them per role.
package permissions

import "github.com/iota-uz/servicedesk/pkg/authz"

const Module = "servicedesk"

var (
	RequestsObject = authz.ObjectName(Module, "requests")
	RevenueObject  = authz.ObjectName(Module, "revenue")
	CatalogObject  = authz.ObjectName(Module, "catalog")
)

const (
	ActionSubmit     = "submit"
	ActionView       = "view"
	ActionViewAll    = "view_all"
	ActionTransition = "transition"
	ActionComplete   = "complete"
	ActionExport     = "export"
)
