package request

import "github.com/iota-uz/servicedesk/pkg/serrors"

var (
	ErrNotFound         = serrors.NewError("REQUEST_NOT_FOUND", "service request not found", "ServiceDesk.Errors.NotFound")
	// ErrConflict means the stored status no longer matches the expected pre-state.
	ErrConflict         = serrors.NewError("REQUEST_CONFLICT", "service request was changed concurrently", "ServiceDesk.Errors.Conflict")
	ErrPermissionDenied = serrors.NewError("PERMISSION_DENIED", "permission denied", "Notifications.PermissionDenied.Message")
)
