package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/iota-uz/servicedesk/modules/servicedesk/domain/aggregates/request"
	"github.com/iota-uz/servicedesk/modules/servicedesk/services"
	"github.com/iota-uz/servicedesk/pkg/composables"
	"github.com/iota-uz/servicedesk/pkg/httpapi"
	"github.com/iota-uz/servicedesk/pkg/intl"
	"github.com/iota-uz/servicedesk/pkg/notify"
	"github.com/iota-uz/servicedesk/pkg/serrors"
)

const maxBodyBytes = 64 * 1024

func writeJSON(w http.ResponseWriter, status int, payload any) {
	if err := httpapi.WriteJSON(w, status, payload); err != nil {
		panic(err)
	}
}

func ensureRequestID(w http.ResponseWriter, r *http.Request) string {
	if id := composables.UseRequestID(r.Context()); id != "" {
		return id
	}
	requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
	if requestID == "" {
		requestID = uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)
	}
	return requestID
}

func writeAPIError(w http.ResponseWriter, r *http.Request, status int, code string, message string) {
	meta := map[string]string{"request_id": ensureRequestID(w, r)}
	if err := httpapi.WriteError(w, status, code, message, meta); err != nil {
		panic(err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "INVALID_JSON", intl.T(r.Context(), "ServiceDesk.Errors.InvalidJSON", "invalid json", nil))
		return false
	}
	return true
}

func parseID(w http.ResponseWriter, r *http.Request, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "INVALID_ID", intl.T(r.Context(), "ServiceDesk.Errors.InvalidID", "invalid id", nil))
		return uuid.Nil, false
	}
	return id, true
}

// localizeError renders the first coded error in err's chain for the caller.
func localizeError(ctx context.Context, err error, fallback string) string {
	var base *serrors.BaseError
	if !errors.As(err, &base) {
		return fallback
	}
	l, _ := intl.UseLocalizer(ctx)
	return base.Localize(l)
}

func errorStatus(err error) int {
	var verrs serrors.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		return http.StatusUnprocessableEntity
	case errors.Is(err, request.ErrInvalidTransition), errors.Is(err, request.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, request.ErrGuardFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, request.ErrNotFound):
		return http.StatusNotFound
	case notify.IsPermissionDenied(err):
		return http.StatusForbidden
	case errors.Is(err, services.ErrUnknownScope):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError maps a service error onto a status and a localized
// error envelope. Unclassified errors are logged and answered with 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		composables.UseLogger(ctx).WithError(err).Error("service desk request failed")
		writeAPIError(w, r, status, "INTERNAL", intl.T(ctx, "ServiceDesk.Errors.Internal", "internal error", nil))
		return
	}

	payload := httpapi.ErrorEnvelope{
		Code:    serrors.Code(err),
		Message: localizeError(ctx, err, err.Error()),
		Meta:    map[string]string{"request_id": ensureRequestID(w, r)},
	}
	var verrs serrors.ValidationErrors
	var violation *request.Violation
	switch {
	case errors.As(err, &verrs):
		l, _ := intl.UseLocalizer(ctx)
		payload.Code = "VALIDATION_FAILED"
		payload.Message = intl.T(ctx, "ServiceDesk.Errors.Validation", "validation failed", nil)
		payload.Fields = serrors.LocalizeValidationErrors(verrs, l)
	case errors.As(err, &violation):
		payload.Meta["from"] = string(violation.From)
		payload.Meta["to"] = string(violation.To)
		payload.Meta["reason"] = violation.Reason
	}
	writeJSON(w, status, payload)
}
