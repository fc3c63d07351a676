package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/iota-uz/servicedesk/modules/servicedesk/domain/aggregates/request"
	"github.com/iota-uz/servicedesk/modules/servicedesk/presentation/controllers/dtos"
	"github.com/iota-uz/servicedesk/modules/servicedesk/presentation/mappers"
	"github.com/iota-uz/servicedesk/modules/servicedesk/services"
	"github.com/iota-uz/servicedesk/pkg/application"
	"github.com/iota-uz/servicedesk/pkg/composables"
	"github.com/iota-uz/servicedesk/pkg/intl"
	"github.com/iota-uz/servicedesk/pkg/middleware"
	"github.com/iota-uz/servicedesk/pkg/serrors"
)

type RequestAPIController struct {
	app         application.Application
	requests    *services.RequestService
	submitLimit mux.MiddlewareFunc
	basePath    string
}

// NewRequestAPIController serves the customer and admin JSON API. A nil
// submitLimit leaves submissions unthrottled.
func NewRequestAPIController(app application.Application, submitLimit mux.MiddlewareFunc) application.Controller {
	return &RequestAPIController{
		app:         app,
		requests:    app.Service(services.RequestService{}).(*services.RequestService),
		submitLimit: submitLimit,
		basePath:    "/servicedesk/api",
	}
}

func (c *RequestAPIController) Key() string {
	return c.basePath
}

func (c *RequestAPIController) Register(r *mux.Router) {
	commonMiddleware := []mux.MiddlewareFunc{
		middleware.RequireActor(),
		middleware.ProvideLocalizer(c.app),
	}

	router := r.PathPrefix(c.basePath).Subrouter()
	router.Use(commonMiddleware...)
	router.HandleFunc("/catalog", c.Catalog).Methods(http.MethodGet)
	router.HandleFunc("/requests", c.List).Methods(http.MethodGet)
	router.HandleFunc("/requests/{id}", c.Get).Methods(http.MethodGet)
	router.HandleFunc("/requests/{id}/status", c.Transition).Methods(http.MethodPost)
	router.HandleFunc("/requests/{id}/complete", c.Complete).Methods(http.MethodPost)

	submitRouter := r.PathPrefix(c.basePath).Subrouter()
	submitRouter.Use(commonMiddleware...)
	if c.submitLimit != nil {
		submitRouter.Use(c.submitLimit)
	}
	submitRouter.HandleFunc("/requests", c.Submit).Methods(http.MethodPost)
}

func isAdmin(r *http.Request) bool {
	actor, err := composables.UseActor(r.Context())
	return err == nil && actor.IsAdmin()
}

func (c *RequestAPIController) Catalog(w http.ResponseWriter, r *http.Request) {
	variants, err := c.requests.Catalog(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": variants})
}

// Submit answers 201 with the stored record once the write lands. With
// ?wait=false it answers 202 with the optimistic record right away and any
// write failure arrives as a live notification.
func (c *RequestAPIController) Submit(w http.ResponseWriter, r *http.Request) {
	var dto request.SubmitDTO
	if !decodeJSON(w, r, &dto) {
		return
	}
	sub, err := c.requests.Submit(r.Context(), &dto)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if r.URL.Query().Get("wait") == "false" {
		writeJSON(w, http.StatusAccepted, mappers.RequestToViewModel(sub.Record(), isAdmin(r)))
		return
	}
	stored, err := sub.Wait(r.Context())
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mappers.RequestToViewModel(stored, isAdmin(r)))
}

func (c *RequestAPIController) List(w http.ResponseWriter, r *http.Request) {
	filter, err := request.ParseFilter(r.URL.Query())
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "INVALID_FILTER", intl.T(r.Context(), "ServiceDesk.Errors.InvalidFilter", "invalid filter", nil))
		return
	}
	records, err := c.requests.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": mappers.RequestsToViewModels(records, isAdmin(r)),
		"total": len(records),
	})
}

func (c *RequestAPIController) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, mux.Vars(r)["id"])
	if !ok {
		return
	}
	entity, err := c.requests.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mappers.RequestToViewModel(entity, isAdmin(r)))
}

func (c *RequestAPIController) Transition(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, mux.Vars(r)["id"])
	if !ok {
		return
	}
	var dto dtos.StatusChange
	if !decodeJSON(w, r, &dto) {
		return
	}
	to, ok := request.ParseStatus(dto.Status)
	if !ok {
		writeServiceError(w, r, serrors.ValidationErrors{
			"status": serrors.NewFieldError("status", "VALIDATION_ONEOF", "unknown status", "ValidationErrors.oneof"),
		})
		return
	}
	updated, err := c.requests.TransitionStatus(r.Context(), id, to)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mappers.RequestToViewModel(updated, isAdmin(r)))
}

func (c *RequestAPIController) Complete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, mux.Vars(r)["id"])
	if !ok {
		return
	}
	var dto request.CompleteDTO
	if !decodeJSON(w, r, &dto) {
		return
	}
	updated, err := c.requests.CompleteWithBilling(r.Context(), id, &dto)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mappers.RequestToViewModel(updated, isAdmin(r)))
}
