package controllers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/iota-uz/servicedesk/modules/servicedesk/domain/aggregates/request"
	"github.com/iota-uz/servicedesk/modules/servicedesk/presentation/mappers"
	"github.com/iota-uz/servicedesk/modules/servicedesk/services"
	"github.com/iota-uz/servicedesk/pkg/application"
	"github.com/iota-uz/servicedesk/pkg/intl"
	"github.com/iota-uz/servicedesk/pkg/middleware"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type AdminController struct {
	app       application.Application
	requests  *services.RequestService
	revenue   *services.RevenueService
	export    *services.ExportService
	loginPath string
	basePath  string
}

func NewAdminController(app application.Application, loginPath string) application.Controller {
	return &AdminController{
		app:       app,
		requests:  app.Service(services.RequestService{}).(*services.RequestService),
		revenue:   app.Service(services.RevenueService{}).(*services.RevenueService),
		export:    app.Service(services.ExportService{}).(*services.ExportService),
		loginPath: loginPath,
		basePath:  "/servicedesk/admin",
	}
}

func (c *AdminController) Key() string {
	return c.basePath
}

func (c *AdminController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.Use(
		middleware.RequireAdmin(c.loginPath),
		middleware.ProvideLocalizer(c.app),
	)
	router.HandleFunc("/api/revenue", c.Revenue).Methods(http.MethodGet)
	router.HandleFunc("/export.xlsx", c.Export).Methods(http.MethodGet)
}

func (c *AdminController) Revenue(w http.ResponseWriter, r *http.Request) {
	summary, err := c.revenue.Summary(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mappers.RevenueToViewModel(summary))
}

// Export streams the filtered records as a workbook. The workbook is built in
// memory first so failures still get a JSON error.
func (c *AdminController) Export(w http.ResponseWriter, r *http.Request) {
	filter, err := request.ParseFilter(r.URL.Query())
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "INVALID_FILTER", intl.T(r.Context(), "ServiceDesk.Errors.InvalidFilter", "invalid filter", nil))
		return
	}
	var buf bytes.Buffer
	n, err := c.export.Export(r.Context(), filter, &buf)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	name := fmt.Sprintf("service-requests-%s.xlsx", c.requests.Now().In(c.requests.Location()).Format("20060102"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("X-Total-Count", strconv.Itoa(n))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
