package employeeshandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"kpitracker/internal/domain/employees"
	"kpitracker/internal/platform/requestctx"
	"kpitracker/internal/transport/http/api"
	"kpitracker/internal/transport/http/shared"
)

type Handler struct {
	Employees *employees.Service
	Audit     shared.Auditor
}

func NewHandler(svc *employees.Service, auditor shared.Auditor) *Handler {
	return &Handler{Employees: svc, Audit: auditor}
}

type createRequest struct {
	EmployeeName string `json:"employeeName" validate:"required,max=120"`
	Department   string `json:"department" validate:"required,max=64"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/employees", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Get("/departments", h.handleDepartments)
		r.Post("/{name}/deactivate", h.handleDeactivate)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())
	list, err := h.Employees.ListActive(r.Context())
	if err != nil {
		api.FailFromError(w, err, reqID)
		return
	}
	api.Success(w, list, reqID)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())
	var payload createRequest
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	emp, err := h.Employees.Add(r.Context(), payload.EmployeeName, payload.Department)
	if err != nil {
		api.FailFromError(w, err, reqID)
		return
	}
	shared.Audit(r, h.Audit, "employee.create", "employee", emp.Name, nil, emp)
	api.Created(w, emp, reqID)
}

func (h *Handler) handleDepartments(w http.ResponseWriter, r *http.Request) {
	api.Success(w, employees.Departments, requestctx.GetRequestID(r.Context()))
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())
	name := chi.URLParam(r, "name")
	if err := h.Employees.Deactivate(r.Context(), name); err != nil {
		api.FailFromError(w, err, reqID)
		return
	}
	shared.Audit(r, h.Audit, "employee.deactivate", "employee", name, nil, map[string]bool{"isActive": false})
	api.Success(w, map[string]any{"employeeName": name, "isActive": false}, reqID)
}
