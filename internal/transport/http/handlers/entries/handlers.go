package entrieshandler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"kpitracker/internal/domain/kpi"
	"kpitracker/internal/domain/scoring"
	"kpitracker/internal/platform/apperrors"
	"kpitracker/internal/platform/requestctx"
	"kpitracker/internal/transport/http/api"
	"kpitracker/internal/transport/http/shared"
)

const (
	defaultPageSize = 500
	maxPageSize     = 5000
)

// LabelSource provides the display names of the four KPIs.
type LabelSource interface {
	Labels(ctx context.Context) ([scoring.KPICount]string, error)
}

type Handler struct {
	Entries        *kpi.Service
	Labels         LabelSource
	Audit          shared.Auditor
	MaxUploadBytes int64
}

func NewHandler(entries *kpi.Service, labels LabelSource, auditor shared.Auditor, maxUploadBytes int64) *Handler {
	return &Handler{Entries: entries, Labels: labels, Audit: auditor, MaxUploadBytes: maxUploadBytes}
}

type createRequest struct {
	EmployeeName string `json:"employeeName" validate:"required,max=120"`
	Department   string `json:"department" validate:"max=64"`
	KPI1         int    `json:"kpi1" validate:"min=1,max=100"`
	KPI2         int    `json:"kpi2" validate:"min=1,max=100"`
	KPI3         int    `json:"kpi3" validate:"min=1,max=100"`
	KPI4         int    `json:"kpi4" validate:"min=1,max=100"`
}

type updateRequest struct {
	KPI1 int `json:"kpi1" validate:"min=1,max=100"`
	KPI2 int `json:"kpi2" validate:"min=1,max=100"`
	KPI3 int `json:"kpi3" validate:"min=1,max=100"`
	KPI4 int `json:"kpi4" validate:"min=1,max=100"`
}

type importAudit struct {
	Rows      int `json:"rows"`
	Committed int `json:"committed"`
	Warnings  int `json:"warnings"`
}

type listResponse struct {
	Items  []kpi.Entry `json:"items"`
	Total  int         `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/entries", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Get("/summary", h.handleSummary)
		r.Get("/export", h.handleExport)
		r.Post("/import", h.handleImport)
		r.Route("/{entryID}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Put("/", h.handleUpdate)
			r.Delete("/", h.handleDelete)
		})
	})
	r.Route("/filters", func(r chi.Router) {
		r.Get("/departments", h.handleDepartments)
		r.Get("/employees", h.handleEmployees)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())
	v := shared.NewValidator()
	filter := shared.ParseFilter(r, v)
	if v.Reject(w, reqID) {
		return
	}
	page := shared.ParsePagination(r, defaultPageSize, maxPageSize)

	entries, err := h.Entries.List(r.Context(), filter)
	if err != nil {
		api.FailFromError(w, err, reqID)
		return
	}
	api.Success(w, listResponse{
		Items:  shared.Page(entries, page),
		Total:  len(entries),
		Limit:  page.Limit,
		Offset: page.Offset,
	}, reqID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	entry, err := h.Entries.Get(r.Context(), id)
	if err != nil {
		api.FailFromError(w, err, reqID)
		return
	}
	api.Success(w, entry, reqID)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())
	var payload createRequest
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	entry, err := h.Entries.Create(r.Context(), payload.EmployeeName, payload.Department,
		payload.KPI1, payload.KPI2, payload.KPI3, payload.KPI4)
	if err != nil {
		api.FailFromError(w, err, reqID)
		return
	}
	shared.Audit(r, h.Audit, "entry.create", "entry", strconv.FormatInt(entry.ID, 10), nil, entry)
	api.Created(w, entry, reqID)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	var payload updateRequest
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	before, _ := h.Entries.Get(r.Context(), id)
	entry, err := h.Entries.Update(r.Context(), id, payload.KPI1, payload.KPI2, payload.KPI3, payload.KPI4)
	if err != nil {
		api.FailFromError(w, err, reqID)
		return
	}
	shared.Audit(r, h.Audit, "entry.update", "entry", strconv.FormatInt(id, 10), before, entry)
	api.Success(w, entry, reqID)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	confirm, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	before, _ := h.Entries.Get(r.Context(), id)
	if err := h.Entries.Delete(r.Context(), id, confirm); err != nil {
		api.FailFromError(w, err, reqID)
		return
	}
	shared.Audit(r, h.Audit, "entry.delete", "entry", strconv.FormatInt(id, 10), before, nil)
	api.Success(w, map[string]any{"id": id, "deleted": true}, reqID)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())
	v := shared.NewValidator()
	filter := shared.ParseFilter(r, v)
	if v.Reject(w, reqID) {
		return
	}
	summary, err := h.Entries.Summary(r.Context(), filter)
	if err != nil {
		api.FailFromError(w, err, reqID)
		return
	}
	api.Success(w, summary, reqID)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())
	v := shared.NewValidator()
	filter := shared.ParseFilter(r, v)
	if v.Reject(w, reqID) {
		return
	}
	format, err := kpi.ParseExportFormat(r.URL.Query().Get("format"))
	if err != nil {
		api.FailFromError(w, err, reqID)
		return
	}

	entries, err := h.Entries.List(r.Context(), filter)
	if err != nil {
		api.FailFromError(w, err, reqID)
		return
	}
	labels, err := h.Labels.Labels(r.Context())
	if err != nil {
		api.FailFromError(w, err, reqID)
		return
	}

	var buf bytes.Buffer
	report := kpi.ExportReport{Filter: filter, Summary: kpi.Summarize(entries), Labels: labels, Generated: time.Now()}
	if err := kpi.Export(&buf, format, entries, report); err != nil {
		api.FailFromError(w, err, reqID)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+format.FileName()+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())
	if err := h.Entries.AuthorizeImport(r.Context()); err != nil {
		api.FailFromError(w, err, reqID)
		return
	}
	if err := r.ParseMultipartForm(h.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "upload too large", reqID)
			return
		}
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "expected a multipart upload", reqID)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		shared.FailValidation(w, reqID, []shared.ValidationIssue{{Field: "file", Reason: "is required"}})
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "could not read upload", reqID)
		return
	}

	labels, err := h.Labels.Labels(r.Context())
	if err != nil {
		api.FailFromError(w, err, reqID)
		return
	}
	rows, err := kpi.ParseFile(header.Filename, data, labels)
	if err != nil {
		api.FailFromError(w, err, reqID)
		return
	}
	result, err := h.Entries.BulkImport(r.Context(), rows)
	if result.Committed > 0 {
		shared.Audit(r, h.Audit, "entry.import", "entry", header.Filename, nil, importAudit{Rows: len(rows), Committed: result.Committed, Warnings: len(result.Warnings)})
	}
	var partial *apperrors.ImportPartialFailure
	switch {
	case errors.As(err, &partial):
		api.Partial(w, result, err, reqID)
	case err != nil:
		api.FailFromError(w, err, reqID)
	default:
		api.Created(w, result, reqID)
	}
}

func (h *Handler) handleDepartments(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())
	departments, err := h.Entries.Departments(r.Context())
	if err != nil {
		api.FailFromError(w, err, reqID)
		return
	}
	api.Success(w, append([]string{kpi.DepartmentAll}, departments...), reqID)
}

func (h *Handler) handleEmployees(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())
	names, err := h.Entries.Employees(r.Context(), r.URL.Query().Get("department"))
	if err != nil {
		api.FailFromError(w, err, reqID)
		return
	}
	api.Success(w, names, reqID)
}

func entryID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "entryID"), 10, 64)
	if err != nil || id <= 0 {
		shared.FailValidation(w, requestctx.GetRequestID(r.Context()), []shared.ValidationIssue{{Field: "id", Reason: "must be a positive integer"}})
		return 0, false
	}
	return id, true
}
