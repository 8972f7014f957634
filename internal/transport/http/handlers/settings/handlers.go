package settingshandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"kpitracker/internal/domain/scoring"
	"kpitracker/internal/domain/settings"
	"kpitracker/internal/platform/requestctx"
	"kpitracker/internal/transport/http/api"
	"kpitracker/internal/transport/http/middleware"
	"kpitracker/internal/transport/http/shared"
)

type Handler struct {
	Settings *settings.Service
	Audit    shared.Auditor
}

func NewHandler(svc *settings.Service, auditor shared.Auditor) *Handler {
	return &Handler{Settings: svc, Audit: auditor}
}

type labelsRequest struct {
	Labels []string `json:"labels" validate:"len=4,dive,required,max=64"`
}

type weightsRequest struct {
	Weights []int `json:"weights" validate:"len=4,dive,min=0,max=100"`
}

type thresholdsRequest struct {
	Excellent *float64 `json:"excellent" validate:"required"`
	Good      *float64 `json:"good" validate:"required"`
	Average   *float64 `json:"average" validate:"required"`
}

type permissionsRequest struct {
	AllowBulkImport *bool `json:"allowBulkImport" validate:"required"`
	AllowEditDelete *bool `json:"allowEditDelete" validate:"required"`
}

type modeRequest struct {
	Mode string `json:"mode" validate:"required,oneof=sum weighted"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/settings", func(r chi.Router) {
		r.Get("/", h.handleGet)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin)
			r.Put("/labels", h.handleLabels)
			r.Put("/weights", h.handleWeights)
			r.Put("/thresholds", h.handleThresholds)
			r.Put("/permissions", h.handlePermissions)
			r.Put("/mode", h.handleMode)
		})
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	h.respondConfig(w, r)
}

func (h *Handler) handleLabels(w http.ResponseWriter, r *http.Request) {
	var payload labelsRequest
	if !shared.DecodeJSON(w, r, &payload, requestctx.GetRequestID(r.Context())) {
		return
	}
	var labels [scoring.KPICount]string
	copy(labels[:], payload.Labels)
	h.apply(w, r, "labels", func() error { return h.Settings.SetLabels(r.Context(), labels) })
}

func (h *Handler) handleWeights(w http.ResponseWriter, r *http.Request) {
	var payload weightsRequest
	if !shared.DecodeJSON(w, r, &payload, requestctx.GetRequestID(r.Context())) {
		return
	}
	var weights [scoring.KPICount]int
	copy(weights[:], payload.Weights)
	h.apply(w, r, "weights", func() error { return h.Settings.SetWeights(r.Context(), weights) })
}

func (h *Handler) handleThresholds(w http.ResponseWriter, r *http.Request) {
	var payload thresholdsRequest
	if !shared.DecodeJSON(w, r, &payload, requestctx.GetRequestID(r.Context())) {
		return
	}
	t := scoring.Thresholds{Excellent: *payload.Excellent, Good: *payload.Good, Average: *payload.Average}
	h.apply(w, r, "thresholds", func() error { return h.Settings.SetThresholds(r.Context(), t) })
}

func (h *Handler) handlePermissions(w http.ResponseWriter, r *http.Request) {
	var payload permissionsRequest
	if !shared.DecodeJSON(w, r, &payload, requestctx.GetRequestID(r.Context())) {
		return
	}
	p := settings.Permissions{AllowBulkImport: *payload.AllowBulkImport, AllowEditDelete: *payload.AllowEditDelete}
	h.apply(w, r, "permissions", func() error { return h.Settings.SetPermissions(r.Context(), p) })
}

func (h *Handler) handleMode(w http.ResponseWriter, r *http.Request) {
	var payload modeRequest
	if !shared.DecodeJSON(w, r, &payload, requestctx.GetRequestID(r.Context())) {
		return
	}
	h.apply(w, r, "mode", func() error { return h.Settings.SetMode(r.Context(), scoring.Mode(payload.Mode)) })
}

// apply runs one write, audits the configuration before and after, and
// answers with the configuration now in effect.
func (h *Handler) apply(w http.ResponseWriter, r *http.Request, section string, write func() error) {
	reqID := requestctx.GetRequestID(r.Context())
	before, err := h.Settings.Config(r.Context())
	if err != nil {
		api.FailFromError(w, err, reqID)
		return
	}
	if err := write(); err != nil {
		api.FailFromError(w, err, reqID)
		return
	}
	after, err := h.Settings.Config(r.Context())
	if err != nil {
		api.FailFromError(w, err, reqID)
		return
	}
	shared.Audit(r, h.Audit, "settings.update", "settings", section, before, after)
	api.Success(w, after, reqID)
}

func (h *Handler) respondConfig(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())
	cfg, err := h.Settings.Config(r.Context())
	if err != nil {
		api.FailFromError(w, err, reqID)
		return
	}
	api.Success(w, cfg, reqID)
}
