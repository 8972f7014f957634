package authhandler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"kpitracker/internal/domain/auth"
	"kpitracker/internal/platform/requestctx"
	"kpitracker/internal/transport/http/api"
	"kpitracker/internal/transport/http/middleware"
	"kpitracker/internal/transport/http/shared"
)

// SecretStore changes the stored admin secret.
type SecretStore interface {
	SetAdminSecret(ctx context.Context, secret string) error
}

type Handler struct {
	Auth           *auth.Service
	Secrets        SecretStore
	Audit          shared.Auditor
	LoginPerMinute int
}

func NewHandler(svc *auth.Service, secrets SecretStore, auditor shared.Auditor, loginPerMinute int) *Handler {
	return &Handler{Auth: svc, Secrets: secrets, Audit: auditor, LoginPerMinute: loginPerMinute}
}

type loginRequest struct {
	Secret string `json:"secret" validate:"required"`
}

type secretRequest struct {
	Secret string `json:"secret" validate:"required,min=4,max=256"`
}

type sessionResponse struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.With(middleware.LoginRateLimit(h.LoginPerMinute)).Post("/login", h.HandleLogin)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin)
			r.Get("/session", h.HandleSession)
			r.Post("/logout", h.HandleLogout)
			r.Put("/secret", h.HandleChangeSecret)
		})
	})
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())
	var payload loginRequest
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	session, err := h.Auth.Login(r.Context(), payload.Secret)
	if err != nil {
		api.FailFromError(w, err, reqID)
		return
	}
	api.Success(w, session, reqID)
}

func (h *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	session, _ := requestctx.GetAdmin(r.Context())
	api.Success(w, sessionResponse{ID: session.ID, Subject: session.Subject, ExpiresAt: session.ExpiresAt}, requestctx.GetRequestID(r.Context()))
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	session, _ := requestctx.GetAdmin(r.Context())
	h.Auth.Logout(session)
	shared.Audit(r, h.Audit, "admin.logout", "session", session.ID, nil, nil)
	api.Success(w, map[string]bool{"loggedOut": true}, requestctx.GetRequestID(r.Context()))
}

func (h *Handler) HandleChangeSecret(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())
	var payload secretRequest
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	if err := h.Secrets.SetAdminSecret(r.Context(), payload.Secret); err != nil {
		api.FailFromError(w, err, reqID)
		return
	}
	shared.Audit(r, h.Audit, "admin.secret_change", "settings", "admin_secret", nil, nil)
	api.Success(w, map[string]bool{"updated": true}, reqID)
}
