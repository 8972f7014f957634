// Package auth implements the single shared admin secret and the session
// token that gates mutating operations.
package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"kpitracker/internal/domain/settings"
	"kpitracker/internal/platform/apperrors"
	"kpitracker/internal/platform/requestctx"
)

const adminSubject = "admin"

type SettingsSource interface {
	AdminSecretHash(ctx context.Context) (string, error)
	Permissions(ctx context.Context) (settings.Permissions, error)
}

type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Service struct {
	settings    SettingsSource
	secret      []byte
	ttl         time.Duration
	revocations *Revocations
	now         func() time.Time
}

func NewService(source SettingsSource, jwtSecret string, ttl time.Duration) *Service {
	return &Service{
		settings:    source,
		secret:      []byte(jwtSecret),
		ttl:         ttl,
		revocations: NewRevocations(),
		now:         time.Now,
	}
}

// Login compares the attempt with the stored admin secret hash and issues a
// session token on success.
func (s *Service) Login(ctx context.Context, attempt string) (Session, error) {
	hash, err := s.settings.AdminSecretHash(ctx)
	if err != nil {
		return Session{}, err
	}
	if hash == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(attempt)) != nil {
		return Session{}, apperrors.Unauthorized("invalid admin secret")
	}

	issued := s.now()
	token, err := generateToken(s.secret, uuid.NewString(), adminSubject, issued, s.ttl)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: issued.Add(s.ttl)}, nil
}

// Verify parses a bearer token into the session carried on request contexts.
func (s *Service) Verify(token string) (requestctx.AdminSession, error) {
	claims, err := parseToken(s.secret, token, s.now)
	if err != nil {
		return requestctx.AdminSession{}, apperrors.Unauthorized(err.Error())
	}
	if s.revocations.Revoked(claims.ID, s.now()) {
		return requestctx.AdminSession{}, apperrors.Unauthorized("session ended")
	}
	session := requestctx.AdminSession{ID: claims.ID, Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}

func (s *Service) Logout(session requestctx.AdminSession) {
	if session.ID == "" {
		return
	}
	s.revocations.Revoke(session.ID, session.ExpiresAt)
}

// Authorize requires an admin session on ctx and, for gated features, the
// matching permission flag.
func (s *Service) Authorize(ctx context.Context, perm string) error {
	if _, ok := requestctx.GetAdmin(ctx); !ok {
		return apperrors.Unauthorized("admin session required")
	}
	flags, err := s.settings.Permissions(ctx)
	if err != nil {
		return err
	}
	if !featureEnabled(perm, flags) {
		return apperrors.Unauthorized(perm + " is disabled")
	}
	return nil
}

// Operator returns a context carrying an admin session for in-process tools
// that run with operator rights.
func Operator(ctx context.Context) context.Context {
	return requestctx.WithAdmin(ctx, requestctx.AdminSession{ID: "operator", Subject: "operator"})
}
