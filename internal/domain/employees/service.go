package employees

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"kpitracker/internal/domain/auth"
	"kpitracker/internal/platform/apperrors"
	"kpitracker/internal/platform/db"
)

type Authorizer interface {
	Authorize(ctx context.Context, perm string) error
}

type Service struct {
	store StoreAPI
	authz Authorizer
	now   func() time.Time
}

func New(store StoreAPI, authz Authorizer) *Service {
	return &Service{store: store, authz: authz, now: time.Now}
}

func (s *Service) Add(ctx context.Context, name, department string) (Employee, error) {
	if err := s.authz.Authorize(ctx, auth.PermEmployeesWrite); err != nil {
		return Employee{}, err
	}
	name = strings.TrimSpace(name)
	department = strings.TrimSpace(department)
	if name == "" {
		return Employee{}, apperrors.Invalid("employeeName", "is required")
	}
	if len(name) > maxNameLength {
		return Employee{}, apperrors.Invalid("employeeName", fmt.Sprintf("must be at most %d characters", maxNameLength))
	}
	return s.store.Insert(ctx, Employee{Name: name, Department: department, CreatedAt: db.Timestamp(s.now())})
}

// Deactivate flips the active flag. Entries already recorded under the name
// are untouched.
func (s *Service) Deactivate(ctx context.Context, name string) error {
	if err := s.authz.Authorize(ctx, auth.PermEmployeesWrite); err != nil {
		return err
	}
	ok, err := s.store.Deactivate(ctx, strings.TrimSpace(name))
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NotFound("employee")
	}
	return nil
}

func (s *Service) ListActive(ctx context.Context) ([]Employee, error) {
	return s.store.ListActive(ctx)
}

func (s *Service) Lookup(ctx context.Context, name string) (Employee, error) {
	return s.store.Lookup(ctx, strings.TrimSpace(name))
}

// SeedDefaults adds the sample employees when the master is empty.
func (s *Service) SeedDefaults(ctx context.Context) error {
	total, err := s.store.Count(ctx)
	if err != nil {
		return err
	}
	if total > 0 {
		return nil
	}
	for _, e := range seedEmployees {
		e.CreatedAt = db.Timestamp(s.now())
		if _, err := s.store.Insert(ctx, e); err != nil {
			slog.Warn("seed employee failed", "employee", e.Name, "err", err)
		}
	}
	return nil
}
