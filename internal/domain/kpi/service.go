package kpi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"kpitracker/internal/domain/auth"
	"kpitracker/internal/domain/employees"
	"kpitracker/internal/domain/scoring"
	"kpitracker/internal/platform/apperrors"
	"kpitracker/internal/platform/db"
)

type PolicySource interface {
	Policy(ctx context.Context) (scoring.Policy, error)
}

type Authorizer interface {
	Authorize(ctx context.Context, perm string) error
}

type EmployeeDirectory interface {
	Lookup(ctx context.Context, name string) (employees.Employee, error)
}

// Recorder receives counts of written entries.
type Recorder interface {
	RecordEntries(op string, n int)
}

type Options struct {
	Employees             EmployeeDirectory
	EnforceEmployeeMaster bool
	ImportBatchSize       int
	Recorder              Recorder
}

type Service struct {
	store     StoreAPI
	policy    PolicySource
	authz     Authorizer
	employees EmployeeDirectory
	enforce   bool
	batchSize int
	recorder  Recorder
	now       func() time.Time
}

func New(store StoreAPI, policy PolicySource, authz Authorizer, opts Options) *Service {
	batch := opts.ImportBatchSize
	if batch <= 0 {
		batch = DefaultImportBatchSize
	}
	if batch > MaxImportBatchSize {
		slog.Warn("import batch size above the bind parameter limit, clamping", "requested", batch, "max", MaxImportBatchSize)
		batch = MaxImportBatchSize
	}
	return &Service{
		store:     store,
		policy:    policy,
		authz:     authz,
		employees: opts.Employees,
		enforce:   opts.EnforceEmployeeMaster && opts.Employees != nil,
		batchSize: batch,
		recorder:  opts.Recorder,
		now:       time.Now,
	}
}

// Create scores the four values under the policy in effect and stores a new
// entry. It is open to every caller.
func (s *Service) Create(ctx context.Context, employee, department string, k1, k2, k3, k4 int) (Entry, error) {
	employee = strings.TrimSpace(employee)
	department = strings.TrimSpace(department)
	if employee == "" {
		return Entry{}, apperrors.Invalid("employeeName", "is required")
	}
	kpis := [scoring.KPICount]int{k1, k2, k3, k4}
	if err := validateFormKPIs(kpis); err != nil {
		return Entry{}, err
	}

	department, err := s.resolveDepartment(ctx, employee, department)
	if err != nil {
		return Entry{}, err
	}
	if department == "" {
		return Entry{}, apperrors.Invalid("department", "is required")
	}

	policy, err := s.policy.Policy(ctx)
	if err != nil {
		return Entry{}, err
	}
	result := scoring.Score(policy, k1, k2, k3, k4)

	entry := Entry{
		EmployeeName: employee,
		Department:   department,
		TotalScore:   result.Value,
		Rating:       result.Rating,
		CreatedAt:    db.Timestamp(s.now()),
	}
	entry.setKPIs(kpis)
	entry, err = s.store.Insert(ctx, entry)
	if err != nil {
		return Entry{}, err
	}
	s.record(OpCreated, 1)
	return entry, nil
}

// Update replaces the four values and rescores them under the current
// policy, so an edit may move an entry's score after a policy change.
func (s *Service) Update(ctx context.Context, id int64, k1, k2, k3, k4 int) (Entry, error) {
	if err := s.authz.Authorize(ctx, auth.PermEntriesEdit); err != nil {
		return Entry{}, err
	}
	kpis := [scoring.KPICount]int{k1, k2, k3, k4}
	if err := validateFormKPIs(kpis); err != nil {
		return Entry{}, err
	}
	policy, err := s.policy.Policy(ctx)
	if err != nil {
		return Entry{}, err
	}
	result := scoring.Score(policy, k1, k2, k3, k4)

	ok, err := s.store.Update(ctx, id, kpis, result)
	if err != nil {
		return Entry{}, err
	}
	if !ok {
		return Entry{}, apperrors.NotFound("entry")
	}
	s.record(OpUpdated, 1)
	return s.store.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64, confirm bool) error {
	if err := s.authz.Authorize(ctx, auth.PermEntriesDelete); err != nil {
		return err
	}
	if !confirm {
		return apperrors.Invalid("confirm", "deletion must be confirmed")
	}
	ok, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NotFound("entry")
	}
	s.record(OpDeleted, 1)
	return nil
}

// AuthorizeImport reports whether ctx may run BulkImport, so callers can
// refuse before reading an upload.
func (s *Service) AuthorizeImport(ctx context.Context) error {
	return s.authz.Authorize(ctx, auth.PermEntriesImport)
}

// BulkImport coerces and scores every row, then inserts them in batches.
// A row problem never aborts the import; it is reported as a warning. When a
// batch fails after earlier ones committed, the error is an
// *apperrors.ImportPartialFailure carrying the committed count.
func (s *Service) BulkImport(ctx context.Context, rows []ImportRow) (ImportResult, error) {
	result := ImportResult{Warnings: []RowWarning{}}
	if err := s.authz.Authorize(ctx, auth.PermEntriesImport); err != nil {
		return result, err
	}
	if len(rows) == 0 {
		return result, apperrors.Invalid("file", "no data rows")
	}
	policy, err := s.policy.Policy(ctx)
	if err != nil {
		return result, err
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entry, warnings := s.prepareRow(ctx, policy, row)
		entries = append(entries, entry)
		result.Warnings = append(result.Warnings, warnings...)
	}

	for start := 0; start < len(entries); start += s.batchSize {
		end := min(start+s.batchSize, len(entries))
		n, err := s.store.InsertBatch(ctx, entries[start:end])
		if err != nil {
			s.record(OpImported, result.Committed)
			if result.Committed == 0 {
				return result, err
			}
			slog.Warn("bulk import stopped after partial commit", "committed", result.Committed, "err", err)
			return result, &apperrors.ImportPartialFailure{
				Committed: result.Committed,
				Failed:    len(entries) - result.Committed,
				Err:       err,
			}
		}
		result.Committed += n
	}
	s.record(OpImported, result.Committed)
	return result, nil
}

func (s *Service) prepareRow(ctx context.Context, policy scoring.Policy, row ImportRow) (Entry, []RowWarning) {
	var warnings []RowWarning
	warn := func(column, value, message string) {
		warnings = append(warnings, RowWarning{Row: row.Line, Column: column, Value: value, Message: message})
	}

	entry := Entry{EmployeeName: row.Employee, Department: row.Department}
	if entry.EmployeeName == "" {
		warn(ColEmployee, "", "missing employee name")
	}
	if entry.Department == "" && entry.EmployeeName != "" && s.employees != nil {
		if e, err := s.employees.Lookup(ctx, entry.EmployeeName); err == nil {
			entry.Department = e.Department
		}
	}

	var kpis [scoring.KPICount]int
	for i, raw := range row.KPI {
		v, msg := coerceKPI(raw)
		if msg != "" {
			warn(kpiColumns[i], raw, msg)
		}
		kpis[i] = v
	}
	entry.setKPIs(kpis)

	res, ok := suppliedResult(row, policy.Mode)
	if !ok {
		res = scoring.Score(policy, kpis[0], kpis[1], kpis[2], kpis[3])
	}
	entry.TotalScore, entry.Rating = res.Value, res.Rating

	if created, ok := parseCreatedAt(row.CreatedAt); ok {
		entry.CreatedAt = created
	} else {
		if row.CreatedAt != "" {
			warn(ColCreatedAt, row.CreatedAt, "unparseable timestamp replaced with import time")
		}
		entry.CreatedAt = db.Timestamp(s.now())
	}
	return entry, warnings
}

func (s *Service) Get(ctx context.Context, id int64) (Entry, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter) ([]Entry, error) {
	if err := ValidateFilter(f); err != nil {
		return nil, err
	}
	return s.store.List(ctx, f)
}

func (s *Service) Summary(ctx context.Context, f Filter) (Summary, error) {
	entries, err := s.List(ctx, f)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(entries), nil
}

func (s *Service) Departments(ctx context.Context) ([]string, error) {
	return s.store.DistinctDepartments(ctx)
}

func (s *Service) Employees(ctx context.Context, department string) ([]string, error) {
	return s.store.DistinctEmployees(ctx, department)
}

// ValidateFilter checks that supplied dates are calendar dates in order.
func ValidateFilter(f Filter) error {
	var from, to time.Time
	var err error
	if f.From != "" {
		if from, err = time.Parse(dateLayout, strings.TrimSpace(f.From)); err != nil {
			return apperrors.Invalid("from", "must be YYYY-MM-DD")
		}
	}
	if f.To != "" {
		if to, err = time.Parse(dateLayout, strings.TrimSpace(f.To)); err != nil {
			return apperrors.Invalid("to", "must be YYYY-MM-DD")
		}
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return apperrors.Invalid("to", "must not be before from")
	}
	return nil
}

func (s *Service) resolveDepartment(ctx context.Context, employee, department string) (string, error) {
	if s.employees == nil {
		return department, nil
	}
	e, err := s.employees.Lookup(ctx, employee)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		if s.enforce {
			return "", apperrors.Invalid("employeeName", "is not in the employee master")
		}
		return department, nil
	case err != nil:
		return "", err
	}
	if s.enforce && !e.Active {
		return "", apperrors.Invalid("employeeName", "is inactive")
	}
	if department == "" {
		department = e.Department
	}
	return department, nil
}

func validateFormKPIs(kpis [scoring.KPICount]int) error {
	for i, v := range kpis {
		if v < MinFormKPI || v > scoring.MaxKPI {
			return apperrors.Invalid(fmt.Sprintf("kpi%d", i+1), fmt.Sprintf("must be between %d and %d", MinFormKPI, scoring.MaxKPI))
		}
	}
	return nil
}

func (s *Service) record(op string, n int) {
	if s.recorder != nil && n > 0 {
		s.recorder.RecordEntries(op, n)
	}
}
