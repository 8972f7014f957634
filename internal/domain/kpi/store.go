package kpi

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"kpitracker/internal/domain/scoring"
	"kpitracker/internal/platform/apperrors"
	"kpitracker/internal/platform/db"
)

const entryColumns = "id, employee_name, department, kpi1, kpi2, kpi3, kpi4, total_score, rating, created_at"

const insertColumns = "INSERT INTO kpi_entries (employee_name, department, kpi1, kpi2, kpi3, kpi4, total_score, rating, created_at) VALUES "

const insertPlaceholders = "(?, ?, ?, ?, ?, ?, ?, ?, ?)"

type Store struct {
	DB *db.Manager
}

func NewStore(m *db.Manager) *Store {
	return &Store{DB: m}
}

func (s *Store) Insert(ctx context.Context, e Entry) (Entry, error) {
	err := s.DB.QueryRow(ctx, insertColumns+insertPlaceholders+" RETURNING id", insertArgs(e)...).Scan(&e.ID)
	if err != nil {
		return Entry{}, err
	}
	return e, nil
}

// InsertBatch writes entries with one multi-row statement, so the batch is
// committed or rejected as a whole.
func (s *Store) InsertBatch(ctx context.Context, entries []Entry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	placeholders := make([]string, len(entries))
	args := make([]any, 0, len(entries)*insertParamsPerRow)
	for i, e := range entries {
		placeholders[i] = insertPlaceholders
		args = append(args, insertArgs(e)...)
	}
	res, err := s.DB.Exec(ctx, insertColumns+strings.Join(placeholders, ", "), args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return len(entries), nil
	}
	return int(n), nil
}

func (s *Store) Update(ctx context.Context, id int64, kpis [scoring.KPICount]int, result scoring.Result) (bool, error) {
	res, err := s.DB.Exec(ctx, `
    UPDATE kpi_entries
    SET kpi1 = ?, kpi2 = ?, kpi3 = ?, kpi4 = ?, total_score = ?, rating = ?
    WHERE id = ?
  `, kpis[0], kpis[1], kpis[2], kpis[3], result.Value, result.Rating, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.DB.Exec(ctx, "DELETE FROM kpi_entries WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) Get(ctx context.Context, id int64) (Entry, error) {
	var e Entry
	err := s.DB.QueryRow(ctx, "SELECT "+entryColumns+" FROM kpi_entries WHERE id = ?", id).
		Scan(&e.ID, &e.EmployeeName, &e.Department, &e.KPI1, &e.KPI2, &e.KPI3, &e.KPI4, &e.TotalScore, &e.Rating, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, apperrors.NotFound("entry")
	}
	if err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (s *Store) List(ctx context.Context, f Filter) ([]Entry, error) {
	where, args := BuildFilter(s.DB.Dialect(), f)
	rows, err := s.DB.Query(ctx, "SELECT "+entryColumns+" FROM kpi_entries WHERE "+where+orderByRecent, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.EmployeeName, &e.Department, &e.KPI1, &e.KPI2, &e.KPI3, &e.KPI4, &e.TotalScore, &e.Rating, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) DistinctDepartments(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, `
    SELECT DISTINCT department FROM kpi_entries
    WHERE department IS NOT NULL AND department <> ''
    ORDER BY department
  `)
}

func (s *Store) DistinctEmployees(ctx context.Context, department string) ([]string, error) {
	department = strings.TrimSpace(department)
	if department == "" || department == DepartmentAll {
		return s.distinct(ctx, `
      SELECT DISTINCT employee_name FROM kpi_entries
      WHERE employee_name IS NOT NULL AND employee_name <> ''
      ORDER BY employee_name
    `)
	}
	return s.distinct(ctx, `
    SELECT DISTINCT employee_name FROM kpi_entries
    WHERE employee_name IS NOT NULL AND employee_name <> '' AND department = ?
    ORDER BY employee_name
  `, department)
}

func (s *Store) distinct(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func insertArgs(e Entry) []any {
	return []any{e.EmployeeName, e.Department, e.KPI1, e.KPI2, e.KPI3, e.KPI4, e.TotalScore, e.Rating, e.CreatedAt}
}
