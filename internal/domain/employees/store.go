package employees

import (
	"context"
	"database/sql"
	"errors"

	"kpitracker/internal/platform/apperrors"
	"kpitracker/internal/platform/db"
)

type Store struct {
	DB *db.Manager
}

func NewStore(m *db.Manager) *Store {
	return &Store{DB: m}
}

func (s *Store) Insert(ctx context.Context, e Employee) (Employee, error) {
	err := s.DB.QueryRow(ctx, `
    INSERT INTO employees (employee_name, department, is_active, created_at)
    VALUES (?, ?, 1, ?)
    RETURNING id
  `, e.Name, e.Department, e.CreatedAt).Scan(&e.ID)
	if db.IsUniqueViolation(err) {
		return Employee{}, apperrors.Invalid("employeeName", "already exists")
	}
	if err != nil {
		return Employee{}, err
	}
	e.Active = true
	return e, nil
}

func (s *Store) Deactivate(ctx context.Context, name string) (bool, error) {
	res, err := s.DB.Exec(ctx, "UPDATE employees SET is_active = 0 WHERE employee_name = ?", name)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) ListActive(ctx context.Context) ([]Employee, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, employee_name, department, is_active, created_at
    FROM employees
    WHERE is_active = 1
    ORDER BY employee_name
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Employee{}
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) Lookup(ctx context.Context, name string) (Employee, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT id, employee_name, department, is_active, created_at
    FROM employees
    WHERE employee_name = ?
  `, name)
	var e Employee
	var active int
	err := row.Scan(&e.ID, &e.Name, &e.Department, &active, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Employee{}, apperrors.NotFound("employee")
	}
	if err != nil {
		return Employee{}, err
	}
	e.Active = active == 1
	return e, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM employees").Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func scanEmployee(rows *sql.Rows) (Employee, error) {
	var e Employee
	var active int
	if err := rows.Scan(&e.ID, &e.Name, &e.Department, &active, &e.CreatedAt); err != nil {
		return Employee{}, err
	}
	e.Active = active == 1
	return e, nil
}
