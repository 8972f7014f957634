package db

import (
	"context"
	"fmt"
	"time"
)

type migration struct {
	version    string
	statements func(d Dialect) []string
}

var migrations = []migration{
	{version: "001_kpi_entries", statements: entriesSchema},
	{version: "002_employees", statements: employeesSchema},
	{version: "003_scoring_settings", statements: settingsSchema},
	{version: "004_audit_events", statements: auditSchema},
}

func entriesSchema(d Dialect) []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS kpi_entries (
			` + d.AutoIDColumn() + `,
			employee_name TEXT NOT NULL,
			department TEXT NOT NULL DEFAULT '',
			kpi1 INTEGER NOT NULL DEFAULT 0,
			kpi2 INTEGER NOT NULL DEFAULT 0,
			kpi3 INTEGER NOT NULL DEFAULT 0,
			kpi4 INTEGER NOT NULL DEFAULT 0,
			total_score ` + d.RealType() + ` NOT NULL DEFAULT 0,
			rating TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)`,
		"CREATE INDEX IF NOT EXISTS idx_kpi_dept ON kpi_entries(department)",
		"CREATE INDEX IF NOT EXISTS idx_kpi_created ON kpi_entries(created_at)",
		"CREATE INDEX IF NOT EXISTS idx_kpi_emp ON kpi_entries(employee_name)",
	}
}

func employeesSchema(d Dialect) []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS employees (
			` + d.AutoIDColumn() + `,
			employee_name TEXT NOT NULL UNIQUE,
			department TEXT NOT NULL DEFAULT '',
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL
		)`,
		"CREATE INDEX IF NOT EXISTS idx_employees_active ON employees(is_active)",
	}
}

func settingsSchema(d Dialect) []string {
	return []string{
		"CREATE TABLE IF NOT EXISTS settings (key TEXT PRIMARY KEY, value TEXT NOT NULL)",
		"CREATE TABLE IF NOT EXISTS kpi_labels (slot INTEGER PRIMARY KEY, label TEXT NOT NULL)",
		"CREATE TABLE IF NOT EXISTS kpi_weights (slot INTEGER PRIMARY KEY, weight INTEGER NOT NULL)",
		"CREATE TABLE IF NOT EXISTS rating_rules (tier TEXT PRIMARY KEY, min_score " + d.RealType() + " NOT NULL)",
	}
}

func auditSchema(d Dialect) []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS audit_events (
			` + d.AutoIDColumn() + `,
			actor TEXT NOT NULL DEFAULT '',
			action TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			entity_id TEXT NOT NULL DEFAULT '',
			before_json TEXT,
			after_json TEXT,
			request_id TEXT NOT NULL DEFAULT '',
			ip TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)`,
		"CREATE INDEX IF NOT EXISTS idx_audit_created ON audit_events(created_at)",
		"CREATE INDEX IF NOT EXISTS idx_audit_action ON audit_events(action)",
	}
}

// EnsureSchema creates every table and index the application needs. It is
// safe to call on every startup: applied versions are recorded in
// schema_migrations and each statement is itself idempotent.
func EnsureSchema(ctx context.Context, m *Manager) error {
	if err := ensureMigrationsTable(ctx, m); err != nil {
		return err
	}

	for _, mig := range migrations {
		applied, err := migrationApplied(ctx, m, mig.version)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		err = m.WithTx(ctx, func(tx *Tx) error {
			for _, stmt := range mig.statements(m.Dialect()) {
				if _, err := tx.Exec(ctx, stmt); err != nil {
					return err
				}
			}
			_, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)", mig.version, time.Now().Format(time.RFC3339))
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %s failed: %w", mig.version, err)
		}
		m.logger.Info("schema migration applied", "version", mig.version, "backend", string(m.Dialect()))
	}
	return nil
}

func ensureMigrationsTable(ctx context.Context, m *Manager) error {
	_, err := m.Exec(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied_at TEXT NOT NULL)")
	return err
}

func migrationApplied(ctx context.Context, m *Manager, version string) (bool, error) {
	var count int
	if err := m.QueryRow(ctx, "SELECT COUNT(1) FROM schema_migrations WHERE version = ?", version).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}
