package testhelpers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"kpitracker/internal/platform/db"
)

const postgresImage = "postgres:16-alpine"

type PostgresDB struct {
	Container testcontainers.Container
	ConnStr   string
}

var (
	sharedPostgres     *PostgresDB
	sharedPostgresOnce sync.Once
	sharedPostgresErr  error
)

// GetPostgres returns a PostgreSQL container shared by every test in the run.
// Tests are skipped in short mode or when no container runtime is reachable.
func GetPostgres(t *testing.T) *PostgresDB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	sharedPostgresOnce.Do(func() {
		sharedPostgres, sharedPostgresErr = startPostgres()
	})
	if sharedPostgresErr != nil {
		t.Skipf("postgres container unavailable: %v", sharedPostgresErr)
	}
	return sharedPostgres
}

// NewPostgres returns a manager over the shared container with the schema
// applied and every table emptied.
func NewPostgres(t *testing.T) *db.Manager {
	t.Helper()
	pg := GetPostgres(t)

	open, err := db.PostgresOpener(pg.ConnStr, 10*time.Second, time.Minute)
	if err != nil {
		t.Fatalf("postgres opener: %v", err)
	}
	m := db.NewManager(db.Postgres, open, DiscardLogger())
	t.Cleanup(func() { _ = m.Close() })

	ctx := context.Background()
	if err := db.EnsureSchema(ctx, m); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if _, err := m.Exec(ctx, "TRUNCATE kpi_entries, employees, settings, kpi_labels, kpi_weights, rating_rules, audit_events RESTART IDENTITY"); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return m
}

func startPostgres() (pg *PostgresDB, err error) {
	defer func() {
		// testcontainers panics when no docker host can be resolved
		if r := recover(); r != nil {
			pg, err = nil, fmt.Errorf("start container: %v", r)
		}
	}()

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "kpi_test",
			"POSTGRES_USER":     "kpi",
			"POSTGRES_PASSWORD": "test_password",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	connStr := fmt.Sprintf("postgres://kpi:test_password@%s:%s/kpi_test?sslmode=disable", host, port.Port())
	return &PostgresDB{Container: container, ConnStr: connStr}, nil
}
