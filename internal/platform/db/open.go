package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"kpitracker/internal/platform/config"
)

const (
	pgKeepAlive    = 30 * time.Second
	pgMaxIdleTime  = 5 * time.Minute
	pgMaxOpenConns = 5
	sqliteBusyMS   = 5000
)

// Connect builds a Manager for the backend selected by cfg. No connection is
// opened until the first operation.
func Connect(cfg config.Config, logger *slog.Logger) (*Manager, error) {
	if dsn := cfg.PostgresURL(); dsn != "" {
		open, err := PostgresOpener(dsn, cfg.DBConnectTimeout, cfg.DBMaxConnLifetime)
		if err != nil {
			return nil, err
		}
		return NewManager(Postgres, open, logger), nil
	}
	return NewManager(SQLite, SQLiteOpener(cfg.SQLiteFile()), logger), nil
}

func PostgresOpener(dsn string, connectTimeout, maxLifetime time.Duration) (Opener, error) {
	connCfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if connectTimeout > 0 {
		connCfg.ConnectTimeout = connectTimeout
	}
	dialer := &net.Dialer{Timeout: connCfg.ConnectTimeout, KeepAlive: pgKeepAlive}
	connCfg.DialFunc = dialer.DialContext

	return func(ctx context.Context) (*sql.DB, error) {
		handle := stdlib.OpenDB(*connCfg)
		handle.SetMaxOpenConns(pgMaxOpenConns)
		handle.SetConnMaxIdleTime(pgMaxIdleTime)
		if maxLifetime > 0 {
			handle.SetConnMaxLifetime(maxLifetime)
		}
		return handle, nil
	}, nil
}

// SQLiteOpener opens a local database file, creating its directory. The
// handle is limited to one connection, matching the single-writer model.
func SQLiteOpener(path string) Opener {
	return func(ctx context.Context) (*sql.DB, error) {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
		dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path, sqliteBusyMS)
		handle, err := sql.Open(SQLite.DriverName(), dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		handle.SetMaxOpenConns(1)
		return handle, nil
	}
}
