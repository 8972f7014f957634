package db

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Opener creates a fresh store handle. It is called lazily on first use and
// again after the cached handle has been invalidated.
type Opener func(ctx context.Context) (*sql.DB, error)

// Manager owns the single cached store handle. Every operation acquires the
// handle, and a dead-connection failure triggers exactly one reconnect and
// retry; a second failure is reported as apperrors.ErrStorageUnavailable.
type Manager struct {
	dialect    Dialect
	open       Opener
	logger     *slog.Logger
	mu         sync.Mutex
	db         *sql.DB
	closed     bool
	reconnects atomic.Uint64
}

var errManagerClosed = errors.New("connection manager closed")

func NewManager(dialect Dialect, open Opener, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{dialect: dialect, open: open, logger: logger}
}

func (m *Manager) Dialect() Dialect {
	return m.dialect
}

// Acquire returns the cached handle, opening and pinging a new one when none
// is cached.
func (m *Manager) Acquire(ctx context.Context) (*sql.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errManagerClosed
	}
	if m.db != nil {
		return m.db, nil
	}
	handle, err := m.open(ctx)
	if err != nil {
		return nil, err
	}
	if err := handle.PingContext(ctx); err != nil {
		_ = handle.Close()
		return nil, err
	}
	m.db = handle
	return handle, nil
}

// Invalidate drops the cached handle so the next Acquire reconnects.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropLocked(m.db)
}

func (m *Manager) invalidate(handle *sql.DB) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropLocked(handle)
}

func (m *Manager) dropLocked(handle *sql.DB) {
	if handle == nil || m.db != handle {
		return
	}
	if err := m.db.Close(); err != nil {
		m.logger.Debug("closing invalidated store handle failed", "err", err)
	}
	m.db = nil
}

func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	return err
}

// Reconnects counts how many times a dead handle was replaced.
func (m *Manager) Reconnects() uint64 {
	return m.reconnects.Load()
}

func (m *Manager) Ping(ctx context.Context) error {
	return m.run(ctx, func(handle *sql.DB) error {
		return handle.PingContext(ctx)
	})
}

func (m *Manager) run(ctx context.Context, fn func(*sql.DB) error) error {
	handle, err := m.Acquire(ctx)
	if err != nil {
		return unavailable(err)
	}
	err = fn(handle)
	if err == nil || !IsDeadConnection(err) {
		return err
	}

	m.logger.Warn("store connection lost, reconnecting", "backend", string(m.dialect), "err", err)
	m.invalidate(handle)
	m.reconnects.Add(1)

	handle, err = m.Acquire(ctx)
	if err != nil {
		return unavailable(err)
	}
	err = fn(handle)
	if err != nil && IsDeadConnection(err) {
		m.invalidate(handle)
		return unavailable(err)
	}
	return err
}

func (m *Manager) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	query = m.dialect.Rebind(query)
	var result sql.Result
	err := m.run(ctx, func(handle *sql.DB) error {
		var err error
		result, err = handle.ExecContext(ctx, query, args...)
		return err
	})
	return result, err
}

// Query runs a row-returning statement. Only the statement itself is retried;
// errors surfacing while iterating the rows are returned to the caller as-is.
func (m *Manager) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	query = m.dialect.Rebind(query)
	var rows *sql.Rows
	err := m.run(ctx, func(handle *sql.DB) error {
		var err error
		rows, err = handle.QueryContext(ctx, query, args...)
		return err
	})
	return rows, err
}

// Row defers execution until Scan so the single retry covers the read.
type Row struct {
	m     *Manager
	ctx   context.Context
	query string
	args  []any
}

func (m *Manager) QueryRow(ctx context.Context, query string, args ...any) *Row {
	return &Row{m: m, ctx: ctx, query: m.dialect.Rebind(query), args: args}
}

func (r *Row) Scan(dest ...any) error {
	return r.m.run(r.ctx, func(handle *sql.DB) error {
		return handle.QueryRowContext(r.ctx, r.query, r.args...).Scan(dest...)
	})
}

// Tx rebinds statements issued inside WithTx.
type Tx struct {
	tx      *sql.Tx
	dialect Dialect
}

func (t *Tx) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.dialect.Rebind(query), args...)
}

func (t *Tx) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.dialect.Rebind(query), args...)
}

func (t *Tx) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, t.dialect.Rebind(query), args...)
}

// WithTx runs fn inside one transaction. A connection lost before commit is
// retried once like any other statement; a connection lost during commit is
// not, since the outcome is unknown.
func (m *Manager) WithTx(ctx context.Context, fn func(*Tx) error) error {
	committing := false
	var commitErr error
	err := m.run(ctx, func(handle *sql.DB) error {
		if committing {
			return commitErr
		}
		tx, err := handle.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if err := fn(&Tx{tx: tx, dialect: m.dialect}); err != nil {
			_ = tx.Rollback()
			return err
		}
		committing = true
		commitErr = tx.Commit()
		return commitErr
	})
	if committing && commitErr != nil && IsDeadConnection(commitErr) {
		return unavailable(commitErr)
	}
	return err
}
