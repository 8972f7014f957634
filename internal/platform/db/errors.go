package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"

	"kpitracker/internal/platform/apperrors"
)

const pgUniqueViolation = "23505"

// deadConnPatterns covers drivers that surface connection loss only as text.
var deadConnPatterns = []string{
	"sql: database is closed",
	"connection refused",
	"connection reset",
	"broken pipe",
	"conn closed",
	"unexpected eof",
	"server closed the connection",
	"terminating connection",
	"network is unreachable",
	"no such host",
}

// IsDeadConnection reports whether err means the cached store handle can no
// longer be used and a fresh one should be opened.
func IsDeadConnection(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// class 08 is connection exception, 57P0x is operator intervention
		return strings.HasPrefix(pgErr.Code, "08") || pgErr.Code == "57P01" || pgErr.Code == "57P02" || pgErr.Code == "57P03"
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range deadConnPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// IsUniqueViolation reports a unique constraint failure on either backend.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", apperrors.ErrStorageUnavailable, err)
}
