package db

import (
	"strconv"
	"strings"
)

// Dialect selects backend-specific SQL fragments. Statements across the
// repository are written with ? placeholders and rebound per dialect.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

func (d Dialect) DriverName() string {
	if d == Postgres {
		return "pgx"
	}
	return "sqlite"
}

// Rebind rewrites ? placeholders to $1..$n for Postgres. Placeholders inside
// single-quoted literals are left alone.
func (d Dialect) Rebind(query string) string {
	if d != Postgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// DateOf casts a text timestamp expression to its calendar date.
func (d Dialect) DateOf(expr string) string {
	if d == Postgres {
		return "CAST(" + expr + " AS DATE)"
	}
	return "date(" + expr + ")"
}

func (d Dialect) AutoIDColumn() string {
	if d == Postgres {
		return "id BIGSERIAL PRIMARY KEY"
	}
	return "id INTEGER PRIMARY KEY AUTOINCREMENT"
}

func (d Dialect) RealType() string {
	if d == Postgres {
		return "DOUBLE PRECISION"
	}
	return "REAL"
}
