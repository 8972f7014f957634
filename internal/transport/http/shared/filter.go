package shared

import (
	"net/http"
	"strings"
	"time"

	"kpitracker/internal/domain/kpi"
)

// ParseFilter reads the entry filter from the query string and collects
// date problems on v.
func ParseFilter(r *http.Request, v *Validator) kpi.Filter {
	q := r.URL.Query()
	f := kpi.Filter{
		Department:   strings.TrimSpace(q.Get("department")),
		Employee:     strings.TrimSpace(q.Get("employee")),
		NameContains: strings.TrimSpace(q.Get("q")),
		From:         strings.TrimSpace(q.Get("from")),
		To:           strings.TrimSpace(q.Get("to")),
	}
	var start, end time.Time
	if f.From != "" {
		start, _ = v.Date("from", f.From)
	}
	if f.To != "" {
		end, _ = v.Date("to", f.To)
	}
	v.DateOrder("from", start, "to", end)
	return f
}
