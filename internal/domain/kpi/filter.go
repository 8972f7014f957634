package kpi

import (
	"strings"

	"kpitracker/internal/platform/db"
)

const orderByRecent = " ORDER BY created_at DESC, id DESC"

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// BuildFilter composes the WHERE clause for f. Every present criterion is
// ANDed onto a constant anchor; absent criteria add nothing.
func BuildFilter(d db.Dialect, f Filter) (string, []any) {
	where := []string{"1=1"}
	var args []any

	if dept := strings.TrimSpace(f.Department); dept != "" && dept != DepartmentAll {
		where = append(where, "department = ?")
		args = append(args, dept)
	}
	if emp := strings.TrimSpace(f.Employee); emp != "" {
		where = append(where, "employee_name = ?")
		args = append(args, emp)
	}
	if q := strings.TrimSpace(f.NameContains); q != "" {
		where = append(where, `lower(employee_name) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+likeEscaper.Replace(strings.ToLower(q))+"%")
	}
	from, to := strings.TrimSpace(f.From), strings.TrimSpace(f.To)
	if from != "" && to != "" {
		where = append(where, d.DateOf("created_at")+" BETWEEN "+d.DateOf("?")+" AND "+d.DateOf("?"))
		args = append(args, from, to)
	}
	return strings.Join(where, " AND "), args
}
