package kpi

import "kpitracker/internal/domain/scoring"

type Entry struct {
	ID           int64   `json:"id"`
	EmployeeName string  `json:"employeeName"`
	Department   string  `json:"department"`
	KPI1         int     `json:"kpi1"`
	KPI2         int     `json:"kpi2"`
	KPI3         int     `json:"kpi3"`
	KPI4         int     `json:"kpi4"`
	TotalScore   float64 `json:"totalScore"`
	Rating       string  `json:"rating"`
	CreatedAt    string  `json:"createdAt"`
}

func (e Entry) KPIs() [scoring.KPICount]int {
	return [scoring.KPICount]int{e.KPI1, e.KPI2, e.KPI3, e.KPI4}
}

func (e *Entry) setKPIs(k [scoring.KPICount]int) {
	e.KPI1, e.KPI2, e.KPI3, e.KPI4 = k[0], k[1], k[2], k[3]
}

// Filter selects entries. Empty fields are ignored; the date range applies
// only when both From and To are set (YYYY-MM-DD, inclusive).
type Filter struct {
	Department   string `json:"department,omitempty"`
	Employee     string `json:"employee,omitempty"`
	NameContains string `json:"q,omitempty"`
	From         string `json:"from,omitempty"`
	To           string `json:"to,omitempty"`
}

// ImportRow is one line of tabular input before coercion. Line is the
// 1-based data row number used in warnings.
type ImportRow struct {
	Line       int
	Employee   string
	Department string
	KPI        [scoring.KPICount]string
	Score      string
	Rating     string
	CreatedAt  string
}

type RowWarning struct {
	Row     int    `json:"row"`
	Column  string `json:"column"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

type ImportResult struct {
	Committed int          `json:"committed"`
	Warnings  []RowWarning `json:"warnings"`
}

type DepartmentScore struct {
	Department string  `json:"department"`
	Mean       float64 `json:"mean"`
	Count      int     `json:"count"`
}

type Summary struct {
	Count              int               `json:"count"`
	Mean               float64           `json:"mean"`
	Max                float64           `json:"max"`
	Min                float64           `json:"min"`
	ByDepartment       []DepartmentScore `json:"byDepartment"`
	RatingDistribution map[string]int    `json:"ratingDistribution"`
}
