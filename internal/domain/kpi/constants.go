package kpi

const (
	// DepartmentAll is the filter choice meaning every department.
	DepartmentAll = "All"

	MinFormKPI = 1

	DefaultImportBatchSize = 200

	// MaxImportBatchSize keeps one multi-row insert under the smallest bind
	// parameter limit of the supported backends (SQLite, 32766).
	MaxImportBatchSize = 32766 / insertParamsPerRow
	insertParamsPerRow = 9

	dateLayout = "2006-01-02"
)

const (
	ColEmployee   = "Employee"
	ColDepartment = "Department"
	ColKPI1       = "KPI1"
	ColKPI2       = "KPI2"
	ColKPI3       = "KPI3"
	ColKPI4       = "KPI4"
	ColTotalScore = "Total Score"
	ColRating     = "Rating"
	ColCreatedAt  = "Created At"
)

// ExportColumns is the interchange layout shared by export and import.
var ExportColumns = []string{ColEmployee, ColDepartment, ColKPI1, ColKPI2, ColKPI3, ColKPI4, ColTotalScore, ColRating, ColCreatedAt}

var kpiColumns = [4]string{ColKPI1, ColKPI2, ColKPI3, ColKPI4}

const (
	OpCreated  = "created"
	OpUpdated  = "updated"
	OpDeleted  = "deleted"
	OpImported = "imported"
)
