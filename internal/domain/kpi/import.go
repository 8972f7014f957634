package kpi

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"kpitracker/internal/domain/scoring"
	"kpitracker/internal/platform/apperrors"
	"kpitracker/internal/platform/db"
)

type field int

const (
	fieldEmployee field = iota
	fieldDepartment
	fieldKPI1
	fieldKPI2
	fieldKPI3
	fieldKPI4
	fieldScore
	fieldRating
	fieldCreatedAt
)

var headerAliases = map[string]field{
	"employee":     fieldEmployee,
	"employeename": fieldEmployee,
	"name":         fieldEmployee,
	"department":   fieldDepartment,
	"dept":         fieldDepartment,
	"kpi1":         fieldKPI1,
	"kpi2":         fieldKPI2,
	"kpi3":         fieldKPI3,
	"kpi4":         fieldKPI4,
	"totalscore":   fieldScore,
	"score":        fieldScore,
	"rating":       fieldRating,
	"createdat":    fieldCreatedAt,
	"date":         fieldCreatedAt,
	"timestamp":    fieldCreatedAt,
}

var requiredFields = []struct {
	field field
	name  string
}{
	{fieldEmployee, ColEmployee},
	{fieldDepartment, ColDepartment},
	{fieldKPI1, ColKPI1},
	{fieldKPI2, ColKPI2},
	{fieldKPI3, ColKPI3},
	{fieldKPI4, ColKPI4},
}

var importTimeLayouts = []string{
	db.TimestampLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	dateLayout,
	"02/01/2006 15:04:05",
	"02/01/2006",
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	return strings.NewReplacer(" ", "", "_", "", "-", "", ".", "").Replace(h)
}

// ParseCSV reads tabular input whose first record is the header.
func ParseCSV(r io.Reader, labels [scoring.KPICount]string) ([]ImportRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, apperrors.Invalid("file", "invalid csv: "+err.Error())
	}
	return parseRecords(records, labels)
}

// ParseXLSX reads the first worksheet of a workbook.
func ParseXLSX(r io.Reader, labels [scoring.KPICount]string) ([]ImportRow, error) {
	file, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperrors.Invalid("file", "invalid xlsx: "+err.Error())
	}
	defer func() { _ = file.Close() }()

	sheet := file.GetSheetName(0)
	if sheet == "" {
		return nil, apperrors.Invalid("file", "no worksheet found")
	}
	records, err := file.GetRows(sheet)
	if err != nil {
		return nil, apperrors.Invalid("file", "unreadable worksheet: "+err.Error())
	}
	return parseRecords(records, labels)
}

// ParseFile picks the parser from the file name and falls back to sniffing
// the zip signature of a workbook.
func ParseFile(name string, data []byte, labels [scoring.KPICount]string) ([]ImportRow, error) {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".xlsx") || bytes.HasPrefix(data, []byte("PK\x03\x04")) {
		return ParseXLSX(bytes.NewReader(data), labels)
	}
	return ParseCSV(bytes.NewReader(data), labels)
}

func parseRecords(records [][]string, labels [scoring.KPICount]string) ([]ImportRow, error) {
	if len(records) == 0 {
		return nil, apperrors.Invalid("file", "empty input")
	}

	aliases := make(map[string]field, len(headerAliases)+len(labels))
	for k, v := range headerAliases {
		aliases[k] = v
	}
	for i, label := range labels {
		if key := normalizeHeader(label); key != "" {
			if _, taken := aliases[key]; !taken {
				aliases[key] = fieldKPI1 + field(i)
			}
		}
	}

	index := map[field]int{}
	for i, h := range records[0] {
		if f, ok := aliases[normalizeHeader(h)]; ok {
			if _, seen := index[f]; !seen {
				index[f] = i
			}
		}
	}

	var missing []string
	for _, req := range requiredFields {
		if _, ok := index[req.field]; !ok {
			missing = append(missing, req.name)
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.Invalid("file", "missing required columns: "+strings.Join(missing, ", "))
	}

	get := func(record []string, f field) string {
		if idx, ok := index[f]; ok && idx < len(record) {
			return strings.TrimSpace(record[idx])
		}
		return ""
	}

	rows := make([]ImportRow, 0, len(records)-1)
	for i, record := range records[1:] {
		if blankRecord(record) {
			continue
		}
		row := ImportRow{
			Line:       i + 1,
			Employee:   get(record, fieldEmployee),
			Department: get(record, fieldDepartment),
			Score:      get(record, fieldScore),
			Rating:     get(record, fieldRating),
			CreatedAt:  get(record, fieldCreatedAt),
		}
		for k := 0; k < scoring.KPICount; k++ {
			row.KPI[k] = get(record, fieldKPI1+field(k))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func blankRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// coerceKPI converts a cell to a KPI value. Missing or non-numeric cells
// become 0 and out-of-range values are clamped; both report a warning.
func coerceKPI(raw string) (int, string) {
	if raw == "" {
		return 0, "missing value coerced to 0"
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, "non-numeric value coerced to 0"
	}
	n := int(math.Round(v))
	switch {
	case n < scoring.MinKPI:
		return scoring.MinKPI, fmt.Sprintf("value clamped to %d", scoring.MinKPI)
	case n > scoring.MaxKPI:
		return scoring.MaxKPI, fmt.Sprintf("value clamped to %d", scoring.MaxKPI)
	case float64(n) != v:
		return n, "fractional value rounded"
	}
	return n, ""
}

// suppliedResult honours a score and rating from the input only when both
// are present and valid.
func suppliedResult(row ImportRow, mode scoring.Mode) (scoring.Result, bool) {
	if row.Score == "" || row.Rating == "" {
		return scoring.Result{}, false
	}
	value, err := strconv.ParseFloat(row.Score, 64)
	if err != nil || math.IsNaN(value) || value < 0 || value > scoring.MaxScore(mode) {
		return scoring.Result{}, false
	}
	rating, ok := scoring.NormalizeRating(row.Rating)
	if !ok {
		return scoring.Result{}, false
	}
	return scoring.Result{Value: scoring.Round2(value), Rating: rating}, true
}

func parseCreatedAt(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	for _, layout := range importTimeLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return db.Timestamp(t), true
		}
	}
	if serial, err := strconv.ParseFloat(raw, 64); err == nil {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return db.Timestamp(t), true
		}
	}
	return "", false
}
