package kpi

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"kpitracker/internal/domain/scoring"
	"kpitracker/internal/platform/apperrors"
)

type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatXLSX ExportFormat = "xlsx"
	FormatPDF  ExportFormat = "pdf"

	xlsxSheet = "KPI Records"
)

func ParseExportFormat(raw string) (ExportFormat, error) {
	switch f := ExportFormat(strings.ToLower(strings.TrimSpace(raw))); f {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX, FormatPDF:
		return f, nil
	default:
		return "", apperrors.Invalid("format", "must be csv, xlsx or pdf")
	}
}

func (f ExportFormat) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "text/csv"
	}
}

func (f ExportFormat) FileName() string {
	return "kpi_records." + string(f)
}

// ExportReport is everything a report needs besides the rows.
type ExportReport struct {
	Filter    Filter
	Summary   Summary
	Labels    [scoring.KPICount]string
	Generated time.Time
}

func Export(w io.Writer, format ExportFormat, entries []Entry, report ExportReport) error {
	switch format {
	case FormatXLSX:
		return WriteXLSX(w, entries)
	case FormatPDF:
		return WritePDF(w, entries, report)
	default:
		return WriteCSV(w, entries)
	}
}

func exportRecord(e Entry) []string {
	return []string{
		e.EmployeeName,
		e.Department,
		strconv.Itoa(e.KPI1),
		strconv.Itoa(e.KPI2),
		strconv.Itoa(e.KPI3),
		strconv.Itoa(e.KPI4),
		formatScore(e.TotalScore),
		e.Rating,
		e.CreatedAt,
	}
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func WriteCSV(w io.Writer, entries []Entry) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(ExportColumns); err != nil {
		return err
	}
	for _, e := range entries {
		if err := writer.Write(exportRecord(e)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func WriteXLSX(w io.Writer, entries []Entry) error {
	file := excelize.NewFile()
	defer func() { _ = file.Close() }()

	if err := file.SetSheetName(file.GetSheetName(0), xlsxSheet); err != nil {
		return err
	}
	header := make([]any, len(ExportColumns))
	for i, c := range ExportColumns {
		header[i] = c
	}
	if err := file.SetSheetRow(xlsxSheet, "A1", &header); err != nil {
		return err
	}
	for i, e := range entries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{e.EmployeeName, e.Department, e.KPI1, e.KPI2, e.KPI3, e.KPI4, e.TotalScore, e.Rating, e.CreatedAt}
		if err := file.SetSheetRow(xlsxSheet, cell, &row); err != nil {
			return err
		}
	}
	return file.Write(w)
}

var pdfColumnWidths = []float64{45, 30, 18, 18, 18, 18, 25, 35, 40}

func WritePDF(w io.Writer, entries []Entry, report ExportReport) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle("KPI Records", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "KPI Records")
	pdf.Ln(12)

	generated := report.Generated
	if generated.IsZero() {
		generated = time.Now()
	}
	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, "Generated: "+generated.Format("2006-01-02 15:04"))
	pdf.Ln(6)
	pdf.Cell(0, 6, "Filters: "+describeFilter(report.Filter))
	pdf.Ln(6)
	s := report.Summary
	pdf.Cell(0, 6, fmt.Sprintf("Records: %d   Average: %.2f   Highest: %s   Lowest: %s",
		s.Count, s.Mean, formatScore(s.Max), formatScore(s.Min)))
	pdf.Ln(10)

	headers := append([]string{}, ExportColumns...)
	for i, label := range report.Labels {
		if label != "" {
			headers[2+i] = label
		}
	}

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range headers {
		pdf.CellFormat(pdfColumnWidths[i], 7, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, e := range entries {
		for i, v := range exportRecord(e) {
			align := "L"
			if i >= 2 && i <= 6 {
				align = "R"
			}
			pdf.CellFormat(pdfColumnWidths[i], 6, v, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	return pdf.Output(w)
}

func describeFilter(f Filter) string {
	var parts []string
	if f.Department != "" && f.Department != DepartmentAll {
		parts = append(parts, "department="+f.Department)
	}
	if f.Employee != "" {
		parts = append(parts, "employee="+f.Employee)
	}
	if f.NameContains != "" {
		parts = append(parts, "name contains "+strconv.Quote(f.NameContains))
	}
	if f.From != "" && f.To != "" {
		parts = append(parts, f.From+" to "+f.To)
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}
