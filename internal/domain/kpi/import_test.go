package kpi

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"kpitracker/internal/domain/settings"
	"kpitracker/internal/platform/apperrors"
)

func TestParseCSVReconcilesHeaders(t *testing.T) {
	labels := [4]string{"Quality", "Speed", "Attendance", "Teamwork"}
	input := "employee_name, DEPT ,Quality,kpi 2,Attendance,KPI_4,total_score,Rating,created_at\n" +
		"Ajay,Fabric,90,80,70,60,300,Good,2024-01-02 03:04:05\n" +
		",,,,,,,,\n" +
		"Monika,Merchant,1,2,3\n"

	rows, err := ParseCSV(strings.NewReader(input), labels)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected blank line skipped, got %d rows", len(rows))
	}
	first := rows[0]
	if first.Employee != "Ajay" || first.Department != "Fabric" || first.KPI != [4]string{"90", "80", "70", "60"} {
		t.Fatalf("unexpected first row: %+v", first)
	}
	if first.Score != "300" || first.Rating != "Good" || first.CreatedAt != "2024-01-02 03:04:05" {
		t.Fatalf("unexpected optional columns: %+v", first)
	}
	if rows[1].Line != 3 || rows[1].KPI[3] != "" {
		t.Fatalf("expected short record padded with blanks, got %+v", rows[1])
	}
}

func TestParseCSVRejectsMissingColumns(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("Employee,KPI1,KPI2\nAjay,1,2\n"), settings.DefaultLabels())
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "Department") || !strings.Contains(err.Error(), "KPI4") {
		t.Fatalf("expected missing columns named, got %v", err)
	}
}

func TestXLSXRoundTrip(t *testing.T) {
	entries := []Entry{
		{EmployeeName: "Ajay", Department: "Fabric", KPI1: 90, KPI2: 80, KPI3: 70, KPI4: 60, TotalScore: 300, Rating: "Good", CreatedAt: "2024-01-02 03:04:05"},
		{EmployeeName: "Monika", Department: "Merchant", KPI1: 1, KPI2: 2, KPI3: 3, KPI4: 4, TotalScore: 10, Rating: "Needs Improvement", CreatedAt: "2024-01-03 03:04:05"},
	}
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, entries); err != nil {
		t.Fatalf("write error: %v", err)
	}

	rows, err := ParseFile("upload.bin", buf.Bytes(), settings.DefaultLabels())
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[1].Employee != "Monika" || rows[1].KPI != [4]string{"1", "2", "3", "4"} || rows[1].Rating != "Needs Improvement" {
		t.Fatalf("unexpected row: %+v", rows[1])
	}
}

func TestCoerceKPI(t *testing.T) {
	tests := []struct {
		raw      string
		want     int
		wantWarn bool
	}{
		{raw: "75", want: 75},
		{raw: "75.0", want: 75},
		{raw: "", want: 0, wantWarn: true},
		{raw: "abc", want: 0, wantWarn: true},
		{raw: "NaN", want: 0, wantWarn: true},
		{raw: "120", want: 100, wantWarn: true},
		{raw: "-3", want: 0, wantWarn: true},
		{raw: "49.6", want: 50, wantWarn: true},
	}
	for _, tc := range tests {
		got, warning := coerceKPI(tc.raw)
		if got != tc.want || (warning != "") != tc.wantWarn {
			t.Fatalf("coerceKPI(%q) = %d, %q", tc.raw, got, warning)
		}
	}
}

func TestParseCreatedAt(t *testing.T) {
	tests := map[string]string{
		"2024-01-02 03:04:05": "2024-01-02 03:04:05",
		"2024-01-02T03:04:05": "2024-01-02 03:04:05",
		"2024-01-02":          "2024-01-02 00:00:00",
		"45293":               "2024-01-02 00:00:00",
	}
	for raw, want := range tests {
		got, ok := parseCreatedAt(raw)
		if !ok || got != want {
			t.Fatalf("parseCreatedAt(%q) = %q, %v; want %q", raw, got, ok, want)
		}
	}
	if _, ok := parseCreatedAt("last tuesday"); ok {
		t.Fatal("expected unparseable timestamp to be rejected")
	}
}

func TestWritePDF(t *testing.T) {
	entries := []Entry{{EmployeeName: "Ajay", Department: "Fabric", KPI1: 90, KPI2: 80, KPI3: 70, KPI4: 60, TotalScore: 300, Rating: "Good", CreatedAt: "2024-01-02 03:04:05"}}
	var buf bytes.Buffer
	err := WritePDF(&buf, entries, ExportReport{Filter: Filter{Department: "Fabric"}, Summary: Summarize(entries), Labels: settings.DefaultLabels()})
	if err != nil {
		t.Fatalf("pdf error: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF")) {
		t.Fatal("expected a PDF document")
	}
}

func TestParseExportFormat(t *testing.T) {
	if f, err := ParseExportFormat(""); err != nil || f != FormatCSV {
		t.Fatalf("expected csv default, got %q %v", f, err)
	}
	if f, err := ParseExportFormat("XLSX"); err != nil || f != FormatXLSX {
		t.Fatalf("expected xlsx, got %q %v", f, err)
	}
	if _, err := ParseExportFormat("docx"); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
