package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCLI(t *testing.T, dbPath string, args ...string) (string, error) {
	t.Helper()
	return runCLIWithInput(t, dbPath, "", args...)
}

func runCLIWithInput(t *testing.T, dbPath, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := RootCommand()
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--database-url", "sqlite:///" + dbPath, "--log-level", "error"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"DATABASE_URL", "DB_USER", "DB_PASSWORD", "DB_HOST", "DB_NAME", "JWT_SECRET"} {
		t.Setenv(key, "")
	}
	t.Setenv("APP_ENV", "test")
	t.Setenv("SEED_EMPLOYEES", "true")
	t.Setenv("ENFORCE_EMPLOYEE_MASTER", "true")
}

func TestImportThenExport(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "kpi.db")

	out, err := runCLI(t, dbPath, "schema")
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	if !strings.Contains(out, "sqlite") {
		t.Fatalf("unexpected schema output: %q", out)
	}

	input := filepath.Join(dir, "scores.csv")
	csv := "Employee,Department,KPI1,KPI2,KPI3,KPI4\n" +
		"Ajay,Fabric,80,70,60,90\n" +
		"Monika,Merchant,150,70,60,90\n"
	if err := os.WriteFile(input, []byte(csv), 0o600); err != nil {
		t.Fatalf("write input: %v", err)
	}
	out, err = runCLI(t, dbPath, "import", input)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(out, "imported 2 of 2 rows") || !strings.Contains(out, "row 2 KPI1") {
		t.Fatalf("unexpected import output: %q", out)
	}

	out, err = runCLI(t, dbPath, "export", "--format", "csv", "--out", "-", "--department", "Merchant")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "Monika,Merchant,100,70,60,90,320,Excellent,") {
		t.Fatalf("unexpected export: %q", out)
	}

	pdfPath := filepath.Join(dir, "report.pdf")
	if _, err := runCLI(t, dbPath, "export", "-f", "pdf", "-o", pdfPath); err != nil {
		t.Fatalf("pdf export: %v", err)
	}
	if data, err := os.ReadFile(pdfPath); err != nil || !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("expected pdf file, err=%v", err)
	}
}

func TestEmployeesAndAdminSecret(t *testing.T) {
	isolateEnv(t)
	dbPath := filepath.Join(t.TempDir(), "kpi.db")

	if _, err := runCLI(t, dbPath, "employees", "add", "Priya", "Finishing"); err != nil {
		t.Fatalf("add employee: %v", err)
	}
	if _, err := runCLI(t, dbPath, "employees", "deactivate", "Ajay"); err != nil {
		t.Fatalf("deactivate employee: %v", err)
	}
	out, err := runCLI(t, dbPath, "employees", "list")
	if err != nil {
		t.Fatalf("list employees: %v", err)
	}
	if !strings.Contains(out, "Priya") || strings.Contains(out, "Ajay") {
		t.Fatalf("unexpected employee list: %q", out)
	}

	if _, err := runCLI(t, dbPath, "admin-secret", "a-much-better-secret"); err == nil {
		t.Fatal("expected a positional secret to be refused")
	}
	if _, err := runCLIWithInput(t, dbPath, "", "admin-secret"); err == nil {
		t.Fatal("expected empty stdin to be rejected")
	}
	if _, err := runCLIWithInput(t, dbPath, "abc\n", "admin-secret"); err == nil {
		t.Fatal("expected short secret to be rejected")
	}
	out, err = runCLIWithInput(t, dbPath, "a-much-better-secret\n", "admin-secret")
	if err != nil || !strings.Contains(out, "updated") {
		t.Fatalf("admin-secret: %q %v", out, err)
	}
}

func TestReadSecret(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "s3cret\n", want: "s3cret"},
		{in: "s3cret\r\nignored\n", want: "s3cret"},
		{in: "no newline", want: "no newline"},
		{in: "  spaced secret \n", want: "  spaced secret "},
		{in: "", wantErr: true},
		{in: "\n", wantErr: true},
	}
	for _, tc := range tests {
		got, err := readSecret(strings.NewReader(tc.in))
		if tc.wantErr {
			if err == nil {
				t.Fatalf("readSecret(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("readSecret(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
	}
}
