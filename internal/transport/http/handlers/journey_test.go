package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"kpitracker/internal/app/server"
	"kpitracker/internal/domain/kpi"
	"kpitracker/internal/platform/config"
	"kpitracker/internal/testhelpers"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Field   string `json:"field"`
	} `json:"error"`
}

type client struct {
	t     *testing.T
	base  string
	http  *http.Client
	token string
}

func newApp(t *testing.T) *client {
	t.Helper()
	cfg := config.Config{
		Environment:           "test",
		SQLitePath:            filepath.Join(t.TempDir(), "kpi.db"),
		DBConnectTimeout:      5 * time.Second,
		JWTSecret:             "test-secret",
		AdminSessionTTL:       time.Hour,
		SeedEmployees:         true,
		EnforceEmployeeMaster: true,
		ImportBatchSize:       2,
		MaxBodyBytes:          1 << 20,
		MaxUploadBytes:        8 << 20,
		LoginRateLimit:        100,
		MetricsEnabled:        true,
	}
	app, err := server.New(context.Background(), cfg, testhelpers.DiscardLogger())
	if err != nil {
		t.Fatalf("failed to start app: %v", err)
	}
	ts := httptest.NewServer(app.Router)
	t.Cleanup(func() {
		ts.Close()
		_ = app.Close()
	})
	return &client{t: t, base: ts.URL, http: ts.Client()}
}

func (c *client) do(method, path string, body any) (int, envelope) {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		c.t.Fatalf("request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req)
}

func (c *client) send(req *http.Request) (int, envelope) {
	c.t.Helper()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		c.t.Fatalf("%s %s: decode: %v", req.Method, req.URL.Path, err)
	}
	return resp.StatusCode, env
}

func (c *client) upload(path, filename, content string) (int, envelope) {
	c.t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		c.t.Fatalf("form file: %v", err)
	}
	_, _ = part.Write([]byte(content))
	_ = writer.Close()
	req, err := http.NewRequest(http.MethodPost, c.base+path, &buf)
	if err != nil {
		c.t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return c.send(req)
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decode data: %v (%s)", err, env.Data)
	}
	return out
}

func expectStatus(t *testing.T, got, want int, env envelope) {
	t.Helper()
	if got != want {
		t.Fatalf("expected status %d, got %d (%+v)", want, got, env.Error)
	}
}

func TestEntryLifecycleJourney(t *testing.T) {
	c := newApp(t)

	status, env := c.do(http.MethodGet, "/api/v1/meta", nil)
	expectStatus(t, status, http.StatusOK, env)
	meta := decode[map[string]any](t, env)
	if meta["backend"] != "sqlite" || meta["persistent"] != false || meta["placeholderSecret"] != true {
		t.Fatalf("unexpected meta: %+v", meta)
	}

	status, env = c.do(http.MethodPost, "/api/v1/entries", map[string]any{
		"employeeName": "Ajay", "kpi1": 80, "kpi2": 70, "kpi3": 60, "kpi4": 90,
	})
	expectStatus(t, status, http.StatusCreated, env)
	created := decode[kpi.Entry](t, env)
	if created.Department != "Fabric" || created.TotalScore != 300 || created.Rating != "Good" {
		t.Fatalf("unexpected entry: %+v", created)
	}

	status, env = c.do(http.MethodPost, "/api/v1/entries", map[string]any{
		"employeeName": "Nobody", "department": "Fabric", "kpi1": 80, "kpi2": 70, "kpi3": 60, "kpi4": 90,
	})
	expectStatus(t, status, http.StatusBadRequest, env)

	status, env = c.do(http.MethodPost, "/api/v1/entries", map[string]any{
		"employeeName": "Ajay", "kpi1": 0, "kpi2": 70, "kpi3": 60, "kpi4": 101,
	})
	expectStatus(t, status, http.StatusBadRequest, env)

	entryPath := fmt.Sprintf("/api/v1/entries/%d", created.ID)
	status, env = c.do(http.MethodPut, entryPath, map[string]any{"kpi1": 90, "kpi2": 90, "kpi3": 90, "kpi4": 90})
	expectStatus(t, status, http.StatusUnauthorized, env)

	status, env = c.do(http.MethodPost, "/api/v1/admin/login", map[string]any{"secret": "wrong"})
	expectStatus(t, status, http.StatusUnauthorized, env)
	status, env = c.do(http.MethodPost, "/api/v1/admin/login", map[string]any{"secret": "change-me"})
	expectStatus(t, status, http.StatusOK, env)
	c.token = decode[struct {
		Token string `json:"token"`
	}](t, env).Token

	status, env = c.do(http.MethodPut, entryPath, map[string]any{"kpi1": 90, "kpi2": 90, "kpi3": 90, "kpi4": 90})
	expectStatus(t, status, http.StatusOK, env)
	if updated := decode[kpi.Entry](t, env); updated.TotalScore != 360 || updated.Rating != "Excellent" {
		t.Fatalf("unexpected update: %+v", updated)
	}

	status, env = c.do(http.MethodDelete, entryPath, nil)
	expectStatus(t, status, http.StatusBadRequest, env)
	status, env = c.do(http.MethodDelete, entryPath+"?confirm=true", nil)
	expectStatus(t, status, http.StatusOK, env)
	status, env = c.do(http.MethodGet, entryPath, nil)
	expectStatus(t, status, http.StatusNotFound, env)

	status, env = c.do(http.MethodGet, "/api/v1/audit/events?entityType=entry&includeDetails=true", nil)
	expectStatus(t, status, http.StatusOK, env)
	events := decode[[]struct {
		Action string          `json:"action"`
		Actor  string          `json:"actor"`
		Before json.RawMessage `json:"before"`
	}](t, env)
	if len(events) != 3 || events[0].Action != "entry.delete" || events[2].Action != "entry.create" {
		t.Fatalf("unexpected audit trail: %+v", events)
	}
	if events[2].Actor != "anonymous" || !strings.HasPrefix(events[0].Actor, "admin:") || len(events[0].Before) == 0 {
		t.Fatalf("unexpected audit actors: %+v", events)
	}

	status, env = c.do(http.MethodPost, "/api/v1/admin/logout", nil)
	expectStatus(t, status, http.StatusOK, env)
	status, env = c.do(http.MethodPut, "/api/v1/settings/mode", map[string]any{"mode": "weighted"})
	expectStatus(t, status, http.StatusUnauthorized, env)
}

func TestSettingsAndImportJourney(t *testing.T) {
	c := newApp(t)
	status, env := c.do(http.MethodPost, "/api/v1/admin/login", map[string]any{"secret": "change-me"})
	expectStatus(t, status, http.StatusOK, env)
	c.token = decode[struct {
		Token string `json:"token"`
	}](t, env).Token

	status, env = c.do(http.MethodPut, "/api/v1/settings/weights", map[string]any{"weights": []int{50, 50, 10, 0}})
	expectStatus(t, status, http.StatusUnprocessableEntity, env)
	status, env = c.do(http.MethodPut, "/api/v1/settings/weights", map[string]any{"weights": []int{40, 30, 20}})
	expectStatus(t, status, http.StatusBadRequest, env)
	status, env = c.do(http.MethodPut, "/api/v1/settings/weights", map[string]any{"weights": []int{40, 30, 20, 10}})
	expectStatus(t, status, http.StatusOK, env)

	status, env = c.do(http.MethodPut, "/api/v1/settings/mode", map[string]any{"mode": "weighted"})
	expectStatus(t, status, http.StatusOK, env)
	cfg := decode[struct {
		Mode       string             `json:"mode"`
		Thresholds map[string]float64 `json:"thresholds"`
		MaxScore   float64            `json:"maxScore"`
	}](t, env)
	if cfg.Mode != "weighted" || cfg.MaxScore != 100 || cfg.Thresholds["excellent"] != 80 || cfg.Thresholds["average"] != 40 {
		t.Fatalf("unexpected config after mode switch: %+v", cfg)
	}

	status, env = c.do(http.MethodPut, "/api/v1/settings/labels", map[string]any{"labels": []string{"Quality", "Speed", "Attendance", "Teamwork"}})
	expectStatus(t, status, http.StatusOK, env)

	status, env = c.do(http.MethodPost, "/api/v1/entries", map[string]any{
		"employeeName": "Monika", "kpi1": 90, "kpi2": 80, "kpi3": 70, "kpi4": 60,
	})
	expectStatus(t, status, http.StatusCreated, env)
	if e := decode[kpi.Entry](t, env); e.TotalScore != 80 || e.Rating != "Excellent" || e.Department != "Merchant" {
		t.Fatalf("unexpected weighted entry: %+v", e)
	}

	csv := "Employee,Department,Quality,Speed,Attendance,Teamwork,Created At\n" +
		"Jyoti,Sampling,50,50,50,50,2024-03-01 10:00:00\n" +
		"Deepak,Cutting,abc,100,100,100,2024-03-02 10:00:00\n" +
		"Ajay,Fabric,100,100,100,100,2024-03-03 10:00:00\n"
	status, env = c.upload("/api/v1/entries/import", "scores.csv", csv)
	expectStatus(t, status, http.StatusCreated, env)
	result := decode[kpi.ImportResult](t, env)
	if result.Committed != 3 || len(result.Warnings) != 1 || result.Warnings[0].Row != 2 {
		t.Fatalf("unexpected import result: %+v", result)
	}

	status, env = c.do(http.MethodGet, "/api/v1/entries?from=2024-03-01&to=2024-03-02", nil)
	expectStatus(t, status, http.StatusOK, env)
	page := decode[struct {
		Items []kpi.Entry `json:"items"`
		Total int         `json:"total"`
	}](t, env)
	if page.Total != 2 || page.Items[0].EmployeeName != "Deepak" {
		t.Fatalf("unexpected date filtered list: %+v", page)
	}

	status, env = c.do(http.MethodGet, "/api/v1/entries?from=2024-03-05&to=2024-03-01", nil)
	expectStatus(t, status, http.StatusBadRequest, env)

	status, env = c.do(http.MethodGet, "/api/v1/entries/summary", nil)
	expectStatus(t, status, http.StatusOK, env)
	if summary := decode[kpi.Summary](t, env); summary.Count != 4 || summary.Max != 100 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	status, env = c.do(http.MethodGet, "/api/v1/filters/departments", nil)
	expectStatus(t, status, http.StatusOK, env)
	if depts := decode[[]string](t, env); len(depts) != 5 || depts[0] != kpi.DepartmentAll {
		t.Fatalf("unexpected departments: %v", depts)
	}

	status, env = c.do(http.MethodPut, "/api/v1/settings/permissions", map[string]any{"allowBulkImport": false, "allowEditDelete": true})
	expectStatus(t, status, http.StatusOK, env)
	status, env = c.upload("/api/v1/entries/import", "scores.csv", csv)
	expectStatus(t, status, http.StatusUnauthorized, env)
}

func TestImportRefusesAnonymousBeforeParsing(t *testing.T) {
	c := newApp(t)

	status, env := c.upload("/api/v1/entries/import", "scores.csv", "not,a,valid\nheader,row,here\n")
	expectStatus(t, status, http.StatusUnauthorized, env)

	req, err := http.NewRequest(http.MethodPost, c.base+"/api/v1/entries/import", strings.NewReader("garbage"))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "text/plain")
	status, env = c.send(req)
	expectStatus(t, status, http.StatusUnauthorized, env)
}

func TestExportDownload(t *testing.T) {
	c := newApp(t)
	status, env := c.do(http.MethodPost, "/api/v1/entries", map[string]any{
		"employeeName": "Ajay", "kpi1": 80, "kpi2": 70, "kpi3": 60, "kpi4": 90,
	})
	expectStatus(t, status, http.StatusCreated, env)

	resp, err := c.http.Get(c.base + "/api/v1/entries/export?format=csv&department=Fabric")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "text/csv" {
		t.Fatalf("unexpected export response: %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if !strings.Contains(resp.Header.Get("Content-Disposition"), "kpi_records.csv") {
		t.Fatalf("unexpected disposition: %s", resp.Header.Get("Content-Disposition"))
	}
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "Ajay,Fabric,80,70,60,90,300,Good,") {
		t.Fatalf("unexpected csv: %q", body)
	}

	status, env = c.do(http.MethodGet, "/api/v1/entries/export?format=docx", nil)
	expectStatus(t, status, http.StatusBadRequest, env)
}
