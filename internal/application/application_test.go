package application

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/automationsAC/property-creator-v3/internal/airtable"
	"github.com/automationsAC/property-creator-v3/internal/airtable/airtabletest"
	"github.com/automationsAC/property-creator-v3/internal/config"
)

func baseTestConfig(port string) config.Config {
	return config.Config{
		Host:        "127.0.0.1",
		Port:        port,
		APIV1Str:    "/api/v1",
		ProjectName: "Property Creator API",
		Airtable: config.AirtableConfig{
			APIKey:  airtabletest.APIKey,
			BaseID:  airtabletest.BaseID,
			TableID: airtabletest.TableID,
			Timeout: time.Second,
		},
		ShutdownGracePeriod:  50 * time.Millisecond,
		ReadHeaderTimeout:    20 * time.Millisecond,
		WriteTimeout:         30 * time.Millisecond,
		IdleTimeout:          40 * time.Millisecond,
		EnableRequestLogging: false,
		EnableMetrics:        true,
		LogFormat:            "json",
		RateLimitRPS:         0,
		RateLimitBurst:       0,
	}
}

func newTestApp(t *testing.T, cfg config.Config) (*App, *airtabletest.Server) {
	t.Helper()

	srv := airtabletest.NewServer()
	t.Cleanup(srv.Close)
	cfg.Airtable.BaseURL = srv.BaseURL()

	app, err := New(cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return app, srv
}

func serve(t *testing.T, app *App, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)
	return rec
}

func TestNewInitializesDependencies(t *testing.T) {
	app, _ := newTestApp(t, baseTestConfig("8085"))

	if app.server == nil || app.root == nil {
		t.Fatalf("expected server and root handler to be initialized")
	}
	if app.Server() != app.server {
		t.Fatalf("Server accessor did not return underlying instance")
	}
	if app.Server().Handler != app.Handler() {
		t.Fatalf("expected server to use the root handler")
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	cfg := baseTestConfig("0")
	cfg.Airtable.APIKey = ""

	if _, err := New(cfg, zaptest.NewLogger(t)); err == nil {
		t.Fatalf("expected error without credentials")
	}
}

func TestWithRecordServiceSkipsCredentials(t *testing.T) {
	cfg := baseTestConfig("0")
	cfg.Airtable = config.AirtableConfig{}

	srv := airtabletest.NewServer()
	t.Cleanup(srv.Close)
	rec := srv.Store.Insert(airtable.Fields{})

	app, err := New(cfg, zaptest.NewLogger(t), WithRecordService(stubRecords{table: srv.Table()}))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	resp := serve(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/airtable/"+rec.ID, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 from substituted service, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestNewServerAppliesConfig(t *testing.T) {
	cfg := baseTestConfig("9090")
	handler := http.NewServeMux()

	server := NewServer(cfg, handler)
	if server.Addr != "127.0.0.1:9090" {
		t.Fatalf("expected address 127.0.0.1:9090, got %s", server.Addr)
	}
	if server.Handler != handler {
		t.Fatalf("expected handler to be applied")
	}
	if server.ReadHeaderTimeout != cfg.ReadHeaderTimeout ||
		server.WriteTimeout != cfg.WriteTimeout ||
		server.IdleTimeout != cfg.IdleTimeout {
		t.Fatalf("server timeouts do not match configuration")
	}
}

func TestRootRoutes(t *testing.T) {
	app, _ := newTestApp(t, baseTestConfig("0"))

	cases := []struct {
		path string
		want string
	}{
		{"/", `{"message":"Welcome to Property Creator API"}`},
		{"/health", `{"status":"healthy"}`},
		{"/nope", `{"detail":"Not Found"}`},
	}
	for _, tc := range cases {
		rec := serve(t, app, httptest.NewRequest(http.MethodGet, tc.path, nil))
		if body := strings.TrimSpace(rec.Body.String()); body != tc.want {
			t.Fatalf("GET %s: expected %s, got %s", tc.path, tc.want, body)
		}
		if rec.Header().Get("X-Request-ID") == "" {
			t.Fatalf("GET %s: expected X-Request-ID header", tc.path)
		}
	}
}

func TestHealthWithUpstreamUnreachable(t *testing.T) {
	cfg := baseTestConfig("0")
	dead := httptest.NewServer(http.NotFoundHandler())
	cfg.Airtable.BaseURL = dead.URL + "/v0"
	dead.Close()

	app, err := New(cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	rec := serve(t, app, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"status":"healthy"}` {
		t.Fatalf("expected healthy, got %d %s", rec.Code, rec.Body.String())
	}

	rec = serve(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/airtable/rec1", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for record access, got %d", rec.Code)
	}
}

func TestOpenAPIUsesProjectSettings(t *testing.T) {
	cfg := baseTestConfig("0")
	cfg.ProjectName = "Listings"
	cfg.APIV1Str = "/api/v2"
	app, _ := newTestApp(t, cfg)

	rec := serve(t, app, httptest.NewRequest(http.MethodGet, "/api/v2/openapi.json", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var doc struct {
		Info struct {
			Title string `json:"title"`
		} `json:"info"`
		Paths map[string]json.RawMessage `json:"paths"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Info.Title != "Listings" {
		t.Fatalf("unexpected title %q", doc.Info.Title)
	}
	if _, ok := doc.Paths["/api/v2/airtable/create"]; !ok {
		t.Fatalf("expected prefixed record paths, got %v", doc.Paths)
	}

	rec = serve(t, app, httptest.NewRequest(http.MethodGet, "/api/v2/airtable/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected API under the configured prefix, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	app, _ := newTestApp(t, baseTestConfig("0"))

	serve(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/airtable/recMissing", nil))
	rec := serve(t, app, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`property_creator_http_requests_total{method="GET",route="/api/v1/airtable/{record_id}",status="500"} 1`,
		`property_creator_upstream_requests_total{operation="get",outcome="not_found"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in exposition", want)
		}
	}
}

func TestMetricsDisabled(t *testing.T) {
	cfg := baseTestConfig("0")
	cfg.EnableMetrics = false
	app, _ := newTestApp(t, cfg)

	rec := serve(t, app, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 with metrics disabled, got %d", rec.Code)
	}
}

func TestLargeResponsesAreCompressed(t *testing.T) {
	app, srv := newTestApp(t, baseTestConfig("0"))
	long := strings.Repeat("spacious flat with a view ", 20)
	for i := 0; i < 20; i++ {
		srv.Store.Insert(mustFields(t, map[string]any{"Description": long}))
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/airtable/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := serve(t, app, req)

	if rec.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("expected gzip encoding, got %q", rec.Header().Get("Content-Encoding"))
	}
	zr, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	plain, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("read gzip body: %v", err)
	}
	var page airtable.RecordPage
	if err := json.Unmarshal(plain, &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(page.Records) != 20 {
		t.Fatalf("expected 20 records, got %d", len(page.Records))
	}
}

func TestCorsPreflightOnRoot(t *testing.T) {
	app, _ := newTestApp(t, baseTestConfig("0"))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/airtable/create", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := serve(t, app, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://app.example" {
		t.Fatalf("expected origin to be echoed")
	}
}

func mustFields(t *testing.T, m map[string]any) airtable.Fields {
	t.Helper()
	f, err := airtable.FieldsFromMap(m)
	if err != nil {
		t.Fatalf("FieldsFromMap: %v", err)
	}
	return f
}

// stubRecords serves reads straight from a table and fails everything else.
type stubRecords struct {
	table *airtable.Table
}

func (s stubRecords) Create(context.Context, airtable.Fields) (*airtable.Record, error) {
	return nil, errStub
}

func (s stubRecords) Get(ctx context.Context, id string) (*airtable.Record, error) {
	return s.table.Get(ctx, id)
}

func (s stubRecords) Update(context.Context, string, airtable.Fields) (*airtable.Record, error) {
	return nil, errStub
}

func (s stubRecords) Delete(context.Context, string) (bool, error) {
	return false, errStub
}

func (s stubRecords) List(ctx context.Context, maxRecords int) (*airtable.RecordPage, error) {
	return s.table.All(ctx, maxRecords)
}

var errStub = errorString("not supported by stub")

type errorString string

func (e errorString) Error() string { return string(e) }
