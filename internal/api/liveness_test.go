package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/valyala/fastjson"
)

func TestWelcome(t *testing.T) {
	rec := httptest.NewRecorder()
	Welcome(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != `{"message":"Welcome to Property Creator API"}` {
		t.Fatalf("unexpected body %s", body)
	}
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Code != http.StatusOK || body.Status != "healthy" {
		t.Fatalf("unexpected response %d %+v", rec.Code, body)
	}
}

func TestOpenAPIDocument(t *testing.T) {
	handler, err := OpenAPI(`Listings "beta"`, "/api/v2")
	if err != nil {
		t.Fatalf("OpenAPI: %v", err)
	}

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/api/v2/openapi.json", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	doc, err := fastjson.ParseBytes(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("document is not JSON: %v", err)
	}
	if title := string(doc.GetStringBytes("info", "title")); title != `Listings "beta"` {
		t.Fatalf("unexpected title %q", title)
	}
	for _, path := range []string{
		"/api/v2/airtable/create",
		"/api/v2/airtable/update/{record_id}",
		"/api/v2/airtable/{record_id}",
		"/api/v2/airtable/",
		"/health",
		"/",
	} {
		if !doc.Exists("paths", path) {
			t.Fatalf("expected path %q in document", path)
		}
	}
	if doc.Exists("paths", "/airtable/create") {
		t.Fatalf("expected record paths to be prefixed")
	}
}
