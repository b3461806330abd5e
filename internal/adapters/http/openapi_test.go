package http_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"

	handler "github.com/samirrijal/traveltime/internal/adapters/http"
)

// openAPIPath walks up from the package directory to api/openapi.yaml.
func openAPIPath(t *testing.T) string {
	t.Helper()
	dir, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		candidate := filepath.Join(dir, "api", "openapi.yaml")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
		dir = filepath.Dir(dir)
	}
	t.Fatalf("could not find api/openapi.yaml")
	return ""
}

func loadOpenAPI(t *testing.T) *openapi3.T {
	t.Helper()
	doc, err := (&openapi3.Loader{IsExternalRefsAllowed: false}).LoadFromFile(openAPIPath(t))
	if err != nil {
		t.Fatalf("parse openapi.yaml: %v", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		t.Fatalf("validate openapi.yaml: %v", err)
	}
	return doc
}

func TestOpenAPIDocument(t *testing.T) {
	doc := loadOpenAPI(t)

	for _, path := range []string{
		"/v1/health",
		"/v1/ready",
		"/v1/catalog",
		"/v1/partitions",
		"/v1/times/{id}",
		"/v1/times/{id}/plan",
		"/v1/tracts/{id}/times",
		"/v1/queries/recent",
		"/graphql",
	} {
		if doc.Paths.Find(path) == nil {
			t.Errorf("missing path %s", path)
		}
	}

	for _, name := range []string{
		"APIError", "Selection", "Destination", "TimesResponse", "Pagination",
		"QueryPlan", "FilePlan", "RowGroupPlan", "Partition", "Catalog", "QueryLogEntry",
	} {
		if doc.Components.Schemas[name] == nil {
			t.Errorf("missing schema %s", name)
		}
	}

	if doc.Info.Title != "Travel Time API" || doc.Info.Version != "1.0.0" {
		t.Errorf("unexpected info %q %q", doc.Info.Title, doc.Info.Version)
	}
}

func TestOpenAPIDeprecatedTractTimes(t *testing.T) {
	item := loadOpenAPI(t).Paths.Find("/v1/tracts/{id}/times")
	if item == nil || item.Get == nil || !item.Get.Deprecated {
		t.Error("expected /v1/tracts/{id}/times to be deprecated")
	}
}

// TestOpenAPIErrorCodes keeps the documented error codes in step with
// the ones handlers emit.
func TestOpenAPIErrorCodes(t *testing.T) {
	code := loadOpenAPI(t).Components.Schemas["APIError"].Value.Properties["code"].Value
	documented := map[string]bool{}
	for _, v := range code.Enum {
		documented[v.(string)] = true
	}
	for _, c := range []string{"bad_request", "not_found", "upstream_error", "decode_error", "conflict", "rate_limited", "internal_error"} {
		if !documented[c] {
			t.Errorf("error code %s not documented", c)
		}
	}
}

func TestDocsRoutes(t *testing.T) {
	app := setupApp(makeDeps(func(d *handler.Dependencies) {
		d.OpenAPIPath = openAPIPath(t)
	}))

	resp, err := app.Test(httptest.NewRequest("GET", "/docs/openapi.json", nil), -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var doc struct {
		OpenAPI string `json:"openapi"`
		Info    struct {
			Title string `json:"title"`
		} `json:"info"`
	}
	if err := json.Unmarshal(readBody(t, resp.Body), &doc); err != nil {
		t.Fatalf("decode json document: %v", err)
	}
	if doc.OpenAPI != "3.0.3" || doc.Info.Title != "Travel Time API" {
		t.Errorf("unexpected document header %+v", doc)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/docs/openapi.yaml", nil), -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/yaml" {
		t.Errorf("expected application/yaml, got %s", ct)
	}
}

func TestDocsMissingDocument(t *testing.T) {
	app := setupApp(makeDeps(func(d *handler.Dependencies) {
		d.OpenAPIPath = filepath.Join(t.TempDir(), "missing.yaml")
	}))

	resp, err := app.Test(httptest.NewRequest("GET", "/docs/openapi.json", nil), -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if apiErr := decodeAPIError(t, resp.Body); apiErr.Code != "not_found" {
		t.Errorf("expected not_found, got %s", apiErr.Code)
	}
}
