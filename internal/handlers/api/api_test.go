package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"

	"companylens/internal/badge"
	"companylens/internal/testutil"
)

const dbPage = `<html><body><header><h1>Backend Engineer</h1>` +
	`<div data-at="header-company-name">Deutsche Bahn AG</div></header>` +
	`<article><p>Build <strong>trains</strong>.</p></article></body></html>`

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
}

func newTestApp(t *testing.T) (*fiber.App, *testutil.Stack) {
	t.Helper()
	stack := testutil.NewStack(t)

	app := fiber.New()
	pageHandler := NewPageHandler(stack.Registry)
	mappingHandler := NewMappingHandler(stack.Mappings, stack.Registry, badge.DefaultProfileBaseURL)
	settingsHandler := NewSettingsHandler(stack.Settings, badge.DefaultProfileBaseURL)

	app.Get("/healthz", NewHealthHandler("memory", stack.Registry).Check)
	app.Get("/api/normalize", NewNormalizeHandler().Normalize)
	app.Get("/api/pages", pageHandler.List)
	app.Post("/api/pages", pageHandler.Create)
	app.Get("/api/pages/:id", pageHandler.Get)
	app.Put("/api/pages/:id", pageHandler.Update)
	app.Delete("/api/pages/:id", pageHandler.Delete)
	app.Post("/api/pages/:id/resolve", pageHandler.Resolve)
	app.Post("/api/pages/:id/badge/click", pageHandler.ClickBadge)
	app.Put("/api/pages/:id/badge", pageHandler.SetBadge)
	app.Get("/api/pages/:id/job", pageHandler.Job)
	app.Get("/api/mappings", mappingHandler.Get)
	app.Post("/api/mappings/confirm", mappingHandler.Confirm)
	app.Post("/api/mappings/reset", mappingHandler.Reset)
	app.Get("/api/settings/diagnostics", settingsHandler.GetDiagnostics)
	app.Put("/api/settings/diagnostics", settingsHandler.UpdateDiagnostics)
	return app, stack
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = strings.NewReader(string(raw))
	}
	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	data, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("%s %s: invalid envelope %q: %v", method, path, data, err)
	}
	return resp.StatusCode, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatalf("failed to decode data %s: %v", env.Data, err)
	}
	return v
}

type pageView struct {
	ID           string `json:"id"`
	BadgeEnabled bool   `json:"badge_enabled"`
	Identity     *struct {
		Slug       string   `json:"slug"`
		Source     string   `json:"source"`
		Mode       string   `json:"mode"`
		Candidates []string `json:"candidates"`
		Company    struct {
			Raw           string `json:"raw"`
			NormalizedKey string `json:"normalized_key"`
		} `json:"company"`
	} `json:"identity"`
}

func TestHealth(t *testing.T) {
	app, _ := newTestApp(t)
	status, env := doJSON(t, app, http.MethodGet, "/healthz", nil)
	if status != http.StatusOK || env.Status != "ok" {
		t.Fatalf("GET /healthz = %d %+v", status, env)
	}
	got := decode[map[string]any](t, env)
	if got["storage"] != "memory" {
		t.Errorf("storage = %v, want memory", got["storage"])
	}
}

func TestNormalize(t *testing.T) {
	app, _ := newTestApp(t)

	status, env := doJSON(t, app, http.MethodGet, "/api/normalize?name=M%C3%BCller%20%26%20Sch%C3%B6n%20GmbH", nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d, error = %q", status, env.Error)
	}
	got := decode[struct {
		Company struct {
			NormalizedKey string `json:"normalized_key"`
		} `json:"company"`
		Candidates []string `json:"candidates"`
	}](t, env)
	if got.Company.NormalizedKey != "mueller schoen" {
		t.Errorf("normalized_key = %q", got.Company.NormalizedKey)
	}
	if len(got.Candidates) != 2 || got.Candidates[0] != "de/mueller-schoen" || got.Candidates[1] != "de/mueller-schoen-gmbh" {
		t.Errorf("candidates = %v", got.Candidates)
	}

	if status, _ := doJSON(t, app, http.MethodGet, "/api/normalize", nil); status != http.StatusBadRequest {
		t.Errorf("missing name status = %d, want 400", status)
	}
}

func TestPages_Lifecycle(t *testing.T) {
	app, stack := newTestApp(t)

	status, env := doJSON(t, app, http.MethodPost, "/api/pages", map[string]string{"html": dbPage})
	if status != http.StatusCreated {
		t.Fatalf("POST /api/pages = %d %q", status, env.Error)
	}
	created := decode[pageView](t, env)
	if created.Identity == nil || created.Identity.Slug != "de/deutsche-bahn" || created.Identity.Source != "auto" {
		t.Fatalf("identity = %+v", created.Identity)
	}
	if created.Identity.Mode != "inline" || !created.BadgeEnabled {
		t.Errorf("mode = %q, badge = %v", created.Identity.Mode, created.BadgeEnabled)
	}
	base := "/api/pages/" + created.ID

	if status, env := doJSON(t, app, http.MethodGet, base, nil); status != http.StatusOK || decode[pageView](t, env).ID != created.ID {
		t.Errorf("GET page = %d", status)
	}

	status, env = doJSON(t, app, http.MethodPut, base, map[string]string{
		"html": `<html><body><header><div data-at="header-company-name">SAP SE</div></header></body></html>`,
	})
	if status != http.StatusAccepted {
		t.Fatalf("PUT page = %d %q", status, env.Error)
	}
	stack.Clock.Fire()
	if status, env := doJSON(t, app, http.MethodGet, base, nil); status != http.StatusOK || decode[pageView](t, env).Identity.Slug != "de/sap" {
		t.Errorf("identity after update = %s", env.Data)
	}

	status, env = doJSON(t, app, http.MethodPost, base+"/resolve", nil)
	if status != http.StatusOK || decode[pageView](t, env).Identity.Slug != "de/sap" {
		t.Errorf("POST resolve = %d %s", status, env.Data)
	}

	status, env = doJSON(t, app, http.MethodGet, "/api/pages", nil)
	if list := decode[[]pageView](t, env); status != http.StatusOK || len(list) != 1 {
		t.Errorf("GET /api/pages = %d, %d pages", status, len(list))
	}

	if status, _ := doJSON(t, app, http.MethodDelete, base, nil); status != http.StatusOK {
		t.Errorf("DELETE page = %d", status)
	}
	if status, _ := doJSON(t, app, http.MethodGet, base, nil); status != http.StatusNotFound {
		t.Errorf("GET closed page = %d, want 404", status)
	}
}

func TestPages_Errors(t *testing.T) {
	app, _ := newTestApp(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"empty body", http.MethodPost, "/api/pages", map[string]string{}, http.StatusBadRequest},
		{"bad id", http.MethodGet, "/api/pages/not-a-uuid", nil, http.StatusBadRequest},
		{"unknown page", http.MethodGet, "/api/pages/00000000-0000-0000-0000-000000000001", nil, http.StatusNotFound},
		{"unknown update", http.MethodPut, "/api/pages/00000000-0000-0000-0000-000000000001", map[string]string{"html": dbPage}, http.StatusNotFound},
		{"unknown resolve", http.MethodPost, "/api/pages/00000000-0000-0000-0000-000000000001/resolve", nil, http.StatusNotFound},
		{"unknown job", http.MethodGet, "/api/pages/00000000-0000-0000-0000-000000000001/job", nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := doJSON(t, app, tt.method, tt.path, tt.body)
			if status != tt.want {
				t.Errorf("%s %s = %d, want %d", tt.method, tt.path, status, tt.want)
			}
			if env.Status != "error" || env.Error == "" {
				t.Errorf("envelope = %+v, want error envelope", env)
			}
		})
	}
}

func TestPages_BadgeAndJob(t *testing.T) {
	app, stack := newTestApp(t)
	p := stack.OpenPage(t, dbPage)
	base := "/api/pages/" + p.ID.String()

	status, env := doJSON(t, app, http.MethodPost, base+"/badge/click", nil)
	if status != http.StatusOK {
		t.Fatalf("click = %d %q", status, env.Error)
	}
	preview := decode[map[string]string](t, env)
	if preview["url"] != "https://www.kununu.com/de/deutsche-bahn" {
		t.Errorf("preview url = %q", preview["url"])
	}

	if status, _ := doJSON(t, app, http.MethodPut, base+"/badge", map[string]any{}); status != http.StatusBadRequest {
		t.Errorf("PUT badge without enabled = %d, want 400", status)
	}
	status, env = doJSON(t, app, http.MethodPut, base+"/badge", map[string]bool{"enabled": false})
	if status != http.StatusOK || decode[pageView](t, env).BadgeEnabled {
		t.Errorf("PUT badge = %d %s", status, env.Data)
	}
	if status, _ := doJSON(t, app, http.MethodPost, base+"/badge/click", nil); status != http.StatusConflict {
		t.Errorf("click on disabled badge = %d, want 409", status)
	}

	status, env = doJSON(t, app, http.MethodGet, base+"/job", nil)
	if status != http.StatusOK {
		t.Fatalf("job = %d %q", status, env.Error)
	}
	job := decode[map[string]string](t, env)
	if job["title"] != "Backend Engineer" || job["company"] != "Deutsche Bahn AG" || !strings.Contains(job["description"], "**trains**") {
		t.Errorf("job = %+v", job)
	}
}

func TestMappings(t *testing.T) {
	app, stack := newTestApp(t)
	p := stack.OpenPage(t, dbPage)

	if status, _ := doJSON(t, app, http.MethodGet, "/api/mappings?company=Deutsche%20Bahn%20AG", nil); status != http.StatusNotFound {
		t.Errorf("GET missing mapping = %d, want 404", status)
	}

	status, env := doJSON(t, app, http.MethodPost, "/api/mappings/confirm", map[string]string{
		"company": "Deutsche Bahn AG",
		"slug":    "https://www.kununu.com/de/DB-Konzern/",
		"page_id": p.ID.String(),
	})
	if status != http.StatusOK {
		t.Fatalf("confirm = %d %q", status, env.Error)
	}
	if id := p.Identity(); id.Slug != "de/db-konzern" || id.Source != "map" {
		t.Errorf("page identity = %s (%s), want de/db-konzern (map)", id.Slug, id.Source)
	}

	status, env = doJSON(t, app, http.MethodGet, "/api/mappings?key=deutsche%20bahn", nil)
	if status != http.StatusOK {
		t.Fatalf("GET mapping = %d", status)
	}
	got := decode[struct {
		Key   string `json:"key"`
		Entry struct {
			Slug      string `json:"slug"`
			Confirmed bool   `json:"confirmed"`
		} `json:"entry"`
	}](t, env)
	if got.Key != "deutsche bahn" || got.Entry.Slug != "de/db-konzern" || !got.Entry.Confirmed {
		t.Errorf("mapping = %+v", got)
	}
	if status, _ := doJSON(t, app, http.MethodGet, "/api/mappings?key=Deutsche%20Bahn%20AG", nil); status != http.StatusBadRequest {
		t.Errorf("GET with raw name as key = %d, want 400", status)
	}

	if status, _ := doJSON(t, app, http.MethodPost, "/api/mappings/reset", map[string]string{"key": "deutsche bahn"}); status != http.StatusOK {
		t.Errorf("reset = %d", status)
	}
	if id := p.Identity(); id.Slug != "de/deutsche-bahn" || id.Source != "auto" {
		t.Errorf("page identity after reset = %s (%s)", id.Slug, id.Source)
	}
}

func TestMappings_Validation(t *testing.T) {
	app, _ := newTestApp(t)

	tests := []struct {
		name string
		path string
		body map[string]string
		want int
	}{
		{"no key", "/api/mappings/confirm", map[string]string{"slug": "de/acme"}, http.StatusBadRequest},
		{"bad slug", "/api/mappings/confirm", map[string]string{"key": "acme", "slug": "acme corp"}, http.StatusBadRequest},
		{"empty slug", "/api/mappings/confirm", map[string]string{"key": "acme"}, http.StatusBadRequest},
		{"unknown page", "/api/mappings/confirm", map[string]string{"key": "acme", "slug": "de/acme", "page_id": "00000000-0000-0000-0000-000000000001"}, http.StatusNotFound},
		{"reset no key", "/api/mappings/reset", map[string]string{}, http.StatusBadRequest},
		{"raw name as key", "/api/mappings/confirm", map[string]string{"key": "Deutsche Bahn AG", "slug": "de/deutsche-bahn"}, http.StatusBadRequest},
		{"reset raw name as key", "/api/mappings/reset", map[string]string{"key": "Müller GmbH"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if status, env := doJSON(t, app, http.MethodPost, tt.path, tt.body); status != tt.want {
				t.Errorf("POST %s = %d (%q), want %d", tt.path, status, env.Error, tt.want)
			}
		})
	}
}

func TestSettings(t *testing.T) {
	app, stack := newTestApp(t)
	p := stack.OpenPage(t, dbPage)

	status, env := doJSON(t, app, http.MethodGet, "/api/settings/diagnostics", nil)
	if status != http.StatusOK {
		t.Fatalf("GET settings = %d", status)
	}
	if cfg := decode[map[string]any](t, env); cfg["enabled"] != false || cfg["slug"] != "de/sap" {
		t.Errorf("default settings = %+v", cfg)
	}

	status, env = doJSON(t, app, http.MethodPut, "/api/settings/diagnostics", map[string]any{"enabled": true, "slug": "de/bosch"})
	if status != http.StatusOK {
		t.Fatalf("PUT settings = %d %q", status, env.Error)
	}
	if cfg := decode[map[string]any](t, env); cfg["enabled"] != true || cfg["slug"] != "de/bosch" {
		t.Errorf("saved settings = %+v", cfg)
	}
	if html := p.HTML(); !strings.Contains(html, badge.DiagID) || strings.Contains(html, badge.HostID) {
		t.Error("open page did not switch to the diagnostics overlay")
	}

	if status, _ := doJSON(t, app, http.MethodPut, "/api/settings/diagnostics", map[string]any{"slug": "not a slug"}); status != http.StatusBadRequest {
		t.Errorf("invalid slug status = %d, want 400", status)
	}
}
