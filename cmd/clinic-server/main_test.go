package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medcrm/clinic/internal/config"
	"github.com/medcrm/clinic/internal/platform/auth"
	"github.com/medcrm/clinic/internal/platform/blobstore"
	"github.com/medcrm/clinic/internal/platform/websocket"
)

func testConfig() *config.Config {
	return &config.Config{
		Env:             "development",
		JWTSecret:       "0123456789abcdef0123456789abcdef",
		JWTIssuer:       "clinic-test",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: time.Hour,
		ClinicTimezone:  "UTC",
		CORSOrigins:     []string{"http://localhost:3000"},
		BodyLimit:       "8M",
		RequestTimeout:  5 * time.Second,
	}
}

type testServer struct {
	handler http.Handler
	media   *blobstore.MemoryStore
	svc     *services
}

// newTestServer wires the full router without a database. Only routes that
// never reach a repository are safe to call.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := testConfig()
	revoked := auth.NewMemoryRevocationStore(time.Hour)
	t.Cleanup(revoked.Close)
	media := blobstore.NewMemoryStore()
	hub := websocket.NewHub(zerolog.Nop())

	svc := newServices(nil, cfg, time.UTC, revoked, media, hub, zerolog.Nop())
	e := newServer(cfg, zerolog.Nop(), svc, serverDeps{revoked: revoked, hub: hub, media: media})
	return &testServer{handler: e, media: media, svc: svc}
}

func (s *testServer) do(method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	rec := newTestServer(t).do(http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a request id header")
	}
}

func TestServer_RequiresToken(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{
		"/api/v1/patients",
		"/api/v1/appointments",
		"/api/v1/payments",
		"/api/v1/reports/summary",
		"/api/v1/notifications",
	} {
		rec := s.do(http.MethodGet, path, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", path, rec.Code)
		}
		if rec.Header().Get("Cache-Control") != "no-store" {
			t.Errorf("%s: expected no-store", path)
		}
	}
}

func TestServer_RevokedToken(t *testing.T) {
	s := newTestServer(t)
	pair, err := s.svc.tokens.Issue(uuid.New(), "admin")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, _ := s.svc.tokens.Parse(pair.Access, auth.TokenTypeAccess)
	store := auth.NewMemoryRevocationStore(time.Hour)
	defer store.Close()

	cfg := testConfig()
	hub := websocket.NewHub(zerolog.Nop())
	e := newServer(cfg, zerolog.Nop(), s.svc, serverDeps{revoked: store, hub: hub, media: s.media})
	store.Revoke(context.Background(), claims.ID, claims.Expiry())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
	req.Header.Set("Authorization", "Bearer "+pair.Access)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for revoked token, got %d", rec.Code)
	}
}

func TestServer_Routes(t *testing.T) {
	cfg := testConfig()
	revoked := auth.NewMemoryRevocationStore(time.Hour)
	defer revoked.Close()
	hub := websocket.NewHub(zerolog.Nop())
	svc := newServices(nil, cfg, time.UTC, revoked, nil, hub, zerolog.Nop())
	e := newServer(cfg, zerolog.Nop(), svc, serverDeps{revoked: revoked, hub: hub, media: blobstore.NewMemoryStore()})

	have := map[string]bool{}
	for _, r := range e.Routes() {
		have[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /health",
		"GET /health/db",
		"POST /api/v1/auth/login",
		"POST /api/v1/auth/refresh",
		"POST /api/v1/auth/logout",
		"GET /api/v1/ws",
		"GET /media/*",
		"GET /api/v1/reports/detailed.csv",
		"GET /api/v1/reports/doctor-close",
		"GET /api/v1/patients/:id/history",
		"POST /api/v1/doctors/:id/photo",
		"GET /api/v1/admin/usage",
	} {
		if !have[want] {
			t.Errorf("route %q not registered", want)
		}
	}
}

func TestServer_MediaIsPublic(t *testing.T) {
	s := newTestServer(t)
	png := []byte("\x89PNG\r\n\x1a\n0000")
	if _, err := s.media.Put(context.Background(), "doctors/a.png", "image/png", png); err != nil {
		t.Fatalf("put: %v", err)
	}

	rec := s.do(http.MethodGet, "/media/doctors/a.png", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "image/png" {
		t.Errorf("unexpected content type %q", rec.Header().Get("Content-Type"))
	}
	if rec := s.do(http.MethodGet, "/media/doctors/missing.png", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for missing file, got %d", rec.Code)
	}
}

func TestServer_OpenAPIIsPublic(t *testing.T) {
	rec := newTestServer(t).do(http.MethodGet, "/api/v1/openapi.json", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	for _, want := range []string{`"/api/v1/payments"`, `"/api/v1/reports/doctor-close"`, `"bearerAuth"`} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Errorf("document lacks %s", want)
		}
	}
}

func TestServer_WebsocketChecksItsOwnToken(t *testing.T) {
	rec := newTestServer(t).do(http.MethodGet, "/api/v1/ws?token=garbage", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestServer_CORSPreflight(t *testing.T) {
	rec := newTestServer(t).do(http.MethodOptions, "/api/v1/patients", http.Header{
		"Origin":                        {"http://localhost:3000"},
		"Access-Control-Request-Method": {http.MethodPost},
	})
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204 preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Errorf("unexpected allow origin %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestRootCmd_Commands(t *testing.T) {
	have := map[string]bool{}
	for _, c := range rootCmd().Commands() {
		have[c.Name()] = true
	}
	for _, name := range []string{"serve", "migrate", "seed", "create-admin"} {
		if !have[name] {
			t.Errorf("missing command %q", name)
		}
	}
}

func TestSeedCmd_Defaults(t *testing.T) {
	cmd := seedCmd()
	patients, err := cmd.Flags().GetInt("patients")
	if err != nil || patients != 50 {
		t.Errorf("expected 50 patients by default, got %d (%v)", patients, err)
	}
	if email, _ := cmd.Flags().GetString("admin-email"); email != "admin@clinic.local" {
		t.Errorf("unexpected admin email %q", email)
	}
}
