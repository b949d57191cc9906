//go:build integration

// Package integration provides end-to-end integration tests for the PenaltyPot API.
package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/mhessel/penaltypot/internal/api"
	"github.com/mhessel/penaltypot/internal/app"
	"github.com/mhessel/penaltypot/internal/store"
)

// TestApp holds all dependencies for integration tests.
type TestApp struct {
	Server *httptest.Server
	Store  *store.Store
	Hub    *api.Hub

	username string
	password string
	auth     bool

	cleanup func()
}

// NewTestApp wires the full service stack onto a temp database.
// Call Close() when done to release resources.
func NewTestApp(t *testing.T, opts ...TestAppOption) *TestApp {
	t.Helper()

	cfg := &testAppConfig{
		authEnabled:  false,
		username:     "treasurer",
		password:     "password",
		streamSecret: []byte("test-secret-key-32-bytes-long!!"),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	tmpDir, err := os.MkdirTemp("", "penaltypot-integration-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	dbPath := filepath.Join(tmpDir, "test.sqlite")
	st, err := store.Open(dbPath)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("failed to open store: %v", err)
	}

	hub := api.NewHub()
	go hub.Run()

	refService := &app.RefService{Store: st}
	sessionService := &app.SessionService{Store: st, Publisher: hub}
	entryService := &app.EntryService{Store: st, Publisher: hub}
	verifyService := &app.VerifyService{Store: st, Publisher: hub}
	reportService := &app.ReportService{Store: st}

	serverOpts := []api.ServerOption{
		api.WithRefUsecase(refService),
		api.WithSessionsUsecase(sessionService),
		api.WithEntriesUsecase(entryService),
		api.WithVerifyUsecase(verifyService),
		api.WithReportUsecase(reportService),
		api.WithHub(hub),
		api.WithStreamSecret(cfg.streamSecret),
	}

	if cfg.authEnabled {
		serverOpts = append(serverOpts, api.WithBasicAuth(cfg.username, cfg.password))
	}

	// Addr is ignored, httptest picks its own.
	server := api.NewServer("127.0.0.1:0", app.HealthService{Version: "test"}, serverOpts...)

	ts := httptest.NewServer(server.Handler())

	cleanup := func() {
		ts.Close()
		hub.Stop()
		st.Close()
		os.RemoveAll(tmpDir)
	}

	return &TestApp{
		Server:   ts,
		Store:    st,
		Hub:      hub,
		username: cfg.username,
		password: cfg.password,
		auth:     cfg.authEnabled,
		cleanup:  cleanup,
	}
}

// Close releases all resources.
func (a *TestApp) Close() {
	if a.cleanup != nil {
		a.cleanup()
	}
}

// URL returns the base URL of the test server.
func (a *TestApp) URL() string {
	return a.Server.URL
}

// Do performs a JSON request, attaching Basic Auth when enabled.
func (a *TestApp) Do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, a.URL()+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.auth {
		req.SetBasicAuth(a.username, a.password)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request %s %s: %v", method, path, err)
	}
	return resp
}

// DoJSON performs a request and decodes the response body into out.
func (a *TestApp) DoJSON(t *testing.T, method, path string, body any, wantStatus int, out any) {
	t.Helper()

	resp := a.Do(t, method, path, body)
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: status = %d, want %d", method, path, resp.StatusCode, wantStatus)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
}

// SeedClub creates a club with two members and a penalty, returning ids.
func (a *TestApp) SeedClub(t *testing.T) (clubID string, memberIDs []string, penaltyID string) {
	t.Helper()

	var club struct {
		ID string `json:"id"`
	}
	a.DoJSON(t, "POST", "/api/v1/clubs", map[string]any{"name": "Thursday Nine-Pins"}, http.StatusCreated, &club)

	for _, name := range []string{"Alice", "Bert"} {
		var member struct {
			ID string `json:"id"`
		}
		a.DoJSON(t, "POST", "/api/v1/clubs/"+club.ID+"/members", map[string]any{"name": name}, http.StatusCreated, &member)
		memberIDs = append(memberIDs, member.ID)
	}

	var penalty struct {
		ID string `json:"id"`
	}
	a.DoJSON(t, "POST", "/api/v1/clubs/"+club.ID+"/penalties", map[string]any{
		"name":        "Gutter ball",
		"self_amount": 1.0,
		"affect":      "SELF",
	}, http.StatusCreated, &penalty)

	return club.ID, memberIDs, penalty.ID
}

// testAppConfig holds configuration for test app.
type testAppConfig struct {
	authEnabled  bool
	username     string
	password     string
	streamSecret []byte
}

// TestAppOption configures a test app.
type TestAppOption func(*testAppConfig)

// WithAuth enables authentication for the test app.
func WithAuth(username, password string) TestAppOption {
	return func(cfg *testAppConfig) {
		cfg.authEnabled = true
		cfg.username = username
		cfg.password = password
	}
}
