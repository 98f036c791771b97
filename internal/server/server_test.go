package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"teamline/internal/config"
	"teamline/internal/db"
	"teamline/internal/engine"
	"teamline/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default())
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Auth:     AuthConfig{AllowLegacyActorHeader: true},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-Id", "tester")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func TestProjectLifecycleOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	for _, u := range []map[string]any{
		{"id": "mgr", "name": "Manager"},
		{"id": "dev", "name": "Dev", "reporting_manager_id": "mgr"},
	} {
		res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/users", u, nil)
		if res.StatusCode != http.StatusCreated {
			t.Fatalf("create user status %d: %s", res.StatusCode, string(data))
		}
	}

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects", map[string]any{
		"name":       "Apollo",
		"manager_id": "mgr",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create project status %d: %s", res.StatusCode, string(data))
	}
	var project ProjectResponse
	if err := json.Unmarshal(data, &project); err != nil {
		t.Fatalf("unmarshal project: %v", err)
	}
	if project.CustomID != "PRO-001" {
		t.Fatalf("custom id: got %s", project.CustomID)
	}

	// Team was seeded from the reporting subtree at creation.
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/projects/"+project.ID+"/team", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("team status %d: %s", res.StatusCode, string(data))
	}
	var team []UserResponse
	if err := json.Unmarshal(data, &team); err != nil {
		t.Fatalf("unmarshal team: %v", err)
	}
	if len(team) != 2 {
		t.Fatalf("expected 2 members, got %d: %s", len(team), string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/"+project.ID+"/modules", map[string]any{
		"name": "Backend",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create module status %d: %s", res.StatusCode, string(data))
	}
	var module ModuleResponse
	if err := json.Unmarshal(data, &module); err != nil {
		t.Fatalf("unmarshal module: %v", err)
	}
	if module.CustomID != "MOD-001" {
		t.Fatalf("module custom id: got %s", module.CustomID)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/access/module/"+module.ID+"/grant", map[string]any{
		"user_id": "dev",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("grant status %d: %s", res.StatusCode, string(data))
	}
	var entries []GrantEntryResponse
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("unmarshal grants: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected manager + dev grants, got %s", string(data))
	}
}

func TestRevokeManagerConflict(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	doJSON(t, client, http.MethodPost, srv.URL+"/v0/users", map[string]any{"id": "mgr", "name": "Manager"}, nil)
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects", map[string]any{
		"name": "Apollo", "manager_id": "mgr",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create project: %d %s", res.StatusCode, string(data))
	}
	var project ProjectResponse
	_ = json.Unmarshal(data, &project)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/"+project.ID+"/modules", map[string]any{"name": "Core"}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create module: %d %s", res.StatusCode, string(data))
	}
	var module ModuleResponse
	_ = json.Unmarshal(data, &module)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/access/module/"+module.ID+"/revoke", map[string]any{
		"user_id": "mgr",
	}, nil)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for manager revoke, got %d %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if envelope.Error.Code != "protected_role" {
		t.Fatalf("error code: got %s", envelope.Error.Code)
	}
}

func TestReassignToBlockedManager(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	doJSON(t, client, http.MethodPost, srv.URL+"/v0/users", map[string]any{"id": "mgr", "name": "Manager"}, nil)
	doJSON(t, client, http.MethodPost, srv.URL+"/v0/users", map[string]any{"id": "leaving", "name": "Leaving", "status": "on_notice"}, nil)
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects", map[string]any{
		"name": "Apollo", "manager_id": "mgr",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create project: %d %s", res.StatusCode, string(data))
	}
	var project ProjectResponse
	_ = json.Unmarshal(data, &project)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/"+project.ID+"/reassign-manager", map[string]any{
		"manager_id": "leaving",
	}, nil)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if envelope.Error.Code != "invalid_manager_status" {
		t.Fatalf("error code: got %s", envelope.Error.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v0/projects", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", res.StatusCode)
	}

	// Health stays open.
	res2, err := client.Get(srv.URL + "/v0/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	res2.Body.Close()
	if res2.StatusCode != http.StatusOK {
		t.Fatalf("health status %d", res2.StatusCode)
	}
}
