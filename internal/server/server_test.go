package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"opsmap/internal/config"
	"opsmap/internal/db"
	"opsmap/internal/domain"
	"opsmap/internal/engine"
	"opsmap/internal/migrate"
	"opsmap/internal/store"
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
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(store.NewSQLite(conn, "api"), config.Default("opsmap"))
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Auth: AuthConfig{
			JWTSecret:        "test-secret",
			AllowActorHeader: true,
		},
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

func TestEntityCRUDOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	createRes, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/areas", map[string]any{
		"name": "Sales",
	}, nil)
	if createRes.StatusCode != http.StatusCreated {
		t.Fatalf("create area status %d: %s", createRes.StatusCode, string(data))
	}
	var created domain.Area
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal area: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("missing id: %s", string(data))
	}

	getRes, body := doJSON(t, client, http.MethodGet, srv.URL+"/v0/areas/"+created.ID, nil, nil)
	if getRes.StatusCode != http.StatusOK {
		t.Fatalf("get area status %d: %s", getRes.StatusCode, string(body))
	}

	updRes, body := doJSON(t, client, http.MethodPut, srv.URL+"/v0/areas/"+created.ID, map[string]any{
		"name":        "Sales",
		"description": "revenue",
	}, nil)
	if updRes.StatusCode != http.StatusOK {
		t.Fatalf("update area status %d: %s", updRes.StatusCode, string(body))
	}

	listRes, body := doJSON(t, client, http.MethodGet, srv.URL+"/v0/areas", nil, nil)
	if listRes.StatusCode != http.StatusOK {
		t.Fatalf("list areas status %d: %s", listRes.StatusCode, string(body))
	}
	var areas []domain.Area
	if err := json.Unmarshal(body, &areas); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(areas) != 1 || areas[0].Description != "revenue" {
		t.Fatalf("unexpected list: %s", string(body))
	}

	delRes, body := doJSON(t, client, http.MethodDelete, srv.URL+"/v0/areas/"+created.ID, nil, nil)
	if delRes.StatusCode != http.StatusNoContent && delRes.StatusCode != http.StatusOK {
		t.Fatalf("delete area status %d: %s", delRes.StatusCode, string(body))
	}
	getRes, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/areas/"+created.ID, nil, nil)
	if getRes.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", getRes.StatusCode)
	}
}

func TestDeleteConflictOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	_, areaBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/areas", map[string]any{"name": "Ops"}, nil)
	var area domain.Area
	_ = json.Unmarshal(areaBody, &area)
	res, body := doJSON(t, client, http.MethodPost, srv.URL+"/v0/processes", map[string]any{
		"name":   "Filing",
		"areaId": area.ID,
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create process: %d %s", res.StatusCode, string(body))
	}

	delRes, delBody := doJSON(t, client, http.MethodDelete, srv.URL+"/v0/areas/"+area.ID, nil, nil)
	if delRes.StatusCode != http.StatusConflict {
		t.Fatalf("expected conflict, got %d %s", delRes.StatusCode, string(delBody))
	}
}

func TestOrganigramAndCostOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	_, areaBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/areas", map[string]any{"name": "Finance"}, nil)
	var area domain.Area
	_ = json.Unmarshal(areaBody, &area)
	_, roleBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/roles", map[string]any{"name": "Accountant"}, nil)
	var role domain.Role
	_ = json.Unmarshal(roleBody, &role)
	doJSON(t, client, http.MethodPost, srv.URL+"/v0/employees", map[string]any{
		"name": "Maria", "salary": 9600, "roleIds": []string{role.ID},
	}, nil)
	_, taskBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks", map[string]any{
		"name": "Close books", "estimatedTime": 60,
	}, nil)
	var task domain.Task
	_ = json.Unmarshal(taskBody, &task)
	doJSON(t, client, http.MethodPost, srv.URL+"/v0/processes", map[string]any{
		"name": "Monthly close", "areaId": area.ID,
		"activities": []map[string]any{{"name": "close", "taskId": task.ID, "roleId": role.ID}},
	}, nil)

	orgRes, orgBody := doJSON(t, client, http.MethodGet, srv.URL+"/v0/organigram", nil, nil)
	if orgRes.StatusCode != http.StatusOK {
		t.Fatalf("organigram status %d: %s", orgRes.StatusCode, string(orgBody))
	}
	var org []map[string]any
	if err := json.Unmarshal(orgBody, &org); err != nil {
		t.Fatalf("unmarshal organigram: %v", err)
	}
	if len(org) != 1 || org[0]["name"] != "Finance" {
		t.Fatalf("organigram: %s", string(orgBody))
	}

	costRes, costBody := doJSON(t, client, http.MethodGet, srv.URL+"/v0/tasks/"+task.ID+"/cost", nil, nil)
	if costRes.StatusCode != http.StatusOK {
		t.Fatalf("cost status %d: %s", costRes.StatusCode, string(costBody))
	}
	var cost TaskCostResponse
	if err := json.Unmarshal(costBody, &cost); err != nil {
		t.Fatalf("unmarshal cost: %v", err)
	}
	if cost.Cost == nil || *cost.Cost != 60 {
		t.Fatalf("cost = %v, want 60", cost.Cost)
	}

	missRes, _ := doJSON(t, client, http.MethodGet, srv.URL+"/v0/tasks/nope/cost", nil, nil)
	if missRes.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown task, got %d", missRes.StatusCode)
	}
}

func TestSearchOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	doJSON(t, client, http.MethodPost, srv.URL+"/v0/areas", map[string]any{"name": "Información"}, nil)
	res, body := doJSON(t, client, http.MethodGet, srv.URL+"/v0/search?q=informacion", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("search status %d: %s", res.StatusCode, string(body))
	}
	var results engine.SearchResults
	if err := json.Unmarshal(body, &results); err != nil {
		t.Fatalf("unmarshal search: %v", err)
	}
	if len(results.Areas) != 1 {
		t.Fatalf("search results: %s", string(body))
	}
}

func TestAuthRequiredForWrites(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v0/areas", bytes.NewReader([]byte(`{"name":"X"}`)))
	req.Header.Set("Content-Type", "application/json")
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", res.StatusCode)
	}
}

func TestDevLoginMintsUsableToken(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v0/auth/dev/login", bytes.NewReader([]byte(`{"actor_id":"dev"}`)))
	req.Header.Set("Content-Type", "application/json")
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	data, _ := io.ReadAll(res.Body)
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("login status %d: %s", res.StatusCode, string(data))
	}
	var login DevLoginResponse
	if err := json.Unmarshal(data, &login); err != nil {
		t.Fatalf("unmarshal login: %v", err)
	}

	createRes, body := doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks", map[string]any{
		"name": "Token task",
	}, map[string]string{"Authorization": "Bearer " + login.Token, "X-Actor-Id": ""})
	if createRes.StatusCode != http.StatusCreated {
		t.Fatalf("create with token status %d: %s", createRes.StatusCode, string(body))
	}
}

func TestSnapshotRoundTripOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	importRes, body := doJSON(t, client, http.MethodPost, srv.URL+"/v0/snapshot", map[string]any{
		"areas": map[string]any{"a1": map[string]any{"name": "Sales"}},
		"tasks": []map[string]any{{"id": "t1", "name": "Quote"}},
	}, nil)
	if importRes.StatusCode != http.StatusOK {
		t.Fatalf("import status %d: %s", importRes.StatusCode, string(body))
	}
	var imported SnapshotImportResponse
	_ = json.Unmarshal(body, &imported)
	if imported.Imported != 2 {
		t.Fatalf("imported %d, want 2", imported.Imported)
	}

	exportRes, exported := doJSON(t, client, http.MethodGet, srv.URL+"/v0/snapshot", nil, nil)
	if exportRes.StatusCode != http.StatusOK {
		t.Fatalf("export status %d: %s", exportRes.StatusCode, string(exported))
	}
	if !bytes.Contains(exported, []byte(`"t1"`)) {
		t.Fatalf("export missing imported task: %s", string(exported))
	}
}
