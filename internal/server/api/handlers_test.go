package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/CanoaPBC/speckle-server/internal/core"
	"github.com/CanoaPBC/speckle-server/internal/objects"
	"github.com/CanoaPBC/speckle-server/internal/store"
)

func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	repo, err := store.NewSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { repo.Close(context.Background()) })

	r := chi.NewRouter()
	New(objects.NewService(repo)).Routes(r)

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("encoding request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("posting: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	ts := setupTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body map[string]string
	decodeBody(t, resp, &body)
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

func TestCreateAndGetObject(t *testing.T) {
	ts := setupTestServer(t)

	resp := postJSON(t, ts.URL+"/api/objects", map[string]any{
		"objects": []map[string]any{
			{"name": "wall", "height": 3.2},
		},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}

	var created CreateObjectsResponse
	decodeBody(t, resp, &created)
	if len(created.IDs) != 1 {
		t.Fatalf("ids = %v, want one", created.IDs)
	}

	getResp, err := http.Get(ts.URL + "/api/objects/" + created.IDs[0])
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d, want 200", getResp.StatusCode)
	}

	var obj map[string]any
	decodeBody(t, getResp, &obj)
	if obj["id"] != created.IDs[0] {
		t.Errorf("id = %v, want %s", obj["id"], created.IDs[0])
	}
}

func TestGetObjectNotFound(t *testing.T) {
	ts := setupTestServer(t)

	resp, err := http.Get(ts.URL + "/api/objects/missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestChildrenEndpoints(t *testing.T) {
	ts := setupTestServer(t)

	// A root with two descendants at depths 1 and 2.
	resp := postJSON(t, ts.URL+"/api/objects", map[string]any{
		"objects": []map[string]any{
			{"id": "b", "name": "beam"},
			{"id": "c", "name": "column"},
			{"id": "a", "name": "root", "__closure": map[string]int{"b": 1, "c": 2}},
		},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}
	resp.Body.Close()

	getResp, err := http.Get(ts.URL + "/api/objects/a/children?depth=2")
	if err != nil {
		t.Fatalf("children: %v", err)
	}
	var page ChildrenResponse
	decodeBody(t, getResp, &page)
	if len(page.Objects) != 1 || page.Objects[0].ID != "b" {
		t.Errorf("depth 2 children = %+v, want just b", page.Objects)
	}

	queryResp := postJSON(t, ts.URL+"/api/objects/a/query", QueryChildrenRequest{
		Depth:   3,
		Filters: []core.Filter{{Field: "name", Operator: "=", Value: "column"}},
	})
	if queryResp.StatusCode != http.StatusOK {
		t.Fatalf("query status = %d, want 200", queryResp.StatusCode)
	}
	var result QueryChildrenResponse
	decodeBody(t, queryResp, &result)
	if result.TotalCount != 1 || len(result.Objects) != 1 || result.Objects[0].ID != "c" {
		t.Errorf("filtered query = %+v, want just c", result)
	}
	if result.Cursor != nil {
		t.Errorf("final page cursor = %v, want null", *result.Cursor)
	}
}

func TestQueryRejectsInvalidOperator(t *testing.T) {
	ts := setupTestServer(t)

	resp := postJSON(t, ts.URL+"/api/objects/a/query", QueryChildrenRequest{
		Filters: []core.Filter{{Field: "name", Operator: "LIKE", Value: "x"}},
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestCommitEndpoints(t *testing.T) {
	ts := setupTestServer(t)

	resp := postJSON(t, ts.URL+"/api/streams/s1/commits", CreateCommitRequest{
		UserID: "u1",
		Object: map[string]any{"message": "first commit"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create commit status = %d, want 201", resp.StatusCode)
	}
	var created map[string]string
	decodeBody(t, resp, &created)
	if created["id"] == "" {
		t.Fatal("no commit id returned")
	}

	listResp, err := http.Get(ts.URL + "/api/streams/s1/commits")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var list struct {
		Commits []struct {
			ID          string `json:"id"`
			SpeckleType string `json:"speckleType"`
			Author      string `json:"author"`
		} `json:"commits"`
	}
	decodeBody(t, listResp, &list)
	if len(list.Commits) != 1 {
		t.Fatalf("commits = %d, want 1", len(list.Commits))
	}
	if list.Commits[0].ID != created["id"] || list.Commits[0].SpeckleType != "commit" || list.Commits[0].Author != "u1" {
		t.Errorf("commit = %+v, want id %s by u1", list.Commits[0], created["id"])
	}
}
