package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func createRecord(t *testing.T, ts *httptest.Server, body []byte) string {
	t.Helper()
	resp := doRequest(t, ts, "POST", "/api/v1/records", testClientKey, body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", resp.StatusCode)
	}
	var rec RecordResponse
	response := decodeBody(t, resp, &rec)
	if !response.Success || rec.ID == "" {
		t.Fatalf("Expected a record id, got %+v", response)
	}
	if rec.Size != len(body) {
		t.Errorf("Expected size %d, got %d", len(body), rec.Size)
	}
	return rec.ID
}

func TestServer_handleHealth(t *testing.T) {
	ts, engine := setupTestServer(t)

	resp := doRequest(t, ts, "GET", "/api/v1/health", testClientKey, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	data := map[string]string{}
	response := decodeBody(t, resp, &data)
	if !response.Success {
		t.Error("Expected success to be true")
	}
	if data["store_id"] != engine.StoreID() {
		t.Errorf("Expected store id %s, got %s", engine.StoreID(), data["store_id"])
	}
}

func TestServer_RecordLifecycle(t *testing.T) {
	ts, _ := setupTestServer(t)

	payload := bytes.Repeat([]byte("pagestore"), 100)
	id := createRecord(t, ts, payload)

	resp := doRequest(t, ts, "GET", "/api/v1/records/"+id, testClientKey, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/octet-stream" {
		t.Errorf("Expected octet-stream, got %s", ct)
	}
	got, _ := io.ReadAll(resp.Body)
	if !bytes.Equal(got, payload) {
		t.Error("Expected stored payload to round trip")
	}

	resp = doRequest(t, ts, "PUT", "/api/v1/records/"+id, testClientKey, []byte("replaced"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200 on update, got %d", resp.StatusCode)
	}
	resp = doRequest(t, ts, "GET", "/api/v1/records/"+id, testClientKey, nil)
	got, _ = io.ReadAll(resp.Body)
	if string(got) != "replaced" {
		t.Errorf("Expected updated payload, got %q", got)
	}

	resp = doRequest(t, ts, "DELETE", "/api/v1/records/"+id, testClientKey, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200 on delete, got %d", resp.StatusCode)
	}

	for _, method := range []string{"GET", "DELETE"} {
		resp = doRequest(t, ts, method, "/api/v1/records/"+id, testClientKey, nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("Expected %s of deleted record to return 404, got %d", method, resp.StatusCode)
		}
	}
}

func TestServer_EmptyRecord(t *testing.T) {
	ts, _ := setupTestServer(t)

	id := createRecord(t, ts, []byte{})
	resp := doRequest(t, ts, "GET", "/api/v1/records/"+id, testClientKey, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	got, _ := io.ReadAll(resp.Body)
	if len(got) != 0 {
		t.Errorf("Expected empty payload, got %d bytes", len(got))
	}
}

func TestServer_Preallocate(t *testing.T) {
	ts, _ := setupTestServer(t)

	resp := doRequest(t, ts, "POST", "/api/v1/records/preallocate", testClientKey, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", resp.StatusCode)
	}
	var rec RecordResponse
	decodeBody(t, resp, &rec)

	resp = doRequest(t, ts, "GET", "/api/v1/records/"+rec.ID, testClientKey, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected null record to return 404, got %d", resp.StatusCode)
	}

	resp = doRequest(t, ts, "PUT", "/api/v1/records/"+rec.ID, testClientKey, []byte("filled"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200 filling a null record, got %d", resp.StatusCode)
	}
	resp = doRequest(t, ts, "GET", "/api/v1/records/"+rec.ID, testClientKey, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
}

func TestServer_InvalidRecordID(t *testing.T) {
	ts, _ := setupTestServer(t)

	tests := []struct {
		name           string
		id             string
		expectedStatus int
	}{
		{name: "not a number", id: "abc", expectedStatus: http.StatusBadRequest},
		{name: "zero", id: "0", expectedStatus: http.StatusBadRequest},
		{name: "never issued", id: "987654", expectedStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(t, ts, "GET", "/api/v1/records/"+tt.id, testClientKey, nil)
			if resp.StatusCode != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, resp.StatusCode)
			}
		})
	}
}

func TestServer_RecordTooLarge(t *testing.T) {
	ts, _ := setupTestServer(t, func(c *ServerConfig) { c.MaxRecordSize = 1024 })

	resp := doRequest(t, ts, "POST", "/api/v1/records", testClientKey, make([]byte, 2048))
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected status 413, got %d", resp.StatusCode)
	}
}

func TestServer_CommitAndStats(t *testing.T) {
	ts, _ := setupTestServer(t)

	createRecord(t, ts, []byte("one"))
	createRecord(t, ts, []byte("two"))

	resp := doRequest(t, ts, "POST", "/api/v1/commit", testSystemKey, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	head := map[string]uint64{}
	decodeBody(t, resp, &head)
	if head["head_version"] != 1 {
		t.Errorf("Expected the first commit to produce head 1, got %d", head["head_version"])
	}

	resp = doRequest(t, ts, "GET", "/api/v1/stats", testSystemKey, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	var stats struct {
		Records     int    `json:"records"`
		HeadVersion uint64 `json:"head_version"`
		Shards      []struct {
			Records int `json:"records"`
		} `json:"shards"`
	}
	decodeBody(t, resp, &stats)
	if stats.Records != 2 {
		t.Errorf("Expected 2 records, got %d", stats.Records)
	}
	if stats.HeadVersion != head["head_version"] {
		t.Errorf("Expected head %d, got %d", head["head_version"], stats.HeadVersion)
	}
	if len(stats.Shards) != 8 {
		t.Errorf("Expected 8 shards, got %d", len(stats.Shards))
	}
}

func TestServer_ClosedEngine(t *testing.T) {
	ts, engine := setupTestServer(t)
	id := createRecord(t, ts, []byte("x"))

	if err := engine.Close(); err != nil {
		t.Fatalf("Failed to close engine: %v", err)
	}

	resp := doRequest(t, ts, "GET", "/api/v1/records/"+id, testClientKey, nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", resp.StatusCode)
	}
	resp = doRequest(t, ts, "GET", "/api/v1/health", testClientKey, nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected unhealthy status 503, got %d", resp.StatusCode)
	}
}

// Handlers can also be driven directly with a chi route context.
func TestServer_handleGetRecordDirect(t *testing.T) {
	_, engine := setupTestServer(t)

	id, err := engine.PutBytes([]byte("direct"))
	if err != nil {
		t.Fatalf("Failed to put: %v", err)
	}

	server := NewServer(engine, ServerConfig{}, NewMetrics(nil), nil)
	req := httptest.NewRequest("GET", "/records/"+id.String(), nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	w := httptest.NewRecorder()

	server.handleGetRecord(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if w.Body.String() != "direct" {
		t.Errorf("Expected body %q, got %q", "direct", w.Body.String())
	}
}
