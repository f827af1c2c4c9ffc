package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/philopaterwaheed/exeio/internal/logsink"
	"github.com/philopaterwaheed/exeio/internal/supervisor"
)

type fakeStore struct{ defs map[string]supervisor.ProcessDefinition }

func newFakeStore() *fakeStore {
	return &fakeStore{defs: make(map[string]supervisor.ProcessDefinition)}
}
func (f *fakeStore) Load() []supervisor.ProcessDefinition {
	out := make([]supervisor.ProcessDefinition, 0, len(f.defs))
	for _, d := range f.defs {
		out = append(out, d)
	}
	return out
}
func (f *fakeStore) Upsert(d supervisor.ProcessDefinition) error { f.defs[d.ID] = d; return nil }
func (f *fakeStore) Delete(id string) error                      { delete(f.defs, id); return nil }

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	sink := logsink.New(zap.NewNop(), "127.0.0.1", 8080)
	sup := supervisor.New(zap.NewNop(), sink, newFakeStore(), dir)

	const apiKey = "test-secret"
	srv := New(zap.NewNop(), sup, Options{Host: "127.0.0.1", Port: 0, APIKey: apiKey, Version: "test"}, func() {})
	return srv, apiKey
}

func doRequest(t *testing.T, srv *Server, method, path, apiKey string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set(apiKeyHeader, apiKey)
	}
	rec := httptest.NewRecorder()
	srv.engine.ServeHTTP(rec, req)
	return rec
}

func TestInfoIsPublic(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/info", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp infoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "exeio", resp.Name)
}

func TestListRequiresAPIKey(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/list", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
}

func TestListWithValidAPIKeySucceeds(t *testing.T) {
	srv, key := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/list", key, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":true`)
}

func TestAddThenList(t *testing.T) {
	srv, key := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/add", key, addRequest{
		ID: "echo1", Command: "echo", Args: []string{"hello"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/list", key, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"echo1"`)
}

func TestAddDuplicateIDReturnsSuccessFalse(t *testing.T) {
	srv, key := newTestServer(t)
	body := addRequest{ID: "a", Command: "sleep", Args: []string{"30"}}

	rec := doRequest(t, srv, http.MethodPost, "/add", key, body)
	require.Equal(t, http.StatusOK, rec.Code)

	// §7: validation-class errors (including duplicate id) are 400-semantic
	// but returned as 200 with success:false, matching the original's
	// uniform warp::reply::json envelope.
	rec = doRequest(t, srv, http.MethodPost, "/add", key, body)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)

	doRequest(t, srv, http.MethodPost, "/stop/a", key, nil)
}

func TestStopUnknownIDReturnsSuccessFalse(t *testing.T) {
	srv, key := newTestServer(t)
	rec := doRequest(t, srv, http.MethodPost, "/stop/nope", key, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
}

func TestAddRejectsBlankCommand(t *testing.T) {
	srv, key := newTestServer(t)
	rec := doRequest(t, srv, http.MethodPost, "/add", key, addRequest{ID: "a"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
}

func TestAddRejectsPeriodicWithoutPeriodSeconds(t *testing.T) {
	srv, key := newTestServer(t)
	rec := doRequest(t, srv, http.MethodPost, "/add", key, addRequest{
		ID: "a", Command: "echo", Periodic: true,
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
}
