package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamweld/streamweld/internal/config"
	"github.com/streamweld/streamweld/internal/epg"
	"github.com/streamweld/streamweld/internal/events"
	"github.com/streamweld/streamweld/internal/scheduler"
	"github.com/streamweld/streamweld/internal/source"
	"github.com/streamweld/streamweld/internal/testutil"
)

func setupTestServer(t *testing.T) (*Server, func()) {
	t.Helper()

	tdb := testutil.NewTestDB(t)

	hub := events.NewHub(tdb.Logger)
	go hub.Run()

	sched, err := scheduler.New(tdb.Logger)
	require.NoError(t, err)

	cfg := config.Default()
	fetcher := epg.NewXMLTVFetcher("", tdb.Logger)
	server := NewServer(tdb.DB, hub, sched, fetcher, cfg, tdb.Logger)

	cleanup := func() {
		sched.Stop()
		tdb.Close()
	}
	return server, cleanup
}

func doJSON(t *testing.T, server *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	server.Echo().ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	rec := doJSON(t, server, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatus(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	rec := doJSON(t, server, http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Contains(t, status, "version")
}

func TestSourceLifecycleOverHTTP(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	rec := doJSON(t, server, http.MethodPost, "/api/v1/sources",
		`{"name":"main","kind":"playlist","endpoint":"http://example.test/list.m3u","priority":1}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created source.Source
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.True(t, created.Active)

	rec = doJSON(t, server, http.MethodGet, "/api/v1/sources", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []source.Source
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)

	rec = doJSON(t, server, http.MethodPut, "/api/v1/sources/"+created.ID+"/active", `{"active":false}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, server, http.MethodDelete, "/api/v1/sources/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, server, http.MethodGet, "/api/v1/sources/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSourceValidationOverHTTP(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	rec := doJSON(t, server, http.MethodPost, "/api/v1/sources",
		`{"name":"","kind":"playlist","endpoint":"http://example.test"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestAndGroupsOverHTTP(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	src, err := server.SourceService().Add(context.Background(), source.AddInput{
		Name:     "main",
		Kind:     source.KindPlaylist,
		Endpoint: "http://example.test/list.m3u",
	})
	require.NoError(t, err)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/sources/"+src.ID+"/ingest",
		`[{"externalId":"1","contentType":"movie","title":"The Matrix","streamRef":"http://x/1"},
		  {"externalId":"2","contentType":"movie","title":"The Matrix Reloaded","streamRef":"http://x/2"}]`)
	require.Equal(t, http.StatusOK, rec.Code)

	var report map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.EqualValues(t, 2, report["added"])

	rec = doJSON(t, server, http.MethodGet, "/api/v1/groups/movie", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var groups []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &groups))
	assert.Len(t, groups, 2)

	rec = doJSON(t, server, http.MethodGet, "/api/v1/catalog/search?q=matrix", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var hits []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hits))
	assert.Len(t, hits, 2)
}
