package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shoalkv/shoal/pkg/cache"
	"github.com/shoalkv/shoal/pkg/persistence"
	"github.com/shoalkv/shoal/pkg/router"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := persistence.Open(persistence.Config{
		Dir:                 t.TempDir(),
		BloomFilterSize:     2048,
		BloomHashCount:      4,
		MaxKeysPerSSTable:   100,
		CompactionThreshold: 3,
		WorkerPoolSize:      2,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	c := cache.New(context.Background(), cache.Config{ShardCount: 2, CapacityPerShard: 100, TTL: time.Minute})
	return New(router.New(c, store))
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestPutThenGetRoundTrip(t *testing.T) {
	s := newTestServer(t)

	putResp := doJSON(t, s, http.MethodPost, "/api/put", putRequest{
		NewKeys: []putKey{{Key: "a", Value: []string{"x", "y"}}},
	})
	assert.Equal(t, http.StatusOK, putResp.StatusCode)

	getResp := doJSON(t, s, http.MethodGet, "/api/get", getRequest{Keys: []string{"a"}})
	assert.Equal(t, http.StatusOK, getResp.StatusCode)

	var parsed getResponse
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&parsed))
	require.Len(t, parsed.Value, 1)
	assert.Equal(t, []string{"x", "y"}, parsed.Value[0])
}

func TestGetMissingKeyReturnsEmptyArray(t *testing.T) {
	s := newTestServer(t)

	resp := doJSON(t, s, http.MethodGet, "/api/get", getRequest{Keys: []string{"missing"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var parsed getResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	require.Len(t, parsed.Value, 1)
	assert.Equal(t, []string{}, parsed.Value[0])
}

func TestPutRejectsEmptyNewKeys(t *testing.T) {
	s := newTestServer(t)

	resp := doJSON(t, s, http.MethodPost, "/api/put", putRequest{NewKeys: nil})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
