package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"bookcourier/internal/model"
	"bookcourier/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) (*Server, *miniredis.Miniredis, *store.HybridStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	st, err := store.NewHybridStore(mr.Addr(), "", "")
	require.NoError(t, err)
	t.Cleanup(st.Close)
	return NewServer(st, zap.NewNop()), mr, st
}

func TestHealth(t *testing.T) {
	srv, mr, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	mr.Close()
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStats(t *testing.T) {
	srv, mr, st := newTestServer(t)
	ctx := context.Background()

	mr.HSet("archive:42", "fb2", "100")
	mr.HSet("archive:7", "epub", "200")
	require.NoError(t, st.PutCachedHandle(ctx, 42, model.VariantFB2, "handle-1"))
	require.NoError(t, st.PutPolicy(ctx, 1001, model.DefaultPolicy(1001)))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("GET", "/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var stats store.Stats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, int64(2), stats.ArchiveBooks)
	assert.Equal(t, 1, stats.CacheRecords)
	assert.Equal(t, 1, stats.Policies)
}

func TestEvict(t *testing.T) {
	srv, _, st := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, st.PutCachedHandle(ctx, 42, model.VariantFB2, "handle-1"))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("DELETE", "/cache/42/fb2", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, err := st.CachedHandle(ctx, 42, model.VariantFB2)
	assert.True(t, errors.Is(err, store.ErrNotFound))

	// evicting an absent record is fine
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("DELETE", "/cache/42/fb2", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestEvictRejectsBadInput(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("DELETE", "/cache/abc/fb2", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("DELETE", "/cache/42/txt", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
