package adminhttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iruldev/xyprissgo/internal/cache"
	"github.com/iruldev/xyprissgo/internal/cluster"
	"github.com/iruldev/xyprissgo/internal/config"
	"github.com/iruldev/xyprissgo/internal/ipc"
	"github.com/iruldev/xyprissgo/internal/ratelimit"
	"github.com/iruldev/xyprissgo/internal/reqres"
	"github.com/iruldev/xyprissgo/internal/router"
)

func newTestContext() (*router.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/__admin/routes", nil)
	return &router.Context{
		Request:  &reqres.Request{Method: http.MethodGet, Path: req.URL.Path, Raw: req},
		Response: reqres.NewResponse(rec),
	}, rec
}

func TestHandler_RouteTableListsRegisteredRoutes(t *testing.T) {
	routes := router.New()
	routes.Register(&router.Route{Method: router.MethodGet, Pattern: "/health", Handler: func(*router.Context) {}})

	h := New(routes, nil, nil, nil, false, nil)
	ctx, rec := newTestContext()
	h.RouteTable(ctx)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "/health")
}

func TestHandler_CacheStatsReportsMemoryStoreSnapshot(t *testing.T) {
	store := cache.NewMemoryStore(config.CacheSection{MaxSize: 10})
	defer store.Close()
	_ = store.Set("fp1", []byte("v"), nil, 200, cache.SetOptions{})
	store.Get("fp1")
	store.Get("missing")

	h := New(router.New(), store, nil, nil, false, nil)
	ctx, rec := newTestContext()
	h.CacheStats(ctx)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `"available":true`)
	assert.Contains(t, rec.Body.String(), `"entries":1`)
}

func TestHandler_CacheStatsUnavailableWithoutStatter(t *testing.T) {
	h := New(router.New(), noStatsStore{}, nil, nil, false, nil)
	ctx, rec := newTestContext()
	h.CacheStats(ctx)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `"available":false`)
}

func TestHandler_RateLimitStatsReportsLiveBuckets(t *testing.T) {
	limiter := ratelimit.NewMemoryStore()
	_, err := limiter.Allow(nil, ratelimit.ScopeIP, "10.0.0.1", 5, 1000)
	require.NoError(t, err)

	h := New(router.New(), nil, limiter, nil, false, nil)
	ctx, rec := newTestContext()
	h.RateLimitStats(ctx)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "ip:10.0.0.1")
}

func TestHandler_WorkersReportsFallbackWhenSupervisorNil(t *testing.T) {
	h := New(router.New(), nil, nil, nil, false, nil)
	ctx, rec := newTestContext()
	h.Workers(ctx)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `"fallback":true`)
}

func TestHandler_WorkersDelegatesToSupervisor(t *testing.T) {
	sup := cluster.New(config.ClusterSection{}, nil, ipc.New(nil), nil)
	h := New(router.New(), nil, nil, sup, false, nil)
	ctx, rec := newTestContext()
	h.Workers(ctx)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `"fallback":false`)
}

func TestHandler_CSRFTokenSetsCookieAndReturnsToken(t *testing.T) {
	h := New(router.New(), nil, nil, nil, true, nil)
	ctx, rec := newTestContext()
	h.CSRFToken(ctx)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "token")
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "__Host-csrf-token=")
}

type noStatsStore struct{}

func (noStatsStore) Get(string) (*cache.Entry, bool) { return nil, false }
func (noStatsStore) Set(string, []byte, map[string][]string, int, cache.SetOptions) error {
	return nil
}
func (noStatsStore) Delete(string) bool             { return false }
func (noStatsStore) Clear()                         {}
func (noStatsStore) InvalidateByTag(string)         {}
func (noStatsStore) PredictNextAccess(int) []string { return nil }
func (noStatsStore) WarmCache(context.Context, func(ctx context.Context, key string) ([]byte, error)) {
}
func (noStatsStore) Close() {}
