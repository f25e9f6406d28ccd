package router

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func handlerStub(name string) Handler {
	return func(ctx *Context) {}
}

func TestTrie_StaticMatch(t *testing.T) {
	tr := New()
	tr.Register(&Route{Method: MethodGet, Pattern: "/api/v1/auth/login", Handler: handlerStub("login")})

	route, params := tr.Match(MethodGet, "/api/v1/auth/login")
	require.NotNil(t, route)
	assert.Empty(t, params)
}

func TestTrie_ParamCapture(t *testing.T) {
	tr := New()
	tr.Register(&Route{Method: MethodGet, Pattern: "/users/:id", Handler: handlerStub("user")})

	route, params := tr.Match(MethodGet, "/users/42")
	require.NotNil(t, route)
	assert.Equal(t, "42", params["id"])
}

func TestTrie_WildcardCapture(t *testing.T) {
	tr := New()
	tr.Register(&Route{Method: MethodGet, Pattern: "/files/*rest", Handler: handlerStub("files")})

	route, params := tr.Match(MethodGet, "/files/a/b/c.txt")
	require.NotNil(t, route)
	assert.Equal(t, "a/b/c.txt", params["rest"])
}

func TestTrie_ParamBacktracksToStatic(t *testing.T) {
	tr := New()
	tr.Register(&Route{Method: MethodGet, Pattern: "/users/:id", Handler: handlerStub("byID")})
	tr.Register(&Route{Method: MethodGet, Pattern: "/users/me", Handler: handlerStub("me")})

	route, params := tr.Match(MethodGet, "/users/me")
	require.NotNil(t, route)
	assert.Empty(t, params)
	assert.Equal(t, "/users/me", route.Pattern)
}

func TestTrie_ParamBacktracksOnDownstreamMiss(t *testing.T) {
	tr := New()
	tr.Register(&Route{Method: MethodGet, Pattern: "/a/:x/c", Handler: handlerStub("deep")})
	tr.Register(&Route{Method: MethodGet, Pattern: "/a/b", Handler: handlerStub("shallow")})

	route, params := tr.Match(MethodGet, "/a/b")
	require.NotNil(t, route)
	assert.Equal(t, "/a/b", route.Pattern)
	assert.Empty(t, params)
}

func TestTrie_RootPattern(t *testing.T) {
	tr := New()
	tr.Register(&Route{Method: MethodGet, Pattern: "/", Handler: handlerStub("root")})

	route, _ := tr.Match(MethodGet, "")
	require.NotNil(t, route)

	route2, _ := tr.Match(MethodGet, "/")
	require.NotNil(t, route2)
}

func TestTrie_ReRegisterReplaces(t *testing.T) {
	tr := New()
	first := &Route{Method: MethodGet, Pattern: "/x", Handler: handlerStub("first")}
	second := &Route{Method: MethodGet, Pattern: "/x", Handler: handlerStub("second")}
	tr.Register(first)
	tr.Register(second)

	route, _ := tr.Match(MethodGet, "/x")
	require.NotNil(t, route)
	assert.Same(t, second, route)
}

func TestTrie_NoMatch(t *testing.T) {
	tr := New()
	tr.Register(&Route{Method: MethodGet, Pattern: "/x", Handler: handlerStub("x")})

	route, params := tr.Match(MethodGet, "/y")
	assert.Nil(t, route)
	assert.Nil(t, params)
}

func TestTrie_ALLMatchesAnyMethod(t *testing.T) {
	tr := New()
	tr.Register(&Route{Method: MethodAll, Pattern: "/any", Handler: handlerStub("any")})

	for _, m := range []Method{MethodGet, MethodPost, MethodDelete} {
		route, _ := tr.Match(m, "/any")
		require.NotNil(t, route, "method %s should match ALL route", m)
	}
}

func TestTrie_AllowedMethods(t *testing.T) {
	tr := New()
	tr.Register(&Route{Method: MethodGet, Pattern: "/res", Handler: handlerStub("get")})
	tr.Register(&Route{Method: MethodPost, Pattern: "/res", Handler: handlerStub("post")})

	methods := tr.AllowedMethods("/res")
	assert.ElementsMatch(t, []Method{MethodGet, MethodPost}, methods)
}

func TestTrie_LeadingTrailingSlashesIgnored(t *testing.T) {
	tr := New()
	tr.Register(&Route{Method: MethodGet, Pattern: "api/v1/x/", Handler: handlerStub("x")})

	route, _ := tr.Match(MethodGet, "/api/v1/x")
	require.NotNil(t, route)
}

func TestTrie_StatsCounters(t *testing.T) {
	tr := New()
	tr.Register(&Route{Method: MethodGet, Pattern: "/x", Handler: handlerStub("x")})

	tr.Match(MethodGet, "/x")
	tr.Match(MethodGet, "/missing")

	lookups, failed := tr.Stats()
	assert.Equal(t, int64(2), lookups)
	assert.Equal(t, int64(1), failed)
}

func TestTrie_ConcurrentReadsSafe(t *testing.T) {
	tr := New()
	tr.Register(&Route{Method: MethodGet, Pattern: "/concurrent/:id", Handler: handlerStub("c")})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			route, params := tr.Match(MethodGet, "/concurrent/1")
			assert.NotNil(t, route)
			assert.Equal(t, "1", params["id"])
		}()
	}
	wg.Wait()
}
