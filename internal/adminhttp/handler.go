// Package adminhttp mounts a small read-only introspection surface: the
// registered route table, cache and rate-limiter snapshots, worker
// descriptors, and the CSRF token-exchange endpoint. It parallels the
// teacher's internal/interface/http/admin package (features/queues/roles
// inspection handlers) but is generalized from per-domain admin resources
// to framework-level runtime state.
package adminhttp

import (
	"github.com/iruldev/xyprissgo/internal/cache"
	"github.com/iruldev/xyprissgo/internal/cluster"
	"github.com/iruldev/xyprissgo/internal/observability"
	"github.com/iruldev/xyprissgo/internal/ratelimit"
	"github.com/iruldev/xyprissgo/internal/router"
)

// cacheStatter is implemented by cache.Store backends that can report
// size/hit-rate stats. RedisStore does not implement it; the handler
// degrades to an empty snapshot rather than requiring every Store
// implementation to carry this.
type cacheStatter interface {
	Stats() cache.Stats
}

// bucketCounter is implemented by ratelimit.Limiter backends that can
// enumerate their live buckets. RedisStore does not implement it.
type bucketCounter interface {
	BucketCounts() []ratelimit.BucketEntry
}

// workerSupervisor is the subset of cluster.Supervisor the worker-descriptor
// endpoint needs, declared narrowly so a nil *cluster.Supervisor (single
// process mode) can be swapped for a stub in tests.
type workerSupervisor interface {
	Descriptors() []cluster.Descriptor
	FallbackActive() bool
}

// Handler serves the admin introspection endpoints. All fields may be left
// nil/zero; each handler degrades to reporting "unavailable" rather than
// panicking, since not every deployment runs every optional component.
type Handler struct {
	Routes     *router.Trie
	Cache      cache.Store
	Limiter    ratelimit.Limiter
	Supervisor workerSupervisor
	Production bool
	Logger     observability.Logger
}

// New builds a Handler. logger may be nil.
func New(routes *router.Trie, store cache.Store, limiter ratelimit.Limiter, supervisor workerSupervisor, production bool, logger observability.Logger) *Handler {
	if logger == nil {
		logger = observability.NewNopLoggerInterface()
	}
	return &Handler{
		Routes:     routes,
		Cache:      store,
		Limiter:    limiter,
		Supervisor: supervisor,
		Production: production,
		Logger:     logger,
	}
}

// Register adds every admin endpoint to routes under the given prefix
// (typically "/__admin"), plus the CSRF exchange endpoint at the
// spec-fixed path "/__csrf/token" regardless of prefix.
func (h *Handler) Register(routes *router.Trie, prefix string) {
	routes.Register(&router.Route{Method: router.MethodGet, Pattern: prefix + "/routes", Handler: h.RouteTable})
	routes.Register(&router.Route{Method: router.MethodGet, Pattern: prefix + "/cache", Handler: h.CacheStats})
	routes.Register(&router.Route{Method: router.MethodGet, Pattern: prefix + "/ratelimit", Handler: h.RateLimitStats})
	routes.Register(&router.Route{Method: router.MethodGet, Pattern: prefix + "/workers", Handler: h.Workers})
	routes.Register(&router.Route{Method: router.MethodGet, Pattern: "/__csrf/token", Handler: h.CSRFToken})
}
