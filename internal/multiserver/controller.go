package multiserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/iruldev/xyprissgo/internal/cache"
	"github.com/iruldev/xyprissgo/internal/config"
	"github.com/iruldev/xyprissgo/internal/httpserver"
	"github.com/iruldev/xyprissgo/internal/lifecycle"
	"github.com/iruldev/xyprissgo/internal/pipeline"
	"github.com/iruldev/xyprissgo/internal/router"
)

// Controller owns N independent httpserver.Server instances sharing one
// process, one per config.ServerInstance, each serving only the routes
// routeAllowed lets through for it.
type Controller struct {
	mu      sync.Mutex
	servers map[string]*httpserver.Server
	order   []string
}

// New builds a Controller. routes is the full, already-registered trie;
// each server instance gets its own trie containing only the routes
// routeAllowed admits for its (routePrefix, allowedRoutes) filter.
func New(
	cfg config.MultiServerSection,
	base config.ServerSection,
	notFoundCfg config.NotFoundSection,
	routes *router.Trie,
	security []pipeline.Stage,
	ctrl *lifecycle.Controller,
	store cache.Store,
	cacheTTL time.Duration,
	logger *slog.Logger,
) (*Controller, error) {
	c := &Controller{servers: map[string]*httpserver.Server{}}

	all := routes.Routes()
	for _, inst := range cfg.Servers {
		if inst.ID == "" {
			return nil, fmt.Errorf("multiserver: server instance missing id")
		}

		instTrie := router.New()
		for _, r := range all {
			if routeAllowed(r.Pattern, inst.RoutePrefix, inst.AllowedRoutes) {
				instTrie.Register(r)
			}
		}

		instCfg := base
		instCfg.Port = inst.Port
		if inst.Host != "" {
			instCfg.Host = inst.Host
		}

		c.servers[inst.ID] = httpserver.New(inst.ID, instCfg, notFoundCfg, instTrie, security, ctrl, store, cacheTTL, logger)
		c.order = append(c.order, inst.ID)
	}

	return c, nil
}

// Start starts every server concurrently. A failure to start one server
// does not stop the others; Start returns the ports that did start,
// keyed by server id, plus a joined error for every server that failed.
func (c *Controller) Start() (map[string]int, error) {
	c.mu.Lock()
	ids := append([]string(nil), c.order...)
	servers := make(map[string]*httpserver.Server, len(c.servers))
	for k, v := range c.servers {
		servers[k] = v
	}
	c.mu.Unlock()

	var wg sync.WaitGroup
	var mu sync.Mutex
	ports := make(map[string]int, len(ids))
	var errs []error

	for _, id := range ids {
		wg.Add(1)
		go func(id string, srv *httpserver.Server) {
			defer wg.Done()
			port, err := srv.Start()
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("server %s: %w", id, err))
				return
			}
			ports[id] = port
		}(id, servers[id])
	}
	wg.Wait()

	return ports, errors.Join(errs...)
}

// Stop shuts down every server concurrently and aggregates errors the
// same way Start does.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	servers := make(map[string]*httpserver.Server, len(c.servers))
	for k, v := range c.servers {
		servers[k] = v
	}
	c.mu.Unlock()

	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs []error

	for id, srv := range servers {
		wg.Add(1)
		go func(id string, srv *httpserver.Server) {
			defer wg.Done()
			if err := srv.Shutdown(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("server %s: %w", id, err))
				mu.Unlock()
			}
		}(id, srv)
	}
	wg.Wait()

	return errors.Join(errs...)
}

// IDs returns every configured server instance id, in registration order.
func (c *Controller) IDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.order...)
}
