package multiserver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iruldev/xyprissgo/internal/config"
	"github.com/iruldev/xyprissgo/internal/router"
)

func noopHandler(ctx *router.Context) {}

func TestController_StartAssignsPortsAndPartitionsRoutes(t *testing.T) {
	routes := router.New()
	routes.Register(&router.Route{Method: router.MethodGet, Pattern: "/health", Handler: noopHandler})
	routes.Register(&router.Route{Method: router.MethodGet, Pattern: "/admin/stats", Handler: noopHandler})

	cfg := config.MultiServerSection{
		Servers: []config.ServerInstance{
			{ID: "public", Port: 0, AllowedRoutes: []string{"/health"}},
			{ID: "admin", Port: 0, RoutePrefix: "/admin"},
		},
	}
	base := config.ServerSection{Host: "127.0.0.1"}

	c, err := New(cfg, base, config.NotFoundSection{}, routes, nil, nil, nil, 0, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"public", "admin"}, c.IDs())

	ports, err := c.Start()
	require.NoError(t, err)
	assert.NotZero(t, ports["public"])
	assert.NotZero(t, ports["admin"])

	err = c.Stop(context.Background())
	assert.NoError(t, err)
}

func TestNew_RejectsServerInstanceMissingID(t *testing.T) {
	routes := router.New()
	cfg := config.MultiServerSection{Servers: []config.ServerInstance{{Port: 8080}}}

	_, err := New(cfg, config.ServerSection{Host: "127.0.0.1"}, config.NotFoundSection{}, routes, nil, nil, nil, 0, nil)
	assert.Error(t, err)
}
