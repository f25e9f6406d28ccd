package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/iruldev/xyprissgo/internal/config"
)

func TestController_AdmitRejectsOverGlobalCap(t *testing.T) {
	cfg := config.RequestManagementSection{
		Concurrency: config.ConcurrencySection{MaxConcurrentRequests: 1},
	}
	c := New(cfg, nil)

	assert.True(t, c.Admit("1.1.1.1"))
	assert.False(t, c.Admit("2.2.2.2"))

	c.Release("1.1.1.1")
	assert.True(t, c.Admit("2.2.2.2"))
}

func TestController_AdmitRejectsOverPerIPCap(t *testing.T) {
	cfg := config.RequestManagementSection{
		Concurrency: config.ConcurrencySection{MaxPerIP: 1},
	}
	c := New(cfg, nil)

	assert.True(t, c.Admit("1.1.1.1"))
	assert.False(t, c.Admit("1.1.1.1"))
	assert.True(t, c.Admit("2.2.2.2"))
}

func TestController_TimeoutForUsesRouteOverride(t *testing.T) {
	cfg := config.RequestManagementSection{
		Timeout: config.TimeoutSection{
			DefaultTimeout: 30 * time.Second,
			Routes:         map[string]time.Duration{"/slow": 5 * time.Second},
		},
	}
	c := New(cfg, nil)

	assert.Equal(t, 5*time.Second, c.TimeoutFor("/slow"))
	assert.Equal(t, 30*time.Second, c.TimeoutFor("/other"))
}

func TestController_ShutdownReturnsOnceInflightDrains(t *testing.T) {
	c := New(config.RequestManagementSection{}, nil)
	c.Admit("1.1.1.1")

	done := make(chan error, 1)
	go func() { done <- c.Shutdown(context.Background(), time.Second) }()

	time.Sleep(20 * time.Millisecond)
	c.Release("1.1.1.1")

	err := <-done
	assert.NoError(t, err)
}

func TestController_ShutdownTimesOutWhenInflightNeverDrains(t *testing.T) {
	c := New(config.RequestManagementSection{}, nil)
	c.Admit("1.1.1.1")

	err := c.Shutdown(context.Background(), 20*time.Millisecond)
	assert.Error(t, err)
}
