// Package wiring assembles the framework's components via go.uber.org/fx,
// the way the teacher's internal/infra/fx/module.go groups ConfigModule/
// ObservabilityModule/etc. fx.Options into one Module consumed by fx.New in
// main. Unlike the teacher's module (built but never fx.New'd), cmd/xyprissd
// actually invokes this one.
package wiring

import (
	"context"
	"os"

	"go.uber.org/fx"

	"github.com/iruldev/xyprissgo/internal/app"
	"github.com/iruldev/xyprissgo/internal/config"
	"github.com/iruldev/xyprissgo/internal/observability"
	"github.com/iruldev/xyprissgo/internal/router"
)

// Module wires configuration, observability, and the App composition root.
// The caller supplies a *router.Trie with its own routes registered via
// fx.Supply before building the fx.App (see cmd/xyprissd/main.go).
var Module = fx.Options(
	ConfigModule,
	ObservabilityModule,
	AppModule,
)

// ConfigModule provides the merged ServerConfig, layering defaults, an
// optional config file, and environment overrides the same way
// config.Load's doc comment describes; a spawned worker process instead
// unmarshals the config its supervisor handed down (app.LoadConfig).
var ConfigModule = fx.Options(
	fx.Provide(provideConfig),
)

func provideConfig() (*config.ServerConfig, error) {
	return app.LoadConfig()
}

// ObservabilityModule provides the zap-backed Logger used throughout the
// framework, selecting production or development encoding from NODE_ENV the
// same way internal/app.isProduction does.
var ObservabilityModule = fx.Options(
	fx.Provide(provideLogger),
)

func provideLogger(cfg *config.ServerConfig) (observability.Logger, error) {
	zl, err := observability.NewLogger(&cfg.Log, nodeEnv())
	if err != nil {
		return nil, err
	}
	return observability.NewZapLogger(zl), nil
}

func nodeEnv() string {
	if v := os.Getenv("NODE_ENV"); v != "" {
		return v
	}
	return "development"
}

// AppModule provides the App composition root and appends its Start/Shutdown
// calls as an fx.Lifecycle hook, so `fx.New(wiring.Module).Run()` starts and
// gracefully stops the whole framework.
var AppModule = fx.Options(
	fx.Provide(app.New),
	fx.Invoke(registerLifecycle),
)

func registerLifecycle(lc fx.Lifecycle, a *app.App, logger observability.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return a.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return a.Shutdown(ctx)
		},
	})
	logger.Info("wiring: app lifecycle registered")
}

// Trie is the fx.Supply-friendly type alias the host binary uses to hand its
// route registrations into the container, keeping cmd/xyprissd from having
// to import internal/router just to call fx.Supply.
type Trie = router.Trie
