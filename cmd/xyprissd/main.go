// Package main is the server entry point: it builds the route trie and
// starts the App through internal/wiring's fx graph, the fx equivalent of
// the teacher's cmd/server/main.go config -> logger -> router -> server ->
// GracefulShutdown sequence.
package main

import (
	"go.uber.org/fx"

	"github.com/iruldev/xyprissgo/internal/router"
	"github.com/iruldev/xyprissgo/internal/wiring"
)

func main() {
	fx.New(
		fx.Supply(router.New()),
		wiring.Module,
	).Run()
}
