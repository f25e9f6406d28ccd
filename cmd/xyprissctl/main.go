// Package main is the xyprissctl installer-style entry point.
package main

import "github.com/iruldev/xyprissgo/cmd/xyprissctl/cmd"

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cmd.SetVersion(version)
	cmd.Execute()
}
