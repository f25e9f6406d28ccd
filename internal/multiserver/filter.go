// Package multiserver runs several independent internal/httpserver.Server
// instances in one process, each serving a filtered subset of the
// registered routes, the way the teacher's internal/infra/fx module wires
// several named instances of one component into one composition root —
// generalized here from dependency injection to HTTP listener fan-out.
package multiserver

import "strings"

// routeAllowed implements the (server, route) distribution rule: allow
// iff no filter is configured, or routePrefix matches, or the path
// matches one of allowedRoutes (exact or trailing "/*" wildcard).
func routeAllowed(path, routePrefix string, allowedRoutes []string) bool {
	if routePrefix == "" && len(allowedRoutes) == 0 {
		return true
	}
	if routePrefix != "" && strings.HasPrefix(path, routePrefix) {
		return true
	}
	for _, pattern := range allowedRoutes {
		if matchAllowedRoute(path, pattern) {
			return true
		}
	}
	return false
}

func matchAllowedRoute(path, pattern string) bool {
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		return path == prefix || strings.HasPrefix(path, prefix+"/")
	}
	return path == pattern
}
