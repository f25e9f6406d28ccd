package multiserver

import "testing"

func TestRouteAllowed_NoFilterAllowsEverything(t *testing.T) {
	if !routeAllowed("/anything", "", nil) {
		t.Fatal("expected unfiltered route to be allowed")
	}
}

func TestRouteAllowed_RoutePrefixMatch(t *testing.T) {
	if !routeAllowed("/api/users/1", "/api", nil) {
		t.Fatal("expected prefix match to be allowed")
	}
	if routeAllowed("/public/health", "/api", nil) {
		t.Fatal("expected non-matching prefix to be rejected")
	}
}

func TestRouteAllowed_ExactAllowedRoute(t *testing.T) {
	if !routeAllowed("/health", "", []string{"/health"}) {
		t.Fatal("expected exact allowed route to match")
	}
	if routeAllowed("/health/live", "", []string{"/health"}) {
		t.Fatal("expected exact pattern not to match a longer path")
	}
}

func TestRouteAllowed_TrailingWildcard(t *testing.T) {
	if !routeAllowed("/admin/users", "", []string{"/admin/*"}) {
		t.Fatal("expected wildcard to match a nested path")
	}
	if !routeAllowed("/admin", "", []string{"/admin/*"}) {
		t.Fatal("expected wildcard to match its own prefix")
	}
	if routeAllowed("/administrator", "", []string{"/admin/*"}) {
		t.Fatal("expected wildcard not to match a sibling path sharing the prefix string")
	}
}
