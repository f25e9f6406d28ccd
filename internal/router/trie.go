package router

import (
	"strings"
	"sync"
	"sync/atomic"
)

// node is one level of the segment trie. At most one paramChild and one
// wildChild per node; wildChild is always terminal.
type node struct {
	staticChildren map[string]*node
	paramChild     *node
	paramName      string
	wildChild      *node
	wildName       string
	routes         map[Method]*Route
}

func newNode() *node {
	return &node{staticChildren: map[string]*node{}, routes: map[Method]*Route{}}
}

// Trie is a method-keyed segment trie. Many readers (Match) run
// concurrently with rare writers (Register); Match holds the RWMutex's
// read lock, so matches run concurrently with each other and wait only
// while Register holds the write lock.
type Trie struct {
	mu   sync.RWMutex
	root *node

	lookups      atomic.Int64
	failedLookup atomic.Int64
}

// New creates an empty trie.
func New() *Trie {
	return &Trie{root: newNode()}
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// Register inserts a route into the trie. Registering the same
// (method, pattern) twice replaces the previous registration.
func (t *Trie) Register(route *Route) {
	t.mu.Lock()
	defer t.mu.Unlock()

	segs := splitPath(route.Pattern)
	cur := t.root
	for _, seg := range segs {
		kind, name := classify(seg)
		switch kind {
		case segParam:
			if cur.paramChild == nil {
				cur.paramChild = newNode()
			}
			cur.paramChild.paramName = name
			cur = cur.paramChild
		case segWild:
			if cur.wildChild == nil {
				cur.wildChild = newNode()
			}
			cur.wildChild.wildName = name
			cur = cur.wildChild
			// wildcard is always terminal; stop descending further even if
			// the pattern has trailing segments (malformed, but we don't
			// special-case it beyond terminating here).
			cur.routes[route.Method] = route
			return
		default:
			child, ok := cur.staticChildren[seg]
			if !ok {
				child = newNode()
				cur.staticChildren[seg] = child
			}
			cur = child
		}
	}
	cur.routes[route.Method] = route
}

// Match resolves a (method, path) pair to the best matching route and its
// captured params. Priority per node: static child, then param child
// (backtracking on downstream miss), then wildcard (never backtracks,
// always terminal). Leading/trailing slashes are ignored; the empty path
// matches the root route.
func (t *Trie) Match(method Method, path string) (*Route, map[string]string) {
	t.lookups.Add(1)

	t.mu.RLock()
	defer t.mu.RUnlock()

	segs := splitPath(path)
	params := map[string]string{}
	route := t.matchNode(t.root, segs, method, params)
	if route == nil {
		t.failedLookup.Add(1)
		return nil, nil
	}
	return route, params
}

func (t *Trie) matchNode(n *node, segs []string, method Method, params map[string]string) *Route {
	if len(segs) == 0 {
		return selectRoute(n, method)
	}

	seg := segs[0]
	rest := segs[1:]

	// 1. exact static child
	if child, ok := n.staticChildren[seg]; ok {
		if r := t.matchNode(child, rest, method, params); r != nil {
			return r
		}
	}

	// 2. parameter child (backtrack on miss: don't keep the capture if the
	// rest of the path doesn't resolve to a route)
	if n.paramChild != nil {
		trial := map[string]string{}
		for k, v := range params {
			trial[k] = v
		}
		trial[n.paramChild.paramName] = seg
		if r := t.matchNode(n.paramChild, rest, method, trial); r != nil {
			for k, v := range trial {
				params[k] = v
			}
			return r
		}
	}

	// 3. wildcard (never backtracks, always terminal)
	if n.wildChild != nil {
		if r := selectRoute(n.wildChild, method); r != nil {
			params[n.wildChild.wildName] = strings.Join(segs, "/")
			return r
		}
	}

	return nil
}

func selectRoute(n *node, method Method) *Route {
	if r, ok := n.routes[method]; ok {
		return r
	}
	if r, ok := n.routes[MethodAll]; ok {
		return r
	}
	return nil
}

// AllowedMethods returns every method registered for an exact path match,
// used to answer OPTIONS requests that are not CORS preflights and to
// build 405 responses.
func (t *Trie) AllowedMethods(path string) []Method {
	t.mu.RLock()
	defer t.mu.RUnlock()

	segs := splitPath(path)
	n := t.root
	for _, seg := range segs {
		if child, ok := n.staticChildren[seg]; ok {
			n = child
			continue
		}
		if n.paramChild != nil {
			n = n.paramChild
			continue
		}
		if n.wildChild != nil {
			n = n.wildChild
			break
		}
		return nil
	}

	methods := make([]Method, 0, len(n.routes))
	for m := range n.routes {
		methods = append(methods, m)
	}
	return methods
}

// Stats returns total and failed lookup counters, updated atomically.
func (t *Trie) Stats() (lookups, failed int64) {
	return t.lookups.Load(), t.failedLookup.Load()
}

// Routes returns every registered route, for callers that need to
// partition or introspect the full route set (MultiServerController's
// distribution filter, the admin introspection surface).
func (t *Trie) Routes() []*Route {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []*Route
	collectRoutes(t.root, &out)
	return out
}

func collectRoutes(n *node, out *[]*Route) {
	if n == nil {
		return
	}
	for _, r := range n.routes {
		*out = append(*out, r)
	}
	for _, child := range n.staticChildren {
		collectRoutes(child, out)
	}
	collectRoutes(n.paramChild, out)
	collectRoutes(n.wildChild, out)
}
