package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// SafeMethods lists the request methods eligible for caching by default.
var SafeMethods = map[string]bool{"GET": true, "HEAD": true}

// Fingerprint derives the deterministic cache key
// method|path|sortedQuery|selectedHeaderVary, hashed to keep keys a fixed,
// short size regardless of query/header volume.
func Fingerprint(method, path string, query url.Values, headers map[string][]string, vary []string) string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(method))
	b.WriteByte('|')
	b.WriteString(path)
	b.WriteByte('|')
	b.WriteString(sortedQuery(query))
	b.WriteByte('|')
	b.WriteString(selectedVary(headers, vary))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func sortedQuery(query url.Values) string {
	if len(query) == 0 {
		return ""
	}
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		values := append([]string(nil), query[k]...)
		sort.Strings(values)
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strings.Join(values, ","))
	}
	return b.String()
}

func selectedVary(headers map[string][]string, vary []string) string {
	if len(vary) == 0 {
		return ""
	}
	var b strings.Builder
	for i, h := range vary {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(strings.ToLower(h))
		b.WriteByte('=')
		b.WriteString(strings.Join(headers[h], ","))
	}
	return b.String()
}
