// Package cache implements the tiered response cache: an in-process store
// with TTL expiry, size/memory-bounded eviction, tag invalidation, and
// predictive prefetch, plus an optional Redis-backed tier for multi-process
// deployments.
package cache

import (
	"context"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iruldev/xyprissgo/internal/apperr"
	"github.com/iruldev/xyprissgo/internal/config"
	"github.com/iruldev/xyprissgo/internal/observability"
)

// Store is the response cache contract. Implementations must be safe for
// concurrent use.
type Store interface {
	Get(fingerprint string) (*Entry, bool)
	Set(fingerprint string, value []byte, headers map[string][]string, status int, opts SetOptions) error
	Delete(fingerprint string) bool
	Clear()
	InvalidateByTag(tag string)
	PredictNextAccess(n int) []string
	WarmCache(ctx context.Context, loader func(ctx context.Context, key string) ([]byte, error))
	Close()
}

// MemoryStore is the default in-process Store: a single map guarded by one
// RWMutex (many readers, one writer at a time for Set/Delete/evict),
// mirroring the router's single-writer/many-reader discipline.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	tagIdx  map[string]map[string]struct{}

	maxEntries     int
	maxMemoryBytes int64
	defaultTTL     time.Duration
	compressAt     int

	totalBytes int64

	hits   int64
	misses int64

	stopPurge chan struct{}
	purgeOnce sync.Once
}

// Stats is a point-in-time snapshot of a MemoryStore's size and hit rate,
// exposed read-only for introspection endpoints.
type Stats struct {
	Entries    int     `json:"entries"`
	TotalBytes int64   `json:"totalBytes"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hitRate"`
	MaxEntries int     `json:"maxEntries"`
	MaxBytes   int64   `json:"maxBytes"`
}

// Stats snapshots the store's current size and cumulative hit/miss counts.
func (s *MemoryStore) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := atomic.LoadInt64(&s.hits)
	misses := atomic.LoadInt64(&s.misses)
	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}

	return Stats{
		Entries:    len(s.entries),
		TotalBytes: s.totalBytes,
		Hits:       hits,
		Misses:     misses,
		HitRate:    rate,
		MaxEntries: s.maxEntries,
		MaxBytes:   s.maxMemoryBytes,
	}
}

// NewMemoryStore builds a MemoryStore from cache configuration and starts
// the 60s background TTL-purge timer.
func NewMemoryStore(cfg config.CacheSection) *MemoryStore {
	s := &MemoryStore{
		entries:        make(map[string]*Entry),
		tagIdx:         make(map[string]map[string]struct{}),
		maxEntries:     cfg.MaxSize,
		maxMemoryBytes: cfg.MaxMemoryBytes,
		defaultTTL:     cfg.TTL,
		compressAt:     cfg.CompressionThreshold,
		stopPurge:      make(chan struct{}),
	}
	go s.purgeLoop()
	return s
}

func (s *MemoryStore) purgeLoop() {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.purgeExpired()
		case <-s.stopPurge:
			return
		}
	}
}

func (s *MemoryStore) purgeExpired() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for fp, e := range s.entries {
		if e.expired(now) {
			s.removeLocked(fp)
		}
	}
}

// Get returns the live entry for fingerprint, recording a hit or miss metric
// and updating the entry's access pattern on success.
func (s *MemoryStore) Get(fingerprint string) (*Entry, bool) {
	now := time.Now()

	s.mu.RLock()
	e, ok := s.entries[fingerprint]
	s.mu.RUnlock()

	if !ok || e.expired(now) {
		atomic.AddInt64(&s.misses, 1)
		observability.CacheMissesTotal.Inc()
		return nil, false
	}

	s.mu.Lock()
	e.Hits++
	e.LastAccessAt = now
	if e.pattern == nil {
		e.pattern = newAccessPattern(now)
	}
	e.pattern.recordHit(now)
	s.mu.Unlock()

	atomic.AddInt64(&s.hits, 1)
	observability.CacheHitsTotal.Inc()
	return e, true
}

// Set stores value under fingerprint, compressing it first when it is at
// least compressAt bytes and compression shrinks it by 20% or more. Capacity
// pressure triggers eviction of up to 10% of live entries (at least one)
// before the new entry is inserted.
func (s *MemoryStore) Set(fingerprint string, value []byte, headers map[string][]string, status int, opts SetOptions) error {
	now := time.Now()

	stored, compressed, err := maybeCompress(value, s.compressAt)
	if err != nil {
		stored, compressed = value, false
	}

	ttl := opts.TTL
	if ttl == 0 {
		ttl = s.defaultTTL
	}

	entry := &Entry{
		Fingerprint:  fingerprint,
		Value:        stored,
		Headers:      headers,
		Status:       status,
		CreatedAt:    now,
		LastAccessAt: now,
		Priority:     opts.Priority,
		SizeBytes:    len(stored),
		Compressed:   compressed,
		Tags:         opts.Tags,
	}
	if ttl > 0 {
		entry.ExpiresAt = now.Add(ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, exists := s.entries[fingerprint]; exists {
		s.removeLocked(old.Fingerprint)
	}

	if !s.evictIfNeededLocked(int64(entry.SizeBytes)) {
		return apperr.New("cache.Set", apperr.KindInsufficientCapacity, "CACHE_INSUFFICIENT_CAPACITY",
			"eviction could not free enough room for the incoming entry within the 10% budget")
	}

	s.entries[fingerprint] = entry
	s.totalBytes += int64(entry.SizeBytes)
	for _, tag := range entry.Tags {
		if s.tagIdx[tag] == nil {
			s.tagIdx[tag] = make(map[string]struct{})
		}
		s.tagIdx[tag][fingerprint] = struct{}{}
	}

	observability.CacheEntriesGauge.Set(float64(len(s.entries)))
	return nil
}

// evictIfNeededLocked runs the §4.2 eviction scorer while capacity is
// exceeded, removing at most 10% of live entries per call, rounded down
// but never below one entry, so a store holding fewer than ten entries can
// still evict one. It reports
// whether the incoming entry now fits; a false return means the 10%
// eviction budget was exhausted without freeing enough room, and the
// caller must reject the Set instead of inserting over-capacity. Callers
// hold s.mu.
func (s *MemoryStore) evictIfNeededLocked(incomingBytes int64) bool {
	overCount := s.maxEntries > 0 && len(s.entries) >= s.maxEntries
	overBytes := s.maxMemoryBytes > 0 && s.totalBytes+incomingBytes > s.maxMemoryBytes
	if !overCount && !overBytes {
		return true
	}

	maxEvictions := len(s.entries) / 10
	if maxEvictions < 1 {
		maxEvictions = 1
	}

	candidates := make([]*Entry, 0, len(s.entries))
	for _, e := range s.entries {
		candidates = append(candidates, e)
	}

	now := time.Now()
	sort.Slice(candidates, func(i, j int) bool {
		return evictionScore(candidates[i], now) < evictionScore(candidates[j], now)
	})

	evicted := 0
	for _, e := range candidates {
		if evicted >= maxEvictions {
			break
		}
		overCount = s.maxEntries > 0 && len(s.entries) >= s.maxEntries
		overBytes = s.maxMemoryBytes > 0 && s.totalBytes+incomingBytes > s.maxMemoryBytes
		if !overCount && !overBytes {
			break
		}
		s.removeLocked(e.Fingerprint)
		observability.CacheEvictionsTotal.Inc()
		evicted++
	}

	overCount = s.maxEntries > 0 && len(s.entries) >= s.maxEntries
	overBytes = s.maxMemoryBytes > 0 && s.totalBytes+incomingBytes > s.maxMemoryBytes
	return !overCount && !overBytes
}

// evictionScore implements priority − ageHours − sinceAccessIn30min +
// log(hits+1) − sizeKB/10; lower evicts first.
func evictionScore(e *Entry, now time.Time) float64 {
	ageHours := now.Sub(e.CreatedAt).Hours()
	sinceAccess := now.Sub(e.LastAccessAt).Minutes() / 30
	sizeKB := float64(e.SizeBytes) / 1024
	return float64(e.Priority) - ageHours - sinceAccess + math.Log(float64(e.Hits)+1) - sizeKB/10
}

func (s *MemoryStore) removeLocked(fingerprint string) {
	e, ok := s.entries[fingerprint]
	if !ok {
		return
	}
	delete(s.entries, fingerprint)
	s.totalBytes -= int64(e.SizeBytes)
	for _, tag := range e.Tags {
		delete(s.tagIdx[tag], fingerprint)
	}
}

// Delete removes one entry, returning whether it was present.
func (s *MemoryStore) Delete(fingerprint string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[fingerprint]
	if ok {
		s.removeLocked(fingerprint)
		observability.CacheEntriesGauge.Set(float64(len(s.entries)))
	}
	return ok
}

// Clear removes every entry.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*Entry)
	s.tagIdx = make(map[string]map[string]struct{})
	s.totalBytes = 0
	observability.CacheEntriesGauge.Set(0)
}

// InvalidateByTag removes every entry tagged with tag.
func (s *MemoryStore) InvalidateByTag(tag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for fp := range s.tagIdx[tag] {
		s.removeLocked(fp)
	}
	delete(s.tagIdx, tag)
	observability.CacheEntriesGauge.Set(float64(len(s.entries)))
}

// PredictNextAccess ranks live entries by predicted access probability
// (frequency × trend multiplier × confidence weighting) and returns the top
// n fingerprints.
func (s *MemoryStore) PredictNextAccess(n int) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		fp    string
		score float64
	}
	candidates := make([]scored, 0, len(s.entries))
	for fp, e := range s.entries {
		if e.pattern == nil {
			continue
		}
		candidates = append(candidates, scored{fp: fp, score: e.pattern.score()})
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	if n > len(candidates) {
		n = len(candidates)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = candidates[i].fp
	}
	return out
}

// WarmCache concurrently loads every predicted key that isn't already
// present as a live entry (an expired entry not yet purged counts as
// missing); individual loader failures are swallowed since warming is
// best-effort.
func (s *MemoryStore) WarmCache(ctx context.Context, loader func(ctx context.Context, key string) ([]byte, error)) {
	keys := s.PredictNextAccess(len(s.entries))

	var wg sync.WaitGroup
	now := time.Now()
	for _, key := range keys {
		s.mu.RLock()
		e, present := s.entries[key]
		s.mu.RUnlock()
		if present && !e.expired(now) {
			continue
		}

		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			value, err := loader(ctx, key)
			if err != nil {
				return
			}
			_ = s.Set(key, value, nil, 200, SetOptions{})
		}(key)
	}
	wg.Wait()
}

// Close stops the background purge timer.
func (s *MemoryStore) Close() {
	s.purgeOnce.Do(func() { close(s.stopPurge) })
}
