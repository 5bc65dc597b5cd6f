package cache

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Store is an in-memory key/value cache with per-entry TTL and an
// approximate memory ceiling enforced by evicting the oldest writes.
type Store struct {
	mu         sync.Mutex
	entries    map[string]*Entry
	totalBytes int64
	nextSeq    uint64

	maxBytes   int64
	defaultTTL time.Duration
	interval   time.Duration
	clock      clock.Clock
	sizeOf     SizeFunc
	logger     *slog.Logger

	counters  counters
	lastSweep time.Time

	stopOnce sync.Once
	startMu  sync.Mutex
	started  bool
	stop     chan struct{}
	done     chan struct{}
}

func New(cfg Config) *Store {
	cfg = cfg.withDefaults()
	return &Store{
		entries:    make(map[string]*Entry),
		maxBytes:   cfg.MaxBytes,
		defaultTTL: cfg.DefaultTTL,
		interval:   cfg.SweepInterval,
		clock:      cfg.Clock,
		sizeOf:     cfg.SizeFunc,
		logger:     cfg.Logger.With("component", "cache"),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Set stores value under key for ttl, or the store's default TTL when ttl is
// not positive. It reports false, leaving the store unchanged, when the size
// of value cannot be estimated.
func (s *Store) Set(key string, value any, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	size, err := s.estimate(value)
	if err != nil {
		s.logger.Warn("cache set skipped, size estimation failed", "key", key, "error", err)
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.totalBytes+size > s.maxBytes {
		s.evictLocked(s.totalBytes + size - s.maxBytes)
	}

	seq := s.nextSeq
	if old, ok := s.entries[key]; ok {
		s.totalBytes -= old.Size
		seq = old.seq
	} else {
		s.nextSeq++
	}

	now := s.clock.Now()
	s.entries[key] = &Entry{
		Value:     value,
		StoredAt:  now,
		ExpiresAt: now.Add(ttl),
		Size:      size,
		seq:       seq,
	}
	s.totalBytes += size

	s.logger.Debug("cache set", "key", key, "size", size, "ttl", ttl.String(), "total_bytes", s.totalBytes)
	return true
}

// Get returns the value stored under key. Expired entries are deleted and
// reported as missing. Reads never extend an entry's lifetime.
func (s *Store) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.liveLocked(key)
	if !ok {
		s.counters.misses.Add(1)
		return nil, false
	}
	s.counters.hits.Add(1)
	return entry.Value, true
}

// Has reports whether a live entry exists for key.
func (s *Store) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.liveLocked(key)
	return ok
}

// Remove deletes key if present.
func (s *Store) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteLocked(key)
}

// Clear drops every entry.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.entries)
	s.entries = make(map[string]*Entry)
	s.totalBytes = 0
	s.logger.Info("cache cleared", "entries", n)
}

// Len returns the number of physically present entries, expired or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) liveLocked(key string) (*Entry, bool) {
	entry, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if entry.expired(s.clock.Now()) {
		s.deleteLocked(key)
		s.counters.expirations.Add(1)
		return nil, false
	}
	return entry, true
}

func (s *Store) deleteLocked(key string) {
	if entry, ok := s.entries[key]; ok {
		delete(s.entries, key)
		s.totalBytes -= entry.Size
	}
}

// evictLocked removes entries in write order until at least need bytes have
// been freed or the store is empty.
func (s *Store) evictLocked(need int64) {
	type candidate struct {
		key   string
		entry *Entry
	}
	candidates := make([]candidate, 0, len(s.entries))
	for k, e := range s.entries {
		candidates = append(candidates, candidate{key: k, entry: e})
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i].entry, candidates[j].entry
		if a.StoredAt.Equal(b.StoredAt) {
			return a.seq < b.seq
		}
		return a.StoredAt.Before(b.StoredAt)
	})

	var freed int64
	evicted := 0
	for _, c := range candidates {
		if freed >= need {
			break
		}
		s.deleteLocked(c.key)
		freed += c.entry.Size
		evicted++
	}
	s.counters.evictions.Add(uint64(evicted))

	if freed < need {
		s.logger.Warn("cache eviction could not free enough space",
			"needed", need,
			"freed", freed,
			"max_bytes", s.maxBytes,
		)
	} else {
		s.logger.Debug("cache evicted entries", "count", evicted, "freed", freed)
	}
}
