package cache

import (
	"sync/atomic"
	"time"
)

type counters struct {
	hits        atomic.Uint64
	misses      atomic.Uint64
	evictions   atomic.Uint64
	expirations atomic.Uint64
}

type Stats struct {
	EntryCount    int       `json:"entry_count"`
	TotalBytes    int64     `json:"total_bytes"`
	MaxBytes      int64     `json:"max_bytes"`
	Hits          uint64    `json:"hits"`
	Misses        uint64    `json:"misses"`
	Evictions     uint64    `json:"evictions"`
	Expirations   uint64    `json:"expirations"`
	HitRatio      float64   `json:"hit_ratio"`
	LastSweepTime time.Time `json:"last_sweep_time"`
	Policy        Policy    `json:"eviction_policy"`
}

func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	hits := s.counters.hits.Load()
	misses := s.counters.misses.Load()

	var ratio float64
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}

	return Stats{
		EntryCount:    len(s.entries),
		TotalBytes:    s.totalBytes,
		MaxBytes:      s.maxBytes,
		Hits:          hits,
		Misses:        misses,
		Evictions:     s.counters.evictions.Load(),
		Expirations:   s.counters.expirations.Load(),
		HitRatio:      ratio,
		LastSweepTime: s.lastSweep,
		Policy:        PolicyWriteTime,
	}
}
