package cache

import "github.com/benbjohnson/clock"

// Start launches the background sweep. Calling it more than once, or after
// Close, has no effect.
func (s *Store) Start() {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	if s.started {
		return
	}
	select {
	case <-s.stop:
		return
	default:
	}
	s.started = true
	go s.sweepRoutine(s.clock.Ticker(s.interval))
}

// Close stops the background sweep and waits for it to exit.
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.stop) })

	s.startMu.Lock()
	started := s.started
	s.startMu.Unlock()
	if started {
		<-s.done
	}
}

func (s *Store) sweepRoutine(ticker *clock.Ticker) {
	defer close(s.done)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep deletes every expired entry and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	removed := 0
	for key, entry := range s.entries {
		if entry.expired(now) {
			s.deleteLocked(key)
			removed++
		}
	}
	s.lastSweep = now
	s.counters.expirations.Add(uint64(removed))

	if removed > 0 {
		s.logger.Debug("cache sweep completed", "removed", removed, "total_bytes", s.totalBytes)
	}
	return removed
}
