package cache

import (
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
)

// Entry is a cached value with its bookkeeping.
type Entry struct {
	Value     any
	StoredAt  time.Time
	ExpiresAt time.Time
	Size      int64

	// seq is the first-insertion rank, kept across overwrites. It breaks
	// StoredAt ties during eviction.
	seq uint64
}

func (e *Entry) expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Predefined TTLs
const (
	ShortTTL  = 5 * time.Minute
	MediumTTL = 30 * time.Minute
	LongTTL   = 24 * time.Hour
)

// Cache configuration
const (
	DefaultMaxBytes      = 10 * 1024 * 1024 // 10MiB
	DefaultSweepInterval = 5 * time.Minute
	DefaultTTL           = MediumTTL
)

// Policy names the order in which entries are chosen for eviction.
type Policy string

// PolicyWriteTime evicts the entry written longest ago first. Reads do not
// change an entry's rank.
const PolicyWriteTime Policy = "write-time"

// SizeFunc estimates how many bytes a value occupies.
type SizeFunc func(value any) (int64, error)

type Config struct {
	MaxBytes      int64
	SweepInterval time.Duration
	DefaultTTL    time.Duration

	// Clock defaults to the wall clock.
	Clock clock.Clock
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// SizeFunc defaults to EstimateSize.
	SizeFunc SizeFunc
}

func (c Config) withDefaults() Config {
	if c.MaxBytes <= 0 {
		c.MaxBytes = DefaultMaxBytes
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = DefaultTTL
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.SizeFunc == nil {
		c.SizeFunc = EstimateSize
	}
	return c
}
