// Package fetch serves values from a cache.Store and falls back to a
// caller-supplied producer on a miss, tracking loading and error state.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/muandane/special-stack/jobcache/internal/cache"
)

// FetchFunc produces the value for a key on a cache miss.
type FetchFunc[T any] func(ctx context.Context) (T, error)

type Status int

const (
	Idle Status = iota
	Loading
	Ready
	Errored
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Errored:
		return "errored"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is a snapshot of a Query's state.
type Result[T any] struct {
	Data    T
	Found   bool
	Loading bool
	Err     error
	Status  Status
}

type Option func(*options)

type options struct {
	ttl    time.Duration
	group  *singleflight.Group
	logger *slog.Logger
}

// WithTTL sets the lifetime of values written on a miss. Defaults to
// cache.MediumTTL.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) { o.ttl = ttl }
}

// WithGroup makes concurrent misses on the same key, across all queries
// sharing g, wait on a single fetch. The shared fetch is not cancelled when
// one waiting caller goes away.
func WithGroup(g *singleflight.Group) Option {
	return func(o *options) { o.group = g }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Query binds a key and a producer to a cache.Store. It is the server side
// counterpart of a component that mounts, re-runs when its dependencies
// change, and unmounts via Close.
type Query[T any] struct {
	store *cache.Store
	key   string
	fetch FetchFunc[T]
	opts  options

	mu     sync.Mutex
	state  Result[T]
	deps   []any
	loaded bool
	gen    uint64
	cancel context.CancelFunc
	closed bool
}

func New[T any](store *cache.Store, key string, fn FetchFunc[T], opts ...Option) *Query[T] {
	o := options{ttl: cache.MediumTTL}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	o.logger = o.logger.With("cache_key", key)

	return &Query[T]{
		store: store,
		key:   key,
		fetch: fn,
		opts:  o,
	}
}

func (q *Query[T]) Key() string { return q.key }

// Result returns the current state.
func (q *Query[T]) Result() Result[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Load runs the query for deps. When deps match the previous call and a
// result is already settled it does nothing. A cached value is returned
// without entering Loading; otherwise the producer runs and its value is
// cached. The returned error is the producer's error, if any.
func (q *Query[T]) Load(ctx context.Context, deps ...any) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	if q.loaded && depsEqual(q.deps, deps) && q.state.Status != Loading {
		err := q.state.Err
		q.mu.Unlock()
		return err
	}
	q.deps = append([]any(nil), deps...)
	q.loaded = true
	q.mu.Unlock()

	if v, ok := q.cached(); ok {
		q.mu.Lock()
		q.supersedeLocked()
		q.state = Result[T]{Data: v, Found: true, Status: Ready}
		q.mu.Unlock()
		q.opts.logger.Debug("served from cache")
		return nil
	}
	return q.run(ctx)
}

// Refetch drops the cached value and runs the producer unconditionally.
func (q *Query[T]) Refetch(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.loaded = true
	q.mu.Unlock()

	q.store.Remove(q.key)
	if q.opts.group != nil {
		// Do not join a fetch that started before the value was dropped.
		q.opts.group.Forget(q.key)
	}
	return q.run(ctx)
}

// Close discards the outcome of any in-flight fetch and cancels its context.
func (q *Query[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.supersedeLocked()
}

func (q *Query[T]) cached() (T, bool) {
	var zero T
	raw, ok := q.store.Get(q.key)
	if !ok {
		return zero, false
	}
	v, ok := raw.(T)
	if !ok {
		q.opts.logger.Warn("cached value has unexpected type, treating as miss",
			"type", fmt.Sprintf("%T", raw),
		)
		return zero, false
	}
	return v, true
}

// supersedeLocked invalidates the current generation so a pending fetch
// cannot apply its outcome.
func (q *Query[T]) supersedeLocked() uint64 {
	q.gen++
	if q.cancel != nil {
		q.cancel()
		q.cancel = nil
	}
	return q.gen
}

func (q *Query[T]) run(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	gen := q.supersedeLocked()
	ctx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	q.state.Loading = true
	q.state.Status = Loading
	q.state.Err = nil
	q.mu.Unlock()

	start := time.Now()
	v, err := q.produce(ctx)

	q.mu.Lock()
	defer q.mu.Unlock()

	if gen != q.gen || q.closed {
		q.opts.logger.Debug("discarding stale fetch result", "error", err)
		if err != nil {
			return err
		}
		return ErrStale
	}
	cancel()
	q.cancel = nil

	if err != nil {
		q.opts.logger.Error("fetch failed", "error", err, "duration", time.Since(start).String())
		q.state = Result[T]{Err: err, Status: Errored}
		return err
	}
	if !q.store.Set(q.key, v, q.opts.ttl) {
		q.opts.logger.Warn("fetched value not cached")
	}
	q.opts.logger.Debug("fetched and cached", "duration", time.Since(start).String())
	q.state = Result[T]{Data: v, Found: true, Status: Ready}
	return nil
}

func (q *Query[T]) produce(ctx context.Context) (T, error) {
	if q.opts.group == nil {
		return q.fetch(ctx)
	}

	// The shared call outlives any single caller; each caller only stops
	// waiting when its own context ends.
	shared := context.WithoutCancel(ctx)
	ch := q.opts.group.DoChan(q.key, func() (any, error) {
		return q.fetch(shared)
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		if res.Shared {
			q.opts.logger.Debug("joined in-flight fetch")
		}
		v, ok := res.Val.(T)
		if !ok {
			return zero, fmt.Errorf("fetch: shared result for %q has type %T", q.key, res.Val)
		}
		return v, nil
	}
}

func depsEqual(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !reflect.DeepEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}
