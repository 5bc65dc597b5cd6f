package fetch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/singleflight"

	"github.com/muandane/special-stack/jobcache/internal/cache"
)

func newStore(t *testing.T) (*cache.Store, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	s := cache.New(cache.Config{Clock: mock})
	t.Cleanup(s.Close)
	return s, mock
}

// counting returns a producer that records how often it ran.
func counting[T any](v T, err error) (FetchFunc[T], *atomic.Int32) {
	var calls atomic.Int32
	return func(context.Context) (T, error) {
		calls.Add(1)
		return v, err
	}, &calls
}

func TestLoadCacheHit(t *testing.T) {
	store, _ := newStore(t)
	store.Set("jobs:1", "cached", 0)

	fn, calls := counting("fetched", nil)
	q := New(store, "jobs:1", fn)

	require.NoError(t, q.Load(context.Background()))
	res := q.Result()
	assert.Equal(t, "cached", res.Data)
	assert.True(t, res.Found)
	assert.False(t, res.Loading)
	assert.Equal(t, Ready, res.Status)
	assert.Zero(t, calls.Load())
}

func TestLoadCacheMiss(t *testing.T) {
	store, _ := newStore(t)

	release := make(chan struct{})
	var calls atomic.Int32
	q := New(store, "jobs:search:q=go", func(context.Context) ([]string, error) {
		calls.Add(1)
		<-release
		return []string{"a", "b"}, nil
	})
	assert.Equal(t, Idle, q.Result().Status)

	done := make(chan error, 1)
	go func() { done <- q.Load(context.Background()) }()

	require.Eventually(t, func() bool { return q.Result().Loading }, time.Second, time.Millisecond)
	assert.Equal(t, Loading, q.Result().Status)
	close(release)
	require.NoError(t, <-done)

	res := q.Result()
	assert.False(t, res.Loading)
	assert.Equal(t, Ready, res.Status)
	assert.Equal(t, []string{"a", "b"}, res.Data)
	assert.Equal(t, int32(1), calls.Load())

	v, ok := store.Get("jobs:search:q=go")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, v)
}

func TestLoadUsesTTL(t *testing.T) {
	store, mock := newStore(t)
	fn, _ := counting(1, nil)

	q := New(store, "k", fn, WithTTL(cache.ShortTTL))
	require.NoError(t, q.Load(context.Background()))

	mock.Add(cache.ShortTTL + time.Second)
	assert.False(t, store.Has("k"))
}

func TestRefetchBypassesCache(t *testing.T) {
	store, _ := newStore(t)
	store.Set("profile:7", "old", 0)

	fn, calls := counting("new", nil)
	q := New(store, "profile:7", fn)

	require.NoError(t, q.Load(context.Background()))
	assert.Equal(t, "old", q.Result().Data)
	assert.Zero(t, calls.Load())

	require.NoError(t, q.Refetch(context.Background()))
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "new", q.Result().Data)

	v, ok := store.Get("profile:7")
	require.True(t, ok)
	assert.Equal(t, "new", v)
}

func TestFailedFetchIsNotCached(t *testing.T) {
	store, _ := newStore(t)
	boom := errors.New("storage unavailable")
	fn, calls := counting(0, boom)

	q := New(store, "k", fn)
	err := q.Load(context.Background())
	require.ErrorIs(t, err, boom)

	res := q.Result()
	assert.Equal(t, Errored, res.Status)
	assert.ErrorIs(t, res.Err, boom)
	assert.False(t, res.Found)
	assert.False(t, res.Loading)
	assert.False(t, store.Has("k"))

	// Same dependencies: the settled error is kept without fetching again.
	require.ErrorIs(t, q.Load(context.Background()), boom)
	assert.Equal(t, int32(1), calls.Load())
}

func TestLoadRerunsOnDependencyChange(t *testing.T) {
	store, _ := newStore(t)
	fn, calls := counting("v", nil)
	q := New(store, "k", fn)

	require.NoError(t, q.Load(context.Background(), "a", 1))
	require.NoError(t, q.Load(context.Background(), "a", 1))
	assert.Equal(t, int32(1), calls.Load())

	// Changed deps re-run the lookup; the value is still cached.
	require.NoError(t, q.Load(context.Background(), "a", 2))
	assert.Equal(t, int32(1), calls.Load())

	store.Remove("k")
	require.NoError(t, q.Load(context.Background(), []string{"x"}))
	assert.Equal(t, int32(2), calls.Load())
	require.NoError(t, q.Load(context.Background(), []string{"x"}))
	assert.Equal(t, int32(2), calls.Load())
}

func TestWrongCachedTypeIsMiss(t *testing.T) {
	store, _ := newStore(t)
	store.Set("k", 42, 0)

	fn, calls := counting("text", nil)
	q := New(store, "k", fn)
	require.NoError(t, q.Load(context.Background()))

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "text", q.Result().Data)
}

func TestCloseDiscardsInFlightResult(t *testing.T) {
	store, _ := newStore(t)

	started := make(chan struct{})
	release := make(chan struct{})
	q := New(store, "k", func(ctx context.Context) (string, error) {
		close(started)
		<-release
		return "late", nil
	})

	done := make(chan error, 1)
	go func() { done <- q.Load(context.Background()) }()
	<-started

	q.Close()
	close(release)

	assert.ErrorIs(t, <-done, ErrStale)
	assert.False(t, q.Result().Found)
	assert.False(t, store.Has("k"))
	assert.ErrorIs(t, q.Load(context.Background()), ErrClosed)
	assert.ErrorIs(t, q.Refetch(context.Background()), ErrClosed)
}

func TestCloseCancelsContext(t *testing.T) {
	store, _ := newStore(t)

	started := make(chan struct{})
	q := New(store, "k", func(ctx context.Context) (string, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	})

	done := make(chan error, 1)
	go func() { done <- q.Load(context.Background()) }()
	<-started
	q.Close()

	assert.ErrorIs(t, <-done, context.Canceled)
	assert.False(t, store.Has("k"))
}

func TestSupersededFetchDoesNotApply(t *testing.T) {
	store, _ := newStore(t)

	firstStarted := make(chan struct{})
	releaseFirst := make(chan struct{})
	var calls atomic.Int32
	q := New(store, "k", func(ctx context.Context) (string, error) {
		if calls.Add(1) == 1 {
			close(firstStarted)
			<-releaseFirst
			return "first", nil
		}
		return "second", nil
	})

	done := make(chan error, 1)
	go func() { done <- q.Load(context.Background(), 1) }()
	<-firstStarted

	require.NoError(t, q.Refetch(context.Background()))
	close(releaseFirst)
	assert.ErrorIs(t, <-done, ErrStale)

	assert.Equal(t, "second", q.Result().Data)
	v, ok := store.Get("k")
	require.True(t, ok)
	assert.Equal(t, "second", v)
}

func TestConcurrentQueriesFetchIndependently(t *testing.T) {
	store, _ := newStore(t)

	release := make(chan struct{})
	var calls atomic.Int32
	fn := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "v", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, New(store, "shared", fn).Load(context.Background()))
		}()
	}
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.True(t, store.Has("shared"))
}

func TestGroupDeduplicatesFetches(t *testing.T) {
	store, _ := newStore(t)
	group := &singleflight.Group{}

	release := make(chan struct{})
	var calls atomic.Int32
	fn := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "v", nil
	}

	queries := []*Query[string]{
		New(store, "shared", fn, WithGroup(group)),
		New(store, "shared", fn, WithGroup(group)),
	}

	var wg sync.WaitGroup
	for _, q := range queries {
		wg.Add(1)
		go func(q *Query[string]) {
			defer wg.Done()
			assert.NoError(t, q.Load(context.Background()))
		}(q)
	}
	require.Eventually(t, func() bool {
		return queries[0].Result().Loading && queries[1].Result().Loading
	}, time.Second, time.Millisecond)
	// Give the second query time to join the in-flight call.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, q := range queries {
		assert.Equal(t, "v", q.Result().Data)
	}
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "loading", Loading.String())
	assert.Equal(t, "ready", Ready.String())
	assert.Equal(t, "errored", Errored.String())
	assert.Equal(t, "status(9)", Status(9).String())
}

func TestGroupCallerCancelDoesNotFailOthers(t *testing.T) {
	store, _ := newStore(t)
	group := &singleflight.Group{}

	release := make(chan struct{})
	var calls atomic.Int32
	fn := func(ctx context.Context) (string, error) {
		calls.Add(1)
		select {
		case <-release:
			return "v", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	leader := New(store, "shared", fn, WithGroup(group))
	follower := New(store, "shared", fn, WithGroup(group))

	lctx, lcancel := context.WithCancel(context.Background())
	defer lcancel()
	leaderDone := make(chan error, 1)
	go func() { leaderDone <- leader.Load(lctx) }()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	followerDone := make(chan error, 1)
	go func() { followerDone <- follower.Load(context.Background()) }()
	require.Eventually(t, func() bool { return follower.Result().Loading }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	lcancel()
	assert.ErrorIs(t, <-leaderDone, context.Canceled)

	close(release)
	require.NoError(t, <-followerDone)
	res := follower.Result()
	assert.Equal(t, Ready, res.Status)
	assert.Equal(t, "v", res.Data)
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, store.Has("shared"))
}

func TestRefetchWithGroupStartsNewFetch(t *testing.T) {
	store, _ := newStore(t)
	group := &singleflight.Group{}

	release := make(chan struct{})
	var calls atomic.Int32
	fn := func(context.Context) (string, error) {
		if calls.Add(1) == 1 {
			<-release
			return "before", nil
		}
		return "after", nil
	}

	loader := New(store, "k", fn, WithGroup(group))
	done := make(chan error, 1)
	go func() { done <- loader.Load(context.Background()) }()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	refresher := New(store, "k", fn, WithGroup(group))
	require.NoError(t, refresher.Refetch(context.Background()))
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "after", refresher.Result().Data)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, "before", loader.Result().Data)
}
