package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muandane/special-stack/jobcache/internal/config"
)

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory()
	require.NoError(t, err)

	require.NoError(t, m.Put(ctx, "jobs/1.json", []byte(`{"id":"1"}`)))
	data, err := m.Get(ctx, "jobs/1.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"1"}`, string(data))

	require.NoError(t, m.Put(ctx, "jobs/1.json", []byte(`{"id":"1","title":"x"}`)))
	data, err = m.Get(ctx, "jobs/1.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"1","title":"x"}`, string(data))

	require.NoError(t, m.Delete(ctx, "jobs/1.json"))
	_, err = m.Get(ctx, "jobs/1.json")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.Delete(ctx, "jobs/1.json"), ErrNotFound)
}

func TestMemoryGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory()
	require.NoError(t, err)

	require.NoError(t, m.Put(ctx, "k", []byte("abc")))
	data, err := m.Get(ctx, "k")
	require.NoError(t, err)
	data[0] = 'z'

	again, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}

func TestMemoryList(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory()
	require.NoError(t, err)

	for _, k := range []string{"jobs/b.json", "jobs/a.json", "applications/a/1.json", "profiles/u.json"} {
		require.NoError(t, m.Put(ctx, k, []byte("{}")))
	}

	keys, err := m.List(ctx, "jobs/")
	require.NoError(t, err)
	assert.Equal(t, []string{"jobs/a.json", "jobs/b.json"}, keys)

	keys, err = m.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, keys, 4)

	keys, err = m.List(ctx, "nothing/")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestOpen(t *testing.T) {
	docs, err := Open(context.Background(), &config.StorageConfig{Driver: config.DriverMemory})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, docs)

	_, err = Open(context.Background(), &config.StorageConfig{Driver: "tape"})
	assert.Error(t, err)
}
