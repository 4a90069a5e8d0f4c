package localstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "local.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGet_NotFound(t *testing.T) {
	s := setupStore(t)

	_, err := s.Get(context.Background(), BucketCarts, "device-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPutGet_RoundTrip(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, BucketCarts, "device-1", []byte(`{"lines":[]}`)))
	require.NoError(t, s.Put(ctx, BucketCarts, "device-1", []byte(`{"lines":[]}`)))

	got, err := s.Get(ctx, BucketCarts, "device-1")
	require.NoError(t, err)
	assert.Equal(t, `{"lines":[]}`, string(got))
}

func TestPutIfAbsent_NeverOverwrites(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	stored, created, err := s.PutIfAbsent(ctx, BucketReferrals, "sess-1", []byte("r1"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "r1", string(stored))

	stored, created, err = s.PutIfAbsent(ctx, BucketReferrals, "sess-1", []byte("r2"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "r1", string(stored))
}

func TestDelete(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, BucketCarts, "device-1", []byte("x")))
	require.NoError(t, s.Delete(ctx, BucketCarts, "device-1"))
	require.NoError(t, s.Delete(ctx, BucketCarts, "device-1"))

	_, err := s.Get(ctx, BucketCarts, "device-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUnknownBucket(t *testing.T) {
	s := setupStore(t)

	err := s.Put(context.Background(), "nope", "k", []byte("v"))
	assert.Error(t, err)
}

func TestReopen_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, BucketCarts, "device-1", []byte("kept")))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, BucketCarts, "device-1")
	require.NoError(t, err)
	assert.Equal(t, "kept", string(got))
}
