//go:build integration

package kvstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"careergate/pkg/kvstore"
	"careergate/pkg/testutil/containers"
)

func TestRedisStore(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	store := kvstore.NewRedis(rc.Client)
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		_, ok, err := store.Get(ctx, "missing")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("set and get", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "k", []byte("v"), 0))

		value, ok, err := store.Get(ctx, "k")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, []byte("v"), value)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "gone", []byte("v"), 0))
		require.NoError(t, store.Delete(ctx, "gone"))

		_, ok, err := store.Get(ctx, "gone")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("ttl expiry", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "short", []byte("v"), time.Second))

		_, ok, err := store.Get(ctx, "short")
		require.NoError(t, err)
		require.True(t, ok)

		time.Sleep(1500 * time.Millisecond)

		_, ok, err = store.Get(ctx, "short")
		require.NoError(t, err)
		require.False(t, ok, "key should expire after its TTL")
	})
}
