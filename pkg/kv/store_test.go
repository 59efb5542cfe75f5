package kv_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/inquiry/pkg/kv"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBackend_Contract(t *testing.T) {
	kv.RunBackendContract(t, kv.NewMemoryBackend(time.Minute))
}

func TestRedisBackend_Contract(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	kv.RunBackendContract(t, kv.NewRedisBackend(client, "test:"))
	assert.True(t, len(mr.Keys()) >= 1, "values are written under the backend prefix")
	for _, k := range mr.Keys() {
		assert.Contains(t, k, "test:")
	}
}

func TestStore_TTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := kv.New[int](kv.NewRedisBackend(client, ""), "ephemeral", kv.WithTTL(time.Minute))
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "n", 7))

	mr.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, "n")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestStore_NamespaceSuffix(t *testing.T) {
	s := kv.New[string](kv.NewMemoryBackend(0), "session")
	assert.Equal(t, "session:", s.Namespace())
}
