package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/marketplace/returns/internal/infrastructure/config"
)

func TestIdempotencyStoreFactory_DisabledRedisUsesMemory(t *testing.T) {
	f := NewIdempotencyStoreFactory(config.RedisConfig{Enabled: false}, WithLogger(zap.NewNop()))

	store, err := f.CreateStore()
	require.NoError(t, err)
	defer store.Close()

	assert.IsType(t, &InMemoryIdempotencyStore{}, store)
}

func TestIdempotencyStoreFactory_UnreachableRedis(t *testing.T) {
	cfg := config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1}

	t.Run("falls back to memory by default", func(t *testing.T) {
		store, err := NewIdempotencyStoreFactory(cfg).CreateStore()
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &InMemoryIdempotencyStore{}, store)
	})

	t.Run("fails when fallback is disabled", func(t *testing.T) {
		_, err := NewIdempotencyStoreFactory(cfg, WithInMemoryFallback(false)).CreateStore()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "redis required")
	})
}
