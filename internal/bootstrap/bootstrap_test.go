package bootstrap_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freshlistings/internal/bootstrap"
	"freshlistings/internal/domain"
	"freshlistings/internal/shared"
)

func baseConfig() shared.Config {
	return shared.Config{
		CacheBackend:    "memory",
		CacheSize:       100,
		OllamaURL:       "http://127.0.0.1:11434",
		DefaultModel:    "qwen3-8b",
		OpenSearchURLs:  []string{"http://127.0.0.1:9200"},
		ListingsIndex:   "listings",
		AggregateIndex:  "listings-agg",
		PipelineTimeout: 5 * time.Second,
		GeocodeEmptyTTL: 60,
	}
}

func TestNewCache_Backends(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	for _, backend := range []string{"memory", "badger", "redis"} {
		t.Run(backend, func(t *testing.T) {
			cfg := baseConfig()
			cfg.CacheBackend = backend
			cfg.RedisAddr = mr.Addr()

			c, closeFn, err := bootstrap.NewCache(ctx, cfg)
			require.NoError(t, err)
			t.Cleanup(func() { _ = closeFn() })

			require.NoError(t, c.Set(ctx, "geocode:Bondi", []string{"x"}, 0))
			var got []string
			ok, err := c.Get(ctx, "geocode:Bondi", &got)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, []string{"x"}, got)
		})
	}
}

func TestNewCache_UnknownBackend(t *testing.T) {
	cfg := baseConfig()
	cfg.CacheBackend = "memcached"
	_, _, err := bootstrap.NewCache(context.Background(), cfg)
	assert.ErrorContains(t, err, "unknown CACHE_BACKEND")
}

func TestBuild_WiresServices(t *testing.T) {
	a, err := bootstrap.Build(context.Background(), baseConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.NotNil(t, a.Search)
	assert.NotNil(t, a.Tiles)
	assert.Nil(t, a.Logs)
	assert.Equal(t, domain.ModelID("qwen3-8b"), a.Models.Default())
	assert.True(t, a.Models.Has("ollama-ministral-8b"))
	assert.False(t, a.Models.Has("gemini-2.5-flash"), "no Google key configured")

	// no geocoder key: places never resolve, but the resolver still works
	assert.Nil(t, a.Geocode.Resolve(context.Background(), "Bondi Beach"))
}

func TestBuild_DefaultModelWithoutCredentials(t *testing.T) {
	cfg := baseConfig()
	cfg.DefaultModel = "gemini-2.5-flash"
	_, err := bootstrap.Build(context.Background(), cfg)
	assert.ErrorIs(t, err, domain.ErrUnknownModel)
}
