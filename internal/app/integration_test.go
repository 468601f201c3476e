//go:build integration

package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/localrecos/recos-engine/internal/config"
	"github.com/localrecos/recos-engine/internal/search"
	"github.com/localrecos/recos-engine/internal/storage"
)

// startBackends runs Postgres and Redis containers and returns a config
// pointing at them.
func startBackends(t *testing.T) *config.Config {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("recos_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate postgres container: %v", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	redisContainer, err := tcredis.Run(ctx,
		"redis:7.4-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := redisContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate redis container: %v", err)
		}
	})

	redisHost, err := redisContainer.Host(ctx)
	require.NoError(t, err)
	redisPort, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.Storage.Driver = "postgres"
	cfg.Storage.Postgres.DSN = dsn
	cfg.Cache.Driver = "redis"
	cfg.Cache.Redis.Addr = fmt.Sprintf("%s:%s", redisHost, redisPort.Port())
	cfg.LLM.Provider = "none"
	cfg.Synthesis.Seed = 5
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestIntegration_PostgresAndRedis(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	cfg := startBackends(t)
	ctx := context.Background()

	application, err := New(ctx, cfg, nil, Overrides{})
	require.NoError(t, err)
	defer application.Close()

	svc := application.Service

	t.Run("seeded search is cached in redis", func(t *testing.T) {
		first, err := svc.Search(ctx, search.Request{Query: "best indian", City: "Ottawa"})
		require.NoError(t, err)
		assert.False(t, first.Cached)
		require.Len(t, first.Results, 4)
		assert.Len(t, first.Results[0].Recommendations, 2)

		second, err := svc.Search(ctx, search.Request{Query: "Best Indian", City: "Ottawa"})
		require.NoError(t, err)
		assert.True(t, second.Cached)
		assert.Equal(t, len(first.Results), len(second.Results))
	})

	t.Run("synthesized restaurants are stored in postgres", func(t *testing.T) {
		resp, err := svc.Search(ctx, search.Request{Query: "vegan ramen", City: "Boston"})
		require.NoError(t, err)
		require.NotZero(t, resp.Synthesized)

		stored, err := svc.CityRestaurants(ctx, "boston", "")
		require.NoError(t, err)
		assert.Len(t, stored, resp.Synthesized)
	})

	t.Run("import invalidates the cache", func(t *testing.T) {
		n, err := svc.Import(ctx, []storage.NewRestaurant{{
			Name:         "Tandoori Nights",
			City:         "Ottawa",
			GoogleRating: storage.Float64(4.8),
			PriceRange:   storage.PriceModerate,
			Categories:   []string{"Indian"},
		}}, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		resp, err := svc.Search(ctx, search.Request{Query: "best indian", City: "Ottawa"})
		require.NoError(t, err)
		assert.False(t, resp.Cached)
		assert.Len(t, resp.Results, 5)
	})

	t.Run("history is persisted newest first", func(t *testing.T) {
		entries, err := svc.History(ctx, 2)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "best indian", entries[0].Query)
		assert.Equal(t, "vegan ramen", entries[1].Query)
	})
}

func TestIntegration_ReopenKeepsData(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	cfg := startBackends(t)
	ctx := context.Background()

	first, err := New(ctx, cfg, nil, Overrides{})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	// Seeding is skipped when the store already holds restaurants.
	second, err := New(ctx, cfg, nil, Overrides{})
	require.NoError(t, err)
	defer second.Close()

	all, err := second.Repo.ListRestaurants(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 6)
}
