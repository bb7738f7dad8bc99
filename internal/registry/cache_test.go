package registry_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hugh/agricoop/internal/database/models"
	"github.com/hugh/agricoop/internal/registry"
	"github.com/hugh/agricoop/internal/tenancy"
	"github.com/hugh/agricoop/internal/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisCache(t *testing.T) (*registry.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return registry.NewRedisCache(client, time.Minute, slog.Default()), mr
}

func TestRedisCache_RoundTrip(t *testing.T) {
	cache, mr := newRedisCache(t)
	ctx := testutil.TestContext(t)

	_, ok := cache.Get(ctx, "coopa")
	assert.False(t, ok)

	org := &models.Organization{
		Subdomain: "coopa",
		Name:      "Cooperativa A",
		Plan:      models.PlanBasic,
		Status:    models.StatusActive,
		IsActive:  true,
		Limits:    models.Limits{MaxUsers: 10, MaxRecords: 100, MaxStorageMB: 10},
	}
	gen, ok := cache.Generation(ctx, "coopa")
	require.True(t, ok)
	cache.Set(ctx, org, gen)
	assert.True(t, mr.Exists("agricoop:tenant:coopa"))
	assert.Equal(t, time.Minute, mr.TTL("agricoop:tenant:coopa"))

	got, ok := cache.Get(ctx, "coopa")
	require.True(t, ok)
	assert.Equal(t, org.Name, got.Name)
	assert.Equal(t, org.Limits, got.Limits)
	assert.True(t, got.CanServe())

	cache.Invalidate(ctx, "coopa")
	assert.False(t, mr.Exists("agricoop:tenant:coopa"))
}

func TestRedisCache_CorruptEntryIsDropped(t *testing.T) {
	cache, mr := newRedisCache(t)
	ctx := testutil.TestContext(t)

	require.NoError(t, mr.Set("agricoop:tenant:coopa", "{not json"))
	_, ok := cache.Get(ctx, "coopa")
	assert.False(t, ok)
	assert.False(t, mr.Exists("agricoop:tenant:coopa"))
}

func TestRedisCache_UnavailableIsAMiss(t *testing.T) {
	cache, mr := newRedisCache(t)
	ctx := testutil.TestContext(t)
	mr.Close()

	_, ok := cache.Get(ctx, "coopa")
	assert.False(t, ok)
}

func TestRegistry_SuspensionVisibleThroughCache(t *testing.T) {
	cache, mr := newRedisCache(t)
	f := newFixture(t, cache)
	ctx := testutil.TestContext(t)

	reg, err := f.svc.Register(ctx, registerInput("coopa"))
	require.NoError(t, err)

	_, err = f.svc.Resolve(ctx, "coopa")
	require.NoError(t, err)
	assert.True(t, mr.Exists("agricoop:tenant:coopa"), "resolve populates the cache")

	_, err = f.svc.Suspend(ctx, reg.Organization.ID, "unpaid")
	require.NoError(t, err)
	assert.False(t, mr.Exists("agricoop:tenant:coopa"))

	_, err = f.svc.Resolve(ctx, "coopa")
	assert.ErrorIs(t, err, tenancy.ErrInactiveTenant)

	_, err = f.svc.Reactivate(ctx, reg.Organization.ID)
	require.NoError(t, err)
	_, err = f.svc.Resolve(ctx, "coopa")
	assert.NoError(t, err)
}

func TestRedisCache_SetAfterInvalidateIsDropped(t *testing.T) {
	cache, mr := newRedisCache(t)
	ctx := testutil.TestContext(t)

	gen, ok := cache.Generation(ctx, "coopa")
	require.True(t, ok)
	cache.Invalidate(ctx, "coopa")

	cache.Set(ctx, &models.Organization{Subdomain: "coopa", Status: models.StatusActive, IsActive: true}, gen)
	assert.False(t, mr.Exists("agricoop:tenant:coopa"))

	gen, ok = cache.Generation(ctx, "coopa")
	require.True(t, ok)
	assert.Equal(t, int64(1), gen)
}

func TestRedisCache_GenerationUnavailable(t *testing.T) {
	cache, mr := newRedisCache(t)
	mr.Close()

	_, ok := cache.Generation(testutil.TestContext(t), "coopa")
	assert.False(t, ok)
}

// suspendingCache runs onSet in the window between the registry's database
// read and its cache write.
type suspendingCache struct {
	registry.Cache
	onSet func()
}

func (c *suspendingCache) Set(ctx context.Context, org *models.Organization, gen int64) {
	if c.onSet != nil {
		hook := c.onSet
		c.onSet = nil
		hook()
	}
	c.Cache.Set(ctx, org, gen)
}

func TestRegistry_SuspensionDuringLookupIsNotCached(t *testing.T) {
	redisCache, mr := newRedisCache(t)
	cache := &suspendingCache{Cache: redisCache}
	f := newFixture(t, cache)
	ctx := testutil.TestContext(t)

	reg, err := f.svc.Register(ctx, registerInput("coopa"))
	require.NoError(t, err)

	cache.onSet = func() {
		_, err := f.svc.Suspend(ctx, reg.Organization.ID, "unpaid")
		require.NoError(t, err)
	}

	// this lookup read the row before the suspension committed
	_, err = f.svc.Resolve(ctx, "coopa")
	require.NoError(t, err)
	assert.False(t, mr.Exists("agricoop:tenant:coopa"))

	_, err = f.svc.Resolve(ctx, "coopa")
	assert.ErrorIs(t, err, tenancy.ErrInactiveTenant)
}
