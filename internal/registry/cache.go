package registry

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hugh/agricoop/internal/database/models"
	"github.com/redis/go-redis/v9"
)

// Cache holds organizations by subdomain for the resolver. Every registry
// mutation invalidates the entry, so a suspension is seen on the next request.
//
// Invalidate also bumps the subdomain's generation. A reader takes the
// generation before it loads the row and hands it to Set; Set drops the write
// if an invalidation happened in between, so a row read before a suspension
// committed is never cached after it.
type Cache interface {
	Get(ctx context.Context, subdomain string) (*models.Organization, bool)
	Generation(ctx context.Context, subdomain string) (int64, bool)
	Set(ctx context.Context, org *models.Organization, generation int64)
	Invalidate(ctx context.Context, subdomain string)
}

type NopCache struct{}

func (NopCache) Get(context.Context, string) (*models.Organization, bool) { return nil, false }
func (NopCache) Generation(context.Context, string) (int64, bool)        { return 0, false }
func (NopCache) Set(context.Context, *models.Organization, int64)         {}
func (NopCache) Invalidate(context.Context, string)                       {}

const (
	cacheKeyPrefix      = "agricoop:tenant:"
	generationKeyPrefix = "agricoop:tenant-gen:"
)

var errStaleEntry = errors.New("registry cache entry is stale")

// RedisCache shares the lookup cache between API processes.
type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisCache(client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

func cacheKey(subdomain string) string {
	return cacheKeyPrefix + subdomain
}

func generationKey(subdomain string) string {
	return generationKeyPrefix + subdomain
}

func (c *RedisCache) Get(ctx context.Context, subdomain string) (*models.Organization, bool) {
	data, err := c.client.Get(ctx, cacheKey(subdomain)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("registry cache read failed", "subdomain", subdomain, "error", err)
		}
		return nil, false
	}
	var org models.Organization
	if err := json.Unmarshal(data, &org); err != nil {
		c.logger.Warn("registry cache entry corrupt", "subdomain", subdomain, "error", err)
		c.Invalidate(ctx, subdomain)
		return nil, false
	}
	return &org, true
}

// Generation returns the invalidation counter of subdomain. A missing
// counter is generation zero; false means Redis could not be read and the
// caller must not cache.
func (c *RedisCache) Generation(ctx context.Context, subdomain string) (int64, bool) {
	gen, err := c.client.Get(ctx, generationKey(subdomain)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, true
		}
		c.logger.Warn("registry cache generation read failed", "subdomain", subdomain, "error", err)
		return 0, false
	}
	return gen, true
}

// Set stores org only while the subdomain is still at generation. The check
// and the write run in one WATCH transaction against Invalidate.
func (c *RedisCache) Set(ctx context.Context, org *models.Organization, generation int64) {
	data, err := json.Marshal(org)
	if err != nil {
		return
	}
	genKey := generationKey(org.Subdomain)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != generation {
			return errStaleEntry
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, cacheKey(org.Subdomain), data, c.ttl)
			return nil
		})
		return err
	}, genKey)
	switch {
	case err == nil:
	case errors.Is(err, errStaleEntry), errors.Is(err, redis.TxFailedErr):
		c.logger.Debug("registry cache write skipped, invalidated meanwhile", "subdomain", org.Subdomain)
	default:
		c.logger.Warn("registry cache write failed", "subdomain", org.Subdomain, "error", err)
	}
}

func (c *RedisCache) Invalidate(ctx context.Context, subdomain string) {
	// runs even when the request context is already cancelled
	ctx = context.WithoutCancel(ctx)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey(subdomain))
		pipe.Del(ctx, cacheKey(subdomain))
		return nil
	})
	if err != nil {
		c.logger.Error("registry cache invalidation failed", "subdomain", subdomain, "error", err)
	}
}
