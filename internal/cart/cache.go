package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kennethcatiis/ecommerce-platform/internal/models"
)

var ErrCacheMiss = errors.New("cache miss")

// errStaleGeneration aborts a fill that lost a race with Invalidate.
var errStaleGeneration = errors.New("cart generation changed")

// Cache holds display copies of carts. It is never the source of truth:
// checkout reads the cart from the store under a row lock.
//
// Every user has a generation counter that Invalidate bumps. A fill carries
// the generation read before the store read and is dropped if the counter
// has moved since, so a slow reader can never cache a cart older than the
// last invalidation.
type Cache interface {
	Get(ctx context.Context, userID int64) (models.Cart, error)
	Generation(ctx context.Context, userID int64) (int64, error)
	SetIfGeneration(ctx context.Context, c models.Cart, gen int64) error
	Invalidate(ctx context.Context, userID int64) error
}

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
	genTTL  time.Duration
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: 15 * time.Minute,
		genTTL:  24 * time.Hour,
	}
}

func (r *RedisCache) Get(ctx context.Context, userID int64) (models.Cart, error) {
	data, err := r.client.Get(ctx, cacheKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Cart{}, ErrCacheMiss
	}
	if err != nil {
		return models.Cart{}, fmt.Errorf("redis get failed: %w", err)
	}

	var c models.Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return models.Cart{}, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	if c.Items == nil {
		c.Items = map[int64]int{}
	}
	return c, nil
}

func (r *RedisCache) Generation(ctx context.Context, userID int64) (int64, error) {
	gen, err := r.client.Get(ctx, generationKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get generation failed: %w", err)
	}
	return gen, nil
}

// SetIfGeneration stores c only while the user's generation still equals
// gen. A skipped write is not an error.
func (r *RedisCache) SetIfGeneration(ctx context.Context, c models.Cart, gen int64) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	jitter := time.Duration(rand.Intn(5)) * time.Minute
	gk := generationKey(c.UserID)

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, gk).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return errStaleGeneration
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, cacheKey(c.UserID), data, r.baseTTL+jitter)
			return nil
		})
		return err
	}, gk)

	switch {
	case err == nil, errors.Is(err, errStaleGeneration), errors.Is(err, redis.TxFailedErr):
		return nil
	default:
		return fmt.Errorf("redis set failed: %w", err)
	}
}

// Invalidate bumps the generation and drops the cached copy in one MULTI.
// The generation key outlives any cart entry so it cannot reset while an
// older copy is still cached.
func (r *RedisCache) Invalidate(ctx context.Context, userID int64) error {
	gk := generationKey(userID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, gk)
		pipe.Expire(ctx, gk, r.genTTL)
		pipe.Del(ctx, cacheKey(userID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate failed: %w", err)
	}
	return nil
}

func cacheKey(userID int64) string {
	return fmt.Sprintf("cart:%d", userID)
}

func generationKey(userID int64) string {
	return fmt.Sprintf("cart:%d:gen", userID)
}
