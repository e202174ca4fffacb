package cart

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kennethcatiis/ecommerce-platform/internal/apperr"
	"github.com/kennethcatiis/ecommerce-platform/internal/models"
	"github.com/kennethcatiis/ecommerce-platform/internal/repository/memory"
)

const (
	userID = int64(7)
	p1     = int64(1)
	p2     = int64(2)
)

func newTestService(t *testing.T, opts ...Option) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	store.PutProduct(models.Product{ID: p1, Name: "Shirt", Price: 1000, Available: true})
	store.PutProduct(models.Product{ID: p2, Name: "Shoes", Price: 2500, Available: true})
	return NewService(store, store, opts...), store
}

func TestAddItem_CreatesAndIncrements(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	ch, err := svc.AddItem(ctx, userID, p1)
	require.NoError(t, err)
	assert.Equal(t, 1, ch.Quantity)

	ch, err = svc.AddItem(ctx, userID, p1)
	require.NoError(t, err)
	assert.Equal(t, 2, ch.Quantity)

	_, err = svc.AddItem(ctx, userID, p2)
	require.NoError(t, err)

	c, err := svc.GetCart(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{p1: 2, p2: 1}, c.Items)
}

func TestAddItem_UnknownProduct(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.AddItem(context.Background(), userID, 99)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	c, err := svc.GetCart(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
}

func TestAddItem_RejectsBadInput(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.AddItem(context.Background(), 0, p1)
	assert.ErrorIs(t, err, apperr.ErrAuth)

	_, err = svc.AddItem(context.Background(), userID, -3)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestRemoveItem_DeletesAtZero(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, userID, p1)
	require.NoError(t, err)

	ch, err := svc.RemoveItem(ctx, userID, p1)
	require.NoError(t, err)
	assert.Equal(t, 0, ch.Quantity)
	_, present := ch.Cart.Items[p1]
	assert.False(t, present, "zero-quantity entries must not be stored")
}

func TestRemoveItem_NotInCart(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.RemoveItem(ctx, userID, p1)
	assert.ErrorIs(t, err, apperr.ErrNotInCart)

	c, err := svc.GetCart(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Quantity(p1))
	assert.Empty(t, c.Items)
}

func TestAddRemove_NetQuantity(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	want := map[int64]int{}
	for i := 0; i < 300; i++ {
		pid := p1
		if rng.Intn(2) == 1 {
			pid = p2
		}
		if rng.Intn(3) == 0 {
			_, err := svc.RemoveItem(ctx, userID, pid)
			if want[pid] == 0 {
				require.ErrorIs(t, err, apperr.ErrNotInCart)
				continue
			}
			require.NoError(t, err)
			want[pid]--
			if want[pid] == 0 {
				delete(want, pid)
			}
			continue
		}
		_, err := svc.AddItem(ctx, userID, pid)
		require.NoError(t, err)
		want[pid]++
	}

	c, err := svc.GetCart(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, want, c.Items)
	for _, qty := range c.Items {
		assert.Positive(t, qty)
	}
}

func TestAddItem_ConcurrentSameProduct(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AddItem(ctx, userID, p1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	c, err := svc.GetCart(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, workers, c.Quantity(p1))
}

func TestGetCart_ReturnsSnapshot(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, userID, p1)
	require.NoError(t, err)

	c, err := svc.GetCart(ctx, userID)
	require.NoError(t, err)
	c.Set(p1, 50)

	again, err := svc.GetCart(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Quantity(p1))
}

func TestClearCart(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, userID, p1)
	require.NoError(t, err)
	require.NoError(t, svc.ClearCart(ctx, userID))

	c, err := svc.GetCart(ctx, userID)
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
}

func TestGetCart_UsesRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	svc, store := newTestService(t, WithCache(NewRedisCache(client)))
	ctx := context.Background()

	_, err := svc.AddItem(ctx, userID, p1)
	require.NoError(t, err)
	assert.False(t, mr.Exists(cacheKey(userID)), "mutations invalidate the cached cart")

	_, err = svc.GetCart(ctx, userID)
	require.NoError(t, err)
	assert.True(t, mr.Exists(cacheKey(userID)))

	// A write that bypasses the service is not seen until invalidation.
	_, err = store.IncrementItem(ctx, userID, p1)
	require.NoError(t, err)
	c, err := svc.GetCart(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Quantity(p1))

	svc.Invalidate(ctx, userID)
	c, err = svc.GetCart(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Quantity(p1))
}

func TestRedisCache_Miss(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	_, err := NewRedisCache(client).Get(context.Background(), 404)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCache_InvalidJSON(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	require.NoError(t, mr.Set(cacheKey(userID), "{not json"))
	_, err := NewRedisCache(client).Get(context.Background(), userID)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCache_SetsTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	c := models.NewCart(userID)
	c.Set(p1, 3)
	require.NoError(t, NewRedisCache(client).SetIfGeneration(context.Background(), c, 0))

	ttl := mr.TTL(cacheKey(userID))
	assert.Greater(t, ttl.Minutes(), 14.0)
}

func TestRedisCache_SkipsFillAfterInvalidate(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cache := NewRedisCache(client)
	ctx := context.Background()

	gen, err := cache.Generation(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), gen)

	require.NoError(t, cache.Invalidate(ctx, userID))
	next, err := cache.Generation(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), next)

	c := models.NewCart(userID)
	c.Set(p1, 1)
	require.NoError(t, cache.SetIfGeneration(ctx, c, gen))
	assert.False(t, mr.Exists(cacheKey(userID)), "a fill from an older generation is dropped")

	require.NoError(t, cache.SetIfGeneration(ctx, c, next))
	assert.True(t, mr.Exists(cacheKey(userID)))
	assert.Greater(t, mr.TTL(generationKey(userID)).Hours(), 23.0)
}

// pausingStore blocks the first CartItems call made while armed, after the
// store read has happened.
type pausingStore struct {
	*memory.Store
	armed   atomic.Bool
	read    chan struct{}
	release chan struct{}
}

func (p *pausingStore) CartItems(ctx context.Context, id int64) (models.Cart, error) {
	c, err := p.Store.CartItems(ctx, id)
	if p.armed.CompareAndSwap(true, false) {
		close(p.read)
		<-p.release
	}
	return c, err
}

func TestGetCart_SlowFillDoesNotCacheStaleCart(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	base := memory.New()
	base.PutProduct(models.Product{ID: p1, Name: "Shirt", Price: 1000, Available: true})
	store := &pausingStore{Store: base, read: make(chan struct{}), release: make(chan struct{})}
	svc := NewService(store, base, WithCache(NewRedisCache(client)))
	ctx := context.Background()

	_, err := base.IncrementItem(ctx, userID, p1)
	require.NoError(t, err)

	store.armed.Store(true)
	done := make(chan error, 1)
	go func() {
		_, err := svc.GetCart(ctx, userID)
		done <- err
	}()
	<-store.read

	// The reader holds {p1: 1}; the cart moves on before it writes the cache.
	ch, err := svc.AddItem(ctx, userID, p1)
	require.NoError(t, err)
	require.Equal(t, 2, ch.Quantity)

	close(store.release)
	require.NoError(t, <-done)

	c, err := svc.GetCart(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Quantity(p1))

	cached, err := NewRedisCache(client).Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{p1: 2}, cached.Items)
}
