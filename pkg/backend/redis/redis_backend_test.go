package redis_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nikolaydubina/fpdecimal"

	redisbackend "github.com/erain9/limitbook/pkg/backend/redis"
	"github.com/erain9/limitbook/pkg/core"
)

// redisTestHost is the default host:port for the test Redis instance
const redisTestHost = "localhost:6379"

// setupRedisBackend connects to the test Redis instance, skipping the test
// when no server is reachable. Every test gets its own key prefix so runs
// never interfere.
func setupRedisBackend(t *testing.T) (*redisbackend.RedisBackend, func()) {
	t.Helper()

	host := os.Getenv("REDIS_TEST_HOST")
	if host == "" {
		host = redisTestHost
	}

	client := goredis.NewClient(&goredis.Options{Addr: host})

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("Redis not available at %s: %v", host, err)
	}

	prefix := fmt.Sprintf("limitbook-test-%d", time.Now().UnixNano())
	backend := redisbackend.NewRedisBackend(client, prefix, zap.NewNop())

	teardown := func() {
		cleanupCtx := context.Background()
		iter := client.Scan(cleanupCtx, 0, prefix+":*", 0).Iterator()
		for iter.Next(cleanupCtx) {
			client.Del(cleanupCtx, iter.Val())
		}
		_ = client.Close()
	}

	return backend, teardown
}

func makeOrder(t *testing.T, id uint64, side core.Side, quantity, price float64) *core.Order {
	t.Helper()
	order, err := core.NewOrder(id, side, fpdecimal.FromFloat(quantity), fpdecimal.FromFloat(price), int64(id))
	require.NoError(t, err)
	return order
}

func TestRedisBackendBasicFlow(t *testing.T) {
	backend, teardown := setupRedisBackend(t)
	defer teardown()

	require.NoError(t, backend.Append(makeOrder(t, 1, core.Buy, 100, 99.0)))
	require.NoError(t, backend.Append(makeOrder(t, 2, core.Buy, 50, 100.0)))
	require.NoError(t, backend.Append(makeOrder(t, 3, core.Sell, 75, 101.0)))

	assert.True(t, backend.Exists(1))
	assert.False(t, backend.Exists(99))
	assert.Equal(t, 3, backend.Len())

	order := backend.GetOrder(1)
	require.NotNil(t, order)
	assert.Equal(t, uint64(1), order.ID())
	assert.Equal(t, core.Buy, order.Side())
	assert.True(t, order.Quantity().Equal(fpdecimal.FromFloat(100.0)))

	// Best bid is the highest price, best ask the lowest
	best, ok := backend.Best(core.Buy)
	require.True(t, ok)
	assert.Equal(t, uint64(2), best.ID())

	best, ok = backend.Best(core.Sell)
	require.True(t, ok)
	assert.Equal(t, uint64(3), best.ID())
}

func TestRedisBackendDuplicateID(t *testing.T) {
	backend, teardown := setupRedisBackend(t)
	defer teardown()

	require.NoError(t, backend.Append(makeOrder(t, 1, core.Buy, 100, 99.0)))
	assert.ErrorIs(t, backend.Append(makeOrder(t, 1, core.Sell, 10, 101.0)), core.ErrDuplicateOrderID)
	assert.Equal(t, 1, backend.Len())
}

func TestRedisBackendFIFOWithinLevel(t *testing.T) {
	backend, teardown := setupRedisBackend(t)
	defer teardown()

	require.NoError(t, backend.Append(makeOrder(t, 1, core.Sell, 10, 100.0)))
	require.NoError(t, backend.Append(makeOrder(t, 2, core.Sell, 10, 100.0)))

	best, ok := backend.Best(core.Sell)
	require.True(t, ok)
	assert.Equal(t, uint64(1), best.ID())

	_, ok = backend.Remove(1)
	require.True(t, ok)

	best, ok = backend.Best(core.Sell)
	require.True(t, ok)
	assert.Equal(t, uint64(2), best.ID())
}

func TestRedisBackendFillAndLevels(t *testing.T) {
	backend, teardown := setupRedisBackend(t)
	defer teardown()

	require.NoError(t, backend.Append(makeOrder(t, 1, core.Buy, 100, 99.0)))
	require.NoError(t, backend.Append(makeOrder(t, 2, core.Buy, 200, 99.0)))

	levels := backend.Levels(core.Buy, 10)
	require.Len(t, levels, 1)
	assert.True(t, levels[0].Quantity.Equal(fpdecimal.FromFloat(300.0)))

	require.True(t, backend.Fill(1, fpdecimal.FromFloat(40.0)))
	levels = backend.Levels(core.Buy, 10)
	require.Len(t, levels, 1)
	assert.True(t, levels[0].Quantity.Equal(fpdecimal.FromFloat(260.0)))

	// Filling the remainder removes the order
	require.True(t, backend.Fill(1, fpdecimal.FromFloat(60.0)))
	assert.False(t, backend.Exists(1))
	assert.Equal(t, 1, backend.Len())

	require.True(t, backend.UpdateQuantity(2, fpdecimal.FromFloat(500.0)))
	levels = backend.Levels(core.Buy, 10)
	require.Len(t, levels, 1)
	assert.True(t, levels[0].Quantity.Equal(fpdecimal.FromFloat(500.0)))
}

func TestRedisBackendRemoveDropsEmptyLevel(t *testing.T) {
	backend, teardown := setupRedisBackend(t)
	defer teardown()

	require.NoError(t, backend.Append(makeOrder(t, 1, core.Sell, 10, 100.0)))
	assert.Equal(t, 1, backend.LevelCount(core.Sell))

	removed, ok := backend.Remove(1)
	require.True(t, ok)
	assert.Equal(t, uint64(1), removed.ID())
	assert.Equal(t, 0, backend.LevelCount(core.Sell))

	_, ok = backend.Remove(1)
	assert.False(t, ok)
}

func TestRedisBackendWithBook(t *testing.T) {
	backend, teardown := setupRedisBackend(t)
	defer teardown()

	book := core.NewBook(backend)

	buy, err := core.NewOrder(1, core.Buy, fpdecimal.FromFloat(100.0), fpdecimal.FromFloat(100.0), 0)
	require.NoError(t, err)
	_, err = book.AddOrder(buy, true)
	require.NoError(t, err)

	sell, err := core.NewOrder(2, core.Sell, fpdecimal.FromFloat(40.0), fpdecimal.FromFloat(99.0), 0)
	require.NoError(t, err)
	trades, err := book.AddOrder(sell, true)
	require.NoError(t, err)

	require.Len(t, trades, 1)
	assert.True(t, trades[0].Price.Equal(fpdecimal.FromFloat(99.0)))
	assert.True(t, trades[0].Quantity.Equal(fpdecimal.FromFloat(40.0)))

	assert.False(t, book.OrderExists(2))
	resting := book.GetOrder(1)
	require.NotNil(t, resting)
	assert.True(t, resting.Quantity().Equal(fpdecimal.FromFloat(60.0)))
}
