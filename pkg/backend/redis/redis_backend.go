// Package redis implements core.BookBackend on a Redis server: orders as
// JSON values, one sorted set of prices per side, one list per price level
// for FIFO order, and a hash of aggregate quantities per side.
//
// The backend assumes a single logical writer, like the in-memory one. It
// exists for parity and experimentation, not for crash durability; see the
// WAL-style designs elsewhere for that.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/erain9/limitbook/pkg/core"
	"github.com/nikolaydubina/fpdecimal"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisOptions represents configuration options for Redis connection
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

var defaultOptions = &RedisOptions{
	Addr:     "localhost:6379",
	Password: "",
	DB:       0,
}

// SetDefaultRedisOptions sets the default options for Redis connections
func SetDefaultRedisOptions(options *RedisOptions) {
	defaultOptions = options
}

// GetRedisClient creates a new Redis client using the default options
func GetRedisClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     defaultOptions.Addr,
		Password: defaultOptions.Password,
		DB:       defaultOptions.DB,
	})
}

// RedisBackend implements core.BookBackend with Redis storage
type RedisBackend struct {
	client *redis.Client
	ctx    context.Context
	prefix string
	idsKey string
	logger *zap.Logger
}

// NewRedisBackend creates a new instance of RedisBackend. All keys are
// namespaced under prefix so several books can share one server.
func NewRedisBackend(client *redis.Client, prefix string, logger *zap.Logger) *RedisBackend {
	return &RedisBackend{
		client: client,
		ctx:    context.Background(),
		prefix: prefix,
		idsKey: fmt.Sprintf("%s:ids", prefix),
		logger: logger,
	}
}

func (b *RedisBackend) orderKey(id uint64) string {
	return fmt.Sprintf("%s:order:%d", b.prefix, id)
}

func sideName(side core.Side) string {
	if side == core.Buy {
		return "bids"
	}
	return "asks"
}

func (b *RedisBackend) ladderKey(side core.Side) string {
	return fmt.Sprintf("%s:%s", b.prefix, sideName(side))
}

func (b *RedisBackend) queueKey(side core.Side, price fpdecimal.Decimal) string {
	return fmt.Sprintf("%s:queue:%s:%s", b.prefix, sideName(side), price.String())
}

func (b *RedisBackend) qtyKey(side core.Side) string {
	return fmt.Sprintf("%s:qty:%s", b.prefix, sideName(side))
}

// GetOrder retrieves an order from Redis by its ID
func (b *RedisBackend) GetOrder(id uint64) *core.Order {
	data, err := b.client.Get(b.ctx, b.orderKey(id)).Bytes()
	if err != nil {
		if err != redis.Nil {
			b.logger.Error("failed to get order",
				zap.Uint64("order_id", id),
				zap.Error(err))
		}
		return nil
	}

	var order core.Order
	if err := json.Unmarshal(data, &order); err != nil {
		b.logger.Error("failed to unmarshal order",
			zap.Uint64("order_id", id),
			zap.Error(err))
		return nil
	}

	return &order
}

// Exists reports whether the id is resting
func (b *RedisBackend) Exists(id uint64) bool {
	ok, err := b.client.SIsMember(b.ctx, b.idsKey, strconv.FormatUint(id, 10)).Result()
	if err != nil {
		b.logger.Error("failed to check order existence",
			zap.Uint64("order_id", id),
			zap.Error(err))
		return false
	}
	return ok
}

func (b *RedisBackend) storeOrder(order *core.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return b.client.Set(b.ctx, b.orderKey(order.ID()), data, 0).Err()
}

func (b *RedisBackend) aggregate(side core.Side, price fpdecimal.Decimal) fpdecimal.Decimal {
	val, err := b.client.HGet(b.ctx, b.qtyKey(side), price.String()).Result()
	if err != nil {
		return fpdecimal.Zero
	}
	qty, err := fpdecimal.FromString(val)
	if err != nil {
		return fpdecimal.Zero
	}
	return qty
}

func (b *RedisBackend) setAggregate(side core.Side, price, qty fpdecimal.Decimal) error {
	if qty.LessThan(fpdecimal.Zero) {
		qty = fpdecimal.Zero
	}
	return b.client.HSet(b.ctx, b.qtyKey(side), price.String(), qty.String()).Err()
}

// Append links the order at the tail of its price level and indexes it
func (b *RedisBackend) Append(order *core.Order) error {
	if b.Exists(order.ID()) {
		return core.ErrDuplicateOrderID
	}

	if err := b.storeOrder(order); err != nil {
		return fmt.Errorf("failed to store order: %w", err)
	}

	price := order.Price()
	score, err := strconv.ParseFloat(price.String(), 64)
	if err != nil {
		return fmt.Errorf("failed to derive price score: %w", err)
	}

	if err := b.client.ZAdd(b.ctx, b.ladderKey(order.Side()), redis.Z{
		Score:  score,
		Member: price.String(),
	}).Err(); err != nil {
		return fmt.Errorf("failed to add price level: %w", err)
	}

	id := strconv.FormatUint(order.ID(), 10)
	if err := b.client.RPush(b.ctx, b.queueKey(order.Side(), price), id).Err(); err != nil {
		return fmt.Errorf("failed to enqueue order: %w", err)
	}

	if err := b.setAggregate(order.Side(), price, b.aggregate(order.Side(), price).Add(order.Quantity())); err != nil {
		return fmt.Errorf("failed to update aggregate: %w", err)
	}

	if err := b.client.SAdd(b.ctx, b.idsKey, id).Err(); err != nil {
		return fmt.Errorf("failed to index order: %w", err)
	}

	return nil
}

// unlink removes the order's queue slot, index membership and value,
// dropping the price level when its queue runs empty.
func (b *RedisBackend) unlink(order *core.Order) error {
	id := strconv.FormatUint(order.ID(), 10)
	queueKey := b.queueKey(order.Side(), order.Price())

	if err := b.client.LRem(b.ctx, queueKey, 1, id).Err(); err != nil {
		return err
	}

	remaining, err := b.client.LLen(b.ctx, queueKey).Result()
	if err != nil {
		return err
	}

	if remaining == 0 {
		if err := b.client.ZRem(b.ctx, b.ladderKey(order.Side()), order.Price().String()).Err(); err != nil {
			return err
		}
		if err := b.client.HDel(b.ctx, b.qtyKey(order.Side()), order.Price().String()).Err(); err != nil {
			return err
		}
	}

	if err := b.client.SRem(b.ctx, b.idsKey, id).Err(); err != nil {
		return err
	}

	return b.client.Del(b.ctx, b.orderKey(order.ID())).Err()
}

// Remove unlinks the order from its level and the index
func (b *RedisBackend) Remove(id uint64) (*core.Order, bool) {
	order := b.GetOrder(id)
	if order == nil {
		return nil, false
	}

	if err := b.setAggregate(order.Side(), order.Price(),
		b.aggregate(order.Side(), order.Price()).Sub(order.Quantity())); err != nil {
		b.logger.Error("failed to update aggregate",
			zap.Uint64("order_id", id),
			zap.Error(err))
		return nil, false
	}

	if err := b.unlink(order); err != nil {
		b.logger.Error("failed to remove order",
			zap.Uint64("order_id", id),
			zap.Error(err))
		return nil, false
	}

	return order, true
}

// UpdateQuantity replaces the order's quantity in place
func (b *RedisBackend) UpdateQuantity(id uint64, quantity fpdecimal.Decimal) bool {
	order := b.GetOrder(id)
	if order == nil {
		return false
	}

	delta := quantity.Sub(order.Quantity())
	order.SetQuantity(quantity)

	if err := b.storeOrder(order); err != nil {
		b.logger.Error("failed to update order",
			zap.Uint64("order_id", id),
			zap.Error(err))
		return false
	}

	if err := b.setAggregate(order.Side(), order.Price(),
		b.aggregate(order.Side(), order.Price()).Add(delta)); err != nil {
		b.logger.Error("failed to update aggregate",
			zap.Uint64("order_id", id),
			zap.Error(err))
		return false
	}

	return true
}

// Fill decrements order and aggregate, removing the order once exhausted
func (b *RedisBackend) Fill(id uint64, quantity fpdecimal.Decimal) bool {
	order := b.GetOrder(id)
	if order == nil {
		return false
	}

	order.DecreaseQuantity(quantity)

	if err := b.setAggregate(order.Side(), order.Price(),
		b.aggregate(order.Side(), order.Price()).Sub(quantity)); err != nil {
		b.logger.Error("failed to update aggregate",
			zap.Uint64("order_id", id),
			zap.Error(err))
		return false
	}

	if order.Quantity().LessThanOrEqual(fpdecimal.Zero) {
		if err := b.unlink(order); err != nil {
			b.logger.Error("failed to remove filled order",
				zap.Uint64("order_id", id),
				zap.Error(err))
			return false
		}
		return true
	}

	if err := b.storeOrder(order); err != nil {
		b.logger.Error("failed to update filled order",
			zap.Uint64("order_id", id),
			zap.Error(err))
		return false
	}

	return true
}

// bestPrices returns up to depth price strings from the best price outward
func (b *RedisBackend) bestPrices(side core.Side, depth int) []string {
	key := b.ladderKey(side)
	stop := int64(depth) - 1

	var prices []string
	var err error
	if side == core.Buy {
		prices, err = b.client.ZRevRange(b.ctx, key, 0, stop).Result()
	} else {
		prices, err = b.client.ZRange(b.ctx, key, 0, stop).Result()
	}
	if err != nil {
		b.logger.Error("failed to read price ladder", zap.Error(err))
		return nil
	}
	return prices
}

// Best returns the oldest order at the side's best price
func (b *RedisBackend) Best(side core.Side) (*core.Order, bool) {
	prices := b.bestPrices(side, 1)
	if len(prices) == 0 {
		return nil, false
	}

	price, err := fpdecimal.FromString(prices[0])
	if err != nil {
		b.logger.Error("corrupt price member", zap.String("price", prices[0]))
		return nil, false
	}

	idStr, err := b.client.LIndex(b.ctx, b.queueKey(side, price), 0).Result()
	if err != nil {
		if err != redis.Nil {
			b.logger.Error("failed to read level queue", zap.Error(err))
		}
		return nil, false
	}

	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		b.logger.Error("corrupt queue member", zap.String("id", idStr))
		return nil, false
	}

	order := b.GetOrder(id)
	if order == nil {
		return nil, false
	}
	return order, true
}

// Levels returns up to depth levels from the best price outward
func (b *RedisBackend) Levels(side core.Side, depth int) []core.BookLevel {
	prices := b.bestPrices(side, depth)
	levels := make([]core.BookLevel, 0, len(prices))

	for _, p := range prices {
		price, err := fpdecimal.FromString(p)
		if err != nil {
			continue
		}
		levels = append(levels, core.BookLevel{
			Price:    price,
			Quantity: b.aggregate(side, price),
		})
	}

	return levels
}

// LevelCount returns the number of distinct prices on the side
func (b *RedisBackend) LevelCount(side core.Side) int {
	n, err := b.client.ZCard(b.ctx, b.ladderKey(side)).Result()
	if err != nil {
		b.logger.Error("failed to count levels", zap.Error(err))
		return 0
	}
	return int(n)
}

// Len returns the number of resting orders
func (b *RedisBackend) Len() int {
	n, err := b.client.SCard(b.ctx, b.idsKey).Result()
	if err != nil {
		b.logger.Error("failed to count orders", zap.Error(err))
		return 0
	}
	return int(n)
}

var _ core.BookBackend = (*RedisBackend)(nil)
