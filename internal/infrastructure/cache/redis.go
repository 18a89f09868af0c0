package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/adilzhm/order-service/internal/domain"
)

// Snapshot is a read-path accelerator over Redis. It stores JSON snapshots of
// orders under order:{id} with a fixed TTL and is fail-open: any Redis or
// serialization error is reported as a miss and the store stays the source of
// truth for that request. Nothing invalidates entries on status updates, so a
// read may lag the store by at most the TTL.
type Snapshot struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewSnapshot(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Snapshot {
	return &Snapshot{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func key(id string) string {
	return "order:" + id
}

func (c *Snapshot) Get(ctx context.Context, id string) (*domain.Order, bool) {
	data, err := c.client.Get(ctx, key(id)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("cache get failed, treating as miss",
				zap.String("order_id", id),
				zap.Error(err),
			)
		}
		return nil, false
	}

	var order domain.Order
	if err := json.Unmarshal(data, &order); err != nil {
		c.logger.Warn("cached snapshot is corrupt, treating as miss",
			zap.String("order_id", id),
			zap.Error(err),
		)
		return nil, false
	}
	return &order, true
}

func (c *Snapshot) Set(ctx context.Context, order *domain.Order) {
	data, err := json.Marshal(order)
	if err != nil {
		c.logger.Warn("cannot serialize order for cache",
			zap.String("order_id", order.OrderID),
			zap.Error(err),
		)
		return
	}
	if err := c.client.Set(ctx, key(order.OrderID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("cache set failed",
			zap.String("order_id", order.OrderID),
			zap.Error(err),
		)
	}
}
