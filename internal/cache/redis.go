package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/SigNoz/storefront-go-app/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// InitRedis connects to Redis and verifies the connection
func InitRedis(ctx context.Context, addr, password string, db int, logger *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("redis connection established", zap.String("addr", addr))
	return rdb, nil
}

// Redis is a ProductCache shared by every instance of the service
type Redis struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewRedis creates a Redis backed product cache
func NewRedis(rdb redis.Cmdable, ttl time.Duration) *Redis {
	return &Redis{rdb: rdb, ttl: ttl}
}

func productKey(id int64) string {
	return fmt.Sprintf("product:%d", id)
}

func (c *Redis) Get(ctx context.Context, id int64) (models.Product, bool, error) {
	data, err := c.rdb.Get(ctx, productKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Product{}, false, nil
	}
	if err != nil {
		return models.Product{}, false, fmt.Errorf("failed to read cached product: %w", err)
	}

	var product models.Product
	if err := json.Unmarshal(data, &product); err != nil {
		return models.Product{}, false, fmt.Errorf("failed to decode cached product: %w", err)
	}
	return product, true, nil
}

func (c *Redis) Set(ctx context.Context, product models.Product) error {
	data, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("failed to encode product: %w", err)
	}
	return c.rdb.Set(ctx, productKey(product.ID), data, c.ttl).Err()
}

func (c *Redis) Delete(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = productKey(id)
	}
	return c.rdb.Del(ctx, keys...).Err()
}
