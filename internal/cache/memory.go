package cache

import (
	"context"
	"sync"
	"time"

	"github.com/SigNoz/storefront-go-app/internal/models"
)

type cachedProduct struct {
	product models.Product
	expires time.Time
}

// Memory is an in-process ProductCache with a fixed TTL
type Memory struct {
	mu    sync.RWMutex
	items map[int64]cachedProduct
	ttl   time.Duration
	now   func() time.Time
}

// NewMemory creates an empty in-process cache
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		items: make(map[int64]cachedProduct),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (c *Memory) Get(_ context.Context, id int64) (models.Product, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cached, ok := c.items[id]
	if !ok || !c.now().Before(cached.expires) {
		return models.Product{}, false, nil
	}
	return cached.product, true, nil
}

func (c *Memory) Set(_ context.Context, product models.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[product.ID] = cachedProduct{
		product: product,
		expires: c.now().Add(c.ttl),
	}
	return nil
}

func (c *Memory) Delete(_ context.Context, ids ...int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range ids {
		delete(c.items, id)
	}
	return nil
}
