package order

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedStore 在任意 Store 前加一层 LRU 读缓存，写操作穿透并刷新缓存。
type CachedStore struct {
	Store
	cache *lru.Cache[uint64, Order]
}

func NewCachedStore(inner Store, size int) (*CachedStore, error) {
	if size <= 0 {
		size = 1024
	}
	c, err := lru.New[uint64, Order](size)
	if err != nil {
		return nil, fmt.Errorf("create order cache: %w", err)
	}
	return &CachedStore{Store: inner, cache: c}, nil
}

func (c *CachedStore) Get(ctx context.Context, id uint64) (Order, error) {
	if o, ok := c.cache.Get(id); ok {
		return o, nil
	}
	o, err := c.Store.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	c.cache.Add(id, o)
	return o, nil
}

func (c *CachedStore) Insert(ctx context.Context, o Order) error {
	if err := c.Store.Insert(ctx, o); err != nil {
		return err
	}
	c.cache.Add(o.ID, o)
	return nil
}

func (c *CachedStore) Update(ctx context.Context, o Order) error {
	if err := c.Store.Update(ctx, o); err != nil {
		c.cache.Remove(o.ID)
		return err
	}
	c.cache.Add(o.ID, o)
	return nil
}

func (c *CachedStore) Delete(ctx context.Context, id uint64) error {
	// 先删底层再清缓存，否则并发读可能把正在删除的订单重新缓存
	err := c.Store.Delete(ctx, id)
	c.cache.Remove(id)
	return err
}

// Len 当前缓存条目数。
func (c *CachedStore) Len() int { return c.cache.Len() }
