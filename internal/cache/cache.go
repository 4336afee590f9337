// Package cache keeps the last-known normalized summary for recently
// observed orders, so the API can re-resolve an order the operator has
// already dismissed from the feed.
package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tkani-store/notifier/internal/domain"
)

type Cache struct {
	lru *lru.Cache[string, domain.OrderSummary]
}

func New(size int) (*Cache, error) {
	c, err := lru.New[string, domain.OrderSummary](size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: c}, nil
}

func (c *Cache) Get(id string) (domain.OrderSummary, bool) {
	return c.lru.Get(id)
}

func (c *Cache) Put(s domain.OrderSummary) {
	c.lru.Add(s.ID, s)
}

func (c *Cache) Len() int {
	return c.lru.Len()
}
