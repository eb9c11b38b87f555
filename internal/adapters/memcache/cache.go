// Package memcache is a bounded in-process Cache for local runs and the CLI.
package memcache

import (
	"context"
	"encoding/json"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"freshlistings/internal/adapters/observability"
)

type entry struct {
	value   []byte
	expires time.Time // zero: never
}

type Cache struct {
	lru *lru.Cache[string, entry]
	now func() time.Time
}

func New(size int) (*Cache, error) {
	if size <= 0 {
		size = 10000
	}
	l, err := lru.New[string, entry](size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: l, now: time.Now}, nil
}

func (c *Cache) Get(_ context.Context, key string, dst any) (bool, error) {
	e, ok := c.lru.Get(key)
	if ok && !e.expires.IsZero() && !c.now().Before(e.expires) {
		c.lru.Remove(key)
		ok = false
	}
	if !ok {
		observability.ObserveCache("memory", "miss")
		return false, nil
	}
	if err := json.Unmarshal(e.value, dst); err != nil {
		observability.ObserveCache("memory", "error")
		return false, err
	}
	observability.ObserveCache("memory", "hit")
	return true, nil
}

func (c *Cache) Set(_ context.Context, key string, v any, ttlSec int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	e := entry{value: b}
	if ttlSec > 0 {
		e.expires = c.now().Add(time.Duration(ttlSec) * time.Second)
	}
	c.lru.Add(key, e)
	observability.ObserveCache("memory", "set")
	return nil
}

func (c *Cache) Del(_ context.Context, key string) error {
	c.lru.Remove(key)
	observability.ObserveCache("memory", "del")
	return nil
}
