// Package badgerad is an embedded Cache for single-node deployments without Redis.
package badgerad

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"

	"freshlistings/internal/adapters/observability"
)

type Cache struct{ db *badger.DB }

// Open opens (or creates) a cache at dir. Empty dir keeps everything in memory.
func Open(dir string) (*Cache, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(dir)
	}
	db, err := badger.Open(opts.WithLogger(nil))
	if err != nil {
		return nil, err
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Get(_ context.Context, key string, dst any) (bool, error) {
	var raw []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		observability.ObserveCache("badger", "miss")
		return false, nil
	}
	if err != nil {
		observability.ObserveCache("badger", "error")
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		observability.ObserveCache("badger", "error")
		return false, err
	}
	observability.ObserveCache("badger", "hit")
	return true, nil
}

func (c *Cache) Set(_ context.Context, key string, v any, ttlSec int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	observability.ObserveCache("badger", "set")
	return c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), b)
		if ttlSec > 0 {
			e = e.WithTTL(time.Duration(ttlSec) * time.Second)
		}
		return txn.SetEntry(e)
	})
}

func (c *Cache) Del(_ context.Context, key string) error {
	observability.ObserveCache("badger", "del")
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

func (c *Cache) Close() error { return c.db.Close() }
