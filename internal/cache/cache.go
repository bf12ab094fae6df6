package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/DeafMist/hotel-radar/internal/logger"
)

// Observer receives hit/miss notifications per key namespace.
type Observer interface {
	ObserveCache(namespace string, hit bool)
}

// Cache wraps a Store so that backend failures never reach callers:
// errors are logged and reads degrade to misses.
type Cache struct {
	store    Store
	log      *slog.Logger
	observer Observer
}

// Option configures a Cache.
type Option func(*Cache)

// WithObserver reports hits and misses to o.
func WithObserver(o Observer) Option {
	return func(c *Cache) {
		c.observer = o
	}
}

// New wraps store. A nil logger discards output.
func New(store Store, log *slog.Logger, opts ...Option) *Cache {
	if log == nil {
		log = logger.Discard()
	}
	c := &Cache{store: store, log: log}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ping reports whether the backing store is reachable. Stores without a
// connection always are.
func (c *Cache) Ping(ctx context.Context) error {
	if p, ok := c.store.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Get returns the raw value and whether it was found.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		c.observe(key, true)
		return data, true
	case errors.Is(err, ErrMiss):
	default:
		c.log.Warn("cache get failed", slog.String("key", key), slog.Any("err", err))
	}
	c.observe(key, false)
	return nil, false
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := c.store.Set(ctx, key, value, ttl); err != nil {
		c.log.Warn("cache set failed", slog.String("key", key), slog.Any("err", err))
	}
}

func (c *Cache) Delete(ctx context.Context, key string) {
	if err := c.store.Delete(ctx, key); err != nil {
		c.log.Warn("cache delete failed", slog.String("key", key), slog.Any("err", err))
	}
}

// GetJSON decodes a cached value into dst. Undecodable entries are deleted and
// reported as misses.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) bool {
	data, ok := c.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		c.log.Warn("cache entry corrupted", slog.String("key", key), slog.Any("err", err))
		c.Delete(ctx, key)
		return false
	}
	return true
}

func (c *Cache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		c.log.Warn("cache encode failed", slog.String("key", key), slog.Any("err", err))
		return
	}
	c.Set(ctx, key, data, ttl)
}

func (c *Cache) Close() error {
	return c.store.Close()
}

func (c *Cache) observe(key string, hit bool) {
	if c.observer == nil {
		return
	}
	ns, _, found := strings.Cut(key, ":")
	if !found {
		ns = "other"
	}
	c.observer.ObserveCache(ns, hit)
}
