package cache

import (
	"context"
	"log/slog"
)

// Open connects to Redis when an address is configured and falls back to an
// in-memory store when it is empty or unreachable.
func Open(ctx context.Context, cfg RedisConfig, memoryCapacity int, log *slog.Logger) Store {
	if cfg.Addr == "" {
		log.Info("redis not configured, using in-memory cache")
		return NewMemoryStore(memoryCapacity)
	}

	store, err := NewRedisStore(ctx, cfg)
	if err != nil {
		log.Warn("redis unavailable, falling back to in-memory cache",
			slog.String("addr", cfg.Addr),
			slog.Any("err", err),
		)
		return NewMemoryStore(memoryCapacity)
	}

	log.Info("connected to redis", slog.String("addr", cfg.Addr), slog.Int("db", cfg.DB))
	return store
}
