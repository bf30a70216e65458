package domain

import (
	"context"
	"time"
)

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string, limit int, window time.Duration) error
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// MarketInfoCache holds recent getMarketInfo results.
type MarketInfoCache interface {
	Set(ctx context.Context, room Room, info MarketInfo) error
	Get(ctx context.Context, room Room, marketID int64) (MarketInfo, error)
	Invalidate(ctx context.Context, room Room, marketID int64) error
}

// EventBus provides pub/sub fan-out.
type EventBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
