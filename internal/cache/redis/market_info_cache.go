package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vmarket/vmarket/internal/domain"
)

// MarketInfoCache implements domain.MarketInfoCache. Entries are hashes
// with a JSON "data" field:
//
//	marketinfo:{room}:{id}
type MarketInfoCache struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ domain.MarketInfoCache = (*MarketInfoCache)(nil)

// NewMarketInfoCache creates a cache whose entries live for ttl.
func NewMarketInfoCache(c *Client, ttl time.Duration) *MarketInfoCache {
	return &MarketInfoCache{rdb: c.Underlying(), ttl: ttl}
}

func marketInfoKey(room domain.Room, id int64) string {
	return "marketinfo:" + string(room) + ":" + strconv.FormatInt(id, 10)
}

// Set stores info for room.
func (mc *MarketInfoCache) Set(ctx context.Context, room domain.Room, info domain.MarketInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("redis: marshal market info %s/%d: %w", room, info.MarketID, err)
	}

	key := marketInfoKey(room, info.MarketID)
	pipe := mc.rdb.TxPipeline()
	pipe.HSet(ctx, key, "data", data)
	pipe.Expire(ctx, key, mc.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set market info %s/%d: %w", room, info.MarketID, err)
	}
	return nil
}

// Get returns domain.ErrNotFound on a miss.
func (mc *MarketInfoCache) Get(ctx context.Context, room domain.Room, marketID int64) (domain.MarketInfo, error) {
	data, err := mc.rdb.HGet(ctx, marketInfoKey(room, marketID), "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.MarketInfo{}, domain.ErrNotFound
		}
		return domain.MarketInfo{}, fmt.Errorf("redis: get market info %s/%d: %w", room, marketID, err)
	}

	var info domain.MarketInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return domain.MarketInfo{}, fmt.Errorf("redis: unmarshal market info %s/%d: %w", room, marketID, err)
	}
	return info, nil
}

// Invalidate drops a cached entry.
func (mc *MarketInfoCache) Invalidate(ctx context.Context, room domain.Room, marketID int64) error {
	if err := mc.rdb.Del(ctx, marketInfoKey(room, marketID)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate market info %s/%d: %w", room, marketID, err)
	}
	return nil
}
