// Redis-backed cache for the risk controller's daily baseline. When Redis
// is unavailable the cache falls back to an in-memory map so risk checks
// keep working without interruption.
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// BaselineKeyPrefix is the prefix for daily baseline keys
	// Format: risk:baseline:{symbol}:{date}
	BaselineKeyPrefix = "risk:baseline"

	// BaselineTTL keeps baselines for two days; a baseline is only ever
	// read on the day it was computed.
	BaselineTTL = 48 * time.Hour
)

// DailyBaseline is the cached starting balance for one trading day
type DailyBaseline struct {
	Date     string    `json:"date"` // YYYY-MM-DD
	Balance  float64   `json:"balance"`
	Source   string    `json:"source"` // starting_balance, previous_ending or starting_capital
	CachedAt time.Time `json:"cached_at"`
}

// RedisBaselineCache stores daily baselines in Redis with an in-memory
// fallback when Redis is unavailable.
type RedisBaselineCache struct {
	client         *redis.Client
	inMemoryCache  map[string]*DailyBaseline
	cacheMu        sync.RWMutex
	redisAvailable atomic.Bool
}

// NewRedisBaselineCache creates the cache. If client is nil, the cache
// operates in memory-only mode.
func NewRedisBaselineCache(client *redis.Client) *RedisBaselineCache {
	cache := &RedisBaselineCache{
		client:        client,
		inMemoryCache: make(map[string]*DailyBaseline),
	}

	if client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		cache.redisAvailable.Store(client.Ping(ctx).Err() == nil)
	} else {
		cache.redisAvailable.Store(false)
	}

	return cache
}

func baselineKey(symbol, date string) string {
	return fmt.Sprintf("%s:%s:%s", BaselineKeyPrefix, symbol, date)
}

// Get returns the cached baseline for a date, or nil when absent
func (c *RedisBaselineCache) Get(ctx context.Context, symbol, date string) (*DailyBaseline, error) {
	if c.redisAvailable.Load() {
		data, err := c.client.Get(ctx, baselineKey(symbol, date)).Bytes()
		if err == redis.Nil {
			return nil, nil
		}
		if err != nil {
			c.redisAvailable.Store(false)
			return c.getFromMemory(symbol, date), nil
		}
		baseline := &DailyBaseline{}
		if err := json.Unmarshal(data, baseline); err != nil {
			return nil, fmt.Errorf("corrupt baseline entry: %w", err)
		}
		return baseline, nil
	}

	return c.getFromMemory(symbol, date), nil
}

// Set stores the baseline for a date
func (c *RedisBaselineCache) Set(ctx context.Context, symbol string, baseline *DailyBaseline) error {
	baseline.CachedAt = time.Now().UTC()

	c.cacheMu.Lock()
	c.inMemoryCache[baselineKey(symbol, baseline.Date)] = baseline
	c.cacheMu.Unlock()

	if !c.redisAvailable.Load() {
		return nil
	}

	data, err := json.Marshal(baseline)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, baselineKey(symbol, baseline.Date), data, BaselineTTL).Err(); err != nil {
		c.redisAvailable.Store(false)
	}
	return nil
}

func (c *RedisBaselineCache) getFromMemory(symbol, date string) *DailyBaseline {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()
	return c.inMemoryCache[baselineKey(symbol, date)]
}
