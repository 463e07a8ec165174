package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"auctionhouse/internal/logger"
	"auctionhouse/internal/models"
)

const statsKey = "auction:stats"

// StatsCache keeps the auction counters in Redis for a short TTL so the
// stats endpoint doesn't hammer the counts queries.
type StatsCache struct {
	Client *redis.Client
	TTL    time.Duration
	Logger *logger.Logger
}

func NewStatsCache(client *redis.Client, ttl time.Duration, log *logger.Logger) *StatsCache {
	return &StatsCache{Client: client, TTL: ttl, Logger: log}
}

func (c *StatsCache) Get(ctx context.Context) (*models.AuctionStats, bool) {
	val, err := c.Client.Get(ctx, statsKey).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.Logger.Warn("REDIS", fmt.Sprintf("Stats cache read failed: %v", err))
		return nil, false
	}

	var stats models.AuctionStats
	if err := json.Unmarshal([]byte(val), &stats); err != nil {
		c.Logger.Warn("REDIS", fmt.Sprintf("Stats cache entry corrupt, ignoring: %v", err))
		return nil, false
	}
	return &stats, true
}

func (c *StatsCache) Set(ctx context.Context, stats *models.AuctionStats) {
	payload, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := c.Client.Set(ctx, statsKey, payload, c.TTL).Err(); err != nil {
		c.Logger.Warn("REDIS", fmt.Sprintf("Stats cache write failed: %v", err))
	}
}
