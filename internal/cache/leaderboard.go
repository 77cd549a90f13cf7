package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oraclestake/arbiter/internal/service"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	leaderboardTTL = 30 * time.Second
	generationKey  = "arbiter:leaderboard:gen"
)

// LeaderboardCache caches ranked top-performer lists in Redis. Entries are
// keyed by a generation counter; invalidation bumps the generation instead
// of scanning for keys, and stale entries age out via TTL.
type LeaderboardCache struct {
	client *redis.Client
	logger *zap.Logger
}

func NewLeaderboardCache(client *redis.Client, logger *zap.Logger) *LeaderboardCache {
	return &LeaderboardCache{client: client, logger: logger}
}

func (c *LeaderboardCache) key(ctx context.Context, limit int) string {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if err != nil {
		gen = 0
	}
	return fmt.Sprintf("arbiter:leaderboard:%d:%d", gen, limit)
}

func (c *LeaderboardCache) Get(ctx context.Context, limit int) ([]service.RankedSolver, bool) {
	data, err := c.client.Get(ctx, c.key(ctx, limit)).Bytes()
	if err != nil {
		return nil, false
	}
	var ranked []service.RankedSolver
	if err := json.Unmarshal(data, &ranked); err != nil {
		c.logger.Warn("leaderboard cache decode failed", zap.Error(err))
		return nil, false
	}
	return ranked, true
}

func (c *LeaderboardCache) Set(ctx context.Context, limit int, ranked []service.RankedSolver) {
	data, err := json.Marshal(ranked)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.key(ctx, limit), data, leaderboardTTL).Err(); err != nil {
		c.logger.Warn("leaderboard cache set failed", zap.Error(err))
	}
}

func (c *LeaderboardCache) Invalidate(ctx context.Context) {
	if err := c.client.Incr(ctx, generationKey).Err(); err != nil {
		c.logger.Warn("leaderboard cache invalidate failed", zap.Error(err))
	}
}
