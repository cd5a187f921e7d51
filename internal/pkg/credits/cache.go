package credits

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/resumeforge/ResumeForge/internal/pkg/cache"
)

const balanceCacheTTL = 30 * time.Second

// redisBalanceCache is a best-effort read-through cache for balances. The
// ledger invalidates the key after every committed mutation, so the TTL only
// bounds staleness against writes from outside this process.
type redisBalanceCache struct {
	log *logrus.Entry
}

// NewRedisBalanceCache creates a BalanceCache on the shared Redis client.
func NewRedisBalanceCache() BalanceCache {
	return &redisBalanceCache{log: logrus.WithField("component", "credits-cache")}
}

func balanceKey(userID uint) string {
	return fmt.Sprintf("credits:balance:%d", userID)
}

func (c *redisBalanceCache) GetBalance(ctx context.Context, userID uint) (int64, bool) {
	_ = ctx
	balance, err := cache.GetInt64(balanceKey(userID))
	if err != nil {
		if err != redis.Nil {
			c.log.WithError(err).Debug("balance cache read failed")
		}
		return 0, false
	}
	return balance, true
}

func (c *redisBalanceCache) SetBalance(ctx context.Context, userID uint, balance int64) {
	_ = ctx
	if err := cache.Set(balanceKey(userID), balance, balanceCacheTTL); err != nil {
		c.log.WithError(err).Debug("balance cache write failed")
	}
}

func (c *redisBalanceCache) Invalidate(ctx context.Context, userID uint) {
	_ = ctx
	if err := cache.Delete(balanceKey(userID)); err != nil {
		c.log.WithError(err).Debug("balance cache invalidation failed")
	}
}
