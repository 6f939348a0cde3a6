package advisor

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"fincoach/internal/shared"
)

// Cooldown remembers that the LLM quota was exhausted so subsequent
// allocations skip straight to the formula fallback instead of burning more
// failed calls. The flag only needs to hold for its TTL; losing it on restart
// is acceptable.
type Cooldown interface {
	Active(ctx context.Context) bool
	Trip(ctx context.Context, ttl time.Duration)
}

type memoryCooldown struct {
	mu    sync.Mutex
	until time.Time
	clock shared.Clock
}

// NewMemoryCooldown is the in-process default, used when Redis is not
// configured.
func NewMemoryCooldown(clock shared.Clock) Cooldown {
	return &memoryCooldown{clock: clock}
}

func (c *memoryCooldown) Active(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clock.Now().Before(c.until)
}

func (c *memoryCooldown) Trip(ctx context.Context, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.until = c.clock.Now().Add(ttl)
}

const redisCooldownKey = "advisor:quota_cooldown"

type redisCooldown struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisCooldown shares the cooldown across replicas. Redis errors degrade
// to "not in cooldown"; the worst case is one extra failed LLM call.
func NewRedisCooldown(client *redis.Client, logger *zap.Logger) Cooldown {
	return &redisCooldown{client: client, logger: logger}
}

func (c *redisCooldown) Active(ctx context.Context) bool {
	n, err := c.client.Exists(ctx, redisCooldownKey).Result()
	if err != nil {
		c.logger.Warn("cooldown check failed", zap.Error(err))
		return false
	}
	return n > 0
}

func (c *redisCooldown) Trip(ctx context.Context, ttl time.Duration) {
	if err := c.client.Set(ctx, redisCooldownKey, "1", ttl).Err(); err != nil {
		c.logger.Warn("cooldown trip failed", zap.Error(err))
	}
}
