package transaction

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// DefaultDuplicateWindow is how long an identical (user, merchant, amount)
// tuple is treated as an accidental resubmission.
const DefaultDuplicateWindow = 5 * time.Minute

// DuplicateGuard flags identical requests submitted within the window.
type DuplicateGuard interface {
	// CheckAndRegister returns true when the tuple was already registered
	// within the window; otherwise it registers the tuple and returns false.
	CheckAndRegister(ctx context.Context, userID, merchantID uuid.UUID, amount decimal.Decimal) (bool, error)
}

func duplicateKey(userID, merchantID uuid.UUID, amount decimal.Decimal) string {
	return fmt.Sprintf("dup:%s:%s:%s", userID, merchantID, amount.StringFixed(2))
}

// RedisGuard implements the guard on Redis so the window is shared across
// API instances.
type RedisGuard struct {
	client *redis.Client
	window time.Duration
}

// NewRedisGuard creates a Redis-backed duplicate guard.
func NewRedisGuard(client *redis.Client, window time.Duration) *RedisGuard {
	if window <= 0 {
		window = DefaultDuplicateWindow
	}
	return &RedisGuard{client: client, window: window}
}

func (g *RedisGuard) CheckAndRegister(ctx context.Context, userID, merchantID uuid.UUID, amount decimal.Decimal) (bool, error) {
	key := duplicateKey(userID, merchantID, amount)

	set, err := g.client.SetNX(ctx, key, 1, g.window).Result()
	if err != nil {
		// The guard protects against accidental double-submit, not fraud;
		// on a Redis outage we let the request through rather than block
		// all checkouts.
		log.Warn().Err(err).Msg("Duplicate guard unavailable, allowing request")
		return false, nil
	}

	return !set, nil
}

// MemoryGuard is an in-process window used when Redis is not configured
// (single-instance deployments and tests).
type MemoryGuard struct {
	mu      sync.Mutex
	entries map[string]time.Time
	window  time.Duration
	now     func() time.Time
}

// NewMemoryGuard creates an in-memory duplicate guard.
func NewMemoryGuard(window time.Duration) *MemoryGuard {
	if window <= 0 {
		window = DefaultDuplicateWindow
	}
	return &MemoryGuard{
		entries: make(map[string]time.Time),
		window:  window,
		now:     time.Now,
	}
}

func (g *MemoryGuard) CheckAndRegister(ctx context.Context, userID, merchantID uuid.UUID, amount decimal.Decimal) (bool, error) {
	key := duplicateKey(userID, merchantID, amount)
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	// Drop expired records opportunistically; the map stays small because
	// the window is short.
	for k, at := range g.entries {
		if now.Sub(at) > g.window {
			delete(g.entries, k)
		}
	}

	if at, ok := g.entries[key]; ok && now.Sub(at) <= g.window {
		return true, nil
	}

	g.entries[key] = now
	return false, nil
}
