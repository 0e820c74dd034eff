package bookings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/spa-booking/pkg/logging"
)

const defaultSlotCacheTTL = 5 * time.Minute

// SlotCache keeps booked-slot query results in Redis. It is a read-through cache only:
// conflict checks always go to the repository. Redis errors are logged and treated as misses.
//
// Entries are keyed by a per-staff generation. Invalidate bumps the generation, so a fill
// that read the repository before a write lands under a key no reader will ask for.
type SlotCache struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewSlotCache returns nil when client is nil so callers can treat the cache as optional.
func NewSlotCache(client *redis.Client, ttl time.Duration, logger *logging.Logger) *SlotCache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = defaultSlotCacheTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SlotCache{redis: client, ttl: ttl, logger: logger}
}

func slotGenerationKey(staffID string) string {
	return fmt.Sprintf("booked_slots_gen:%s", staffID)
}

func slotCacheKey(staffID, date string, gen int64) string {
	if date == "" {
		date = "all"
	}
	return fmt.Sprintf("booked_slots:%s:%s:v%d", staffID, date, gen)
}

// Generation returns the current cache generation for staffID. ok is false when the cache
// is disabled or Redis cannot be read, in which case callers skip Get and Set.
func (c *SlotCache) Generation(ctx context.Context, staffID string) (gen int64, ok bool) {
	if c == nil {
		return 0, false
	}
	gen, err := c.redis.Get(ctx, slotGenerationKey(staffID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, true
		}
		c.logger.Warn("slot cache generation read failed", "staff_id", staffID, "error", err)
		return 0, false
	}
	return gen, true
}

// Get returns the cached slots and true on a hit.
func (c *SlotCache) Get(ctx context.Context, staffID, date string, gen int64) ([]Slot, bool) {
	if c == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, slotCacheKey(staffID, date, gen)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("slot cache read failed", "staff_id", staffID, "date", date, "error", err)
		}
		return nil, false
	}
	var slots []Slot
	if err := json.Unmarshal(data, &slots); err != nil {
		c.logger.Warn("slot cache entry corrupt", "staff_id", staffID, "date", date, "error", err)
		return nil, false
	}
	return slots, true
}

// Set stores slots under gen, which must be the generation read before the repository query.
func (c *SlotCache) Set(ctx context.Context, staffID, date string, gen int64, slots []Slot) {
	if c == nil {
		return
	}
	if slots == nil {
		slots = []Slot{}
	}
	data, err := json.Marshal(slots)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, slotCacheKey(staffID, date, gen), data, c.ttl).Err(); err != nil {
		c.logger.Warn("slot cache write failed", "staff_id", staffID, "date", date, "error", err)
	}
}

// Invalidate bumps the generation for staffID, retiring its per-date and all-dates entries.
func (c *SlotCache) Invalidate(ctx context.Context, staffID, date string) {
	if c == nil || staffID == "" {
		return
	}
	if err := c.redis.Incr(ctx, slotGenerationKey(staffID)).Err(); err != nil {
		c.logger.Warn("slot cache invalidate failed", "staff_id", staffID, "date", date, "error", err)
	}
}
