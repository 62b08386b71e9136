// Package slotcache is a Redis read-through cache for free slot results.
// Cache failures degrade to direct computation, they never fail a request.
package slotcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/docktorek/docktorek-api/internal/appointment"
	"github.com/docktorek/docktorek-api/pkg/logging"
)

const defaultTTL = 5 * time.Minute

// Cache stores computed free slots keyed by doctor and date.
type Cache struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
	logger *logging.Logger
}

// New creates a cache with the given TTL. A non-positive TTL falls back to
// the default.
func New(client *redis.Client, ttl time.Duration, logger *logging.Logger) *Cache {
	if client == nil {
		panic("slotcache: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Cache{
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("docktorek.internal.slotcache"),
		logger: logger.WithComponent("slotcache"),
	}
}

// Get returns the cached slots for the doctor and date, if present.
func (c *Cache) Get(ctx context.Context, doctorID uuid.UUID, date appointment.Date) ([]appointment.Slot, bool) {
	ctx, span := c.tracer.Start(ctx, "slotcache.get")
	defer span.End()

	data, err := c.redis.Get(ctx, slotKey(doctorID, date)).Bytes()
	if err != nil {
		if err != redis.Nil {
			span.RecordError(err)
			c.logger.Warn("slot cache read failed", "error", err)
		}
		return nil, false
	}

	var slots []appointment.Slot
	if err := json.Unmarshal(data, &slots); err != nil {
		span.RecordError(err)
		c.logger.Warn("slot cache entry corrupt", "error", err)
		return nil, false
	}
	return slots, true
}

// Set stores the slots for the doctor and date.
func (c *Cache) Set(ctx context.Context, doctorID uuid.UUID, date appointment.Date, slots []appointment.Slot) {
	ctx, span := c.tracer.Start(ctx, "slotcache.set")
	defer span.End()

	data, err := json.Marshal(slots)
	if err != nil {
		span.RecordError(err)
		return
	}
	if err := c.redis.Set(ctx, slotKey(doctorID, date), data, c.ttl).Err(); err != nil {
		span.RecordError(err)
		c.logger.Warn("slot cache write failed", "error", err)
	}
}

// Invalidate drops the cached slots for the doctor and date. Bookings call
// this so a stale free list never outlives the mutation that changed it.
func (c *Cache) Invalidate(ctx context.Context, doctorID uuid.UUID, date appointment.Date) {
	ctx, span := c.tracer.Start(ctx, "slotcache.invalidate")
	defer span.End()

	if err := c.redis.Del(ctx, slotKey(doctorID, date)).Err(); err != nil {
		span.RecordError(err)
		c.logger.Warn("slot cache invalidation failed", "error", err)
	}
}

var _ appointment.SlotCache = (*Cache)(nil)

func slotKey(doctorID uuid.UUID, date appointment.Date) string {
	return fmt.Sprintf("slots:%s:%s", doctorID, date)
}
