package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/mkarras/go-entity-store/internal/config"
)

// Coordinator is the only cache surface the repository layer talks to.
// Every operation is best-effort: a backend failure turns reads into
// misses and writes/invalidations into no-ops, never into an error for
// the caller. Failures are counted and logged through a rate limiter so
// an unreachable backend cannot flood the logs.
type Coordinator struct {
	store   Store
	prefix  string
	enabled bool

	entityTTL    time.Duration
	listTTL      time.Duration
	aggregateTTL time.Duration

	log       zerolog.Logger
	warnLimit *rate.Limiter
}

// NewCoordinator wraps store with the configured key prefix and TTL
// tiers. A nil store or a disabled config yields a coordinator whose
// reads always miss and whose writes are no-ops.
func NewCoordinator(store Store, cfg config.CacheConfig, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		store:        store,
		prefix:       cfg.KeyPrefix,
		enabled:      cfg.Enabled && store != nil,
		entityTTL:    cfg.EntityTTL,
		listTTL:      cfg.ListTTL,
		aggregateTTL: cfg.AggregateTTL,
		log:          log,
		warnLimit:    rate.NewLimiter(rate.Every(10*time.Second), 3),
	}
}

// NewFromConfig builds the production coordinator: Redis when an address
// is configured, the in-process store otherwise, a disabled coordinator
// when caching is switched off entirely.
func NewFromConfig(cc config.CacheConfig, rc config.RedisConfig, log zerolog.Logger) (*Coordinator, error) {
	if !cc.Enabled {
		return NewCoordinator(nil, cc, log), nil
	}
	client, err := NewRedisClient(rc)
	if err != nil {
		return nil, err
	}
	var store Store
	if client != nil {
		store = NewRedisStore(client)
		log.Info().Str("addr", rc.Addr).Msg("cache: redis backend")
	} else {
		store = NewMemoryStore()
		log.Info().Msg("cache: in-process backend (redis not configured)")
	}
	return NewCoordinator(store, cc, log), nil
}

// Enabled reports whether reads can ever hit.
func (c *Coordinator) Enabled() bool { return c.enabled }

// EntityTTL is the tier for single-record reads.
func (c *Coordinator) EntityTTL() time.Duration { return c.entityTTL }

// ListTTL is the tier for paginated list reads.
func (c *Coordinator) ListTTL() time.Duration { return c.listTTL }

// AggregateTTL is the tier for stats and other derived collections.
func (c *Coordinator) AggregateTTL() time.Duration { return c.aggregateTTL }

// Key builds a namespaced cache key: prefix::part::part::...
// Equal inputs always produce equal keys; segment order matters.
func (c *Coordinator) Key(parts ...string) string {
	return JoinKey(append([]string{c.prefix}, parts...)...)
}

// Get returns the cached value and true on a hit. Misses and backend
// failures both report false.
func (c *Coordinator) Get(ctx context.Context, key string) ([]byte, bool) {
	if !c.enabled {
		return nil, false
	}
	val, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		cacheHits.WithLabelValues(keyKind(key)).Inc()
		return val, true
	case errors.Is(err, ErrMiss):
		cacheMisses.WithLabelValues(keyKind(key)).Inc()
		return nil, false
	default:
		c.fail("get", key, err)
		return nil, false
	}
}

// SetWithTTL stores val under key for ttl. Non-positive TTLs are
// dropped rather than stored forever.
func (c *Coordinator) SetWithTTL(ctx context.Context, key string, val []byte, ttl time.Duration) {
	if !c.enabled || ttl <= 0 {
		return
	}
	if err := c.store.Set(ctx, key, val, ttl); err != nil {
		c.fail("set", key, err)
	}
}

// Delete removes specific keys.
func (c *Coordinator) Delete(ctx context.Context, keys ...string) {
	if !c.enabled || len(keys) == 0 {
		return
	}
	if err := c.store.Del(ctx, keys...); err != nil {
		c.fail("delete", strings.Join(keys, ","), err)
		return
	}
	cacheInvalidations.Add(float64(len(keys)))
}

// DeleteByPattern removes every key matching the glob pattern and
// reports how many were dropped (0 on failure).
func (c *Coordinator) DeleteByPattern(ctx context.Context, pattern string) int {
	if !c.enabled {
		return 0
	}
	n, err := c.store.DelPattern(ctx, pattern)
	if err != nil {
		c.fail("delete_pattern", pattern, err)
	}
	if n > 0 {
		cacheInvalidations.Add(float64(n))
	}
	return n
}

// GetJSON is Get plus decoding into dest. A corrupt entry is treated as
// a miss and evicted so it cannot poison later reads.
func (c *Coordinator) GetJSON(ctx context.Context, key string, dest any) bool {
	data, ok := c.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		c.fail("decode", key, err)
		c.Delete(ctx, key)
		return false
	}
	return true
}

// SetJSON is SetWithTTL plus encoding.
func (c *Coordinator) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) {
	if !c.enabled || ttl <= 0 {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		c.fail("encode", key, err)
		return
	}
	c.SetWithTTL(ctx, key, data, ttl)
}

// Close releases the backend.
func (c *Coordinator) Close() error {
	if c.store == nil {
		return nil
	}
	return c.store.Close()
}

func (c *Coordinator) fail(op, subject string, err error) {
	cacheErrors.WithLabelValues(op).Inc()
	if c.warnLimit.Allow() {
		c.log.Warn().Err(err).Str("op", op).Str("key", subject).Msg("cache backend failure, degraded to miss")
	}
}

// keyKind extracts the key-kind segment (id/list/agg) used as the
// hit/miss metric label. Keys are prefix::entity::kind::...
func keyKind(key string) string {
	segs := strings.Split(key, KeySeparator)
	if len(segs) >= 3 {
		return segs[2]
	}
	return "other"
}
