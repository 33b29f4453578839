package totals

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"studytracker/internal/tracker"
)

// Cache holds one DailyTotal per owner and date. A zero total with zero
// sessions is a valid cached value meaning "no study that day".
//
// Put overwrites and is reserved for refreshes after a committed change.
// PutIfAbsent never replaces an entry, so a report that read the store
// before a refresh cannot clobber the newer value.
type Cache interface {
	Get(ctx context.Context, owner tracker.Owner, d tracker.Date) (tracker.DailyTotal, bool, error)
	Put(ctx context.Context, owner tracker.Owner, t tracker.DailyTotal) error
	PutIfAbsent(ctx context.Context, owner tracker.Owner, t tracker.DailyTotal) error
}

// MemoryCache is a map-backed Cache for dev and tests.
type MemoryCache struct {
	mu    sync.Mutex
	items map[string]tracker.DailyTotal
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]tracker.DailyTotal)}
}

func memKey(owner tracker.Owner, d tracker.Date) string {
	return owner.String() + "@" + d.String()
}

func (c *MemoryCache) Get(_ context.Context, owner tracker.Owner, d tracker.Date) (tracker.DailyTotal, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.items[memKey(owner, d)]
	return t, ok, nil
}

func (c *MemoryCache) Put(_ context.Context, owner tracker.Owner, t tracker.DailyTotal) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[memKey(owner, t.Date)] = t
	return nil
}

func (c *MemoryCache) PutIfAbsent(_ context.Context, owner tracker.Owner, t tracker.DailyTotal) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := memKey(owner, t.Date)
	if _, ok := c.items[key]; !ok {
		c.items[key] = t
	}
	return nil
}

// RedisCache stores one hash per owner, field = date, value = "seconds:sessions".
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache creates a cache. Each owner hash expires ttl after its last write.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisCache{client: client, prefix: "studytracker:totals:", ttl: ttl}
}

func (c *RedisCache) key(owner tracker.Owner) string {
	return c.prefix + owner.String()
}

func (c *RedisCache) Get(ctx context.Context, owner tracker.Owner, d tracker.Date) (tracker.DailyTotal, bool, error) {
	raw, err := c.client.HGet(ctx, c.key(owner), d.String()).Result()
	if err == redis.Nil {
		return tracker.DailyTotal{}, false, nil
	}
	if err != nil {
		return tracker.DailyTotal{}, false, err
	}
	t, err := decodeTotal(d, raw)
	if err != nil {
		return tracker.DailyTotal{}, false, err
	}
	return t, true, nil
}

func (c *RedisCache) Put(ctx context.Context, owner tracker.Owner, t tracker.DailyTotal) error {
	key := c.key(owner)
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key, t.Date.String(), encodeTotal(t))
	pipe.Expire(ctx, key, c.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// PutIfAbsent uses HSETNX. The expiry is only set when the hash has none yet.
func (c *RedisCache) PutIfAbsent(ctx context.Context, owner tracker.Owner, t tracker.DailyTotal) error {
	key := c.key(owner)
	pipe := c.client.TxPipeline()
	pipe.HSetNX(ctx, key, t.Date.String(), encodeTotal(t))
	pipe.ExpireNX(ctx, key, c.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func encodeTotal(t tracker.DailyTotal) string {
	return strconv.FormatInt(t.Total.Seconds(), 10) + ":" + strconv.Itoa(t.Sessions)
}

func decodeTotal(d tracker.Date, raw string) (tracker.DailyTotal, error) {
	secs, sessions, ok := strings.Cut(raw, ":")
	if !ok {
		return tracker.DailyTotal{}, fmt.Errorf("malformed cached total %q", raw)
	}
	s, err := strconv.ParseInt(secs, 10, 64)
	if err != nil {
		return tracker.DailyTotal{}, fmt.Errorf("malformed cached total %q: %w", raw, err)
	}
	n, err := strconv.Atoi(sessions)
	if err != nil {
		return tracker.DailyTotal{}, fmt.Errorf("malformed cached total %q: %w", raw, err)
	}
	return tracker.DailyTotal{Date: d, Total: tracker.Span(time.Duration(s) * time.Second), Sessions: n}, nil
}
