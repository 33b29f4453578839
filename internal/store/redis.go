package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions selects the Redis server backing the queue, totals cache and
// rate limiter.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// Redis holds the client shared by every Redis-backed component.
type Redis struct {
	Client *redis.Client
}

// NewRedis builds a client without dialing. Reads wait longer than the
// queue's 5s BRPOP so an idle consumer is not reported as a timeout.
func NewRedis(opts RedisOptions) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  6 * time.Second,
		WriteTimeout: time.Second,
	})
	return &Redis{Client: client}
}

// Healthy reports whether a PING succeeds. A nil receiver is unhealthy.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	return r.Client.Ping(ctx).Err() == nil
}

func (r *Redis) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}
