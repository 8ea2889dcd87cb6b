// internal/lock/redis.go
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/valpere/PriceScrapexter/internal/utils"
)

// releaseScript deletes the key only while it still carries our token, so
// an expired lease never removes a lock taken over by someone else.
var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisConfig configures RedisLocker.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// RedisLocker is a Locker shared across processes. Leases expire after
// TTL so a crashed holder cannot block a source forever.
type RedisLocker struct {
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
	logger utils.Logger
}

// NewRedisLocker connects and pings the server.
func NewRedisLocker(ctx context.Context, config RedisConfig, logger utils.Logger) (*RedisLocker, error) {
	if config.Addr == "" {
		return nil, utils.NewError(utils.ErrCodeInvalidConfig, "redis address is required").Build()
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        config.Addr,
		Password:    config.Password,
		DB:          config.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisLockerFromClient(rdb, config.Prefix, config.TTL, logger), nil
}

// NewRedisLockerFromClient wraps an existing client.
func NewRedisLockerFromClient(rdb *goredis.Client, prefix string, ttl time.Duration, logger utils.Logger) *RedisLocker {
	if prefix == "" {
		prefix = "pricescrapexter:lock:"
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &RedisLocker{
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
		logger: logger.WithField("component", "redis_locker"),
	}
}

// Acquire sets the key with NX and a TTL.
func (r *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	full := r.prefix + key

	ok, err := r.rdb.SetNX(ctx, full, token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLocked
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, r.rdb, []string{full}, token).Err(); err != nil {
				r.logger.Warnf("failed to release lock %s: %v", key, err)
			}
		})
	}, nil
}

// Close closes the underlying client.
func (r *RedisLocker) Close() error {
	return r.rdb.Close()
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
