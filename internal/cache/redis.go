package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Domenick1991/studiobooking/config"
	"github.com/Domenick1991/studiobooking/internal/domain"
)

// releaseScript deletes the lock only if it still carries the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript resets the lock ttl only if it still carries the caller's token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

type RedisCache struct {
	client     redis.Cmdable
	catalogTTL time.Duration
	newToken   func() string
}

func NewRedisCache(cfg config.RedisConfig, catalogTTL time.Duration) *RedisCache {
	return NewRedisCacheWithClient(
		redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		catalogTTL,
	)
}

func NewRedisCacheWithClient(client redis.Cmdable, catalogTTL time.Duration) *RedisCache {
	return &RedisCache{client: client, catalogTTL: catalogTTL, newToken: uuid.NewString}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// GetServices returns the cached active catalogue, or nil on a cache miss.
func (c *RedisCache) GetServices(ctx context.Context) ([]domain.Service, error) {
	data, err := c.client.Get(ctx, servicesKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var services []domain.Service
	if err := json.Unmarshal(data, &services); err != nil {
		return nil, err
	}
	return services, nil
}

func (c *RedisCache) SetServices(ctx context.Context, services []domain.Service) error {
	payload, err := json.Marshal(services)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, servicesKey(), payload, c.catalogTTL).Err()
}

func (c *RedisCache) InvalidateServices(ctx context.Context) error {
	return c.client.Del(ctx, servicesKey()).Err()
}

// AcquireBookingLock takes the per-booking mutation lock. The returned token
// must be passed to ReleaseBookingLock.
func (c *RedisCache) AcquireBookingLock(ctx context.Context, bookingID string, ttl time.Duration) (string, bool, error) {
	token := c.newToken()
	ok, err := c.client.SetNX(ctx, bookingLockKey(bookingID), token, ttl).Result()
	if err != nil || !ok {
		return "", false, err
	}
	return token, true, nil
}

func (c *RedisCache) ReleaseBookingLock(ctx context.Context, bookingID, token string) error {
	return releaseScript.Run(ctx, c.client, []string{bookingLockKey(bookingID)}, token).Err()
}

// ExtendBookingLock reports false when the lock expired or changed owner.
func (c *RedisCache) ExtendBookingLock(ctx context.Context, bookingID, token string, ttl time.Duration) (bool, error) {
	n, err := extendScript.Run(ctx, c.client, []string{bookingLockKey(bookingID)}, token, ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func servicesKey() string {
	return "cache:services:active"
}

func bookingLockKey(bookingID string) string {
	return fmt.Sprintf("lock:booking:%s", bookingID)
}
