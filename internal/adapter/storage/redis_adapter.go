package storage

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/stockledger/internal/core/domain"
)

const (
	idempotencyKeyTTL = 24 * time.Hour
	pendingMarker     = "pending"
)

// releaseScript deletes a reservation only while it is still pending, so a
// late failure path cannot free the key of a movement that already committed.
var releaseScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

type RedisAdapter struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client, ttl: idempotencyKeyTTL}
}

// OpenRedis connects and pings the server.
func OpenRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, domain.NewStorageError("ping redis", err)
	}
	return client, nil
}

func (r *RedisAdapter) Reserve(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, pendingMarker, r.ttl).Result()
	if err != nil {
		return false, domain.NewStorageError("reserve request", err)
	}

	return ok, nil
}

// Complete records the transaction that satisfied the request. The key keeps
// its original expiry.
func (r *RedisAdapter) Complete(ctx context.Context, key string, transactionID int64) error {
	err := r.client.SetArgs(ctx, key, strconv.FormatInt(transactionID, 10), redis.SetArgs{
		Mode:    "XX",
		KeepTTL: true,
	}).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return domain.NewStorageError("complete request", err)
	}
	return nil
}

func (r *RedisAdapter) Release(ctx context.Context, key string) error {
	if err := releaseScript.Run(ctx, r.client, []string{key}, pendingMarker).Err(); err != nil {
		return domain.NewStorageError("release request", err)
	}
	return nil
}
