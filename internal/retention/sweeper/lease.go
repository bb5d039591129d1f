package sweeper

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const leaseKey = "custodian:retention:sweep"

// RedisLocker implements Locker with a Redis SET NX lease. The TTL bounds
// how long a crashed instance can block other sweepers.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	token  string
}

// NewRedisLocker creates a locker. token identifies this instance so an
// expired lease taken over by another instance is never released here.
func NewRedisLocker(client *redis.Client, token string, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl, token: token}
}

func (l *RedisLocker) Acquire(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, leaseKey, l.token, l.ttl).Result()
}

// Release deletes the lease only if this instance still holds it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *RedisLocker) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, l.client, []string{leaseKey}, l.token).Err()
}
