package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const lockKeyPrefix = "storefront:lock:"

var ErrLockNotConfigured = errors.New("lock client not configured")

// releaseScript deletes the key only while it still holds our token, so a
// replica whose lease expired cannot release the next holder's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out short leases on named jobs, such as the orphan sweep, so
// only one replica runs them at a time.
type Locker struct {
	client *redis.Client
}

// NewLocker returns nil without a client; callers treat that as "run unlocked".
func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{client: client}
}

func lockKey(name string) string {
	return lockKeyPrefix + name
}

// TryLock takes the lease for ttl. ok is false when another holder has it.
func (l *Locker) TryLock(ctx context.Context, name string, ttl time.Duration) (token string, ok bool, err error) {
	if l == nil || l.client == nil {
		return "", false, ErrLockNotConfigured
	}
	if name == "" {
		return "", false, errors.New("lock name is empty")
	}
	if ttl <= 0 {
		return "", false, errors.New("lock ttl must be positive")
	}

	token = uuid.NewString()
	ok, err = l.client.SetNX(ctx, lockKey(name), token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (l *Locker) Release(ctx context.Context, name, token string) error {
	if l == nil || l.client == nil || name == "" || token == "" {
		return nil
	}
	return releaseScript.Run(ctx, l.client, []string{lockKey(name)}, token).Err()
}
