package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock key only while the caller still owns it.
// A holder whose lease expired must not clobber a lock someone else has
// since acquired.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`)

// Locker grants time-bounded exclusive ownership of named keys via Redis
// SET NX. There is no renewal: pick a TTL longer than the critical section.
type Locker struct {
	R *redis.Client
}

// Acquire returns a handle when the lock was taken, or (nil, nil) when it
// is held elsewhere. Callers must treat nil as "could not acquire" and fail
// their operation; never proceed without the lock.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	token := uuid.NewString()
	full := fmt.Sprintf(KeyLock, key)
	ok, err := l.R.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", full, err)
	}
	if !ok {
		return nil, nil
	}
	return &Lock{r: l.R, key: full, token: token}, nil
}

type Lock struct {
	r     *redis.Client
	key   string
	token string
}

// Release drops the lock via compare-and-delete. Returns false when the
// lease had already expired and the key is gone or owned by someone else;
// that is not an error for the caller, only a sign the TTL was too short.
func (l *Lock) Release(ctx context.Context) (bool, error) {
	n, err := releaseScript.Run(ctx, l.r, []string{l.key}, l.token).Int()
	if err != nil {
		return false, fmt.Errorf("release %s: %w", l.key, err)
	}
	return n == 1, nil
}
