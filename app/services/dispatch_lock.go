package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another worker owns the lock
var ErrLockHeld = errors.New("lock is held by another worker")

// DispatchLocker serializes dispatch runs of the same communication across processes
type DispatchLocker interface {
	// Acquire takes the named lock for ttl and keeps extending it until the
	// returned release func is called. Release is safe to call more than once,
	// even after the lock expired.
	Acquire(ctx context.Context, name string, ttl time.Duration) (release func(), err error)
}

// releaseScript deletes the key only when it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the key only when it still holds our token
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisDispatchLocker implements DispatchLocker with SET NX and a token-checked release
type RedisDispatchLocker struct {
	rc     *redis.Client
	prefix string
}

func NewRedisDispatchLocker(rc *redis.Client, prefix string) *RedisDispatchLocker {
	return &RedisDispatchLocker{rc: rc, prefix: prefix}
}

func (l *RedisDispatchLocker) key(name string) string {
	return fmt.Sprintf("%slock:%s", l.prefix, name)
}

func (l *RedisDispatchLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (func(), error) {
	key := l.key(name)
	token := uuid.NewString()

	ok, err := l.rc.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(key, token, ttl, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = releaseScript.Run(ctx, l.rc, []string{key}, token).Err()
		})
	}, nil
}

// keepAlive extends the lock every third of its ttl until stop is closed or
// the lock is found to belong to someone else.
func (l *RedisDispatchLocker) keepAlive(key, token string, ttl time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := ttl / 3
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			extended, err := renewScript.Run(ctx, l.rc, []string{key}, token, ttl.Milliseconds()).Int()
			cancel()
			if err == nil && extended == 0 {
				return
			}
		}
	}
}

// NoopDispatchLocker is used when no cache is configured
type NoopDispatchLocker struct{}

func (NoopDispatchLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (func(), error) {
	return func() {}, nil
}
