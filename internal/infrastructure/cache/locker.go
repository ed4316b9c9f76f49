package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TicketLocker serializes mutation per ticket key. Acquire blocks until the
// lock is held or the context is done; the returned release function must be
// called exactly once.
type TicketLocker interface {
	Acquire(ctx context.Context, ticketKey string) (release func(), err error)
}

// RedisLocker implements TicketLocker over Redis SET NX with a TTL, so a
// crashed holder cannot wedge a ticket forever. Safe across processes.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLocker creates a Redis-backed ticket locker
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{client: client, ttl: ttl}
}

// Acquire polls SET NX until the lock is obtained or ctx is done.
func (l *RedisLocker) Acquire(ctx context.Context, ticketKey string) (func(), error) {
	lockKey := "lock:ticket:" + ticketKey
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire ticket lock: %w", err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}

	release := func() {
		// Only delete our own token; an expired-and-reacquired lock
		// belongs to someone else.
		const script = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`
		l.client.Eval(context.Background(), script, []string{lockKey}, token)
	}
	return release, nil
}

// LocalLocker is the in-process fallback when Redis is not configured.
// Correct for a single instance only.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLocalLocker creates an in-process ticket locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*sync.Mutex)}
}

// Acquire locks the per-ticket mutex, honoring ctx cancellation while waiting.
func (l *LocalLocker) Acquire(ctx context.Context, ticketKey string) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[ticketKey]
	if !ok {
		m = &sync.Mutex{}
		l.locks[ticketKey] = m
	}
	l.mu.Unlock()

	acquired := make(chan struct{})
	go func() {
		m.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
		return m.Unlock, nil
	case <-ctx.Done():
		// The goroutine will eventually take the mutex; release it again
		// so the next waiter is not blocked.
		go func() {
			<-acquired
			m.Unlock()
		}()
		return nil, ctx.Err()
	}
}
