package redis

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/tutorbridge-backend/internal/pkg/envutil"
	"github.com/yungbote/tutorbridge-backend/internal/pkg/logger"
)

// TurnLock serializes turns per thread id. The checkpoint store is a plain
// read-modify-write resource, so two overlapping turns on one thread would
// race and the later write would silently win; holding the lock for the whole
// turn closes that gap.
type TurnLock interface {
	Acquire(ctx context.Context, threadID string) (release func(), err error)
	Close() error
}

type turnLock struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
}

func NewTurnLock(log *logger.Logger) (TurnLock, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := envutil.Str("REDIS_ADDR", "")
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &turnLock{
		log:    log.With("service", "RedisTurnLock"),
		rdb:    rdb,
		prefix: envutil.Str("REDIS_TURN_LOCK_PREFIX", "turnlock:"),
		ttl:    time.Duration(envutil.Int("REDIS_TURN_LOCK_TTL_SECONDS", 60)) * time.Second,
	}, nil
}

// releaseScript deletes the lock only when the caller still owns it.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *turnLock) Acquire(ctx context.Context, threadID string) (func(), error) {
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return nil, fmt.Errorf("missing thread_id")
	}
	key := l.prefix + threadID
	token := uuid.NewString()

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("turn lock acquire: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}

	release := func() {
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.rdb, []string{key}, token).Err(); err != nil {
			l.log.Warn("turn lock release failed", "thread_id", threadID, "error", err)
		}
	}
	return release, nil
}

func (l *turnLock) Close() error {
	if l == nil || l.rdb == nil {
		return nil
	}
	return l.rdb.Close()
}

// localTurnLock is the single-process fallback used when no redis address is
// configured (and in tests).
type localTurnLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLocalTurnLock() TurnLock {
	return &localTurnLock{locks: map[string]*sync.Mutex{}}
}

func (l *localTurnLock) Acquire(_ context.Context, threadID string) (func(), error) {
	if strings.TrimSpace(threadID) == "" {
		return nil, fmt.Errorf("missing thread_id")
	}
	l.mu.Lock()
	m, ok := l.locks[threadID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[threadID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock, nil
}

func (l *localTurnLock) Close() error { return nil }
