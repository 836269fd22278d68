package keylock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultLockTTL      = 30 * time.Second
	defaultPollInterval = 50 * time.Millisecond
	keyPrefix           = "hcp:joblock:"
)

// ErrLockLost is logged when a lock expired before it was released.
var ErrLockLost = errors.New("keylock: lock expired before release")

// compare-and-delete so a holder never frees a lock it no longer owns
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extends the TTL only while the caller still owns the token
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Redis is a cross-process Locker backed by SET NX PX. While a lock is held
// a watchdog refreshes its TTL every refreshInterval, so slow work keeps the
// lock until Unlock.
type Redis struct {
	client          redis.UniversalClient
	ttl             time.Duration
	pollInterval    time.Duration
	refreshInterval time.Duration
	onLost          func(key string, err error)
}

// RedisOption customizes a Redis locker.
type RedisOption func(*Redis)

// WithPollInterval sets how often a blocked Lock retries.
func WithPollInterval(d time.Duration) RedisOption {
	return func(r *Redis) {
		if d > 0 {
			r.pollInterval = d
		}
	}
}

// WithRefreshInterval sets how often a held lock's TTL is extended. It must
// be shorter than the TTL.
func WithRefreshInterval(d time.Duration) RedisOption {
	return func(r *Redis) {
		if d > 0 {
			r.refreshInterval = d
		}
	}
}

// WithLostHandler is called when a refresh or release finds the lock gone.
func WithLostHandler(fn func(key string, err error)) RedisOption {
	return func(r *Redis) {
		r.onLost = fn
	}
}

// NewRedis returns a Locker storing lock tokens in Redis for ttl.
func NewRedis(client redis.UniversalClient, ttl time.Duration, opts ...RedisOption) *Redis {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	r := &Redis{
		client:       client,
		ttl:          ttl,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.refreshInterval <= 0 || r.refreshInterval >= r.ttl {
		r.refreshInterval = r.ttl / 3
	}
	return r
}

// Lock polls until the key is acquired or ctx is done.
func (r *Redis) Lock(ctx context.Context, key string) (Unlock, error) {
	redisKey := keyPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			h := &heldLock{key: key, redisKey: redisKey, token: token, stop: make(chan struct{}), done: make(chan struct{})}
			go r.watch(h)
			var once sync.Once
			return func() { once.Do(func() { r.release(h) }) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

type heldLock struct {
	key      string
	redisKey string
	token    string
	stop     chan struct{}
	done     chan struct{}
	lost     atomic.Bool
}

func (r *Redis) reportLost(h *heldLock, err error) {
	if h.lost.Swap(true) || r.onLost == nil {
		return
	}
	r.onLost(h.key, err)
}

// watch extends the lock until stop is closed. It gives up once the token
// is no longer ours.
func (r *Redis) watch(h *heldLock) {
	defer close(h.done)

	ticker := time.NewTicker(r.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), r.refreshInterval)
		extended, err := refreshScript.Run(ctx, r.client, []string{h.redisKey}, h.token, r.ttl.Milliseconds()).Int()
		cancel()
		if err != nil {
			// transient; the next tick retries while the TTL still runs
			continue
		}
		if extended == 0 {
			r.reportLost(h, ErrLockLost)
			return
		}
	}
}

func (r *Redis) release(h *heldLock) {
	close(h.stop)
	<-h.done

	// the caller's ctx may already be canceled; release must still happen
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	deleted, err := releaseScript.Run(ctx, r.client, []string{h.redisKey}, h.token).Int()
	if err != nil {
		r.reportLost(h, err)
		return
	}
	if deleted == 0 {
		r.reportLost(h, ErrLockLost)
	}
}
