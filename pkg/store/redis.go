package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"

	"github.com/goliatone/go-onboard/pkg/form"
)

const (
	defaultPrefix = "onboard:session:"
	// Index score for snapshots without a TTL (2100-01-01).
	foreverScore = 4102444800
)

// Redis stores snapshots as JSON strings under prefix+"data:"+id. A sorted set
// at prefix+"index" indexes the ids by expiry so List can prune stale entries.
type Redis struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// RedisOption configures a Redis store.
type RedisOption func(*Redis)

// WithTTL sets the expiration for sessions.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		r.ttl = ttl
	}
}

// WithPrefix sets the key prefix for sessions.
func WithPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// NewRedis connects to the Redis server at address.
func NewRedis(address, password string, db int, opts ...RedisOption) *Redis {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewRedisFromClient(client, opts...)
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *backend.Client, opts ...RedisOption) *Redis {
	r := &Redis{client: client, prefix: defaultPrefix}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

var _ Store = (*Redis)(nil)

func (r *Redis) key(id string) string { return r.prefix + "data:" + id }

func (r *Redis) indexKey() string { return r.prefix + "index" }

func (r *Redis) Save(ctx context.Context, id string, snap form.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("store: marshal snapshot: %w", err)
	}

	score := float64(foreverScore)
	if r.ttl > 0 {
		score = float64(time.Now().Add(r.ttl).Unix())
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, r.key(id), data, r.ttl)
	pipe.ZAdd(ctx, r.indexKey(), backend.Z{Score: score, Member: id})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store: save %s: %w", id, err)
	}
	return nil
}

func (r *Redis) Load(ctx context.Context, id string) (form.Snapshot, error) {
	val, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return form.Snapshot{}, ErrSessionNotFound
		}
		return form.Snapshot{}, fmt.Errorf("store: load %s: %w", id, err)
	}

	var snap form.Snapshot
	if err := json.Unmarshal(val, &snap); err != nil {
		return form.Snapshot{}, fmt.Errorf("store: unmarshal snapshot %s: %w", id, err)
	}
	return snap, nil
}

func (r *Redis) Delete(ctx context.Context, id string) error {
	pipe := r.client.Pipeline()
	pipe.Del(ctx, r.key(id))
	pipe.ZRem(ctx, r.indexKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store: delete %s: %w", id, err)
	}
	return nil
}

// List prunes expired ids from the index and returns the rest.
func (r *Redis) List(ctx context.Context) ([]string, error) {
	now := strconv.FormatInt(time.Now().Unix(), 10)
	if err := r.client.ZRemRangeByScore(ctx, r.indexKey(), "-inf", "("+now).Err(); err != nil {
		return nil, fmt.Errorf("store: prune index: %w", err)
	}
	ids, err := r.client.ZRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("store: list sessions: %w", err)
	}
	return ids, nil
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}

// ErrLockAcquire is returned when the lock cannot be acquired before the
// context ends.
var ErrLockAcquire = errors.New("store: failed to acquire lock")

const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// RedisLocker implements Locker with SET NX PX and a token-checked release.
type RedisLocker struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
	poll   time.Duration
}

// NewRedisLocker creates a locker. ttl bounds how long a crashed holder keeps
// the lock.
func NewRedisLocker(client *backend.Client, prefix string, ttl time.Duration) *RedisLocker {
	if prefix == "" {
		prefix = defaultPrefix
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{client: client, prefix: prefix, ttl: ttl, poll: 25 * time.Millisecond}
}

var _ Locker = (*RedisLocker)(nil)

// Lock polls until the lock is free or ctx ends.
func (l *RedisLocker) Lock(ctx context.Context, key string) (UnlockFunc, error) {
	lockKey := l.prefix + "lock:" + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("store: lock %s: %w", key, err)
		}
		if ok {
			return func(ctx context.Context) error {
				return l.client.Eval(ctx, releaseScript, []string{lockKey}, token).Err()
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", ErrLockAcquire, key, ctx.Err())
		case <-ticker.C:
		}
	}
}
