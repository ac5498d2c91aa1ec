package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/layer-3/gatekeeper/core"
	"github.com/redis/go-redis/v9"
)

// DefaultNonceRetention is how long an expired challenge is kept in Redis so
// that a late login still reports an expired (not a missing) challenge.
// Once Redis evicts the key, a login against it reports core.ErrChallengeNotFound.
const DefaultNonceRetention = 24 * time.Hour

// RetainForever keeps challenge keys until they are rotated or consumed, so an
// expired challenge always reports core.ErrChallengeExpired. Keys of wallets
// that never log in stay in Redis.
const RetainForever time.Duration = -1

// upsertIfStaleLua keeps a fresh challenge or replaces a stale one.
// KEYS[1] = nonce key
// ARGV[1] = candidate nonce
// ARGV[2] = candidate expiry (unix ms)
// ARGV[3] = refresh-before threshold (unix ms)
// ARGV[4] = key ttl (ms), 0 keeps the key without ttl
//
// Returns {nonce, expiry} of the record that is live after the call.
var upsertIfStaleLua = redis.NewScript(`
local cur = redis.call('HMGET', KEYS[1], 'nonce', 'exp')
if cur[1] and cur[2] and tonumber(cur[2]) > tonumber(ARGV[3]) then
  return {cur[1], cur[2]}
end
redis.call('HSET', KEYS[1], 'nonce', ARGV[1], 'exp', ARGV[2])
if tonumber(ARGV[4]) > 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[4])
else
  redis.call('PERSIST', KEYS[1])
end
return {ARGV[1], ARGV[2]}
`)

// consumeLua deletes the record only while it still holds the expected nonce.
// KEYS[1] = nonce key
// ARGV[1] = expected nonce
var consumeLua = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'nonce')
if not cur or cur ~= ARGV[1] then
  return 0
end
redis.call('DEL', KEYS[1])
return 1
`)

// RedisLedger is a Redis implementation of the NonceLedger interface
type RedisLedger struct {
	client    redis.UniversalClient
	prefix    string
	retention time.Duration
	now       func() time.Time
}

// RedisOption configures a RedisLedger.
type RedisOption func(*RedisLedger)

// WithPrefix sets the key prefix (default "gatekeeper:nonce:").
func WithPrefix(prefix string) RedisOption {
	return func(l *RedisLedger) { l.prefix = prefix }
}

// WithRetention sets how long records outlive their expiry. RetainForever
// disables eviction.
func WithRetention(d time.Duration) RedisOption {
	return func(l *RedisLedger) {
		if d < 0 {
			d = RetainForever
		}
		l.retention = d
	}
}

// WithRedisClock overrides the time source used to compute key TTLs.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(l *RedisLedger) { l.now = now }
}

// NewRedisLedger creates a new Redis nonce ledger
func NewRedisLedger(client redis.UniversalClient, opts ...RedisOption) *RedisLedger {
	l := &RedisLedger{
		client:    client,
		prefix:    "gatekeeper:nonce:",
		retention: DefaultNonceRetention,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *RedisLedger) key(address string) string {
	return l.prefix + address
}

// Get retrieves the challenge for address
func (l *RedisLedger) Get(ctx context.Context, address string) (*core.Nonce, error) {
	vals, err := l.client.HMGet(ctx, l.key(address), "nonce", "exp").Result()
	if err != nil {
		return nil, core.Unavailable("nonce.Get", err)
	}
	if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
		return nil, core.ErrChallengeNotFound
	}
	return decodeNonce(address, vals[0], vals[1])
}

// UpsertIfStale stores candidate unless a fresh challenge already exists
func (l *RedisLedger) UpsertIfStale(ctx context.Context, candidate core.Nonce, refreshBefore time.Time) (*core.Nonce, error) {
	var ttl time.Duration
	if l.retention != RetainForever {
		ttl = candidate.ExpiresAt.Sub(l.now()) + l.retention
		if ttl <= 0 {
			ttl = l.retention
		}
	}

	res, err := upsertIfStaleLua.Run(ctx, l.client,
		[]string{l.key(candidate.Address)},
		candidate.Value,
		candidate.ExpiresAt.UnixMilli(),
		refreshBefore.UnixMilli(),
		ttl.Milliseconds(),
	).Slice()
	if err != nil {
		return nil, core.Unavailable("nonce.UpsertIfStale", err)
	}
	if len(res) != 2 {
		return nil, core.Unavailable("nonce.UpsertIfStale", fmt.Errorf("unexpected script result %v", res))
	}
	return decodeNonce(candidate.Address, res[0], res[1])
}

// Consume deletes the challenge if it still holds value
func (l *RedisLedger) Consume(ctx context.Context, address, value string) error {
	deleted, err := consumeLua.Run(ctx, l.client, []string{l.key(address)}, value).Int()
	if err != nil {
		return core.Unavailable("nonce.Consume", err)
	}
	if deleted == 0 {
		return core.ErrChallengeNotFound
	}
	return nil
}

func decodeNonce(address string, value, exp interface{}) (*core.Nonce, error) {
	v, ok := value.(string)
	if !ok {
		return nil, core.Unavailable("nonce.decode", errors.New("nonce is not a string"))
	}
	e, ok := exp.(string)
	if !ok {
		return nil, core.Unavailable("nonce.decode", errors.New("expiry is not a string"))
	}
	ms, err := strconv.ParseInt(e, 10, 64)
	if err != nil {
		return nil, core.Unavailable("nonce.decode", fmt.Errorf("parse expiry: %w", err))
	}
	return &core.Nonce{
		Address:   address,
		Value:     v,
		ExpiresAt: time.UnixMilli(ms).UTC(),
	}, nil
}
