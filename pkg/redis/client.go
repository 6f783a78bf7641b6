package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/greengrocer/storefront/pkg/config"
	"github.com/greengrocer/storefront/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	keyNamespace      = "sf"
	idempotencyPrefix = "idempotency"
	sessionPrefix     = "session"
	cartPrefix        = "cart"
	rateLimitPrefix   = "rl"
	lockPrefix        = "lock"
)

// Nil is returned by Get when the key does not exist.
var Nil = redis.Nil

var errNotInitialized = errors.New("redis client not initialized")

type cmdable interface {
	redis.Scripter
	Ping(context.Context) *redis.StatusCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	SetNX(context.Context, string, any, time.Duration) *redis.BoolCmd
	Exists(context.Context, ...string) *redis.IntCmd
	Del(context.Context, ...string) *redis.IntCmd
	HGetAll(context.Context, string) *redis.MapStringStringCmd
	HDel(context.Context, string, ...string) *redis.IntCmd
}

// delIfEquals removes the key only while it still holds the expected value.
var delIfEquals = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// hincrExpire bumps a hash field and refreshes the key's TTL in one round trip.
var hincrExpire = redis.NewScript(`
local v = redis.call('HINCRBY', KEYS[1], ARGV[1], ARGV[2])
if tonumber(ARGV[3]) > 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[3])
end
return v
`)

// hdecrOrDelete lowers a hash field by one and removes it when it reaches zero.
// Missing fields are left untouched.
var hdecrOrDelete = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 0 then
	return 0
end
local v = redis.call('HINCRBY', KEYS[1], ARGV[1], -1)
if v <= 0 then
	redis.call('HDEL', KEYS[1], ARGV[1])
	v = 0
end
if tonumber(ARGV[2]) > 0 and redis.call('EXISTS', KEYS[1]) == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return v
`)

// hclaim renames KEYS[1] to KEYS[2] and returns the claimed fields.
var hclaim = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return {}
end
redis.call('RENAME', KEYS[1], KEYS[2])
if tonumber(ARGV[1]) > 0 then
	redis.call('PEXPIRE', KEYS[2], ARGV[1])
end
return redis.call('HGETALL', KEYS[2])
`)

// hrestore folds the integer fields of KEYS[1] back into KEYS[2] and deletes KEYS[1].
var hrestore = redis.NewScript(`
local fields = redis.call('HGETALL', KEYS[1])
local restored = 0
for i = 1, #fields, 2 do
	local n = tonumber(fields[i + 1])
	if n and n == math.floor(n) then
		redis.call('HINCRBY', KEYS[2], fields[i], n)
		restored = restored + 1
	end
end
redis.call('DEL', KEYS[1])
if restored > 0 and tonumber(ARGV[1]) > 0 then
	redis.call('PEXPIRE', KEYS[2], ARGV[1])
end
return restored
`)

// incrWindow counts hits in a fixed window that starts with the first hit.
var incrWindow = redis.NewScript(`
local v = redis.call('INCR', KEYS[1])
if v == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return v
`)

// Client wraps the redis connection helpers needed by the storefront.
type Client struct {
	store cmdable
	raw   *redis.Client
}

// Pinger exposes the health-check surface.
type Pinger interface {
	Ping(context.Context) error
}

// IdempotencyStore exposes minimal operations used by idempotency helpers.
type IdempotencyStore interface {
	Get(context.Context, string) (string, error)
	SetNX(context.Context, string, any, time.Duration) (bool, error)
	Set(context.Context, string, any, time.Duration) error
	IdempotencyKey(scope, id string) string
	Del(context.Context, ...string) error
}

// New bootstraps a Redis client with pooling/timeouts and verifies connectivity.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if logg != nil {
		logg.Info(ctx, "redis connection established")
	}
	return &Client{store: raw, raw: raw}, nil
}

// NewFromRaw wraps an existing go-redis client.
func NewFromRaw(raw *redis.Client) *Client {
	return &Client{store: raw, raw: raw}
}

func optionsFromConfig(cfg config.RedisConfig) (*redis.Options, error) {
	if cfg.URL == "" && cfg.Address == "" {
		return nil, errors.New("redis url or address is required")
	}
	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}
	if opts.DB == 0 {
		opts.DB = cfg.DB
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if opts.MinIdleConns == 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	return opts, nil
}

// Set stores a string value with an optional TTL.
func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c.store == nil {
		return errNotInitialized
	}
	return c.store.Set(ctx, key, value, ttl).Err()
}

// Get returns a string value stored at key.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if c.store == nil {
		return "", errNotInitialized
	}
	return c.store.Get(ctx, key).Result()
}

// SetNX sets a value only if the key does not exist yet.
func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if c.store == nil {
		return false, errNotInitialized
	}
	return c.store.SetNX(ctx, key, value, ttl).Result()
}

// Exists reports whether key is present.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	if c.store == nil {
		return false, errNotInitialized
	}
	n, err := c.store.Exists(ctx, key).Result()
	return n > 0, err
}

// HashIncr adds delta to a hash field and refreshes the key TTL when ttl > 0.
func (c *Client) HashIncr(ctx context.Context, key, field string, delta int64, ttl time.Duration) (int64, error) {
	if c.store == nil {
		return 0, errNotInitialized
	}
	return hincrExpire.Run(ctx, c.store, []string{key}, field, delta, ttl.Milliseconds()).Int64()
}

// HashDecr lowers a hash field by one, deleting it at zero. Returns the remaining value.
func (c *Client) HashDecr(ctx context.Context, key, field string, ttl time.Duration) (int64, error) {
	if c.store == nil {
		return 0, errNotInitialized
	}
	return hdecrOrDelete.Run(ctx, c.store, []string{key}, field, ttl.Milliseconds()).Int64()
}

// HashDel removes fields from a hash.
func (c *Client) HashDel(ctx context.Context, key string, fields ...string) error {
	if c.store == nil {
		return errNotInitialized
	}
	return c.store.HDel(ctx, key, fields...).Err()
}

// HashInts reads a hash whose values are integers. Fields holding anything
// else are left out of the result.
func (c *Client) HashInts(ctx context.Context, key string) (map[string]int64, error) {
	if c.store == nil {
		return nil, errNotInitialized
	}
	raw, err := c.store.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	return parseIntFields(raw), nil
}

// HashClaim moves the hash at key to claimKey and returns its integer fields.
// Writes to key after the claim land in a fresh hash. A missing key claims nothing.
func (c *Client) HashClaim(ctx context.Context, key, claimKey string, ttl time.Duration) (map[string]int64, error) {
	if c.store == nil {
		return nil, errNotInitialized
	}
	flat, err := hclaim.Run(ctx, c.store, []string{key, claimKey}, ttl.Milliseconds()).StringSlice()
	if err != nil {
		return nil, err
	}
	raw := make(map[string]string, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		raw[flat[i]] = flat[i+1]
	}
	return parseIntFields(raw), nil
}

// HashRestore adds the claimed quantities back onto key and drops claimKey.
func (c *Client) HashRestore(ctx context.Context, claimKey, key string, ttl time.Duration) error {
	if c.store == nil {
		return errNotInitialized
	}
	return hrestore.Run(ctx, c.store, []string{claimKey, key}, ttl.Milliseconds()).Err()
}

func parseIntFields(raw map[string]string) map[string]int64 {
	out := make(map[string]int64, len(raw))
	for field, value := range raw {
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			continue
		}
		out[field] = n
	}
	return out
}

// IncrWithTTL increments key and starts its expiry on the first hit.
func (c *Client) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if c.store == nil {
		return 0, errNotInitialized
	}
	return incrWindow.Run(ctx, c.store, []string{key}, ttl.Milliseconds()).Int64()
}

// DelIfEquals deletes key when its value is value and reports whether it did.
func (c *Client) DelIfEquals(ctx context.Context, key, value string) (bool, error) {
	if c.store == nil {
		return false, errNotInitialized
	}
	n, err := delIfEquals.Run(ctx, c.store, []string{key}, value).Int64()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// LockKey returns the key guarding a named singleton job.
func (c *Client) LockKey(name string) string {
	return c.buildKey(lockPrefix, name)
}

// RateLimitKey returns a namespaced counter key for a throttling policy.
func (c *Client) RateLimitKey(policy, scope, value string) string {
	return c.buildKey(rateLimitPrefix, policy, scope, value)
}

// IdempotencyKey returns a namespaced key for idempotency storage.
func (c *Client) IdempotencyKey(scope, id string) string {
	return c.buildKey(idempotencyPrefix, scope, id)
}

// AccessSessionKey builds a namespaced key for access-token-based sessions.
func (c *Client) AccessSessionKey(accessID string) string {
	return c.buildKey(sessionPrefix, "access", accessID)
}

// SessionCartKey builds the hash key holding a guest session's cart.
func (c *Client) SessionCartKey(sessionID string) string {
	return c.buildKey(cartPrefix, sessionPrefix, sessionID)
}

// MergeClaimKey names the temporary hash a login merge claims a session cart into.
func (c *Client) MergeClaimKey(sessionID, claimID string) string {
	return c.buildKey(cartPrefix, "merge", sessionID, claimID)
}

// Del removes the provided keys.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	if c.store == nil {
		return errNotInitialized
	}
	return c.store.Del(ctx, keys...).Err()
}

// Ping verifies the connection.
func (c *Client) Ping(ctx context.Context) error {
	if c.store == nil {
		return errNotInitialized
	}
	return c.store.Ping(ctx).Err()
}

// Close shuts down the underlying client if available.
func (c *Client) Close() error {
	if c.raw == nil {
		return nil
	}
	return c.raw.Close()
}

func (c *Client) buildKey(parts ...string) string {
	clean := []string{keyNamespace}
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		clean = append(clean, part)
	}
	return strings.Join(clean, ":")
}
