package sink

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// writeScript publishes a dump atomically. The index push runs before the SET
// so a failing push (e.g. WRONGTYPE) leaves no orphan dump behind.
//
// KEYS[1] dump key, KEYS[2] index list; ARGV[1] blob, ARGV[2] name, ARGV[3] ttl in ms.
var writeScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return 0
end
redis.call("RPUSH", KEYS[2], ARGV[2])
if tonumber(ARGV[3]) > 0 then
	redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
else
	redis.call("SET", KEYS[1], ARGV[1])
end
return 1
`)

// RedisConfig captures the parameters for the Redis sink.
type RedisConfig struct {
	// KeyPrefix namespaces dump keys: <prefix>:<name>. The list <prefix>:index
	// records names in write order.
	KeyPrefix string `mapstructure:"key_prefix"`

	// TTL expires dumps after the given duration. Zero keeps them forever.
	TTL time.Duration `mapstructure:"ttl"`
}

// Redis stores each dump as a string value.
type Redis struct {
	redis  *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis creates a Redis-backed sink.
func NewRedis(redisClient *redis.Client, cfg RedisConfig) (*Redis, error) {
	if redisClient == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	prefix := strings.TrimSpace(cfg.KeyPrefix)
	if prefix == "" {
		prefix = "harvester"
	}
	if cfg.TTL < 0 {
		return nil, fmt.Errorf("ttl must be >= 0 (got %s)", cfg.TTL)
	}
	if cfg.TTL > 0 && cfg.TTL < time.Millisecond {
		cfg.TTL = time.Millisecond
	}
	return &Redis{
		redis:  redisClient,
		prefix: prefix,
		ttl:    cfg.TTL,
	}, nil
}

// Key returns the Redis key a dump named name is stored under.
func (s *Redis) Key(name string) string {
	return s.prefix + ":" + name
}

// IndexKey returns the key of the list of written names.
func (s *Redis) IndexKey() string {
	return s.prefix + ":index"
}

// Write stores blob under Key(name) and appends name to the index list in one
// atomic script. An existing key yields ErrExists and nothing is written.
func (s *Redis) Write(ctx context.Context, blob []byte, name string) (uri string, err error) {
	defer func() { observe("redis", err) }()

	if err := validateName(name); err != nil {
		return "", err
	}

	key := s.Key(name)
	created, err := writeScript.Run(ctx, s.redis,
		[]string{key, s.IndexKey()},
		blob, name, s.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return "", fmt.Errorf("redis write %s: %w", key, err)
	}
	if created == 0 {
		return "", fmt.Errorf("%w: %s", ErrExists, key)
	}

	return "redis://" + key, nil
}
