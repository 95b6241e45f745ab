package claim

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// acquireScript sets every key to the token only if none of them exist.
var acquireScript = redis.NewScript(`
for i = 1, #KEYS do
  if redis.call("EXISTS", KEYS[i]) == 1 then
    return 0
  end
end
for i = 1, #KEYS do
  redis.call("SET", KEYS[i], ARGV[1], "PX", ARGV[2])
end
return 1
`)

// releaseScript deletes the keys still owned by the token.
var releaseScript = redis.NewScript(`
local released = 0
for i = 1, #KEYS do
  if redis.call("GET", KEYS[i]) == ARGV[1] then
    redis.call("DEL", KEYS[i])
    released = released + 1
  end
end
return released
`)

// Redis is a claimer shared by every process pointing at the same Redis.
// Claims expire after ttl so a crashed holder cannot block a day forever.
type Redis struct {
	rdb     redis.Scripter
	ttl     time.Duration
	prefix  string
	minWait time.Duration
	maxWait time.Duration
}

// NewRedis constructs a Redis claimer. ttl defaults to 10s and prefix to "sched".
func NewRedis(rdb redis.Scripter, ttl time.Duration, prefix string) *Redis {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "sched"
	}
	return &Redis{rdb: rdb, ttl: ttl, prefix: prefix, minWait: 10 * time.Millisecond, maxWait: 250 * time.Millisecond}
}

// Acquire polls with exponential backoff until every key is set or ctx ends.
func (r *Redis) Acquire(ctx context.Context, keys []string) (func(context.Context) error, error) {
	keys = uniqueSorted(keys)
	if len(keys) == 0 {
		return nil, ErrEmptyKeys
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.prefix + ":" + k
	}
	token := uuid.NewString()

	wait := r.minWait
	for {
		ok, err := r.try(ctx, full, token)
		if err != nil {
			return nil, err
		}
		if ok {
			return func(ctx context.Context) error {
				if err := releaseScript.Run(ctx, r.rdb, full, token).Err(); err != nil {
					return fmt.Errorf("claim: release: %w", err)
				}
				return nil
			}, nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		wait *= 2
		if wait > r.maxWait {
			wait = r.maxWait
		}
	}
}

func (r *Redis) try(ctx context.Context, keys []string, token string) (bool, error) {
	res, err := acquireScript.Run(ctx, r.rdb, keys, token, r.ttl.Milliseconds()).Result()
	if err != nil {
		return false, fmt.Errorf("claim: acquire: %w", err)
	}
	switch v := res.(type) {
	case int64:
		return v == 1, nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return false, err
		}
		return n == 1, nil
	default:
		return false, fmt.Errorf("claim: unexpected script result type %T", res)
	}
}
