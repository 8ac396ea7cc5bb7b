package abuse

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// admitScript keeps one sorted set per user: members are content IDs scored
// by their last request time. A member already present is refreshed and
// always admitted; a new member is admitted only while the set is under the
// limit.
var admitScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call("ZREMRANGEBYSCORE", key, 0, now - window)

if redis.call("ZSCORE", key, member) then
  redis.call("ZADD", key, now, member)
  redis.call("PEXPIRE", key, window)
  return {1, 0}
end

if redis.call("ZCARD", key) < limit then
  redis.call("ZADD", key, now, member)
  redis.call("PEXPIRE", key, window)
  return {1, 0}
end

local oldest = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
if oldest[2] ~= nil then
  local retryAfter = (tonumber(oldest[2]) + window) - now
  if retryAfter < 0 then retryAfter = 0 end
  return {0, retryAfter}
end
return {0, window}
`)

// RedisWindow shares the window across instances.
type RedisWindow struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
}

// NewRedisWindow allows up to limit distinct items per window. Keys are
// prefix+userID.
func NewRedisWindow(client *redis.Client, prefix string, limit int, window time.Duration) *RedisWindow {
	return &RedisWindow{client: client, prefix: prefix, limit: limit, window: window}
}

// Admit implements Window.
func (w *RedisWindow) Admit(ctx context.Context, userID, contentID string, now time.Time) (Decision, error) {
	res, err := admitScript.Run(ctx, w.client,
		[]string{w.prefix + userID},
		now.UnixMilli(), w.window.Milliseconds(), w.limit, contentID,
	).Result()
	if err != nil {
		return Decision{}, err
	}

	arr, ok := res.([]any)
	if !ok || len(arr) < 2 {
		return Decision{}, fmt.Errorf("abuse: unexpected redis eval result: %T %v", res, res)
	}
	allowed, _ := arr[0].(int64)
	var retryMS int64
	switch v := arr[1].(type) {
	case int64:
		retryMS = v
	case string:
		retryMS, _ = strconv.ParseInt(v, 10, 64)
	}

	if allowed == 1 {
		return Decision{Allowed: true}, nil
	}
	retry := time.Duration(retryMS) * time.Millisecond
	if retry < time.Second {
		retry = time.Second
	}
	return Decision{Allowed: false, RetryAfter: retry}, nil
}
