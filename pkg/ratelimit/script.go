package ratelimit

import "github.com/redis/go-redis/v9"

// incrScript increments a window counter and starts the window on the first hit.
// A counter found without a TTL gets one so it cannot live forever.
//
// KEYS: counter
// ARGV: windowMillis
// Returns: {count, pttl, started}
var incrScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
local started = 0
if count == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  started = 1
elseif redis.call('PTTL', KEYS[1]) < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return {count, redis.call('PTTL', KEYS[1]), started}
`)
