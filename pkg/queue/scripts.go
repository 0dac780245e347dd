package queue

import (
	"strconv"

	"github.com/redis/go-redis/v9"
)

// addJobScript inserts a job unless one with the same id exists.
// A prioritized job is scored priority*2^32 + counter so equal priorities stay FIFO.
//
// KEYS: job, wait, prioritized, pc, delayed
// ARGV: id, name, data, opts, timestamp, delay, priority, delayedScore
var addJobScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1],
  'name', ARGV[2], 'data', ARGV[3], 'opts', ARGV[4],
  'timestamp', ARGV[5], 'delay', ARGV[6], 'priority', ARGV[7], 'attemptsMade', '0')
local delay = tonumber(ARGV[6])
local prio = tonumber(ARGV[7])
if delay > 0 then
  redis.call('ZADD', KEYS[5], ARGV[8], ARGV[1])
elseif prio > 0 then
  local c = redis.call('INCR', KEYS[4])
  redis.call('ZADD', KEYS[3], prio * 4294967296 + c, ARGV[1])
else
  redis.call('LPUSH', KEYS[2], ARGV[1])
end
return 1
`)

// promoteDelayedScript moves due delayed jobs to the wait list or prioritized set.
//
// KEYS: delayed, wait, prioritized, pc
// ARGV: now, limit, jobPrefix
var promoteDelayedScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, id in ipairs(ids) do
  redis.call('ZREM', KEYS[1], id)
  local prio = tonumber(redis.call('HGET', ARGV[3] .. id, 'priority') or '0')
  if prio > 0 then
    local c = redis.call('INCR', KEYS[4])
    redis.call('ZADD', KEYS[3], prio * 4294967296 + c, id)
  else
    redis.call('LPUSH', KEYS[2], id)
  end
end
return #ids
`)

// upsertRepeatScript installs a repeat entry, replacing whatever entry the same job id
// owned before. Returns 1 when an entry was replaced.
//
// KEYS: repeat, repeatIDs, meta
// ARGV: jobId, repeatKey, nextMillis, repeatPrefix, name, data, opts, pattern, offset, priority
var upsertRepeatScript = redis.NewScript(`
local replaced = 0
local old = redis.call('HGET', KEYS[2], ARGV[1])
if old then
  redis.call('ZREM', KEYS[1], old)
  redis.call('DEL', ARGV[4] .. old)
  replaced = 1
end
redis.call('DEL', KEYS[3])
redis.call('HSET', KEYS[3],
  'key', ARGV[2], 'jobId', ARGV[1], 'name', ARGV[5], 'data', ARGV[6], 'opts', ARGV[7],
  'pattern', ARGV[8], 'offset', ARGV[9], 'priority', ARGV[10])
redis.call('ZADD', KEYS[1], ARGV[3], ARGV[2])
redis.call('HSET', KEYS[2], ARGV[1], ARGV[2])
return replaced
`)

// removeRepeatScript deletes a repeat entry by its storage key and drops the id index
// entry pointing at it. The job id comes from the entry hash, or from ARGV[2] when the
// hash is already gone.
//
// KEYS: repeat, repeatIDs, meta
// ARGV: repeatKey, fallbackJobId
var removeRepeatScript = redis.NewScript(`
local removed = redis.call('ZREM', KEYS[1], ARGV[1])
local jobId = redis.call('HGET', KEYS[3], 'jobId') or ARGV[2]
if jobId and jobId ~= '' and redis.call('HGET', KEYS[2], jobId) == ARGV[1] then
  redis.call('HDEL', KEYS[2], jobId)
end
redis.call('DEL', KEYS[3])
return removed
`)

// fireRepeatScript materializes one fire of a repeat entry and moves the entry to its
// next fire time. The entry score acts as a compare-and-set token, so concurrent
// promoters fire each occurrence once.
//
// KEYS: repeat, meta, wait, prioritized, pc, job
// ARGV: repeatKey, expectedMillis, nextMillis, instanceId, now
var fireRepeatScript = redis.NewScript(`
local score = redis.call('ZSCORE', KEYS[1], ARGV[1])
if not score or tonumber(score) ~= tonumber(ARGV[2]) then
  return 0
end
redis.call('ZADD', KEYS[1], ARGV[3], ARGV[1])
if redis.call('EXISTS', KEYS[6]) == 1 then
  return 0
end
local meta = redis.call('HMGET', KEYS[2], 'name', 'data', 'opts', 'priority')
if not meta[1] then
  redis.call('ZREM', KEYS[1], ARGV[1])
  return 0
end
local prio = tonumber(meta[4] or '0')
redis.call('HSET', KEYS[6],
  'name', meta[1], 'data', meta[2], 'opts', meta[3],
  'timestamp', ARGV[5], 'delay', '0', 'priority', meta[4] or '0', 'attemptsMade', '0',
  'repeatJobKey', ARGV[1])
if prio > 0 then
  local c = redis.call('INCR', KEYS[5])
  redis.call('ZADD', KEYS[4], prio * 4294967296 + c, ARGV[4])
else
  redis.call('LPUSH', KEYS[3], ARGV[4])
end
return 1
`)

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
