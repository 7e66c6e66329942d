// internal/store/redis/scripts.go
package redis

import "github.com/redis/go-redis/v9"

// releaseScript deletes the lock only when it still carries the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
else
    return 0
end
`)

// fairAcquireScript grants the lock to the head of a FIFO queue.
//
// KEYS[1] lock, KEYS[2] queue (list of tokens), KEYS[3] waiter deadlines (zset)
// ARGV[1] token, ARGV[2] lock ttl ms, ARGV[3] waiter ttl ms, ARGV[4] now ms
var fairAcquireScript = redis.NewScript(`
local token = ARGV[1]
local ttl = tonumber(ARGV[2])
local waiterTTL = tonumber(ARGV[3])
local now = tonumber(ARGV[4])

local stale = redis.call("ZRANGEBYSCORE", KEYS[3], "-inf", now)
for _, waiter in ipairs(stale) do
    redis.call("LREM", KEYS[2], 0, waiter)
    redis.call("ZREM", KEYS[3], waiter)
end

if redis.call("EXISTS", KEYS[1]) == 0 then
    local head = redis.call("LINDEX", KEYS[2], 0)
    if not head or head == token then
        redis.call("SET", KEYS[1], token, "PX", ttl)
        if head then
            redis.call("LPOP", KEYS[2])
            redis.call("ZREM", KEYS[3], token)
        end
        return 1
    end
end

if not redis.call("ZSCORE", KEYS[3], token) then
    redis.call("RPUSH", KEYS[2], token)
end
redis.call("ZADD", KEYS[3], now + waiterTTL, token)
redis.call("PEXPIRE", KEYS[2], waiterTTL)
redis.call("PEXPIRE", KEYS[3], waiterTTL)
return 0
`)

// abandonScript removes a token from the queue of a lock.
//
// KEYS[1] queue, KEYS[2] waiter deadlines; ARGV[1] token
var abandonScript = redis.NewScript(`
redis.call("LREM", KEYS[1], 0, ARGV[1])
return redis.call("ZREM", KEYS[2], ARGV[1])
`)
