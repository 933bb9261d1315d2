package redisstore

// luaAppendEvent atomically increments the per-call sequence and appends the
// record to the call's ZSET with score=seq. Members are prefixed with
// "<seq>:" so identical payloads never collapse into one member.
//
// KEYS[1] = seq key
// KEYS[2] = events zset key
// ARGV[1] = record JSON string (without seq)
// ARGV[2] = ttl in milliseconds (0 disables expiry)
//
// Returns: sequence (number)
const luaAppendEvent = `
local seq = redis.call('INCR', KEYS[1])
redis.call('ZADD', KEYS[2], seq, seq .. ':' .. ARGV[1])

local ttl = tonumber(ARGV[2])
if ttl and ttl > 0 then
  redis.call('PEXPIRE', KEYS[1], ttl)
  redis.call('PEXPIRE', KEYS[2], ttl)
end

return seq
`
