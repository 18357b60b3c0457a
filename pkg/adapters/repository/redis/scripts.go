package redis

import goRedis "github.com/redis/go-redis/v9"

// KEYS[1] link hash, KEYS[2] all-codes zset, KEYS[3] owner zset, KEYS[4] expiry zset
// ARGV[1] code, ARGV[2] created score, ARGV[3] expiry score or '', ARGV[4] active flag,
// ARGV[5] owned flag, ARGV[6..] hash field/value pairs
var insertScript = goRedis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV, 6))
redis.call('ZADD', KEYS[2], ARGV[2], ARGV[1])
if ARGV[4] == '1' then
	if ARGV[5] == '1' then
		redis.call('ZADD', KEYS[3], ARGV[2], ARGV[1])
	end
	if ARGV[3] ~= '' then
		redis.call('ZADD', KEYS[4], ARGV[3], ARGV[1])
	end
end
return 1
`)

// KEYS[1] link hash, KEYS[2] expiry zset
// ARGV[1] code, ARGV[2] expiry mode (keep|clear|set), ARGV[3] expiry score, ARGV[4..] field/value pairs
var updateScript = goRedis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return false
end
redis.call('HSET', KEYS[1], unpack(ARGV, 4))
if ARGV[2] == 'clear' then
	redis.call('ZREM', KEYS[2], ARGV[1])
elseif ARGV[2] == 'set' and redis.call('HGET', KEYS[1], 'is_active') == '1' then
	redis.call('ZADD', KEYS[2], ARGV[3], ARGV[1])
end
return redis.call('HGETALL', KEYS[1])
`)

// KEYS[1] link hash. Inactive links are left untouched.
var incrementScript = goRedis.NewScript(`
if redis.call('HGET', KEYS[1], 'is_active') ~= '1' then
	return false
end
return redis.call('HINCRBY', KEYS[1], 'click_count', 1)
`)

// KEYS[1] link hash, KEYS[2] expiry zset, KEYS[3] owner zset
// ARGV[1] code, ARGV[2] owner_id the caller read, ARGV[3] updated_at, ARGV[4] expected expires_at or ''
// Returns -1 when owner_id no longer matches ARGV[2].
var deactivateScript = goRedis.NewScript(`
local f = redis.call('HMGET', KEYS[1], 'is_active', 'owner_id', 'expires_at')
if f[1] ~= '1' then
	return 0
end
if (f[2] or '') ~= ARGV[2] then
	return -1
end
if ARGV[4] ~= '' and f[3] ~= ARGV[4] then
	return 0
end
redis.call('HSET', KEYS[1], 'is_active', '0', 'updated_at', ARGV[3])
redis.call('ZREM', KEYS[2], ARGV[1])
if ARGV[2] ~= '' then
	redis.call('ZREM', KEYS[3], ARGV[1])
end
return 1
`)
