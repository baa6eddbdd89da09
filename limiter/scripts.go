package limiter

// fixedWindowScript increments KEYS[1] and starts its expiry on the first hit.
// ARGV: window seconds. Returns the post-increment count.
const fixedWindowScript = `
local current = redis.call('INCR', KEYS[1])
if tonumber(current) == 1 then
	redis.call('EXPIRE', KEYS[1], ARGV[1])
end
return current
`

// tokenBucketConsumeScript refills by whole elapsed seconds and takes one token.
// KEYS: token count, last refill unix seconds. ARGV: capacity, rate, now, window seconds.
// A missing bucket starts full. Both keys are rewritten with a fresh expiry.
// Returns 1 when a token was taken, else 0.
const tokenBucketConsumeScript = `
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local window = tonumber(ARGV[4])

local tokens = tonumber(redis.call('GET', KEYS[1]))
local last = tonumber(redis.call('GET', KEYS[2]))
if tokens == nil or last == nil then
	tokens = capacity
	last = now
end

tokens = math.min(capacity, tokens + math.max(0, now - last) * rate)

local allowed = 0
if tokens >= 1 then
	tokens = tokens - 1
	allowed = 1
end

redis.call('SET', KEYS[1], tokens, 'EX', window)
redis.call('SET', KEYS[2], now, 'EX', window)
return allowed
`

// tokenBucketPeekScript returns the refilled token count without consuming or writing.
// KEYS and ARGV as tokenBucketConsumeScript; window is unused.
const tokenBucketPeekScript = `
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local tokens = tonumber(redis.call('GET', KEYS[1]))
local last = tonumber(redis.call('GET', KEYS[2]))
if tokens == nil or last == nil then
	return capacity
end

return math.min(capacity, tokens + math.max(0, now - last) * rate)
`

// tokenBucketRetryScript estimates the wait: 0 for a missing bucket or one with a token
// after refill, else ceil(1/rate). This is a lower bound, not an exact forecast.
const tokenBucketRetryScript = `
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local tokens = tonumber(redis.call('GET', KEYS[1]))
local last = tonumber(redis.call('GET', KEYS[2]))
if tokens == nil or last == nil then
	return 0
end

tokens = math.min(capacity, tokens + math.max(0, now - last) * rate)
if tokens >= 1 then
	return 0
end
if rate <= 0 then
	return 1
end
return math.ceil(1 / rate)
`
