package redis

// nolint: lll
var schedulerScript = `
-- KEYS[1]: the scheduled set
-- KEYS[2]: the pending list

-- ARGV[1]: the current timestamp
-- ARGV[2]: the max number of message IDs to transfer to the pending list

-- Returns: the number of message IDs transferred

local messageIDs = redis.call("ZRANGEBYSCORE", KEYS[1], 0, ARGV[1], "LIMIT", 0, ARGV[2])
local messageCount = table.getn(messageIDs)

if messageCount > 0 then
  redis.call("LPUSH", KEYS[2], unpack(messageIDs))
  redis.call("ZREM", KEYS[1], unpack(messageIDs))
end

return messageCount
`

// nolint: lll
var cleanerScript = `
-- KEYS[1]: the consumers set, scored by each consumer's most recent heartbeat
-- KEYS[2]: the pending list

-- ARGV[1]: the timestamp before which an active list is considered as belonging to a dead consumer

-- Returns: the number of message IDs reclaimed

local deadConsumerActiveLists = redis.call("ZRANGEBYSCORE", KEYS[1], 0, ARGV[1])
local reclaimed = 0

for _, deadConsumerActiveList in ipairs(deadConsumerActiveLists) do
  local messageIDs = redis.call("LRANGE", deadConsumerActiveList, 0, -1)
  local count = table.getn(messageIDs)

  -- Active list depth never exceeds a consumer's prefetch, so the IDs can be
  -- moved in one shot.
  if count > 0 then
    redis.call("RPUSH", KEYS[2], unpack(messageIDs))
    reclaimed = reclaimed + count
  end

  redis.call("DEL", deadConsumerActiveList)
  redis.call("ZREM", KEYS[1], deadConsumerActiveList)
end

return reclaimed
`
