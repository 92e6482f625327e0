package routers

// Lua scripts for the Redis snapshot store. Each runs atomically on the server
// so concurrent readers never observe a half-written snapshot.

const (
	// replaceSnapshotScript swaps the whole snapshot hash in one step.
	//
	// Keys:
	//   KEYS[1] - snapshot hash key (e.g., "llmroute:registry:deployments")
	//
	// Args:
	//   ARGV - alternating field/value pairs: registry key, encoded record
	//
	// Returns:
	//   number of deployments written
	replaceSnapshotScript = `
local snapshot_key = KEYS[1]

redis.call('DEL', snapshot_key)

local written = 0
for i = 1, #ARGV, 2 do
  redis.call('HSET', snapshot_key, ARGV[i], ARGV[i + 1])
  written = written + 1
end

return written
`

	// releaseLockScript deletes the lock only if it still holds our token,
	// so an expired lock taken over by another writer is left alone.
	//
	// Keys:
	//   KEYS[1] - lock key
	//
	// Args:
	//   ARGV[1] - token written when the lock was acquired
	//
	// Returns:
	//   1 if released, 0 otherwise
	releaseLockScript = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`
)
