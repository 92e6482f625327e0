package routers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	llmerrors "github.com/blueberrycongee/llmroute/pkg/errors"
	"github.com/blueberrycongee/llmroute/pkg/router"
)

// errLockHeld is the cause attached to a LockError when another writer holds
// the snapshot lock.
var errLockHeld = errors.New("snapshot lock held by another writer")

// RedisSnapshotStore keeps the registry snapshot in a Redis hash so that
// several router instances, or a restarted one, can share it.
//
// Writers serialize on a SET NX PX lock; the snapshot itself is replaced by a
// Lua script so readers see either the old or the new snapshot, never a mix.
type RedisSnapshotStore struct {
	client    redis.UniversalClient
	keyPrefix string
	lockTTL   time.Duration

	replaceScript *redis.Script
	releaseScript *redis.Script
}

// snapshotRecord is the stored form of one deployment. Seq preserves
// registration order across the unordered hash.
type snapshotRecord struct {
	Seq        int               `json:"seq"`
	Deployment router.Deployment `json:"deployment"`
}

// RedisSnapshotOption configures RedisSnapshotStore.
type RedisSnapshotOption func(*RedisSnapshotStore)

// WithKeyPrefix sets the Redis key prefix (default: "llmroute:registry").
func WithKeyPrefix(prefix string) RedisSnapshotOption {
	return func(r *RedisSnapshotStore) {
		r.keyPrefix = prefix
	}
}

// WithLockTTL sets how long a writer may hold the snapshot lock (default: 5s).
func WithLockTTL(ttl time.Duration) RedisSnapshotOption {
	return func(r *RedisSnapshotStore) {
		r.lockTTL = ttl
	}
}

// NewRedisSnapshotStore creates a new Redis-backed snapshot store.
func NewRedisSnapshotStore(client redis.UniversalClient, opts ...RedisSnapshotOption) *RedisSnapshotStore {
	store := &RedisSnapshotStore{
		client:    client,
		keyPrefix: "llmroute:registry",
		lockTTL:   5 * time.Second,
	}

	for _, opt := range opts {
		opt(store)
	}

	store.replaceScript = redis.NewScript(replaceSnapshotScript)
	store.releaseScript = redis.NewScript(releaseLockScript)

	return store
}

// Save replaces the stored snapshot. It fails with a LockError if another
// writer currently holds the lock.
func (r *RedisSnapshotStore) Save(ctx context.Context, deployments []router.Deployment) error {
	args := make([]interface{}, 0, len(deployments)*2)
	for i, d := range deployments {
		data, err := json.Marshal(snapshotRecord{Seq: i, Deployment: d})
		if err != nil {
			return fmt.Errorf("encode deployment %s: %w", d.RegistryKey(), err)
		}
		args = append(args, d.RegistryKey(), string(data))
	}

	token, err := r.acquireLock(ctx)
	if err != nil {
		return err
	}
	defer r.releaseLock(context.WithoutCancel(ctx), token)

	if err := r.replaceScript.Run(ctx, r.client, []string{r.snapshotKey()}, args...).Err(); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Load reads the stored snapshot, ordered as it was saved.
func (r *RedisSnapshotStore) Load(ctx context.Context) ([]router.Deployment, error) {
	fields, err := r.client.HGetAll(ctx, r.snapshotKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	records := make([]snapshotRecord, 0, len(fields))
	for key, raw := range fields {
		var rec snapshotRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode deployment %s: %w", key, err)
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Seq < records[j].Seq })

	out := make([]router.Deployment, len(records))
	for i, rec := range records {
		out[i] = rec.Deployment
	}
	return out, nil
}

func (r *RedisSnapshotStore) acquireLock(ctx context.Context) (string, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, r.lockKey(), token, r.lockTTL).Result()
	if err != nil {
		return "", llmerrors.NewLockError(r.lockKey(), err)
	}
	if !ok {
		return "", llmerrors.NewLockError(r.lockKey(), errLockHeld)
	}
	return token, nil
}

func (r *RedisSnapshotStore) releaseLock(ctx context.Context, token string) {
	_ = r.releaseScript.Run(ctx, r.client, []string{r.lockKey()}, token).Err()
}

func (r *RedisSnapshotStore) snapshotKey() string {
	return r.keyPrefix + ":deployments"
}

func (r *RedisSnapshotStore) lockKey() string {
	return r.keyPrefix + ":lock"
}
