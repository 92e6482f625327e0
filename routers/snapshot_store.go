package routers

import (
	"context"
	"sync"

	"github.com/blueberrycongee/llmroute/pkg/router"
)

// SnapshotStore persists point-in-time copies of the registry so a restarted
// process can resume with warm stats and active cooldowns. Routing never
// touches the store; only Checkpoint and Restore do.
type SnapshotStore interface {
	// Save atomically replaces the stored snapshot with deployments.
	Save(ctx context.Context, deployments []router.Deployment) error

	// Load returns the stored snapshot in the order it was saved.
	// An empty store yields an empty slice and no error.
	Load(ctx context.Context) ([]router.Deployment, error)
}

// MemorySnapshotStore keeps the snapshot in local memory.
//
// Characteristics:
//   - Local-only: not shared across instances
//   - No persistence: lost on process exit
//
// It is mainly useful in tests and as a stand-in when Redis is not configured.
type MemorySnapshotStore struct {
	mu          sync.RWMutex
	deployments []router.Deployment
}

// NewMemorySnapshotStore creates an empty in-memory snapshot store.
func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{}
}

// Save replaces the stored snapshot with deep copies of deployments.
func (m *MemorySnapshotStore) Save(ctx context.Context, deployments []router.Deployment) error {
	copies := cloneDeployments(deployments)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.deployments = copies
	return nil
}

// Load returns deep copies of the stored snapshot.
func (m *MemorySnapshotStore) Load(ctx context.Context) ([]router.Deployment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneDeployments(m.deployments), nil
}

func cloneDeployments(in []router.Deployment) []router.Deployment {
	out := make([]router.Deployment, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}
