package config

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const managerConfig = `
server:
  port: 8080
router:
  routing_strategy: least-busy
deployments:
  - key: east
    model_name: gpt-4
`

func TestManagerStatus(t *testing.T) {
	path := writeConfigFile(t, managerConfig)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mgr, err := NewManager(path, logger)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	status := mgr.Status()
	if status.Path != path {
		t.Fatalf("Status().Path = %q, want %q", status.Path, path)
	}
	if status.Checksum == "" {
		t.Fatal("Status().Checksum is empty")
	}
	if status.LoadedAt.IsZero() {
		t.Fatal("Status().LoadedAt is zero")
	}
	if status.ReloadCount == 0 {
		t.Fatal("Status().ReloadCount should be > 0")
	}
}

func TestManagerReloadUpdatesChecksum(t *testing.T) {
	path := writeConfigFile(t, managerConfig)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mgr, err := NewManager(path, logger)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	before := mgr.Status()

	if err := os.WriteFile(path, []byte(`
server:
  port: 9090
deployments:
  - key: east
    model_name: gpt-4
  - key: west
    model_name: gpt-4
`), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if err := mgr.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	after := mgr.Status()
	if after.Checksum == before.Checksum {
		t.Fatal("expected checksum to change after reload")
	}
	if after.ReloadCount != before.ReloadCount+1 {
		t.Fatalf("expected reload count %d, got %d", before.ReloadCount+1, after.ReloadCount)
	}
	if mgr.Get().Server.Port != 9090 {
		t.Fatalf("expected server port 9090, got %d", mgr.Get().Server.Port)
	}
	if len(mgr.Get().Deployments) != 2 {
		t.Fatalf("expected 2 deployments, got %d", len(mgr.Get().Deployments))
	}
}

func TestManagerReload_UnchangedIsNoop(t *testing.T) {
	path := writeConfigFile(t, managerConfig)
	mgr, err := NewManager(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	var calls atomic.Int32
	mgr.OnChange(func(*Config) { calls.Add(1) })

	require.NoError(t, mgr.Reload())
	assert.Equal(t, uint64(1), mgr.Status().ReloadCount)
	assert.Zero(t, calls.Load())
}

func TestManagerReload_InvalidKeepsCurrent(t *testing.T) {
	path := writeConfigFile(t, managerConfig)
	mgr, err := NewManager(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	before := mgr.Status()

	require.NoError(t, os.WriteFile(path, []byte("router:\n  routing_strategy: round-robin\n"), 0644))

	assert.Error(t, mgr.Reload())
	assert.Equal(t, before, mgr.Status())
	assert.Equal(t, "least-busy", string(mgr.Get().Router.RoutingStrategy))
}

func TestManagerWatch_NotifiesListeners(t *testing.T) {
	path := writeConfigFile(t, managerConfig)
	mgr, err := NewManager(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	changed := make(chan *Config, 1)
	mgr.OnChange(func(cfg *Config) {
		select {
		case changed <- cfg:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, mgr.Watch(ctx))

	require.NoError(t, os.WriteFile(path, []byte(`
router:
  routing_strategy: 2
deployments:
  - model_name: gpt-4
`), 0644))

	select {
	case cfg := <-changed:
		assert.Equal(t, "2", string(cfg.Router.RoutingStrategy))
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestManagerReload_ConcurrentCallsAreSerialized(t *testing.T) {
	path := writeConfigFile(t, managerConfig)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mgr, err := NewManager(path, logger)
	require.NoError(t, err)

	var inFlight, maxInFlight atomic.Int32
	var lastSeen atomic.Pointer[Config]
	mgr.OnChange(func(cfg *Config) {
		n := inFlight.Add(1)
		for {
			cur := maxInFlight.Load()
			if n <= cur || maxInFlight.CompareAndSwap(cur, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		lastSeen.Store(cfg)
		inFlight.Add(-1)
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		next := filepath.Join(filepath.Dir(path), "next.yaml")
		content := managerConfig + "  - key: extra\n    model_name: m" + string(rune('a'+i)) + "\n"
		require.NoError(t, os.WriteFile(next, []byte(content), 0o600))
		require.NoError(t, os.Rename(next, path))
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, mgr.Reload())
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, mgr.Reload())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInFlight.Load())
	require.NotNil(t, lastSeen.Load())
	assert.Same(t, mgr.Get(), lastSeen.Load(), "the last notified config is the active one")
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
