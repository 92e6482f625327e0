package main

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// checkpointer is the subset of routers.Router the periodic checkpoint needs.
type checkpointer interface {
	Checkpoint(ctx context.Context) error
}

// checkpointRunner saves registry state on an interval and once more on Stop.
type checkpointRunner struct {
	target   checkpointer
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func startCheckpointRunner(target checkpointer, interval time.Duration, logger *slog.Logger) *checkpointRunner {
	if target == nil || interval <= 0 {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &checkpointRunner{
		target:   target,
		interval: interval,
		timeout:  10 * time.Second,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go r.loop()
	return r
}

func (r *checkpointRunner) loop() {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			r.run()
			return
		case <-ticker.C:
			r.run()
		}
	}
}

func (r *checkpointRunner) run() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.target.Checkpoint(ctx); err != nil {
		r.logger.Warn("registry checkpoint failed", "error", err)
	}
}

// Stop performs a final checkpoint and waits for the loop to exit.
func (r *checkpointRunner) Stop() {
	if r == nil {
		return
	}
	r.once.Do(func() { close(r.stop) })
	<-r.done
}
