package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Icinga/icingaweb2-sub007/internal/util/workerpool"
)

// Refresher reloads every backend of a registry on a fixed interval using a
// worker pool. A backend whose previous reload is still queued or running
// is not queued again.
type Refresher struct {
	registry *Registry
	pool     *workerpool.WorkerPool
	interval time.Duration
	logger   *zap.Logger

	// OnReload is called after every reload attempt when set
	OnReload func(backend string, snap *Snapshot, err error)
}

// NewRefresher creates a refresher on top of pool
func NewRefresher(registry *Registry, pool *workerpool.WorkerPool, interval time.Duration, logger *zap.Logger) *Refresher {
	return &Refresher{
		registry: registry,
		pool:     pool,
		interval: interval,
		logger:   logger,
	}
}

// Run schedules reloads until ctx is cancelled. The first round is
// scheduled immediately.
func (f *Refresher) Run(ctx context.Context) {
	f.Trigger()
	if f.interval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			f.Trigger()
			if cache := f.registry.Cache(); cache != nil {
				cache.AdjustWeights()
			}
		case <-ctx.Done():
			f.logger.Info("Refresher stopped")
			return
		}
	}
}

// Trigger queues one reload per backend and returns the number queued
func (f *Refresher) Trigger() int {
	queued := 0
	for _, reader := range f.registry.Readers() {
		reader := reader
		ok, err := f.pool.Submit(workerpool.Task{
			ID: reader.Name(),
			Fn: func(ctx context.Context) error {
				snap, err := reader.Load(ctx)
				if f.OnReload != nil {
					f.OnReload(reader.Name(), snap, err)
				}
				return err
			},
		})
		if err != nil {
			f.logger.Warn("Failed to queue reload",
				zap.String("backend", reader.Name()),
				zap.Error(err))
			continue
		}
		if ok {
			queued++
		}
	}
	return queued
}
