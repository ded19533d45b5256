package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Icinga/icingaweb2-sub007/internal/config"
	"github.com/Icinga/icingaweb2-sub007/internal/errors"
	"github.com/Icinga/icingaweb2-sub007/internal/metrics"
	"github.com/Icinga/icingaweb2-sub007/internal/model"
)

// Registry holds the readers of every configured backend. It is built once
// per process and passed to whatever needs backend access.
type Registry struct {
	mu      sync.RWMutex
	readers map[string]*Reader
	order   []string

	cache       *SnapshotCache
	concurrency int
	logger      *zap.Logger
}

// NewRegistry creates an empty registry. concurrency bounds ReloadAll.
func NewRegistry(cache *SnapshotCache, concurrency int, logger *zap.Logger) *Registry {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Registry{
		readers:     make(map[string]*Reader),
		cache:       cache,
		concurrency: concurrency,
		logger:      logger,
	}
}

// NewRegistryFromConfig builds a registry with one reader per backend,
// sharing one snapshot cache
func NewRegistryFromConfig(cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) (*Registry, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("failed to load time zone: %w", err)
	}

	var cache *SnapshotCache
	if cfg.Cache.Enabled {
		cache = NewSnapshotCache(&CacheConfig{
			MaxEntries:      cfg.Cache.MaxEntries,
			FrequencyWeight: cfg.Cache.FrequencyWeight,
			RecencyWeight:   cfg.Cache.RecencyWeight,
			AdaptiveWindow:  cfg.Cache.AdaptiveWindow,
		}, m, logger)
	}

	reg := NewRegistry(cache, cfg.Reload.Workers, logger)
	for _, b := range cfg.Backends {
		reader := NewReader(&ReaderConfig{
			Name:         b.Name,
			ObjectsFile:  b.ObjectsFile,
			StatusFile:   b.StatusFile,
			MinInterval:  cfg.Reload.MinInterval,
			DefaultLimit: cfg.Query.DefaultLimit,
			MaxLimit:     cfg.Query.MaxLimit,
			Location:     loc,
		}, cache, m, logger)
		if err := reg.Add(reader); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Add registers a reader under its backend name
func (r *Registry) Add(reader *Reader) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.readers[reader.Name()]; ok {
		return fmt.Errorf("backend %q already registered", reader.Name())
	}
	r.readers[reader.Name()] = reader
	r.order = append(r.order, reader.Name())
	return nil
}

// Get returns the reader of a backend
func (r *Registry) Get(name string) (*Reader, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reader, ok := r.readers[name]
	if !ok {
		return nil, errors.Unavailable(fmt.Sprintf("unknown backend %q", name), nil)
	}
	return reader, nil
}

// Default returns the first registered reader
func (r *Registry) Default() (*Reader, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.order) == 0 {
		return nil, errors.Unavailable("no backends configured", nil)
	}
	return r.readers[r.order[0]], nil
}

// Names returns the backend names in registration order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Readers returns the readers in registration order
func (r *Registry) Readers() []*Reader {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Reader, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.readers[name])
	}
	return out
}

// Cache returns the shared snapshot cache, nil when caching is disabled
func (r *Registry) Cache() *SnapshotCache {
	return r.cache
}

// ReloadAll loads every backend concurrently. Every backend is attempted;
// the first error is returned.
func (r *Registry) ReloadAll(ctx context.Context) error {
	var g errgroup.Group
	g.SetLimit(r.concurrency)

	for _, reader := range r.Readers() {
		reader := reader
		g.Go(func() error {
			if _, err := reader.Load(ctx); err != nil {
				return fmt.Errorf("backend %s: %w", reader.Name(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Health reports every backend, sorted by name
func (r *Registry) Health(maxAge time.Duration) []model.HealthStatus {
	readers := r.Readers()
	out := make([]model.HealthStatus, 0, len(readers))
	for _, reader := range readers {
		out = append(out, reader.Health(maxAge))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Backend < out[j].Backend })
	return out
}
