package service

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Icinga/icingaweb2-sub007/internal/errors"
	"github.com/Icinga/icingaweb2-sub007/internal/metrics"
	"github.com/Icinga/icingaweb2-sub007/internal/model"
	"github.com/Icinga/icingaweb2-sub007/internal/parser"
	"github.com/Icinga/icingaweb2-sub007/internal/query"
	"github.com/Icinga/icingaweb2-sub007/internal/util"
	"github.com/Icinga/icingaweb2-sub007/internal/validation"
	"github.com/Icinga/icingaweb2-sub007/internal/view"
)

// Skip reasons reported by Load
const (
	SkipRateLimited = "rate_limited"
	SkipUnchanged   = "unchanged"
)

// ReaderConfig describes one backend
type ReaderConfig struct {
	Name        string
	ObjectsFile string
	StatusFile  string

	// MinInterval is the minimum time between two parses; faster reloads
	// are served from the published snapshot
	MinInterval time.Duration

	DefaultLimit int
	MaxLimit     int
	Location     *time.Location
}

// Snapshot is an immutable, fully parsed view of one backend
type Snapshot struct {
	ID          uuid.UUID
	Backend     string
	Graph       *model.Graph
	Objects     util.Fingerprint
	Status      util.Fingerprint
	LoadedAt    time.Time
	ObjectStats parser.Stats
	StatusStats parser.Stats
}

// Age returns the time since the snapshot was published
func (s *Snapshot) Age() time.Duration {
	return time.Since(s.LoadedAt)
}

// Reader owns the published snapshot of one backend. Loads are serialized;
// queries run against whichever snapshot was published when they started.
type Reader struct {
	config  *ReaderConfig
	parser  *parser.Parser
	cache   *SnapshotCache
	metrics *metrics.Metrics
	logger  *zap.Logger
	limiter *rate.Limiter

	loadMu sync.Mutex

	mu       sync.RWMutex
	snapshot *Snapshot
	lastErr  error
	lastLoad time.Duration
}

// NewReader creates a reader. cache and m may be nil.
func NewReader(cfg *ReaderConfig, cache *SnapshotCache, m *metrics.Metrics, logger *zap.Logger) *Reader {
	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	return &Reader{
		config:  cfg,
		parser:  parser.NewParser(logger.With(zap.String("backend", cfg.Name))),
		cache:   cache,
		metrics: m,
		logger:  logger.With(zap.String("backend", cfg.Name)),
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Name returns the backend name
func (r *Reader) Name() string {
	return r.config.Name
}

// Config returns the backend configuration
func (r *Reader) Config() ReaderConfig {
	return *r.config
}

// Snapshot returns the published snapshot or nil before the first load
func (r *Reader) Snapshot() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot
}

// LastError returns the error of the most recent load attempt
func (r *Reader) LastError() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastErr
}

// Load parses the backend files and publishes a new snapshot. It returns
// the current snapshot unchanged when the files have not changed or the
// previous load was less than MinInterval ago. A failed load keeps the
// previous snapshot published.
func (r *Reader) Load(ctx context.Context) (*Snapshot, error) {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()

	current := r.Snapshot()
	allowed := r.limiter.Allow()
	if current != nil && !allowed {
		r.skipped(SkipRateLimited)
		return current, nil
	}

	start := time.Now()
	snap, err := r.load(ctx, current)

	r.mu.Lock()
	r.lastErr = err
	if err == nil && snap != current {
		r.snapshot = snap
		r.lastLoad = time.Since(start)
	}
	r.mu.Unlock()

	if err != nil {
		r.logger.Error("Failed to load backend", zap.Error(err))
		return current, err
	}
	if snap == current {
		r.skipped(SkipUnchanged)
		return current, nil
	}

	r.publishMetrics(snap)
	r.logger.Info("Published snapshot",
		zap.String("snapshot_id", snap.ID.String()),
		zap.Int("records", snap.Graph.Size()),
		zap.Int("status_blocks", snap.StatusStats.StatusBlocks),
		zap.Duration("duration", time.Since(start)))
	return snap, nil
}

func (r *Reader) load(ctx context.Context, current *Snapshot) (*Snapshot, error) {
	objectsFP, err := util.StatFile(r.config.ObjectsFile)
	if err != nil {
		return nil, errors.ReadFailed(r.config.ObjectsFile, err)
	}
	var statusFP util.Fingerprint
	if r.config.StatusFile != "" {
		if statusFP, err = util.StatFile(r.config.StatusFile); err != nil {
			return nil, errors.ReadFailed(r.config.StatusFile, err)
		}
	}

	if current != nil && current.Objects.SameVersion(objectsFP) && current.Status.SameVersion(statusFP) {
		return current, nil
	}

	pristine, objectsFP, objectStats, err := r.objects(objectsFP)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap := &Snapshot{
		ID:          uuid.New(),
		Backend:     r.config.Name,
		Graph:       pristine,
		Objects:     objectsFP,
		ObjectStats: objectStats,
	}

	if r.config.StatusFile != "" {
		g, stats, fp, err := r.runtimeState(pristine.Clone(), statusFP)
		if err != nil {
			return nil, err
		}
		snap.Graph = g
		snap.Status = fp
		snap.StatusStats = stats
	}

	snap.LoadedAt = time.Now()
	return snap, nil
}

// objects returns the pristine objects graph for fp, parsing the file only
// when the cache has no entry for this file version
func (r *Reader) objects(fp util.Fingerprint) (*model.Graph, util.Fingerprint, parser.Stats, error) {
	if r.cache != nil {
		if entry, ok := r.cache.Get(fp); ok {
			r.logger.Debug("Objects graph served from cache", zap.String("source", entry.Source.String()))
			return entry.Graph, entry.Source, parser.Stats{}, nil
		}
	}

	start := time.Now()
	f, err := os.Open(fp.Path)
	if err != nil {
		return nil, fp, parser.Stats{}, errors.ReadFailed(fp.Path, err)
	}
	defer f.Close()

	cr := util.NewChecksumReader(f)
	g, stats, err := r.parser.ParseObjects(cr)
	r.recordParse("objects", err, time.Since(start), stats)
	if err != nil {
		return nil, fp, stats, err
	}

	fp.Checksum = cr.Sum32()
	if r.metrics != nil {
		r.metrics.RecordDroppedReferences(r.config.Name, stats.Graph.Dropped)
	}
	if r.cache != nil {
		r.cache.Put(fp, g)
	}
	return g, fp, stats, nil
}

func (r *Reader) runtimeState(g *model.Graph, fp util.Fingerprint) (*model.Graph, parser.Stats, util.Fingerprint, error) {
	start := time.Now()
	f, err := os.Open(fp.Path)
	if err != nil {
		return nil, parser.Stats{}, fp, errors.ReadFailed(fp.Path, err)
	}
	defer f.Close()

	cr := util.NewChecksumReader(f)
	g, stats, err := r.parser.ParseRuntimeState(cr, g)
	r.recordParse("status", err, time.Since(start), stats)
	if err != nil {
		return nil, stats, fp, err
	}
	if r.metrics != nil {
		r.metrics.RecordStatusBlocks(r.config.Name, stats.StatusBlocks, stats.SkippedBlocks)
	}

	fp.Checksum = cr.Sum32()
	return g, stats, fp, nil
}

// Query starts a query on the published snapshot using the status view of
// the target, the configured time zone and the configured limits
func (r *Reader) Query(target string, columns ...string) (*query.Query, error) {
	snap := r.Snapshot()
	if snap == nil {
		return nil, errors.Unavailable("backend "+r.config.Name+" has not been loaded", r.LastError())
	}

	q, err := query.New(snap.Graph, target, columns...)
	if err != nil {
		return nil, err
	}
	q.WithView(view.ForTarget(target).In(r.config.Location))
	if r.config.MaxLimit > 0 {
		q.WithValidator(validation.NewValidatorWithLimits(validation.MaxColumnNameSize, r.config.MaxLimit))
	}
	if r.config.DefaultLimit > 0 {
		q.Limit(r.config.DefaultLimit, 0)
	}
	return q, nil
}

// Health reports the backend state. A backend without snapshot is
// unhealthy; a failed last load or a snapshot older than maxAge is degraded.
func (r *Reader) Health(maxAge time.Duration) model.HealthStatus {
	r.mu.RLock()
	snap, lastErr, lastLoad := r.snapshot, r.lastErr, r.lastLoad
	r.mu.RUnlock()

	h := model.HealthStatus{
		Backend:   r.config.Name,
		Status:    model.BackendStatusHealthy,
		Timestamp: time.Now().Unix(),
	}
	h.Metrics.LastLoadMillis = lastLoad.Milliseconds()
	if r.cache != nil {
		h.Metrics.CacheHitRate = r.cache.Stats().HitRate
	}

	if snap == nil {
		h.Status = model.BackendStatusUnhealthy
		return h
	}
	h.Metrics.Records = snap.Graph.Size()
	h.Metrics.SnapshotID = snap.ID.String()
	h.Metrics.StatusAgeSecs = snap.Age().Seconds()
	if r.metrics != nil {
		r.metrics.UpdateSnapshotAge(r.config.Name, h.Metrics.StatusAgeSecs)
	}

	if lastErr != nil || (maxAge > 0 && snap.Age() > maxAge) {
		h.Status = model.BackendStatusDegraded
	}
	return h
}

func (r *Reader) recordParse(file string, err error, duration time.Duration, stats parser.Stats) {
	if r.metrics == nil {
		return
	}
	r.metrics.RecordParse(r.config.Name, file, errors.StatusLabel(err), duration.Seconds(), stats.Lines)
}

func (r *Reader) skipped(reason string) {
	if r.metrics != nil {
		r.metrics.RecordReloadSkipped(r.config.Name, reason)
	}
	r.logger.Debug("Reload skipped", zap.String("reason", reason))
}

func (r *Reader) publishMetrics(snap *Snapshot) {
	if r.metrics == nil {
		return
	}
	counts := make(map[string]int)
	for _, typeName := range snap.Graph.Types() {
		counts[typeName] = snap.Graph.Len(typeName)
	}
	r.metrics.UpdateGraph(r.config.Name, counts)
	r.metrics.UpdateSnapshotAge(r.config.Name, 0)
}
