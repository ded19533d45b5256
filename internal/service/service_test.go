package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Icinga/icingaweb2-sub007/internal/config"
	"github.com/Icinga/icingaweb2-sub007/internal/errors"
	"github.com/Icinga/icingaweb2-sub007/internal/metrics"
	"github.com/Icinga/icingaweb2-sub007/internal/model"
	"github.com/Icinga/icingaweb2-sub007/internal/util"
	"github.com/Icinga/icingaweb2-sub007/internal/util/workerpool"
)

const objectsFixture = `
define host {
    host_name	web1
    address	10.0.0.1
}

define host {
    host_name	web2
    address	10.0.0.2
}

define service {
    host_name	web1
    service_description	http
}
`

const statusFixture = `
hoststatus {
    host_name=web1
    current_state=0
    last_check=3600
}

hoststatus {
    host_name=web2
    current_state=1
}

servicestatus {
    host_name=web1
    service_description=http
    current_state=2
}
`

type fixture struct {
	dir     string
	objects string
	status  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		dir:     dir,
		objects: filepath.Join(dir, "objects.cache"),
		status:  filepath.Join(dir, "status.dat"),
	}
	f.write(t, f.objects, objectsFixture, 0)
	f.write(t, f.status, statusFixture, 0)
	return f
}

// write replaces a file and moves its mtime forward so the new version is
// detectable even within the same clock tick
func (f *fixture) write(t *testing.T, path, content string, bump int) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	if bump > 0 {
		mtime := time.Now().Add(time.Duration(bump) * time.Minute)
		require.NoError(t, os.Chtimes(path, mtime, mtime))
	}
}

func newTestReader(f *fixture, minInterval time.Duration, cache *SnapshotCache, m *metrics.Metrics) *Reader {
	return NewReader(&ReaderConfig{
		Name:        "test",
		ObjectsFile: f.objects,
		StatusFile:  f.status,
		MinInterval: minInterval,
	}, cache, m, zap.NewNop())
}

func newTestCache(m *metrics.Metrics) *SnapshotCache {
	return NewSnapshotCache(&CacheConfig{MaxEntries: 2, FrequencyWeight: 0.5, RecencyWeight: 0.5, AdaptiveWindow: time.Minute}, m, zap.NewNop())
}

func TestReaderLoadAndQuery(t *testing.T) {
	f := newFixture(t)
	r := newTestReader(f, 0, nil, nil)

	_, err := r.Query("hosts", "host_name")
	assert.Equal(t, errors.ErrCodeUnavailable, errors.GetCode(err))

	snap, err := r.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.NotEmpty(t, snap.ID.String())
	assert.Equal(t, 3, snap.StatusStats.StatusBlocks)
	assert.NotZero(t, snap.Objects.Checksum)
	assert.Equal(t, util.ComputeChecksum([]byte(statusFixture)), snap.Status.Checksum)

	q, err := r.Query("hosts", "host_name", "host_state", "host_last_check")
	require.NoError(t, err)
	q.WhereExpr("host_state = 0")
	list, err := q.FetchAll()
	require.NoError(t, err)
	assert.Equal(t, []map[string]string{{
		"host_name":       "web1",
		"host_state":      "0",
		"host_last_check": "1970-01-01 01:00:00",
	}}, list.Rows())
}

func TestReaderQueryUsesConfiguredZoneAndLimits(t *testing.T) {
	f := newFixture(t)
	r := NewReader(&ReaderConfig{
		Name:         "test",
		ObjectsFile:  f.objects,
		StatusFile:   f.status,
		DefaultLimit: 1,
		MaxLimit:     1,
		Location:     time.FixedZone("CET", 3600),
	}, nil, nil, zap.NewNop())
	_, err := r.Load(context.Background())
	require.NoError(t, err)

	q, err := r.Query("hosts", "host_name", "host_last_check")
	require.NoError(t, err)
	list, err := q.FetchAll()
	require.NoError(t, err)
	require.Equal(t, 1, list.Len())
	assert.Equal(t, "1970-01-01 02:00:00", list.Row(0)["host_last_check"])

	n, err := q.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	q.Limit(2, 0)
	_, err = q.FetchAll()
	assert.Equal(t, errors.ErrCodeInvalidPagination, errors.GetCode(err))
}

func TestReaderSkipsUnchangedFiles(t *testing.T) {
	f := newFixture(t)
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	r := newTestReader(f, 0, nil, m)

	first, err := r.Load(context.Background())
	require.NoError(t, err)
	second, err := r.Load(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReloadsSkipped.WithLabelValues("test", SkipUnchanged)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ParsesTotal.WithLabelValues("test", "objects", "OK")))
}

func TestReaderReusesCachedObjects(t *testing.T) {
	f := newFixture(t)
	m := metrics.NewMetrics(prometheus.NewRegistry())
	cache := newTestCache(m)
	r := newTestReader(f, 0, cache, m)

	first, err := r.Load(context.Background())
	require.NoError(t, err)

	f.write(t, f.status, statusFixture+"\nhoststatus {\n    host_name=web1\n    current_state=2\n}\n", 1)
	second, err := r.Load(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ParsesTotal.WithLabelValues("test", "objects", "OK")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ParsesTotal.WithLabelValues("test", "status", "OK")))

	// the old snapshot keeps its own overlay
	web1, _ := first.Graph.Get("host", "web1")
	assert.Equal(t, "0", web1.Status.Value("current_state"))
	web1, _ = second.Graph.Get("host", "web1")
	assert.Equal(t, "2", web1.Status.Value("current_state"))

	// the cached objects graph never receives runtime state
	entry, ok := cache.Get(first.Objects)
	require.True(t, ok)
	pristine, _ := entry.Graph.Get("host", "web1")
	assert.Nil(t, pristine.Status)
}

func TestReaderRateLimit(t *testing.T) {
	f := newFixture(t)
	r := newTestReader(f, time.Hour, nil, nil)

	first, err := r.Load(context.Background())
	require.NoError(t, err)

	f.write(t, f.status, statusFixture, 1)
	second, err := r.Load(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestReaderFailedLoadKeepsSnapshot(t *testing.T) {
	f := newFixture(t)
	r := newTestReader(f, 0, nil, nil)

	first, err := r.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.BackendStatusHealthy, r.Health(time.Minute).Status)

	f.write(t, f.status, "hoststatus {\n    host_name=ghost\n}\n", 1)
	current, err := r.Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeUnknownObject, errors.GetCode(err))
	assert.Same(t, first, current)
	assert.Same(t, first, r.Snapshot())

	h := r.Health(time.Minute)
	assert.Equal(t, model.BackendStatusDegraded, h.Status)
	assert.Equal(t, first.ID.String(), h.Metrics.SnapshotID)
	assert.Equal(t, 3, h.Metrics.Records)
}

func TestReaderMissingFile(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.Remove(f.objects))
	r := newTestReader(f, 0, nil, nil)

	_, err := r.Load(context.Background())
	assert.Equal(t, errors.ErrCodeReadFailed, errors.GetCode(err))
	assert.Equal(t, model.BackendStatusUnhealthy, r.Health(time.Minute).Status)
}

func TestReaderCancelledContext(t *testing.T) {
	f := newFixture(t)
	r := newTestReader(f, 0, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, r.Snapshot())
}

func TestSnapshotCacheEviction(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	cache := NewSnapshotCache(&CacheConfig{MaxEntries: 1, FrequencyWeight: 0.5, RecencyWeight: 0.5}, m, zap.NewNop())

	a := util.Fingerprint{Path: "/a", Size: 1, ModTime: time.Unix(100, 0)}
	b := util.Fingerprint{Path: "/b", Size: 1, ModTime: time.Unix(100, 0)}
	cache.Put(a, model.NewGraph())
	cache.Put(b, model.NewGraph())

	_, ok := cache.Get(a)
	assert.False(t, ok)
	_, ok = cache.Get(b)
	assert.True(t, ok)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheEvictionsTotal))

	stale := b
	stale.ModTime = time.Unix(200, 0)
	_, ok = cache.Get(stale)
	assert.False(t, ok)

	stats := cache.Stats()
	assert.Equal(t, 0, stats.EntryCount)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(2), stats.Misses)
}

func TestSnapshotCacheAdjustWeights(t *testing.T) {
	cache := NewSnapshotCache(&CacheConfig{MaxEntries: 4, FrequencyWeight: 0.5, RecencyWeight: 0.5, AdaptiveWindow: time.Hour}, nil, zap.NewNop())
	cache.Put(util.Fingerprint{Path: "/a"}, model.NewGraph())
	cache.AdjustWeights()

	stats := cache.Stats()
	assert.Equal(t, 0.7, stats.RecencyWeight)
	assert.Equal(t, 0.3, stats.FrequencyWeight)
}

func TestRegistryReloadAll(t *testing.T) {
	good := newFixture(t)
	bad := newFixture(t)
	require.NoError(t, os.Remove(bad.objects))

	cfg := config.DefaultConfig()
	cfg.Backends = []config.BackendConfig{
		{Name: "good", ObjectsFile: good.objects, StatusFile: good.status},
		{Name: "bad", ObjectsFile: bad.objects},
	}
	reg, err := NewRegistryFromConfig(cfg, nil, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []string{"good", "bad"}, reg.Names())

	err = reg.ReloadAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend bad")

	r, err := reg.Get("good")
	require.NoError(t, err)
	assert.NotNil(t, r.Snapshot())

	def, err := reg.Default()
	require.NoError(t, err)
	assert.Equal(t, "good", def.Name())

	_, err = reg.Get("missing")
	assert.Error(t, err)

	health := reg.Health(time.Minute)
	require.Len(t, health, 2)
	assert.Equal(t, "bad", health[0].Backend)
	assert.Equal(t, model.BackendStatusUnhealthy, health[0].Status)
	assert.Equal(t, model.BackendStatusHealthy, health[1].Status)

	assert.Error(t, reg.Add(r))
}

func TestRefresherTrigger(t *testing.T) {
	f := newFixture(t)
	reg := NewRegistry(nil, 1, zap.NewNop())
	require.NoError(t, reg.Add(newTestReader(f, 0, nil, nil)))

	pool := workerpool.NewWorkerPool(&workerpool.Config{Name: "reload", MaxWorkers: 1, QueueSize: 4, Logger: zap.NewNop()})
	defer pool.Stop(time.Second)

	done := make(chan error, 1)
	refresher := NewRefresher(reg, pool, time.Hour, zap.NewNop())
	refresher.OnReload = func(backend string, snap *Snapshot, err error) {
		assert.Equal(t, "test", backend)
		done <- err
	}

	assert.Equal(t, 1, refresher.Trigger())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("reload did not run")
	}

	r, _ := reg.Get("test")
	assert.NotNil(t, r.Snapshot())
}
