package service

import (
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Icinga/icingaweb2-sub007/internal/metrics"
	"github.com/Icinga/icingaweb2-sub007/internal/model"
	"github.com/Icinga/icingaweb2-sub007/internal/util"
)

// CacheEntry is a parsed objects graph together with the file version it
// was parsed from. Cached graphs are never mutated; readers clone them
// before overlaying runtime state.
type CacheEntry struct {
	Key         string
	Graph       *model.Graph
	Source      util.Fingerprint
	AccessCount int64
	LastAccess  time.Time
	Score       float64
}

// SnapshotCache keeps parsed objects graphs keyed by file path and evicts
// by an adaptive mix of access frequency and recency
type SnapshotCache struct {
	config          *CacheConfig
	entries         map[string]*CacheEntry
	logger          *zap.Logger
	metrics         *metrics.Metrics
	mu              sync.Mutex
	frequencyWeight float64
	recencyWeight   float64
	hits            uint64
	misses          uint64
}

// CacheConfig holds snapshot cache configuration
type CacheConfig struct {
	MaxEntries      int
	FrequencyWeight float64
	RecencyWeight   float64
	AdaptiveWindow  time.Duration
}

// NewSnapshotCache creates a cache. m may be nil.
func NewSnapshotCache(cfg *CacheConfig, m *metrics.Metrics, logger *zap.Logger) *SnapshotCache {
	if cfg.MaxEntries < 1 {
		cfg.MaxEntries = 1
	}
	return &SnapshotCache{
		config:          cfg,
		entries:         make(map[string]*CacheEntry),
		logger:          logger,
		metrics:         m,
		frequencyWeight: cfg.FrequencyWeight,
		recencyWeight:   cfg.RecencyWeight,
	}
}

// Get returns the graph cached for fp.Path if it was parsed from the same
// file version. A stale entry is dropped.
func (s *SnapshotCache) Get(fp util.Fingerprint) (*CacheEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, found := s.entries[fp.Path]
	if found && !entry.Source.SameVersion(fp) {
		delete(s.entries, fp.Path)
		s.logger.Debug("Dropped stale cache entry",
			zap.String("path", fp.Path),
			zap.Time("cached_mtime", entry.Source.ModTime),
			zap.Time("current_mtime", fp.ModTime))
		found = false
	}
	if !found {
		s.misses++
		if s.metrics != nil {
			s.metrics.RecordCacheMiss()
			s.metrics.UpdateCacheSize(len(s.entries))
		}
		return nil, false
	}

	entry.AccessCount++
	entry.LastAccess = time.Now()
	entry.Score = s.calculateScore(entry)
	s.hits++
	if s.metrics != nil {
		s.metrics.RecordCacheHit()
	}
	return entry, true
}

// Put stores a freshly parsed graph, replacing any entry for the same path
func (s *SnapshotCache) Put(fp util.Fingerprint, g *model.Graph) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, found := s.entries[fp.Path]; found {
		existing.Graph = g
		existing.Source = fp
		existing.AccessCount++
		existing.LastAccess = time.Now()
		existing.Score = s.calculateScore(existing)
		return
	}

	for len(s.entries) >= s.config.MaxEntries {
		s.evictLowestScore()
	}

	entry := &CacheEntry{
		Key:         fp.Path,
		Graph:       g,
		Source:      fp,
		AccessCount: 1,
		LastAccess:  time.Now(),
	}
	entry.Score = s.calculateScore(entry)
	s.entries[fp.Path] = entry

	if s.metrics != nil {
		s.metrics.UpdateCacheSize(len(s.entries))
	}
}

// Remove drops the entry for path
func (s *SnapshotCache) Remove(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, path)
}

// calculateScore combines access frequency and idle time; higher is better
func (s *SnapshotCache) calculateScore(entry *CacheEntry) float64 {
	frequencyScore := float64(entry.AccessCount)
	recencyScore := time.Since(entry.LastAccess).Seconds()
	return s.frequencyWeight*frequencyScore - s.recencyWeight*recencyScore
}

func (s *SnapshotCache) evictLowestScore() {
	var lowestKey string
	lowestScore := math.Inf(1)

	for key, entry := range s.entries {
		// scores age with time, so refresh before comparing
		entry.Score = s.calculateScore(entry)
		if entry.Score < lowestScore {
			lowestScore = entry.Score
			lowestKey = key
		}
	}

	if lowestKey == "" {
		return
	}
	delete(s.entries, lowestKey)
	if s.metrics != nil {
		s.metrics.RecordCacheEviction()
	}
	s.logger.Debug("Evicted cache entry",
		zap.String("path", lowestKey),
		zap.Float64("score", lowestScore))
}

// AdjustWeights shifts between LRU and LFU behaviour depending on how many
// entries were used within the adaptive window
func (s *SnapshotCache) AdjustWeights() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) == 0 {
		return
	}

	recentThreshold := time.Now().Add(-s.config.AdaptiveWindow)
	var recent int
	for _, entry := range s.entries {
		if entry.LastAccess.After(recentThreshold) {
			recent++
		}
	}
	hotnessRatio := float64(recent) / float64(len(s.entries))

	switch {
	case hotnessRatio > 0.7:
		s.recencyWeight, s.frequencyWeight = 0.7, 0.3
	case hotnessRatio < 0.3:
		s.recencyWeight, s.frequencyWeight = 0.3, 0.7
	default:
		s.recencyWeight, s.frequencyWeight = 0.5, 0.5
	}

	s.logger.Debug("Adjusted cache weights",
		zap.Float64("recency_weight", s.recencyWeight),
		zap.Float64("frequency_weight", s.frequencyWeight),
		zap.Float64("hotness_ratio", hotnessRatio))
}

// Stats returns cache statistics
func (s *SnapshotCache) Stats() CacheStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := CacheStats{
		EntryCount:      len(s.entries),
		MaxEntries:      s.config.MaxEntries,
		Hits:            s.hits,
		Misses:          s.misses,
		FrequencyWeight: s.frequencyWeight,
		RecencyWeight:   s.recencyWeight,
	}
	if total := s.hits + s.misses; total > 0 {
		stats.HitRate = float64(s.hits) / float64(total)
	}
	return stats
}

// CacheStats holds cache statistics
type CacheStats struct {
	EntryCount      int
	MaxEntries      int
	Hits            uint64
	Misses          uint64
	HitRate         float64
	FrequencyWeight float64
	RecencyWeight   float64
}
