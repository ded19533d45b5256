package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Icinga/icingaweb2-sub007/internal/model"
)

// Check result states
const (
	StatusHealthy  = "healthy"
	StatusWarning  = "warning"
	StatusCritical = "critical"
)

// Backends is the part of the backend registry the checker needs
type Backends interface {
	Health(maxAge time.Duration) []model.HealthStatus
}

// FileSet lists the input files of the configured backends
type FileSet map[string][]string

// HealthChecker runs periodic checks on the configured backends
type HealthChecker struct {
	backends      Backends
	files         FileSet
	maxStatusAge  time.Duration
	maxGoroutines int
	logger        *zap.Logger

	mu          sync.RWMutex
	lastCheck   time.Time
	status      model.BackendStatus
	checks      map[string]CheckResult
	backendInfo []model.HealthStatus
	readinessOK bool
}

// CheckResult represents the result of a health check
type CheckResult struct {
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthCheckConfig holds configuration for health checks
type HealthCheckConfig struct {
	Files         FileSet
	MaxStatusAge  time.Duration
	MaxGoroutines int
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(cfg *HealthCheckConfig, backends Backends, logger *zap.Logger) *HealthChecker {
	if cfg.MaxGoroutines <= 0 {
		cfg.MaxGoroutines = 10000
	}
	return &HealthChecker{
		backends:      backends,
		files:         cfg.Files,
		maxStatusAge:  cfg.MaxStatusAge,
		maxGoroutines: cfg.MaxGoroutines,
		logger:        logger,
		checks:        make(map[string]CheckResult),
		status:        model.BackendStatusUnhealthy,
	}
}

// Start runs the checks every interval until ctx is cancelled
func (h *HealthChecker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.RunChecks()

	for {
		select {
		case <-ticker.C:
			h.RunChecks()
		case <-ctx.Done():
			h.logger.Info("Health checker stopped")
			return
		}
	}
}

// RunChecks runs all checks once and updates the overall status
func (h *HealthChecker) RunChecks() {
	results := []CheckResult{h.checkFilesReadable(), h.checkGoroutines()}
	backendInfo := h.backends.Health(h.maxStatusAge)
	results = append(results, h.checkSnapshots(backendInfo))

	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastCheck = time.Now()
	h.backendInfo = backendInfo

	allHealthy, allReady := true, true
	for _, result := range results {
		h.checks[result.Name] = result
		if result.Status != StatusHealthy {
			allHealthy = false
			if result.Status == StatusCritical {
				allReady = false
			}
		}
	}

	switch {
	case allHealthy:
		h.status = model.BackendStatusHealthy
	case allReady:
		h.status = model.BackendStatusDegraded
	default:
		h.status = model.BackendStatusUnhealthy
	}
	h.readinessOK = allReady

	h.logger.Debug("Health check completed",
		zap.String("status", string(h.status)),
		zap.Bool("readiness", h.readinessOK))
}

func (h *HealthChecker) checkFilesReadable() CheckResult {
	result := CheckResult{Name: "files_readable", Status: StatusHealthy, Timestamp: time.Now()}

	count := 0
	for backend, paths := range h.files {
		for _, path := range paths {
			f, err := os.Open(path)
			if err != nil {
				result.Status = StatusCritical
				result.Message = fmt.Sprintf("backend %s: %v", backend, err)
				return result
			}
			f.Close()
			count++
		}
	}
	result.Message = fmt.Sprintf("%d input files readable", count)
	return result
}

func (h *HealthChecker) checkSnapshots(info []model.HealthStatus) CheckResult {
	result := CheckResult{Name: "snapshots", Status: StatusHealthy, Timestamp: time.Now()}

	var degraded, unhealthy []string
	for _, b := range info {
		switch b.Status {
		case model.BackendStatusDegraded:
			degraded = append(degraded, b.Backend)
		case model.BackendStatusUnhealthy:
			unhealthy = append(unhealthy, b.Backend)
		}
	}

	switch {
	case len(unhealthy) > 0:
		result.Status = StatusCritical
		result.Message = fmt.Sprintf("no snapshot loaded for %v", unhealthy)
	case len(degraded) > 0:
		result.Status = StatusWarning
		result.Message = fmt.Sprintf("stale or failing backends: %v", degraded)
	default:
		result.Message = fmt.Sprintf("%d backends up to date", len(info))
	}
	return result
}

func (h *HealthChecker) checkGoroutines() CheckResult {
	n := runtime.NumGoroutine()
	result := CheckResult{
		Name:      "goroutines",
		Status:    StatusHealthy,
		Message:   fmt.Sprintf("%d goroutines", n),
		Timestamp: time.Now(),
	}
	if n > h.maxGoroutines {
		result.Status = StatusWarning
	}
	return result
}

// IsReady reports whether every backend can serve queries
func (h *HealthChecker) IsReady() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.readinessOK
}

// Status returns the overall status
func (h *HealthChecker) Status() model.BackendStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

// GetChecks returns a copy of all check results
func (h *HealthChecker) GetChecks() map[string]CheckResult {
	h.mu.RLock()
	defer h.mu.RUnlock()

	checks := make(map[string]CheckResult, len(h.checks))
	for k, v := range h.checks {
		checks[k] = v
	}
	return checks
}

// SetReadiness overrides readiness, e.g. during shutdown
func (h *HealthChecker) SetReadiness(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readinessOK = ready
}

// LivenessHandler answers liveness probes. The process is live as long as it
// can answer.
func (h *HealthChecker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	body := map[string]interface{}{
		"status":    h.status,
		"checks":    h.checks,
		"backends":  h.backendInfo,
		"timestamp": h.lastCheck.Format(time.RFC3339),
	}
	h.mu.RUnlock()

	writeJSON(w, http.StatusOK, body)
}

// ReadinessHandler answers readiness probes
func (h *HealthChecker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	ready := h.readinessOK
	status := h.status
	h.mu.RUnlock()

	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{
		"ready":  ready,
		"status": status,
	})
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
