package model

// HealthStatus represents the health state of a status reader backend
type HealthStatus struct {
	Backend   string
	Status    BackendStatus
	Timestamp int64
	Metrics   HealthMetrics
}

// BackendStatus defines the operational status of a backend
type BackendStatus string

const (
	BackendStatusHealthy   BackendStatus = "healthy"
	BackendStatusDegraded  BackendStatus = "degraded"
	BackendStatusUnhealthy BackendStatus = "unhealthy"
)

// HealthMetrics contains figures reported alongside the status
type HealthMetrics struct {
	Records        int
	StatusAgeSecs  float64
	SnapshotID     string
	CacheHitRate   float64
	LastLoadMillis int64
}
