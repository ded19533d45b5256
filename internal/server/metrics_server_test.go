package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/Icinga/icingaweb2-sub007/internal/health"
	"github.com/Icinga/icingaweb2-sub007/internal/metrics"
	"github.com/Icinga/icingaweb2-sub007/internal/model"
)

type backends []model.HealthStatus

func (b backends) Health(time.Duration) []model.HealthStatus {
	return b
}

func TestRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	m.RecordQuery("hosts", "OK", 0.01, 3)

	checker := health.NewHealthChecker(&health.HealthCheckConfig{}, backends{{Backend: "a", Status: model.BackendStatusHealthy}}, zap.NewNop())
	checker.RunChecks()

	router := NewRouter(reg, checker)

	tests := []struct {
		path     string
		method   string
		wantCode int
		contains string
	}{
		{"/metrics", http.MethodGet, http.StatusOK, "statusdat_query_queries_total"},
		{"/health", http.MethodGet, http.StatusOK, `"status":"healthy"`},
		{"/ready", http.MethodGet, http.StatusOK, `"ready":true`},
		{"/ready", http.MethodPost, http.StatusMethodNotAllowed, ""},
		{"/nope", http.MethodGet, http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.contains != "" {
				assert.Contains(t, rec.Body.String(), tt.contains)
			}
		})
	}
}
