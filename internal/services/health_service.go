package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/LASER-IDEA/white-paper-sub000/internal/engine"
	"github.com/LASER-IDEA/white-paper-sub000/internal/infrastructure"
)

// HealthService reports process and engine health
type HealthService struct {
	version   string
	runtime   *infrastructure.RuntimeMetrics
	cache     *engine.ResultCache
	indices   int
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus is the body of GET /api/health
type HealthStatus struct {
	Status    string                       `json:"status"`
	Timestamp time.Time                    `json:"timestamp"`
	Version   string                       `json:"version"`
	Uptime    string                       `json:"uptime"`
	Indices   int                          `json:"indices"`
	Runtime   *infrastructure.RuntimeStats `json:"runtime,omitempty"`
	Cache     *engine.CacheStats           `json:"cache,omitempty"`
}

// NewHealthService creates a health service. runtime may be nil when metrics
// are disabled.
func NewHealthService(version string, eng *engine.Engine, runtime *infrastructure.RuntimeMetrics, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:   version,
		runtime:   runtime,
		cache:     eng.Cache(),
		indices:   len(eng.Definitions()),
		startTime: time.Now(),
		logger:    logger.With(slog.String("service", "health")),
	}
}

// HealthCheck returns the current health snapshot
func (s *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   s.version,
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Indices:   s.indices,
	}

	if s.runtime != nil {
		stats := s.runtime.Collect(ctx)
		status.Runtime = &stats
	}
	if s.cache != nil {
		stats := s.cache.Stats()
		status.Cache = &stats
	}
	if s.indices == 0 {
		status.Status = "degraded"
		s.logger.WarnContext(ctx, "engine has no indices configured")
	}
	return status
}
