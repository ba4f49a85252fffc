package handlers

import (
	"context"
	"net/http"
	"time"

	"shoppinglist/internal/caching"

	"github.com/labstack/echo/v4"
)

const healthCheckTimeout = 2 * time.Second

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// JobStatusReporter is satisfied by *background.JobScheduler.
type JobStatusReporter interface {
	GetJobStatus() map[string]interface{}
}

// HealthHandlers handles health check and monitoring endpoints
type HealthHandlers struct {
	db        Pinger
	cacheSvc  caching.CacheService
	jobs      JobStatusReporter
	version   string
	startedAt time.Time
}

// NewHealthHandlers creates a new health handlers instance
func NewHealthHandlers(db Pinger, cacheSvc caching.CacheService, version string) *HealthHandlers {
	if cacheSvc == nil {
		cacheSvc = caching.NewNoopCacheService()
	}
	return &HealthHandlers{
		db:        db,
		cacheSvc:  cacheSvc,
		version:   version,
		startedAt: time.Now(),
	}
}

// WithJobStatus adds the background scheduler to the detailed report.
func (h *HealthHandlers) WithJobStatus(jobs JobStatusReporter) *HealthHandlers {
	h.jobs = jobs
	return h
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Services  map[string]string      `json:"services"`
	Jobs      map[string]interface{} `json:"jobs,omitempty"`
	Uptime    string                 `json:"uptime"`
	Version   string                 `json:"version"`
}

func (h *HealthHandlers) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.LivenessCheck)
	e.GET("/health/ready", h.ReadinessCheck)
	e.GET("/health/detailed", h.HealthCheck)
}

// HealthCheck reports the state of every dependency.
func (h *HealthHandlers) HealthCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthCheckTimeout)
	defer cancel()

	health := &HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  make(map[string]string),
		Version:   h.version,
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
	}

	if err := h.db.Ping(ctx); err != nil {
		health.Services["database"] = "unhealthy"
		health.Status = "degraded"
	} else {
		health.Services["database"] = "healthy"
	}

	switch {
	case !h.cacheSvc.Enabled():
		health.Services["cache"] = "disabled"
	case h.cacheSvc.Ping(ctx) != nil:
		health.Services["cache"] = "unhealthy"
		health.Status = "degraded"
	default:
		health.Services["cache"] = "healthy"
	}

	if h.jobs != nil {
		health.Jobs = h.jobs.GetJobStatus()
	}

	statusCode := http.StatusOK
	if health.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	return c.JSON(statusCode, health)
}

// ReadinessCheck determines if the application is ready to serve traffic
func (h *HealthHandlers) ReadinessCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthCheckTimeout)
	defer cancel()

	// Redis is optional; only the database gates readiness.
	if err := h.db.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status":  "not_ready",
			"message": "Database unavailable",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ready",
		"message": "All systems operational",
	})
}

// LivenessCheck reports that the process is up. It touches no dependency.
func (h *HealthHandlers) LivenessCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":    "alive",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
