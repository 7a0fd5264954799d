package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// HealthCheck represents the health status of the server
type HealthCheck struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	GitCommit string                 `json:"git_commit"`
	Checks    map[string]CheckResult `json:"checks"`
	Timestamp string                 `json:"timestamp"`
}

// CheckResult represents the result of a single health check
type CheckResult struct {
	Status    string         `json:"status"`
	Message   string         `json:"message,omitempty"`
	LatencyMs int64          `json:"latency_ms,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// DatabaseProbe checks connectivity and reports the applied schema version.
type DatabaseProbe interface {
	Ping(ctx context.Context) error
	MigrationState(ctx context.Context) (version int64, dirty bool, err error)
}

// CacheProbe reports the number of cached dashboards.
type CacheProbe interface {
	Len() int
}

type HealthChecker struct {
	db        DatabaseProbe
	cache     CacheProbe
	version   string
	gitCommit string
	now       func() time.Time
}

func NewHealthChecker(db DatabaseProbe, cache CacheProbe, version, gitCommit string) *HealthChecker {
	return &HealthChecker{
		db:        db,
		cache:     cache,
		version:   version,
		gitCommit: gitCommit,
		now:       time.Now,
	}
}

// Health runs every check and answers 503 when any of them fails.
func (h *HealthChecker) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Context().Err() != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "shutting_down"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks := map[string]CheckResult{
			"database":   h.checkDatabase(ctx),
			"migrations": h.checkMigrations(ctx),
			"cache":      h.checkCache(),
		}

		overallStatus := "healthy"
		statusCode := http.StatusOK
		for _, check := range checks {
			if check.Status == "fail" {
				overallStatus = "unhealthy"
				statusCode = http.StatusServiceUnavailable
				break
			} else if check.Status == "warn" && overallStatus == "healthy" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, statusCode, HealthCheck{
			Status:    overallStatus,
			Version:   h.version,
			GitCommit: h.gitCommit,
			Checks:    checks,
			Timestamp: h.now().UTC().Format(time.RFC3339),
		})
	}
}

func (h *HealthChecker) checkDatabase(ctx context.Context) CheckResult {
	if h.db == nil {
		return CheckResult{Status: "fail", Message: "Database not initialized"}
	}

	start := time.Now()
	dbCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	err := h.db.Ping(dbCtx)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		message := "Database ping failed"
		if errors.Is(err, context.DeadlineExceeded) {
			message = "Database ping timed out after 2 seconds"
		}
		return CheckResult{
			Status:    "fail",
			Message:   message,
			LatencyMs: latency,
			Details:   map[string]any{"error": err.Error()},
		}
	}
	return CheckResult{Status: "pass", Message: "PostgreSQL connection successful", LatencyMs: latency}
}

func (h *HealthChecker) checkMigrations(ctx context.Context) CheckResult {
	if h.db == nil {
		return CheckResult{Status: "fail", Message: "Database not initialized"}
	}

	start := time.Now()
	migCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	version, dirty, err := h.db.MigrationState(migCtx)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return CheckResult{
			Status:    "fail",
			Message:   "Failed to query migration version",
			LatencyMs: latency,
			Details: map[string]any{
				"error":       err.Error(),
				"remediation": "Run: server migrate up",
			},
		}
	}
	if dirty {
		return CheckResult{
			Status:    "fail",
			Message:   "Database in dirty migration state - manual intervention required",
			LatencyMs: latency,
			Details:   map[string]any{"version": version, "dirty": true},
		}
	}
	return CheckResult{
		Status:    "pass",
		Message:   fmt.Sprintf("Migrations applied successfully (version %d)", version),
		LatencyMs: latency,
		Details:   map[string]any{"version": version, "dirty": false},
	}
}

func (h *HealthChecker) checkCache() CheckResult {
	if h.cache == nil {
		return CheckResult{Status: "warn", Message: "Dashboard cache disabled"}
	}
	return CheckResult{
		Status:  "pass",
		Message: "Dashboard cache ready",
		Details: map[string]any{"entries": h.cache.Len()},
	}
}

// Healthz is the liveness probe.
func Healthz() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	})
}

type healthResponse struct {
	Status string `json:"status"`
}

// DecodeHealth parses a readiness response body.
func DecodeHealth(body []byte) (HealthCheck, error) {
	var check HealthCheck
	if err := json.Unmarshal(body, &check); err != nil {
		return HealthCheck{}, fmt.Errorf("decode health response: %w", err)
	}
	return check, nil
}
