package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Probe checks one dependency. A failing critical probe makes the service unready;
// a failing optional one only degrades it.
type Probe interface {
	Name() string
	Critical() bool
	Check(ctx context.Context) error
}

// errDegraded marks a probe result that works but should be watched
type errDegraded struct{ reason string }

func (e errDegraded) Error() string { return e.reason }

// DatabaseProbe pings the pool and requires the migration ledger to be readable,
// so a server pointed at an unmigrated database reports unready.
type DatabaseProbe struct {
	DB *sql.DB
}

func (DatabaseProbe) Name() string   { return "database" }
func (DatabaseProbe) Critical() bool { return true }

func (p DatabaseProbe) Check(ctx context.Context) error {
	if err := p.DB.PingContext(ctx); err != nil {
		return err
	}

	var version sql.NullInt64
	if err := p.DB.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version); err != nil {
		return fmt.Errorf("schema not readable: %w", err)
	}
	if !version.Valid {
		return errors.New("no migrations applied")
	}

	stats := p.DB.Stats()
	if stats.MaxOpenConnections > 0 && stats.InUse >= stats.MaxOpenConnections {
		return errDegraded{"connection pool exhausted"}
	}
	return nil
}

// RedisProbe pings the shared rate limit store
type RedisProbe struct {
	Client *redis.Client
}

func (RedisProbe) Name() string { return "redis" }

// Critical is false: without redis only /auth throttling is affected.
func (RedisProbe) Critical() bool { return false }

func (p RedisProbe) Check(ctx context.Context) error {
	return p.Client.Ping(ctx).Err()
}

// HealthChecker reports liveness and probe-based readiness
type HealthChecker struct {
	probes  []Probe
	version string
	timeout time.Duration
}

// NewHealthChecker creates a health checker over probes
func NewHealthChecker(version string, probes ...Probe) *HealthChecker {
	return &HealthChecker{
		probes:  probes,
		version: version,
		timeout: 5 * time.Second,
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Version      string                      `json:"version,omitempty"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus is the outcome of one probe
type DependencyStatus struct {
	Status    string  `json:"status"`
	Message   string  `json:"message,omitempty"`
	LatencyMS float64 `json:"latency_ms"`
}

// Check runs every probe and folds the results into one status
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:       StatusHealthy,
		Timestamp:    time.Now().UTC(),
		Version:      h.version,
		Dependencies: make(map[string]DependencyStatus, len(h.probes)),
	}

	for _, probe := range h.probes {
		start := time.Now()
		err := probe.Check(ctx)
		dep := DependencyStatus{
			Status:    StatusHealthy,
			LatencyMS: float64(time.Since(start).Microseconds()) / 1000,
		}

		var degraded errDegraded
		switch {
		case err == nil:
		case errors.As(err, &degraded):
			dep.Status = StatusDegraded
			dep.Message = degraded.reason
		default:
			dep.Status = StatusUnhealthy
			dep.Message = err.Error()
		}
		status.Dependencies[probe.Name()] = dep

		switch {
		case dep.Status == StatusUnhealthy && probe.Critical():
			status.Status = StatusUnhealthy
		case dep.Status != StatusHealthy && status.Status == StatusHealthy:
			status.Status = StatusDegraded
		}
	}

	return status
}

// Liveness answers 200 while the process can serve requests
func (h *HealthChecker) Liveness(w http.ResponseWriter, r *http.Request) {
	writeHealth(w, http.StatusOK, HealthStatus{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC(),
		Version:   h.version,
	})
}

// Readiness answers 503 when a critical probe fails
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	status := h.Check(ctx)
	code := http.StatusOK
	if status.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeHealth(w, code, status)
}

func writeHealth(w http.ResponseWriter, code int, status HealthStatus) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(status)
}

// RegisterHealthRoutes mounts /health, /health/live and /health/ready
func RegisterHealthRoutes(mux *http.ServeMux, checker *HealthChecker) {
	mux.HandleFunc("/health", checker.Readiness)
	mux.HandleFunc("/health/live", checker.Liveness)
	mux.HandleFunc("/health/ready", checker.Readiness)
}
