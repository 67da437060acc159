package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Status represents the health status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckFunc probes one dependency
type CheckFunc func(ctx context.Context) (Status, error)

// Response represents a health check response
type Response struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Version   string                 `json:"version,omitempty"`
}

// CheckResult represents the result of a single health check
type CheckResult struct {
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Handler manages health checks
type Handler struct {
	checks  map[string]CheckFunc
	mu      sync.RWMutex
	version string
	logger  zerolog.Logger
	now     func() time.Time
}

// NewHandler creates a new health check handler
func NewHandler(version string, logger zerolog.Logger) *Handler {
	return &Handler{
		checks:  make(map[string]CheckFunc),
		version: version,
		logger:  logger,
		now:     time.Now,
	}
}

// Register adds a health check, replacing one with the same name
func (h *Handler) Register(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// Names lists the registered checks in order
func (h *Handler) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunChecks executes all registered health checks
func (h *Handler) RunChecks(ctx context.Context) Response {
	h.mu.RLock()
	checks := make(map[string]CheckFunc, len(h.checks))
	for k, v := range h.checks {
		checks[k] = v
	}
	h.mu.RUnlock()

	results := make(map[string]CheckResult, len(checks))
	overall := StatusHealthy

	for name, check := range checks {
		status, err := check(ctx)
		result := CheckResult{Status: status}
		if err != nil {
			result.Error = err.Error()
			h.logger.Warn().Err(err).Str("check", name).Str("status", string(status)).Msg("health check failed")
		}
		results[name] = result

		if status == StatusUnhealthy {
			overall = StatusUnhealthy
		} else if status == StatusDegraded && overall == StatusHealthy {
			overall = StatusDegraded
		}
	}

	return Response{
		Status:    overall,
		Timestamp: h.now(),
		Checks:    results,
		Version:   h.version,
	}
}

// Routes mounts /health, /health/live and /health/ready
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/health/live", h.LivenessHandler())
	mux.HandleFunc("/health/ready", h.ReadinessHandler())
	mux.HandleFunc("/health", h.HealthHandler())
}

// LivenessHandler reports that the process is serving requests
func (h *Handler) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, Response{
			Status:    StatusHealthy,
			Timestamp: h.now(),
			Version:   h.version,
		}, http.StatusOK)
	}
}

// ReadinessHandler runs the checks and answers 503 when one is unhealthy.
// A degraded shelf still serves: books open in memory without persistence.
func (h *Handler) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		response := h.RunChecks(ctx)
		status := http.StatusOK
		if response.Status == StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		writeResponse(w, response, status)
	}
}

// HealthHandler runs the checks and always answers 200
func (h *Handler) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()
		writeResponse(w, h.RunChecks(ctx), http.StatusOK)
	}
}

func writeResponse(w http.ResponseWriter, response Response, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}
