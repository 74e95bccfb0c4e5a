package handlers

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	domain "github.com/decoriva/api/internal/domain"
	"github.com/decoriva/api/internal/services"
)

// HealthHandlers serves the liveness and readiness probes.
type HealthHandlers struct {
	system    services.SystemService
	clock     func() time.Time
	startedAt time.Time
}

// HealthOption customises the health handlers.
type HealthOption func(*HealthHandlers)

// WithHealthSystemService wires the system service used for readiness probing.
func WithHealthSystemService(system services.SystemService) HealthOption {
	return func(h *HealthHandlers) {
		h.system = system
	}
}

// WithHealthClock overrides the time source, primarily for tests.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// NewHealthHandlers constructs handlers for /healthz and /readyz.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{
		clock: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	h.startedAt = h.clock().UTC()
	return h
}

// Healthz reports process liveness without touching any dependency.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	now := h.clock().UTC()
	payload := map[string]any{
		"status":    domain.HealthStatusOK,
		"uptime":    now.Sub(h.startedAt).String(),
		"timestamp": now.Format(time.RFC3339),
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

// Readyz probes the wired dependencies and reports 503 until all are healthy.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.system == nil {
		payload := map[string]any{
			"status":    domain.HealthStatusOK,
			"timestamp": h.clock().UTC().Format(time.RFC3339),
		}
		writeJSONResponse(w, http.StatusOK, payload)
		return
	}

	report, err := h.system.Readiness(ctx)
	if err != nil {
		payload := map[string]any{
			"status":    domain.HealthStatusError,
			"details":   []string{err.Error()},
			"timestamp": h.clock().UTC().Format(time.RFC3339),
		}
		writeJSONResponse(w, http.StatusServiceUnavailable, payload)
		return
	}

	details := make([]string, 0)
	for name, check := range report.Checks {
		if check.Status == domain.HealthStatusOK {
			continue
		}
		detail := check.Error
		if detail == "" {
			detail = check.Detail
		}
		if detail == "" {
			detail = string(check.Status)
		}
		details = append(details, fmt.Sprintf("%s: %s", name, detail))
	}
	sort.Strings(details)

	status := http.StatusOK
	if report.Status != domain.HealthStatusOK {
		status = http.StatusServiceUnavailable
	}

	payload := map[string]any{
		"status":    report.Status,
		"checks":    report.Checks,
		"details":   details,
		"timestamp": report.GeneratedAt.UTC().Format(time.RFC3339),
	}
	writeJSONResponse(w, status, payload)
}
