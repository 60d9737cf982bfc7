package http

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

const readinessTimeout = 5 * time.Second

// appMetrics counts successful mutations. Fields are updated atomically.
type appMetrics struct {
	uptime      time.Time
	created     int64
	modified    int64
	deleted     int64
	authDenials int64
}

func newAppMetrics() *appMetrics {
	return &appMetrics{uptime: time.Now()}
}

func (m *appMetrics) incCreated()     { atomic.AddInt64(&m.created, 1) }
func (m *appMetrics) incModified()    { atomic.AddInt64(&m.modified, 1) }
func (m *appMetrics) incDeleted()     { atomic.AddInt64(&m.deleted, 1) }
func (m *appMetrics) incAuthDenials() { atomic.AddInt64(&m.authDenials, 1) }

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.metrics.uptime).String(),
	}).Write(w)
}

// handleReady reports 503 while the expense store cannot be reached.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	switch {
	case s.readiness == nil:
		checks["store"] = "not_configured"
	default:
		if err := s.readiness.Ping(ctx); err != nil {
			checks["store"] = "failed"
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}
	}

	checks["rate_limiter"] = map[string]any{
		"active_clients": s.limiter.ActiveClients(),
		"status":         "ok",
	}

	NewJSONResponse().
		Status(httpStatus).
		JSON(map[string]any{
			"status":    status,
			"timestamp": time.Now().Format(time.RFC3339),
			"checks":    checks,
		}).
		Write(w)
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.detector.GetMetrics()
	rateLimitMetrics := s.limiter.GetMetrics()
	traceMetrics := s.trace.GetMetrics()

	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP http_errors_total HTTP responses by error class\n")
	fmt.Fprintf(w, "# TYPE http_errors_total counter\n")
	fmt.Fprintf(w, "http_errors_total{class=\"4xx\"} %d\n", traceMetrics.ClientErrors)
	fmt.Fprintf(w, "http_errors_total{class=\"5xx\"} %d\n\n", traceMetrics.ServerErrors)

	fmt.Fprintf(w, "# HELP expense_changes_total Successful expense mutations\n")
	fmt.Fprintf(w, "# TYPE expense_changes_total counter\n")
	fmt.Fprintf(w, "expense_changes_total{op=\"create\"} %d\n", atomic.LoadInt64(&s.metrics.created))
	fmt.Fprintf(w, "expense_changes_total{op=\"modify\"} %d\n", atomic.LoadInt64(&s.metrics.modified))
	fmt.Fprintf(w, "expense_changes_total{op=\"delete\"} %d\n\n", atomic.LoadInt64(&s.metrics.deleted))

	fmt.Fprintf(w, "# HELP auth_denials_total Requests rejected as unauthenticated\n")
	fmt.Fprintf(w, "# TYPE auth_denials_total counter\n")
	fmt.Fprintf(w, "auth_denials_total %d\n\n", atomic.LoadInt64(&s.metrics.authDenials))

	fmt.Fprintf(w, "# HELP rate_limit_hits_total Total rate limit hits\n")
	fmt.Fprintf(w, "# TYPE rate_limit_hits_total counter\n")
	fmt.Fprintf(w, "rate_limit_hits_total %d\n\n", rateLimitMetrics.TotalHits)

	fmt.Fprintf(w, "# HELP active_rate_limit_clients Currently tracked rate limit clients\n")
	fmt.Fprintf(w, "# TYPE active_rate_limit_clients gauge\n")
	fmt.Fprintf(w, "active_rate_limit_clients %d\n\n", rateLimitMetrics.ClientCount)

	fmt.Fprintf(w, "# HELP suspicious_requests_total Total suspicious requests detected\n")
	fmt.Fprintf(w, "# TYPE suspicious_requests_total counter\n")
	fmt.Fprintf(w, "suspicious_requests_total %d\n\n", securityMetrics.SuspiciousRequests)

	fmt.Fprintf(w, "# HELP spoofed_forwarding_total Forwarding headers ignored from untrusted peers\n")
	fmt.Fprintf(w, "# TYPE spoofed_forwarding_total counter\n")
	fmt.Fprintf(w, "spoofed_forwarding_total %d\n\n", securityMetrics.SpoofedForwarding)

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n\n", time.Since(s.metrics.uptime).Seconds())
}
