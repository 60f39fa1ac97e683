package metrics

import (
    "sync"
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/collectors"
)

var (
    // Registry is the dedicated Prometheus registry for the API
    Registry = prometheus.NewRegistry()
    // HTTPRequests counts requests by method, path, and status
    HTTPRequests = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
        []string{"method", "path", "status"},
    )
    // HTTPDuration records request durations in seconds
    HTTPDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
        []string{"method", "path", "status"},
    )

    // SolverInvocations counts LP solves by terminal status
    SolverInvocations = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "solver_invocations_total", Help: "LP solver invocations by status."},
        []string{"status"},
    )
    // SolveDuration tracks wall time of one LP solve
    SolveDuration = prometheus.NewHistogram(
        prometheus.HistogramOpts{Name: "solver_solve_duration_seconds", Help: "Duration of one LP solve.", Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}},
    )
    // SearchGridPoints counts grid points by outcome (solved, skipped, infeasible)
    SearchGridPoints = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "search_grid_points_total", Help: "Timing-search grid points by outcome."},
        []string{"outcome"},
    )

    // WebhookDeliveries counts webhook delivery outcomes by event type and status
    WebhookDeliveries = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
        []string{"event_type", "status"},
    )
)

// RegisterDefault registers all collectors on the dedicated Registry.
func RegisterDefault() {
    regOnce.Do(func(){
        Registry.MustRegister(HTTPRequests)
        Registry.MustRegister(HTTPDuration)
        Registry.MustRegister(SolverInvocations)
        Registry.MustRegister(SolveDuration)
        Registry.MustRegister(SearchGridPoints)
        Registry.MustRegister(WebhookDeliveries)
        // Go/process collectors on our registry
        Registry.MustRegister(collectors.NewGoCollector())
        Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
    })
}

var regOnce sync.Once
