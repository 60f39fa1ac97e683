package opt

import "sync"

type metricsKey struct {
	Tenant string
	RunID  string
}

var (
	mu           sync.Mutex
	metricsStore = map[metricsKey]SearchMetrics{}
)

// RecordSearchMetrics keeps the latest grid counters for a run so handlers
// can expose them after the search goroutine finishes.
func RecordSearchMetrics(tenant, runID string, m SearchMetrics) {
	mu.Lock()
	metricsStore[metricsKey{Tenant: tenant, RunID: runID}] = m
	mu.Unlock()
}

// GetSearchMetrics returns the recorded counters for a tenant's run.
func GetSearchMetrics(tenant, runID string) (SearchMetrics, bool) {
	mu.Lock()
	defer mu.Unlock()
	m, ok := metricsStore[metricsKey{Tenant: tenant, RunID: runID}]
	return m, ok
}
