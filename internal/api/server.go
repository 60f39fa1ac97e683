package api

import (
    "context"
    "errors"
    "net/http"
    "os"
    "strconv"
    "strings"
    "sync"
    "time"

    "golang.org/x/time/rate"

    "vaxalloc/internal/auth"
    "vaxalloc/internal/config"
    "vaxalloc/internal/metrics"
    "vaxalloc/internal/opt"
    "vaxalloc/internal/store"
    "vaxalloc/internal/webhooks"
)

type Server struct {
    Store   store.Store
    Pub     *webhooks.Publisher
    Auth    *auth.Verifier
    Broker  EventBroker
    Catalog config.ScenarioCatalog
    // Solve runs one LP. Tests swap in a stub.
    Solve opt.SolveFunc

    mu       sync.Mutex
    limiters map[string]*rate.Limiter
    rps      rate.Limit
    burst    int
}

// NewServer creates a Server. If DATABASE_URL is unset, uses in-memory store.
func NewServer() (*Server, error) {
    dsn := os.Getenv("DATABASE_URL")
    var s store.Store
    if strings.TrimSpace(dsn) == "" {
        s = store.NewMemory()
    } else {
        sp, err := store.NewPostgres(dsn)
        if err != nil {
            return nil, err
        }
        // Run migrations (dev helper)
        if os.Getenv("DB_MIGRATE") != "false" {
            _ = sp.MigrateDir("db/migrations")
        }
        s = sp
    }
    // Broker selection
    var broker EventBroker
    if os.Getenv("REDIS_URL") != "" {
        if rb, err := NewRedisBroker(); err == nil { broker = rb } else { broker = NewBroker() }
    } else {
        broker = NewBroker()
    }
    cat, err := config.LoadScenarioCatalogFile(os.Getenv("SCENARIO_CATALOG_FILE"))
    if err != nil {
        return nil, err
    }
    srv := &Server{
        Store:    s,
        Pub:      webhooks.NewPublisher(s),
        Auth:     auth.NewVerifierFromEnv(),
        Broker:   broker,
        Catalog:  cat,
        Solve:    meteredSolve,
        limiters: map[string]*rate.Limiter{},
        rps:      rate.Limit(envFloat("RATE_RPS", 1)),
        burst:    envInt("RATE_BURST", 3),
    }
    return srv, nil
}

func envInt(key string, def int) int {
    if v := os.Getenv(key); v != "" { if n, err := strconv.Atoi(v); err == nil && n > 0 { return n } }
    return def
}

func envFloat(key string, def float64) float64 {
    if v := os.Getenv(key); v != "" { if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 { return f } }
    return def
}

// meteredSolve wraps the LP solver with Prometheus instrumentation.
func meteredSolve(p opt.Problem, t opt.Timing) (opt.Result, error) {
    start := time.Now()
    res, err := opt.Solve(p, t)
    metrics.SolveDuration.Observe(time.Since(start).Seconds())
    status := "optimal"
    switch {
    case err == nil:
    case errors.Is(err, opt.ErrInvalidTiming):
        status = "invalid_timing"
    case errors.Is(err, opt.ErrNotOptimal):
        status = "not_optimal"
    default:
        status = "error"
    }
    metrics.SolverInvocations.WithLabelValues(status).Inc()
    return res, err
}

// allowSearch applies the per-tenant submission limiter.
func (s *Server) allowSearch(tenant string) bool {
    s.mu.Lock()
    lim := s.limiters[tenant]
    if lim == nil {
        lim = rate.NewLimiter(s.rps, s.burst)
        s.limiters[tenant] = lim
    }
    s.mu.Unlock()
    return lim.Allow()
}

func (s *Server) withTenant(r *http.Request) (context.Context, string) {
    tenant := s.getPrincipal(r).Tenant
    ctx := context.WithValue(r.Context(), ctxKeyTenant{}, tenant)
    return ctx, tenant
}

type ctxKeyTenant struct{}

// NewWebhookWorker creates a background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
    return webhooks.NewWorker(s.Store)
}
