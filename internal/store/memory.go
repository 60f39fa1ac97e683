package store

import (
    "context"
    "sync"
    "time"

    "github.com/google/uuid"

    "vaxalloc/internal/model"
    "vaxalloc/internal/opt"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
    mu       sync.Mutex
    series   map[string]opt.Series              // tenant -> active series
    seriesMd map[string]model.SeriesInfo        // tenant -> series info
    runs     map[string]model.OptimizationRun   // id -> run
    runsTen  map[string][]string                // tenant -> run ids, submit order
    subs     map[string][]model.Subscription    // tenant -> subscriptions
    // Webhooks queue state
    deliveries         map[string]*memDelivery  // id -> delivery state
    deliveriesByTenant map[string][]string      // tenant -> delivery ids
    overrides map[string]model.ScenarioOverride // tenant -> scenario override
}

func NewMemory() *Memory {
    return &Memory{
        series: map[string]opt.Series{},
        seriesMd: map[string]model.SeriesInfo{},
        runs: map[string]model.OptimizationRun{},
        runsTen: map[string][]string{},
        subs: map[string][]model.Subscription{},
        deliveries: map[string]*memDelivery{},
        deliveriesByTenant: map[string][]string{},
        overrides: map[string]model.ScenarioOverride{},
    }
}

// memDelivery augments WebhookDelivery with scheduling/metrics
type memDelivery struct {
    WebhookDelivery
    NextAttemptAt time.Time
    LastError     string
    ResponseCode  int
    LatencyMs     int
    DeliveredAt   *time.Time
}

func (m *Memory) SaveSeries(ctx context.Context, tenantID, source string, s opt.Series) (model.SeriesInfo, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    info := model.SeriesInfo{TenantID: tenantID, Horizon: s.Horizon(), Source: source, UpdatedAt: time.Now().UTC()}
    for g := 0; g < opt.NumGroups; g++ {
        info.Population[g] = s.S[g][0] + s.I[g][0] + s.Q[g][0] + s.V1[g][0] + s.V2[g][0] + s.R[g][0]
    }
    m.series[tenantID] = s
    m.seriesMd[tenantID] = info
    return info, nil
}

func (m *Memory) GetSeries(ctx context.Context, tenantID string) (opt.Series, model.SeriesInfo, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    s, ok := m.series[tenantID]
    if !ok { return opt.Series{}, model.SeriesInfo{}, ErrNotFound }
    return s, m.seriesMd[tenantID], nil
}

func (m *Memory) CreateRun(ctx context.Context, run model.OptimizationRun) (model.OptimizationRun, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if run.ID == "" { run.ID = uuid.New().String() }
    if run.Status == "" { run.Status = model.RunPending }
    if run.SubmittedAt.IsZero() { run.SubmittedAt = time.Now().UTC() }
    m.runs[run.ID] = run
    m.runsTen[run.TenantID] = append(m.runsTen[run.TenantID], run.ID)
    return run, nil
}

func (m *Memory) GetRun(ctx context.Context, tenantID, runID string) (model.OptimizationRun, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    r, ok := m.runs[runID]
    if !ok || r.TenantID != tenantID { return model.OptimizationRun{}, ErrNotFound }
    return r, nil
}

func (m *Memory) ListRuns(ctx context.Context, tenantID, status, cursor string, limit int) ([]model.OptimizationRun, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    ids := m.runsTen[tenantID]
    start := 0
    if cursor != "" {
        for i, id := range ids {
            if id == cursor { start = i + 1; break }
        }
    }
    if limit <= 0 { limit = 100 }
    out := []model.OptimizationRun{}
    var next string
    for i := start; i < len(ids) && len(out) < limit; i++ {
        r := m.runs[ids[i]]
        if status == "" || r.Status == status { out = append(out, r) }
        next = ids[i]
    }
    if len(out) < limit { next = "" }
    return out, next, nil
}

func (m *Memory) MarkRunRunning(ctx context.Context, tenantID, runID string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    r, ok := m.runs[runID]
    if !ok || r.TenantID != tenantID { return ErrNotFound }
    now := time.Now().UTC()
    r.Status = model.RunRunning
    r.StartedAt = &now
    m.runs[runID] = r
    return nil
}

func (m *Memory) CompleteRun(ctx context.Context, tenantID, runID string, result opt.Result, report opt.Report, metrics opt.SearchMetrics) error {
    m.mu.Lock(); defer m.mu.Unlock()
    r, ok := m.runs[runID]
    if !ok || r.TenantID != tenantID { return ErrNotFound }
    now := time.Now().UTC()
    r.Status = model.RunCompleted
    r.CompletedAt = &now
    r.Result = &result
    r.Report = &report
    r.Metrics = &metrics
    m.runs[runID] = r
    return nil
}

func (m *Memory) FailRun(ctx context.Context, tenantID, runID, cause string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    r, ok := m.runs[runID]
    if !ok || r.TenantID != tenantID { return ErrNotFound }
    now := time.Now().UTC()
    r.Status = model.RunFailed
    r.CompletedAt = &now
    r.Error = cause
    m.runs[runID] = r
    return nil
}

func (m *Memory) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    s := model.Subscription{ID: uuid.New().String(), TenantID: req.TenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}
    m.subs[req.TenantID] = append(m.subs[req.TenantID], s)
    return s, nil
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    var out []model.Subscription
    for _, s := range m.subs[tenantID] {
        for _, e := range s.Events { if e == eventType { out = append(out, s); break } }
    }
    return out, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    list := m.subs[tenantID]
    start := 0
    if cursor != "" {
        for i := range list { if list[i].ID == cursor { start = i+1; break } }
    }
    if limit <= 0 { limit = 100 }
    end := start + limit
    if end > len(list) { end = len(list) }
    items := append([]model.Subscription(nil), list[start:end]...)
    next := ""
    if end < len(list) { next = list[end-1].ID }
    return items, next, nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, tenantID, id string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    arr := m.subs[tenantID]
    out := make([]model.Subscription, 0, len(arr))
    for _, s := range arr { if s.ID != id { out = append(out, s) } }
    m.subs[tenantID] = out
    return nil
}

// Webhook deliveries
func (m *Memory) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    id := uuid.New().String()
    d := &memDelivery{WebhookDelivery: WebhookDelivery{ID: id, TenantID: tenantID, SubscriptionID: subscriptionID, EventType: eventType, URL: url, Secret: secret, Payload: payload, Status: "pending", Attempts: 0}, NextAttemptAt: time.Now()}
    m.deliveries[id] = d
    m.deliveriesByTenant[tenantID] = append(m.deliveriesByTenant[tenantID], id)
    return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    now := time.Now()
    out := []WebhookDelivery{}
    for _, id := range m.iterDeliveryIDs() {
        d := m.deliveries[id]
        if d == nil { continue }
        if (d.Status == "pending" || d.Status == "retry") && !d.NextAttemptAt.After(now) {
            out = append(out, d.WebhookDelivery)
            if limit > 0 && len(out) >= limit { break }
        }
    }
    return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d := m.deliveries[id]
    if d == nil { return nil }
    d.Attempts++
    d.ResponseCode = responseCode
    d.LatencyMs = latencyMs
    if success {
        d.Status = "delivered"
        now := time.Now()
        d.DeliveredAt = &now
    } else {
        d.Status = "retry"
        d.LastError = lastError
        if nextAttemptAt != nil { d.NextAttemptAt = *nextAttemptAt } else { d.NextAttemptAt = time.Now().Add(1 * time.Minute) }
    }
    return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d := m.deliveries[id]
    if d != nil {
        d.Status = "failed"
        d.LastError = lastError
        d.ResponseCode = responseCode
        d.LatencyMs = latencyMs
    }
    return nil
}

func (m *Memory) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := []map[string]any{}
    ids := m.deliveriesByTenant[tenantID]
    for _, id := range ids {
        d := m.deliveries[id]
        if d == nil { continue }
        if status == "" || d.Status == status {
            item := map[string]any{"id": d.ID, "eventType": d.EventType, "status": d.Status, "attempts": d.Attempts, "url": d.URL}
            if !d.NextAttemptAt.IsZero() { item["nextAttemptAt"] = d.NextAttemptAt }
            if d.LastError != "" { item["lastError"] = d.LastError }
            out = append(out, item)
        }
    }
    return out, "", nil
}

func (m *Memory) RetryWebhookDelivery(ctx context.Context, tenantID, id string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d := m.deliveries[id]
    if d == nil || d.TenantID != tenantID { return ErrNotFound }
    d.Status = "pending"
    d.NextAttemptAt = time.Now()
    return nil
}

func (m *Memory) GetScenarioOverride(ctx context.Context, tenantID string) (model.ScenarioOverride, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if ov, ok := m.overrides[tenantID]; ok { return ov, nil }
    return model.ScenarioOverride{}, nil
}

func (m *Memory) SaveScenarioOverride(ctx context.Context, tenantID string, ov model.ScenarioOverride) error {
    m.mu.Lock(); defer m.mu.Unlock()
    m.overrides[tenantID] = ov
    return nil
}

// helper: iterate delivery IDs by tenant order
func (m *Memory) iterDeliveryIDs() []string {
    ids := []string{}
    for _, lst := range m.deliveriesByTenant {
        ids = append(ids, lst...)
    }
    return ids
}
