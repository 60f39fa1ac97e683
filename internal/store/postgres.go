package store

import (
    "context"
    "crypto/sha256"
    "database/sql"
    "encoding/hex"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "sort"
    "strings"
    "time"

    "github.com/google/uuid"
    _ "github.com/jackc/pgx/v5/stdlib"

    "vaxalloc/internal/model"
    "vaxalloc/internal/opt"
)

type Postgres struct {
    db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
    db, err := sql.Open("pgx", dsn)
    if err != nil {
        return nil, err
    }
    if err := db.Ping(); err != nil {
        return nil, err
    }
    return &Postgres{db: db}, nil
}

// SaveSeries upserts the single active series per tenant. The compartment
// arrays go into one jsonb blob; horizon and population are denormalized for
// cheap listing.
func (p *Postgres) SaveSeries(ctx context.Context, tenantID, source string, s opt.Series) (model.SeriesInfo, error) {
    info := model.SeriesInfo{TenantID: tenantID, Horizon: s.Horizon(), Source: source, UpdatedAt: time.Now().UTC()}
    for g := 0; g < opt.NumGroups; g++ {
        info.Population[g] = s.S[g][0] + s.I[g][0] + s.Q[g][0] + s.V1[g][0] + s.V2[g][0] + s.R[g][0]
    }
    data, err := json.Marshal(s)
    if err != nil { return model.SeriesInfo{}, err }
    pop, _ := json.Marshal(info.Population)
    _, err = p.db.ExecContext(ctx, `INSERT INTO epidemic_series (tenant_id, source, horizon, population, data, updated_at)
        VALUES ($1,$2,$3,$4,$5,now())
        ON CONFLICT (tenant_id) DO UPDATE SET source=$2, horizon=$3, population=$4, data=$5, updated_at=now()`,
        tenantID, source, info.Horizon, pop, data)
    if err != nil { return model.SeriesInfo{}, err }
    return info, nil
}

func (p *Postgres) GetSeries(ctx context.Context, tenantID string) (opt.Series, model.SeriesInfo, error) {
    row := p.db.QueryRowContext(ctx, `SELECT source, horizon, population, data, updated_at FROM epidemic_series WHERE tenant_id=$1`, tenantID)
    var info model.SeriesInfo
    var pop, data []byte
    if err := row.Scan(&info.Source, &info.Horizon, &pop, &data, &info.UpdatedAt); err != nil {
        if errors.Is(err, sql.ErrNoRows) { return opt.Series{}, model.SeriesInfo{}, ErrNotFound }
        return opt.Series{}, model.SeriesInfo{}, err
    }
    info.TenantID = tenantID
    _ = json.Unmarshal(pop, &info.Population)
    var s opt.Series
    if err := json.Unmarshal(data, &s); err != nil { return opt.Series{}, model.SeriesInfo{}, err }
    return s, info, nil
}

func (p *Postgres) CreateRun(ctx context.Context, run model.OptimizationRun) (model.OptimizationRun, error) {
    if run.ID == "" { run.ID = uuid.New().String() }
    if run.Status == "" { run.Status = model.RunPending }
    if run.SubmittedAt.IsZero() { run.SubmittedAt = time.Now().UTC() }
    weights, _ := json.Marshal(run.Weights)
    cfg, _ := json.Marshal(run.Config)
    _, err := p.db.ExecContext(ctx, `INSERT INTO optimization_runs (id, tenant_id, status, profile, weights, config, submitted_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`, run.ID, run.TenantID, run.Status, run.Profile, weights, cfg, run.SubmittedAt)
    if err != nil { return model.OptimizationRun{}, err }
    return run, nil
}

func (p *Postgres) GetRun(ctx context.Context, tenantID, runID string) (model.OptimizationRun, error) {
    row := p.db.QueryRowContext(ctx, `SELECT id::text, status, profile, weights, config, submitted_at, started_at, completed_at, COALESCE(error,''), result, report, metrics
        FROM optimization_runs WHERE tenant_id=$1 AND id=$2`, tenantID, runID)
    r, err := scanRun(row, tenantID)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) { return model.OptimizationRun{}, ErrNotFound }
        return model.OptimizationRun{}, err
    }
    return r, nil
}

func (p *Postgres) ListRuns(ctx context.Context, tenantID, status, cursor string, limit int) ([]model.OptimizationRun, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    q := `SELECT id::text, status, profile, weights, config, submitted_at, started_at, completed_at, COALESCE(error,''), result, report, metrics
        FROM optimization_runs WHERE tenant_id=$1`
    args := []any{tenantID}
    idx := 2
    if status != "" { q += ` AND status=$` + fmt.Sprint(idx); args = append(args, status); idx++ }
    if cursor != "" { q += ` AND id::text > $` + fmt.Sprint(idx); args = append(args, cursor); idx++ }
    q += ` ORDER BY id LIMIT $` + fmt.Sprint(idx)
    args = append(args, limit)
    rows, err := p.db.QueryContext(ctx, q, args...)
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []model.OptimizationRun{}
    var last string
    for rows.Next() {
        r, err := scanRun(rows, tenantID)
        if err != nil { return nil, "", err }
        out = append(out, r)
        last = r.ID
    }
    next := ""
    if len(out) == limit { next = last }
    return out, next, nil
}

type rowScanner interface{ Scan(dest ...any) error }

func scanRun(row rowScanner, tenantID string) (model.OptimizationRun, error) {
    var r model.OptimizationRun
    var weights, cfg, result, report, metrics []byte
    var started, completed sql.NullTime
    if err := row.Scan(&r.ID, &r.Status, &r.Profile, &weights, &cfg, &r.SubmittedAt, &started, &completed, &r.Error, &result, &report, &metrics); err != nil {
        return model.OptimizationRun{}, err
    }
    r.TenantID = tenantID
    _ = json.Unmarshal(weights, &r.Weights)
    _ = json.Unmarshal(cfg, &r.Config)
    if started.Valid { t := started.Time; r.StartedAt = &t }
    if completed.Valid { t := completed.Time; r.CompletedAt = &t }
    if len(result) > 0 { var v opt.Result; if json.Unmarshal(result, &v) == nil { r.Result = &v } }
    if len(report) > 0 { var v opt.Report; if json.Unmarshal(report, &v) == nil { r.Report = &v } }
    if len(metrics) > 0 { var v opt.SearchMetrics; if json.Unmarshal(metrics, &v) == nil { r.Metrics = &v } }
    return r, nil
}

func (p *Postgres) MarkRunRunning(ctx context.Context, tenantID, runID string) error {
    res, err := p.db.ExecContext(ctx, `UPDATE optimization_runs SET status=$1, started_at=now() WHERE tenant_id=$2 AND id=$3`,
        model.RunRunning, tenantID, runID)
    if err != nil { return err }
    if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
    return nil
}

func (p *Postgres) CompleteRun(ctx context.Context, tenantID, runID string, result opt.Result, report opt.Report, metrics opt.SearchMetrics) error {
    rj, _ := json.Marshal(result)
    pj, _ := json.Marshal(report)
    mj, _ := json.Marshal(metrics)
    res, err := p.db.ExecContext(ctx, `UPDATE optimization_runs SET status=$1, completed_at=now(), result=$2, report=$3, metrics=$4 WHERE tenant_id=$5 AND id=$6`,
        model.RunCompleted, rj, pj, mj, tenantID, runID)
    if err != nil { return err }
    if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
    return nil
}

func (p *Postgres) FailRun(ctx context.Context, tenantID, runID, cause string) error {
    res, err := p.db.ExecContext(ctx, `UPDATE optimization_runs SET status=$1, completed_at=now(), error=$2 WHERE tenant_id=$3 AND id=$4`,
        model.RunFailed, cause, tenantID, runID)
    if err != nil { return err }
    if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
    return nil
}

func (p *Postgres) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
    id := uuid.New().String()
    ev, _ := json.Marshal(req.Events)
    _, err := p.db.ExecContext(ctx, `INSERT INTO subscriptions (id, tenant_id, url, events, secret) VALUES ($1,$2,$3,$4,$5)`, id, req.TenantID, req.URL, ev, req.Secret)
    if err != nil { return model.Subscription{}, err }
    return model.Subscription{ID: id, TenantID: req.TenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}, nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, url, secret, events FROM subscriptions WHERE tenant_id=$1 AND events @> $2::jsonb`, tenantID, fmt.Sprintf("[\"%s\"]", eventType))
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.Subscription{}
    for rows.Next() {
        var s model.Subscription
        var events []byte
        if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &events); err != nil { return nil, err }
        s.TenantID = tenantID
        _ = json.Unmarshal(events, &s.Events)
        out = append(out, s)
    }
    return out, nil
}

func (p *Postgres) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    var rows *sql.Rows
    var err error
    if cursor != "" {
        rows, err = p.db.QueryContext(ctx, `SELECT id::text, url, secret, events FROM subscriptions WHERE tenant_id=$1 AND id::text > $2 ORDER BY id LIMIT $3`, tenantID, cursor, limit)
    } else {
        rows, err = p.db.QueryContext(ctx, `SELECT id::text, url, secret, events FROM subscriptions WHERE tenant_id=$1 ORDER BY id LIMIT $2`, tenantID, limit)
    }
    if err != nil { return nil, "", err }
    defer rows.Close()
    var out []model.Subscription
    var last string
    for rows.Next() {
        var s model.Subscription
        var ev []byte
        if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &ev); err != nil { return nil, "", err }
        s.TenantID = tenantID
        _ = json.Unmarshal(ev, &s.Events)
        out = append(out, s)
        last = s.ID
    }
    next := ""
    if len(out) == limit { next = last }
    return out, next, nil
}

func (p *Postgres) DeleteSubscription(ctx context.Context, tenantID, id string) error {
    _, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE tenant_id=$1 AND id=$2`, tenantID, id)
    return err
}

// Webhook deliveries
func (p *Postgres) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
    id := uuid.New().String()
    dk := computeDedupKey(payload)
    _, err := p.db.ExecContext(ctx, `INSERT INTO webhook_deliveries (id, tenant_id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at, dedup_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,'pending',0,now(),$8)
        ON CONFLICT (tenant_id, event_type, url, dedup_key) DO NOTHING`, id, tenantID, nullIfEmpty(subscriptionID), eventType, url, nullIfEmpty(secret), payload, dk)
    if err != nil { return "", err }
    return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, tenant_id::text, COALESCE(subscription_id::text,''), event_type, url, COALESCE(secret,''), payload, status, attempts
        FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now() ORDER BY next_attempt_at ASC LIMIT $1`, limit)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []WebhookDelivery{}
    for rows.Next() {
        var d WebhookDelivery
        var payload []byte
        if err := rows.Scan(&d.ID, &d.TenantID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &payload, &d.Status, &d.Attempts); err != nil { return nil, err }
        d.Payload = payload
        out = append(out, d)
    }
    return out, nil
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
    if !success {
        if nextAttemptAt == nil { t := time.Now().Add(1 * time.Minute); nextAttemptAt = &t }
        _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='retry', last_error=$1, next_attempt_at=$2, updated_at=now(), response_code=$4, latency_ms=$5 WHERE id=$3`, nullIfEmpty(lastError), *nextAttemptAt, id, responseCode, latencyMs)
        return err
    }
    _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='delivered', delivered_at=now(), updated_at=now(), response_code=$2, latency_ms=$3 WHERE id=$1`, id, responseCode, latencyMs)
    return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
    _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='failed', last_error=$2, updated_at=now(), response_code=$3, latency_ms=$4 WHERE id=$1`, id, nullIfEmpty(lastError), responseCode, latencyMs)
    return err
}

func (p *Postgres) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    q := `SELECT id::text, event_type, status, attempts, next_attempt_at, COALESCE(last_error,''), url FROM webhook_deliveries WHERE tenant_id=$1`
    var rows *sql.Rows
    var err error
    if status != "" {
        q += ` AND status=$2 ORDER BY id LIMIT $3`
        rows, err = p.db.QueryContext(ctx, q, tenantID, status, limit)
    } else {
        q += ` ORDER BY id LIMIT $2`
        rows, err = p.db.QueryContext(ctx, q, tenantID, limit)
    }
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []map[string]any{}
    var last string
    for rows.Next() {
        var id, typ, st, lastErr, url string
        var attempts int
        var nextAt sql.NullTime
        if err := rows.Scan(&id, &typ, &st, &attempts, &nextAt, &lastErr, &url); err != nil { return nil, "", err }
        m := map[string]any{"id": id, "eventType": typ, "status": st, "attempts": attempts, "url": url}
        if nextAt.Valid { m["nextAttemptAt"] = nextAt.Time }
        if lastErr != "" { m["lastError"] = lastErr }
        out = append(out, m)
        last = id
    }
    next := ""
    if len(out) == limit { next = last }
    return out, next, nil
}

func (p *Postgres) RetryWebhookDelivery(ctx context.Context, tenantID, id string) error {
    res, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='pending', next_attempt_at=now() WHERE tenant_id=$1 AND id=$2`, tenantID, id)
    if err != nil { return err }
    if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
    return nil
}

func (p *Postgres) GetScenarioOverride(ctx context.Context, tenantID string) (model.ScenarioOverride, error) {
    row := p.db.QueryRowContext(ctx, `SELECT config FROM scenario_overrides WHERE tenant_id=$1`, tenantID)
    var js []byte
    if err := row.Scan(&js); err != nil {
        if errors.Is(err, sql.ErrNoRows) { return model.ScenarioOverride{}, nil }
        return model.ScenarioOverride{}, err
    }
    var ov model.ScenarioOverride
    if err := json.Unmarshal(js, &ov); err != nil { return model.ScenarioOverride{}, err }
    return ov, nil
}

func (p *Postgres) SaveScenarioOverride(ctx context.Context, tenantID string, ov model.ScenarioOverride) error {
    js, err := json.Marshal(ov)
    if err != nil { return err }
    _, err = p.db.ExecContext(ctx, `INSERT INTO scenario_overrides (tenant_id, config, updated_at) VALUES ($1, $2, now())
        ON CONFLICT (tenant_id) DO UPDATE SET config=$2, updated_at=now()`, tenantID, js)
    return err
}

func (p *Postgres) Ping(ctx context.Context) error {
    return p.db.PingContext(ctx)
}

// MigrateDir applies every .sql file in dir in lexical order. Files are
// expected to be idempotent (CREATE TABLE IF NOT EXISTS style).
func (p *Postgres) MigrateDir(dir string) error {
    entries, err := os.ReadDir(dir)
    if err != nil { return err }
    names := []string{}
    for _, e := range entries {
        if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") { names = append(names, e.Name()) }
    }
    sort.Strings(names)
    for _, name := range names {
        sqlBytes, err := os.ReadFile(filepath.Join(dir, name))
        if err != nil { return err }
        if _, err := p.db.Exec(string(sqlBytes)); err != nil {
            return fmt.Errorf("migration %s: %w", name, err)
        }
    }
    return nil
}

func computeDedupKey(payload []byte) string {
    // try to parse JSON and use id
    var m map[string]any
    if json.Unmarshal(payload, &m) == nil {
        if v, ok := m["id"].(string); ok && v != "" {
            return v
        }
    }
    sum := sha256.Sum256(payload)
    return hex.EncodeToString(sum[:8])
}

func nullIfEmpty(s string) any { if s == "" { return nil }; return s }
