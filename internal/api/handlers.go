package api

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "strings"
    "time"

    "vaxalloc/internal/metrics"
    "vaxalloc/internal/model"
    "vaxalloc/internal/opt"
    "vaxalloc/internal/series"
    "vaxalloc/internal/store"
    "vaxalloc/internal/webhooks"
)

// buildProblem assembles the LP input for a tenant: stored series plus the
// resolved profile, costs and weights. Request fields win over the tenant
// override, which wins over the deployment catalog.
func (s *Server) buildProblem(ctx context.Context, tenant, profileName string, costs *opt.CostParams, weights *opt.Weights) (opt.Problem, error) {
    ser, _, err := s.Store.GetSeries(ctx, tenant)
    if err != nil {
        return opt.Problem{}, err
    }
    ov, _ := s.Store.GetScenarioOverride(ctx, tenant)
    name := profileName
    if name == "" { name = ov.Profile }
    if name == "" { name = s.Catalog.Default }
    prof, ok := s.Catalog.Profile(name)
    if !ok {
        return opt.Problem{}, &badRequestError{msg: "unknown profile: " + name}
    }
    cp := opt.DefaultCostParams()
    if ov.Costs != nil { cp = *ov.Costs }
    if costs != nil { cp = *costs }
    w := opt.BalancedWeights()
    if weights != nil {
        nw, err := weights.Normalize()
        if err != nil {
            return opt.Problem{}, &badRequestError{msg: err.Error()}
        }
        w = nw
    }
    return opt.Problem{Series: ser, Costs: cp, Weights: w, Profile: prof}, nil
}

// searchConfig resolves the grid bounds for a search submission.
func (s *Server) searchConfig(ctx context.Context, tenant string, req *model.SearchRequest) opt.SearchConfig {
    if req.Config != nil { return *req.Config }
    if ov, err := s.Store.GetScenarioOverride(ctx, tenant); err == nil && ov.Search != nil {
        return *ov.Search
    }
    return opt.DefaultSearchConfig()
}

// SeriesHandler handles GET/POST/PUT /v1/series
func (s *Server) SeriesHandler(w http.ResponseWriter, r *http.Request) {
    ctx, tenant := s.withTenant(r)
    switch r.Method {
    case http.MethodGet:
        _, info, err := s.Store.GetSeries(ctx, tenant)
        if err != nil {
            writeProblem(w, http.StatusNotFound, "Series not found", "no epidemic series loaded for tenant", r.URL.Path)
            return
        }
        writeJSON(w, http.StatusOK, info)
    case http.MethodPost, http.MethodPut:
        pr := s.getPrincipal(r)
        if !pr.CanRun() { writeProblem(w, 403, "Forbidden", "analyst or admin required", r.URL.Path); return }
        var sr opt.Series
        source := "json"
        if ct := r.Header.Get("Content-Type"); strings.HasPrefix(ct, "text/csv") {
            parsed, err := series.FromCSV(r.Body)
            if err != nil {
                writeProblem(w, http.StatusBadRequest, "Invalid series CSV", err.Error(), r.URL.Path)
                return
            }
            sr = parsed
            source = "csv"
        } else {
            if err := json.NewDecoder(r.Body).Decode(&sr); err != nil {
                writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
                return
            }
            if err := series.Validate(sr); err != nil {
                writeProblem(w, http.StatusBadRequest, "Invalid series", err.Error(), r.URL.Path)
                return
            }
        }
        info, err := s.Store.SaveSeries(ctx, tenant, source, sr)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "Save series failed", err.Error(), r.URL.Path)
            return
        }
        s.Pub.Emit(ctx, tenant, webhooks.EventSeriesUpdated, info)
        writeJSON(w, http.StatusCreated, info)
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// SeriesDemoHandler loads the synthetic demo series for quick starts.
func (s *Server) SeriesDemoHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    ctx, tenant := s.withTenant(r)
    pr := s.getPrincipal(r)
    if !pr.CanRun() { writeProblem(w, 403, "Forbidden", "analyst or admin required", r.URL.Path); return }
    var req struct{ Horizon int `json:"horizon"` }
    if r.Body != nil { _ = json.NewDecoder(r.Body).Decode(&req) }
    if req.Horizon <= 0 { req.Horizon = 120 }
    info, err := s.Store.SaveSeries(ctx, tenant, "demo", series.Demo(req.Horizon))
    if err != nil {
        writeProblem(w, http.StatusInternalServerError, "Save series failed", err.Error(), r.URL.Path)
        return
    }
    s.Pub.Emit(ctx, tenant, webhooks.EventSeriesUpdated, info)
    writeJSON(w, http.StatusCreated, info)
}

// SolveHandler handles POST /v1/solve: one LP at a fixed timing.
func (s *Server) SolveHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    ctx, tenant := s.withTenant(r)
    pr := s.getPrincipal(r)
    if !pr.CanRun() { writeProblem(w, 403, "Forbidden", "analyst or admin required", r.URL.Path); return }
    var req model.SolveRequest
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    p, err := s.buildProblem(ctx, tenant, req.Profile, req.Costs, req.Weights)
    if err != nil {
        writeSolveError(w, err, r.URL.Path)
        return
    }
    if err := validateSolveRequest(&req, p.Series.Horizon()); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid solve request", err.Error(), r.URL.Path)
        return
    }
    timing := opt.DefaultTiming()
    if req.Timing != nil { timing = *req.Timing }
    res, err := s.Solve(p, timing)
    if err != nil {
        writeSolveError(w, err, r.URL.Path)
        return
    }
    writeJSON(w, http.StatusOK, model.SolveResponse{Result: res, Report: opt.BuildReport(p, timing, res)})
}

// SearchesHandler handles POST (submit) and GET (list) /v1/searches
func (s *Server) SearchesHandler(w http.ResponseWriter, r *http.Request) {
    ctx, tenant := s.withTenant(r)
    switch r.Method {
    case http.MethodPost:
        pr := s.getPrincipal(r)
        if !pr.CanRun() { writeProblem(w, 403, "Forbidden", "analyst or admin required", r.URL.Path); return }
        if !s.allowSearch(tenant) {
            writeProblem(w, http.StatusTooManyRequests, "Rate limited", "too many search submissions; retry later", r.URL.Path)
            return
        }
        var req model.SearchRequest
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        if err := validateSearchRequest(&req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid search request", err.Error(), r.URL.Path)
            return
        }
        p, err := s.buildProblem(ctx, tenant, req.Profile, req.Costs, req.Weights)
        if err != nil {
            writeSolveError(w, err, r.URL.Path)
            return
        }
        cfg := s.searchConfig(ctx, tenant, &req)
        run, err := s.Store.CreateRun(ctx, model.OptimizationRun{
            TenantID: tenant,
            Status:   model.RunPending,
            Profile:  p.Profile.Name,
            Weights:  p.Weights,
            Config:   cfg,
        })
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "Create run failed", err.Error(), r.URL.Path)
            return
        }
        go s.runSearch(run, p, cfg)
        writeJSON(w, http.StatusAccepted, map[string]any{"runId": run.ID, "status": run.Status})
    case http.MethodGet:
        status := r.URL.Query().Get("status")
        cursor := r.URL.Query().Get("cursor")
        limit := 100
        if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
        items, next, err := s.Store.ListRuns(ctx, tenant, status, cursor, limit)
        if err != nil { writeProblem(w, 500, "List runs failed", err.Error(), r.URL.Path); return }
        writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// runSearch executes the grid search off-request, streaming progress to the
// broker and persisting the terminal state.
func (s *Server) runSearch(run model.OptimizationRun, p opt.Problem, cfg opt.SearchConfig) {
    ctx := context.Background()
    tenant := run.TenantID
    _ = s.Store.MarkRunRunning(ctx, tenant, run.ID)
    progress := func(done, total int, best *opt.Result) {
        data := map[string]any{"runId": run.ID, "done": done, "total": total, "ts": time.Now().UTC().Format(time.RFC3339)}
        if best != nil { data["bestCombined"] = best.Combined }
        s.Broker.Publish(run.ID, SSEEvent{Type: "search.progress", Data: data})
    }
    out, err := opt.RunSearch(ctx, p, cfg, s.Solve, progress)
    if err == nil && !out.Found {
        err = errors.New("no feasible timing in the searched grid")
    }
    if err != nil {
        _ = s.Store.FailRun(ctx, tenant, run.ID, err.Error())
        s.Broker.Publish(run.ID, SSEEvent{Type: webhooks.EventSearchFailed, Data: map[string]any{"runId": run.ID, "error": err.Error()}})
        s.Pub.EmitRun(ctx, model.RunEvent{
            Type: webhooks.EventSearchFailed, TenantID: tenant, RunID: run.ID,
            Error: err.Error(), TS: time.Now().UTC().Format(time.RFC3339),
        })
        return
    }
    report := opt.BuildReport(p, out.Best, out.Result)
    if err := s.Store.CompleteRun(ctx, tenant, run.ID, out.Result, report, out.Metrics); err != nil {
        _ = s.Store.FailRun(ctx, tenant, run.ID, err.Error())
        return
    }
    opt.RecordSearchMetrics(tenant, run.ID, out.Metrics)
    metrics.SearchGridPoints.WithLabelValues("solved").Add(float64(out.Metrics.Solves))
    metrics.SearchGridPoints.WithLabelValues("skipped").Add(float64(out.Metrics.Skipped))
    metrics.SearchGridPoints.WithLabelValues("infeasible").Add(float64(out.Metrics.Solves - out.Metrics.Feasible))
    s.Broker.Publish(run.ID, SSEEvent{Type: webhooks.EventSearchCompleted, Data: map[string]any{
        "runId": run.ID, "combined": out.Result.Combined, "timing": out.Best,
    }})
    s.Pub.EmitRun(ctx, model.RunEvent{
        Type: webhooks.EventSearchCompleted, TenantID: tenant, RunID: run.ID,
        Best: &out.Result, TS: time.Now().UTC().Format(time.RFC3339),
    })
}

// SearchByIDHandler handles GET /v1/searches/{id}, /{id}/metrics and /{id}/events/stream
func (s *Server) SearchByIDHandler(w http.ResponseWriter, r *http.Request) {
    rest := strings.TrimPrefix(r.URL.Path, "/v1/searches/")
    if rest == r.URL.Path || rest == "" {
        writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
        return
    }
    parts := strings.Split(rest, "/")
    id := parts[0]
    ctx, tenant := s.withTenant(r)
    if len(parts) > 2 && parts[1] == "events" && parts[2] == "stream" {
        s.streamRunEvents(w, r, tenant, id)
        return
    }
    if r.Method != http.MethodGet {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    run, err := s.Store.GetRun(ctx, tenant, id)
    if err != nil {
        writeProblem(w, http.StatusNotFound, "Run not found", err.Error(), r.URL.Path)
        return
    }
    if len(parts) > 1 && parts[1] == "metrics" {
        if m, ok := opt.GetSearchMetrics(tenant, id); ok {
            writeJSON(w, http.StatusOK, m)
            return
        }
        if run.Metrics != nil {
            writeJSON(w, http.StatusOK, *run.Metrics)
            return
        }
        writeProblem(w, http.StatusNotFound, "Metrics not available", "run has not completed", r.URL.Path)
        return
    }
    writeJSON(w, http.StatusOK, run)
}

// streamRunEvents is the SSE feed for one run.
func (s *Server) streamRunEvents(w http.ResponseWriter, r *http.Request, tenant, id string) {
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    if _, err := s.Store.GetRun(r.Context(), tenant, id); err != nil {
        writeProblem(w, http.StatusNotFound, "Run not found", err.Error(), r.URL.Path)
        return
    }
    flusher, ok := w.(http.Flusher)
    if !ok { writeProblem(w, 500, "Streaming unsupported", "", r.URL.Path); return }
    w.Header().Set("Content-Type", "text/event-stream")
    w.Header().Set("Cache-Control", "no-cache")
    w.Header().Set("Connection", "keep-alive")
    ch := s.Broker.Subscribe(id)
    defer s.Broker.Unsubscribe(id, ch)
    // initial heartbeat
    fmt.Fprintf(w, "event: heartbeat\n")
    fmt.Fprintf(w, "data: {\"runId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
    flusher.Flush()
    notify := r.Context().Done()
    for {
        select {
        case <-notify:
            return
        case evt := <-ch:
            b, _ := json.Marshal(evt.Data)
            fmt.Fprintf(w, "event: %s\n", evt.Type)
            fmt.Fprintf(w, "data: %s\n\n", string(b))
            flusher.Flush()
        case <-time.After(15 * time.Second):
            fmt.Fprintf(w, "event: heartbeat\n")
            fmt.Fprintf(w, "data: {\"runId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
            flusher.Flush()
        }
    }
}

// SensitivityHandler handles POST /v1/sensitivity
func (s *Server) SensitivityHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    ctx, tenant := s.withTenant(r)
    pr := s.getPrincipal(r)
    if !pr.CanRun() { writeProblem(w, 403, "Forbidden", "analyst or admin required", r.URL.Path); return }
    var req model.SensitivityRequest
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    p, err := s.buildProblem(ctx, tenant, req.Profile, req.Costs, req.Weights)
    if err != nil {
        writeSolveError(w, err, r.URL.Path)
        return
    }
    if err := validateSensitivityRequest(&req, p.Series.Horizon()); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid sensitivity request", err.Error(), r.URL.Path)
        return
    }
    cfg := opt.DefaultSensitivityConfig()
    if req.Config != nil { cfg = *req.Config }
    points, err := opt.SensitivitySweep(ctx, p, cfg, s.Solve)
    if err != nil {
        writeSolveError(w, err, r.URL.Path)
        return
    }
    writeJSON(w, http.StatusOK, model.SensitivityResponse{Points: points})
}

// CostMatrixHandler handles POST /v1/costmatrix
func (s *Server) CostMatrixHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    ctx, tenant := s.withTenant(r)
    pr := s.getPrincipal(r)
    if !pr.CanRun() { writeProblem(w, 403, "Forbidden", "analyst or admin required", r.URL.Path); return }
    var req model.CostMatrixRequest
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    p, err := s.buildProblem(ctx, tenant, req.Profile, req.Costs, req.Weights)
    if err != nil {
        writeSolveError(w, err, r.URL.Path)
        return
    }
    if err := validateCostMatrixRequest(&req, p.Series.Horizon()); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid cost matrix request", err.Error(), r.URL.Path)
        return
    }
    cfg := opt.DefaultCostMatrixConfig()
    if req.Config != nil { cfg = *req.Config }
    matrix, err := opt.CostMatrixSweep(ctx, p, cfg, s.Solve)
    if err != nil {
        writeSolveError(w, err, r.URL.Path)
        return
    }
    writeJSON(w, http.StatusOK, matrix)
}

// CompareHandler handles POST /v1/compare: same timing, several weight triples.
func (s *Server) CompareHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    ctx, tenant := s.withTenant(r)
    pr := s.getPrincipal(r)
    if !pr.CanRun() { writeProblem(w, 403, "Forbidden", "analyst or admin required", r.URL.Path); return }
    var req model.CompareRequest
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    p, err := s.buildProblem(ctx, tenant, req.Profile, req.Costs, nil)
    if err != nil {
        writeSolveError(w, err, r.URL.Path)
        return
    }
    if err := validateCompareRequest(&req, p.Series.Horizon()); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid compare request", err.Error(), r.URL.Path)
        return
    }
    timing := opt.DefaultTiming()
    if req.Timing != nil { timing = *req.Timing }
    sets := opt.MergeWeightSets(req.Sets)
    rows, err := opt.CompareWeights(ctx, p, timing, sets, s.Solve)
    if err != nil {
        writeSolveError(w, err, r.URL.Path)
        return
    }
    writeJSON(w, http.StatusOK, model.CompareResponse{Rows: rows})
}

// ProfilesHandler handles GET /v1/profiles
func (s *Server) ProfilesHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/profiles" || r.Method != http.MethodGet { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    ctx, tenant := s.withTenant(r)
    resp := map[string]any{"default": s.Catalog.Default, "profiles": s.Catalog.Profiles}
    if ov, err := s.Store.GetScenarioOverride(ctx, tenant); err == nil && ov.Profile != "" {
        resp["override"] = ov.Profile
    }
    writeJSON(w, 200, resp)
}

// Admin get/set tenant scenario override
func (s *Server) AdminScenarioConfigHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/admin/scenario-config" { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    p := s.getPrincipal(r)
    if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    switch r.Method {
    case http.MethodGet:
        ov, _ := s.Store.GetScenarioOverride(r.Context(), p.Tenant)
        writeJSON(w, 200, ov)
    case http.MethodPut:
        var ov model.ScenarioOverride
        if err := json.NewDecoder(r.Body).Decode(&ov); err != nil { writeProblem(w, 400, "Invalid JSON", err.Error(), r.URL.Path); return }
        if ov.Profile != "" {
            if _, ok := s.Catalog.Profile(ov.Profile); !ok {
                writeProblem(w, 400, "Unknown profile", ov.Profile, r.URL.Path)
                return
            }
        }
        if ov.Search != nil {
            if err := ov.Search.Validate(); err != nil { writeProblem(w, 400, "Invalid search config", err.Error(), r.URL.Path); return }
        }
        if err := s.Store.SaveScenarioOverride(r.Context(), p.Tenant, ov); err != nil { writeProblem(w, 500, "Save failed", err.Error(), r.URL.Path); return }
        writeJSON(w, 200, map[string]bool{"ok": true})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// SubscriptionsHandler handles POST/GET /v1/subscriptions
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
    switch r.Method {
    case http.MethodPost:
        p := s.getPrincipal(r)
        if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
        var req model.SubscriptionRequest
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        if req.TenantID == "" { req.TenantID = p.Tenant }
        sub, err := s.Store.CreateSubscription(r.Context(), req)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusCreated, sub)
    case http.MethodGet:
        p := s.getPrincipal(r)
        if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
        cursor := r.URL.Query().Get("cursor")
        limit := 100
        if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
        items, next, err := s.Store.ListSubscriptions(r.Context(), p.Tenant, cursor, limit)
        if err != nil { writeProblem(w, 500, "List subscriptions failed", err.Error(), r.URL.Path); return }
        writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// Subscription delete (admin)
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
    if !strings.HasPrefix(r.URL.Path, "/v1/subscriptions/") { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    if r.Method != http.MethodDelete { w.WriteHeader(405); return }
    p := s.getPrincipal(r)
    if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
    if err := s.Store.DeleteSubscription(r.Context(), p.Tenant, id); err != nil {
        if errors.Is(err, store.ErrNotFound) { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
        writeProblem(w, 500, "Delete subscription failed", err.Error(), r.URL.Path)
        return
    }
    w.WriteHeader(204)
}

// Admin: webhook deliveries list and retry
func (s *Server) WebhookDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/admin/webhook-deliveries" { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    p := s.getPrincipal(r)
    if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    if r.Method != http.MethodGet { w.WriteHeader(405); return }
    status := r.URL.Query().Get("status")
    cursor := r.URL.Query().Get("cursor")
    limit := 100
    if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
    items, next, err := s.Store.ListWebhookDeliveries(r.Context(), p.Tenant, status, cursor, limit)
    if err != nil { writeProblem(w, 500, "List deliveries failed", err.Error(), r.URL.Path); return }
    writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
}

func (s *Server) WebhookDeliveryRetryHandler(w http.ResponseWriter, r *http.Request) {
    if !strings.HasPrefix(r.URL.Path, "/v1/admin/webhook-deliveries/") || !strings.HasSuffix(r.URL.Path, "/retry") { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    if r.Method != http.MethodPost { w.WriteHeader(405); return }
    p := s.getPrincipal(r)
    if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/admin/webhook-deliveries/"), "/retry")
    if err := s.Store.RetryWebhookDelivery(r.Context(), p.Tenant, id); err != nil {
        if errors.Is(err, store.ErrNotFound) { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
        writeProblem(w, 500, "Retry delivery failed", err.Error(), r.URL.Path)
        return
    }
    writeJSON(w, 202, map[string]int{"accepted": 1})
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
    // Check DB connectivity when using Postgres store
    type pinger interface{ Ping(ctx context.Context) error }
    if pg, ok := s.Store.(pinger); ok {
        ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
        defer cancel()
        if err := pg.Ping(ctx); err != nil { writeProblem(w, 503, "Not Ready", err.Error(), r.URL.Path); return }
    }
    writeJSON(w, 200, map[string]string{"status": "ready"})
}
