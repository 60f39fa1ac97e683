package model

import (
    "time"

    "vaxalloc/internal/opt"
)

// Run lifecycle states for asynchronous timing searches.
const (
    RunPending   = "pending"
    RunRunning   = "running"
    RunCompleted = "completed"
    RunFailed    = "failed"
)

// SeriesInfo summarizes the epidemic series currently loaded for a tenant.
type SeriesInfo struct {
    TenantID   string                 `json:"tenantId"`
    Horizon    int                    `json:"horizon"`
    Population [opt.NumGroups]float64 `json:"population"`
    Source     string                 `json:"source,omitempty"` // csv, json, demo
    UpdatedAt  time.Time              `json:"updatedAt"`
}

// SolveRequest runs a single LP at a fixed (or default) timing.
type SolveRequest struct {
    Timing  *opt.Timing     `json:"timing,omitempty"`
    Weights *opt.Weights    `json:"weights,omitempty"`
    Profile string          `json:"profile,omitempty"`
    Costs   *opt.CostParams `json:"costs,omitempty"`
}

// SolveResponse pairs the LP solution with its supplementary report.
type SolveResponse struct {
    Result opt.Result `json:"result"`
    Report opt.Report `json:"report"`
}

// SearchRequest starts an asynchronous grid search over dose timings.
type SearchRequest struct {
    Config  *opt.SearchConfig `json:"config,omitempty"`
    Weights *opt.Weights      `json:"weights,omitempty"`
    Profile string            `json:"profile,omitempty"`
    Costs   *opt.CostParams   `json:"costs,omitempty"`
}

// OptimizationRun is the persisted record of one search.
type OptimizationRun struct {
    ID          string             `json:"id"`
    TenantID    string             `json:"tenantId"`
    Status      string             `json:"status"`
    Profile     string             `json:"profile"`
    Weights     opt.Weights        `json:"weights"`
    Config      opt.SearchConfig   `json:"config"`
    SubmittedAt time.Time          `json:"submittedAt"`
    StartedAt   *time.Time         `json:"startedAt,omitempty"`
    CompletedAt *time.Time         `json:"completedAt,omitempty"`
    Error       string             `json:"error,omitempty"`
    Result      *opt.Result        `json:"result,omitempty"`
    Report      *opt.Report        `json:"report,omitempty"`
    Metrics     *opt.SearchMetrics `json:"metrics,omitempty"`
}

// SensitivityRequest sweeps shared dose-1 timing with derived dose-2 timing.
type SensitivityRequest struct {
    Config  *opt.SensitivityConfig `json:"config,omitempty"`
    Weights *opt.Weights           `json:"weights,omitempty"`
    Profile string                 `json:"profile,omitempty"`
    Costs   *opt.CostParams        `json:"costs,omitempty"`
}

type SensitivityResponse struct {
    Points []opt.SensitivityPoint `json:"points"`
}

// CostMatrixRequest evaluates the combined objective over a tau1 x tau2 grid.
type CostMatrixRequest struct {
    Config  *opt.CostMatrixConfig `json:"config,omitempty"`
    Weights *opt.Weights          `json:"weights,omitempty"`
    Profile string                `json:"profile,omitempty"`
    Costs   *opt.CostParams       `json:"costs,omitempty"`
}

// CompareRequest solves the same timing under several weight triples.
type CompareRequest struct {
    Sets    []opt.Weights   `json:"sets,omitempty"`
    Timing  *opt.Timing     `json:"timing,omitempty"`
    Profile string          `json:"profile,omitempty"`
    Costs   *opt.CostParams `json:"costs,omitempty"`
}

type CompareResponse struct {
    Rows []opt.WeightComparison `json:"rows"`
}

// ScenarioOverride is a tenant-scoped override of the deployment defaults.
// Nil fields fall back to the configured catalog entry.
type ScenarioOverride struct {
    Profile string            `json:"profile,omitempty"`
    Costs   *opt.CostParams   `json:"costs,omitempty"`
    Search  *opt.SearchConfig `json:"search,omitempty"`
}

// Webhook subscriptions
type SubscriptionRequest struct {
    TenantID string   `json:"tenantId"`
    URL      string   `json:"url"`
    Events   []string `json:"events"`
    Secret   string   `json:"secret"`
}

type Subscription struct {
    ID       string   `json:"id"`
    TenantID string   `json:"tenantId"`
    URL      string   `json:"url"`
    Events   []string `json:"events"`
    Secret   string   `json:"secret,omitempty"`
}

// RunEvent is the progress/completion message fanned out to stream
// subscribers and webhooks while a search runs.
type RunEvent struct {
    Type     string      `json:"type"` // search.progress, search.completed, search.failed
    TenantID string      `json:"tenantId"`
    RunID    string      `json:"runId"`
    Done     int         `json:"done,omitempty"`
    Total    int         `json:"total,omitempty"`
    Best     *opt.Result `json:"best,omitempty"`
    Error    string      `json:"error,omitempty"`
    TS       string      `json:"ts"`
}
