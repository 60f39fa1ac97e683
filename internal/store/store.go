package store

import (
    "context"
    "errors"
    "time"

    "vaxalloc/internal/model"
    "vaxalloc/internal/opt"
)

// Store is the persistence interface used by the API server.
type Store interface {
    // Epidemic series (one active series per tenant)
    SaveSeries(ctx context.Context, tenantID, source string, s opt.Series) (model.SeriesInfo, error)
    GetSeries(ctx context.Context, tenantID string) (opt.Series, model.SeriesInfo, error)

    // Optimization runs
    CreateRun(ctx context.Context, run model.OptimizationRun) (model.OptimizationRun, error)
    GetRun(ctx context.Context, tenantID, runID string) (model.OptimizationRun, error)
    ListRuns(ctx context.Context, tenantID, status, cursor string, limit int) ([]model.OptimizationRun, string, error)
    MarkRunRunning(ctx context.Context, tenantID, runID string) error
    CompleteRun(ctx context.Context, tenantID, runID string, result opt.Result, report opt.Report, metrics opt.SearchMetrics) error
    FailRun(ctx context.Context, tenantID, runID, cause string) error

    // Subscriptions
    CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
    GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error)
    ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error)
    DeleteSubscription(ctx context.Context, tenantID, id string) error

    // Webhook deliveries
    EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
    FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
    MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
    FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
    ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error)
    RetryWebhookDelivery(ctx context.Context, tenantID, id string) error

    // Scenario overrides per tenant
    GetScenarioOverride(ctx context.Context, tenantID string) (model.ScenarioOverride, error)
    SaveScenarioOverride(ctx context.Context, tenantID string, ov model.ScenarioOverride) error
}

var ErrNotFound = errors.New("not found")

// WebhookDelivery is one queued outbound notification.
type WebhookDelivery struct {
    ID             string
    TenantID       string
    SubscriptionID string
    EventType      string
    URL            string
    Secret         string
    Payload        []byte
    Status         string
    Attempts       int
}
