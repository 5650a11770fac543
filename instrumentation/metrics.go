package instrumentation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric instruments for the server
type Metrics struct {
	// HTTP Layer Metrics
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram

	// Grant Flow Metrics
	AuthorizationStarted metric.Int64Counter
	ConsentPrompted      metric.Int64Counter
	ConsentDecisions     metric.Int64Counter
	GrantsIssued         metric.Int64Counter
	CodeExchanged        metric.Int64Counter
	TokenExchangeFailed  metric.Int64Counter
	StateResets          metric.Int64Counter

	// Security Metrics
	RateLimitExceeded metric.Int64Counter
	LoginAttempts     metric.Int64Counter

	// Storage Metrics
	StorageOperationTotal      metric.Int64Counter
	StorageOperationDuration   metric.Float64Histogram
	StorageGrantsCount         metric.Int64ObservableGauge
	StorageTokensCount         metric.Int64ObservableGauge
	StorageAuthorisationsCount metric.Int64ObservableGauge

	// Audit Metrics
	AuditEventsTotal metric.Int64Counter
}

// newMetrics creates and registers all metric instruments
func newMetrics(inst *Instrumentation) (*Metrics, error) {
	m := &Metrics{}

	httpMeter := inst.Meter("http")
	serverMeter := inst.Meter("server")
	securityMeter := inst.Meter("security")
	storageMeter := inst.Meter("storage")

	var err error

	// HTTP Layer Metrics
	m.HTTPRequestsTotal, err = httpMeter.Int64Counter(
		"oauth.http.requests.total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http.requests.total counter: %w", err)
	}

	m.HTTPRequestDuration, err = httpMeter.Float64Histogram(
		"oauth.http.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http.request.duration histogram: %w", err)
	}

	// Grant Flow Metrics
	m.AuthorizationStarted, err = serverMeter.Int64Counter(
		"oauth.authorization.started",
		metric.WithDescription("Number of authorization requests accepted for processing"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create authorization.started counter: %w", err)
	}

	m.ConsentPrompted, err = serverMeter.Int64Counter(
		"oauth.consent.prompted",
		metric.WithDescription("Number of consent pages shown to resource owners"),
		metric.WithUnit("{prompt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create consent.prompted counter: %w", err)
	}

	m.ConsentDecisions, err = serverMeter.Int64Counter(
		"oauth.consent.decisions",
		metric.WithDescription("Number of consent decisions by outcome"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create consent.decisions counter: %w", err)
	}

	m.GrantsIssued, err = serverMeter.Int64Counter(
		"oauth.grant.issued",
		metric.WithDescription("Number of grant codes issued"),
		metric.WithUnit("{grant}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create grant.issued counter: %w", err)
	}

	m.CodeExchanged, err = serverMeter.Int64Counter(
		"oauth.code.exchanged",
		metric.WithDescription("Number of grant codes exchanged for access tokens"),
		metric.WithUnit("{exchange}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create code.exchanged counter: %w", err)
	}

	m.TokenExchangeFailed, err = serverMeter.Int64Counter(
		"oauth.token.exchange.failed",
		metric.WithDescription("Number of rejected token exchanges by OAuth error code"),
		metric.WithUnit("{exchange}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token.exchange.failed counter: %w", err)
	}

	m.StateResets, err = serverMeter.Int64Counter(
		"oauth.state.resets",
		metric.WithDescription("Number of consent and grant state resets"),
		metric.WithUnit("{reset}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create state.resets counter: %w", err)
	}

	// Security Metrics
	m.RateLimitExceeded, err = securityMeter.Int64Counter(
		"oauth.rate_limit.exceeded",
		metric.WithDescription("Number of rate limit violations"),
		metric.WithUnit("{violation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate_limit.exceeded counter: %w", err)
	}

	m.LoginAttempts, err = securityMeter.Int64Counter(
		"oauth.login.attempts",
		metric.WithDescription("Number of resource owner login attempts by result"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create login.attempts counter: %w", err)
	}

	m.AuditEventsTotal, err = securityMeter.Int64Counter(
		"oauth.audit.events.total",
		metric.WithDescription("Number of audit events logged"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit.events.total counter: %w", err)
	}

	// Storage Metrics
	m.StorageOperationTotal, err = storageMeter.Int64Counter(
		"storage.operation.total",
		metric.WithDescription("Total number of storage operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.operation.total counter: %w", err)
	}

	m.StorageOperationDuration, err = storageMeter.Float64Histogram(
		"storage.operation.duration",
		metric.WithDescription("Storage operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.operation.duration histogram: %w", err)
	}

	m.StorageGrantsCount, err = storageMeter.Int64ObservableGauge(
		"storage.grants.count",
		metric.WithDescription("Number of outstanding grant codes"),
		metric.WithUnit("{grant}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.grants.count gauge: %w", err)
	}

	m.StorageTokensCount, err = storageMeter.Int64ObservableGauge(
		"storage.tokens.count",
		metric.WithDescription("Number of live access tokens"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.tokens.count gauge: %w", err)
	}

	m.StorageAuthorisationsCount, err = storageMeter.Int64ObservableGauge(
		"storage.authorisations.count",
		metric.WithDescription("Number of recorded consent authorisations"),
		metric.WithUnit("{authorisation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.authorisations.count gauge: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request with its duration
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, endpoint string, statusCode int, durationMs float64) {
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("endpoint", endpoint),
		attribute.Int("status", statusCode),
	)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)
	m.HTTPRequestDuration.Record(ctx, durationMs, attrs)
}

// RecordAuthorizationStarted records an accepted authorization request
func (m *Metrics) RecordAuthorizationStarted(ctx context.Context, clientID string) {
	m.AuthorizationStarted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("client_id", clientID),
	))
}

// RecordConsentPrompted records a consent page being shown
func (m *Metrics) RecordConsentPrompted(ctx context.Context, clientID string) {
	m.ConsentPrompted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("client_id", clientID),
	))
}

// RecordConsentDecision records an approval or denial
func (m *Metrics) RecordConsentDecision(ctx context.Context, clientID string, approved bool) {
	decision := "denied"
	if approved {
		decision = "granted"
	}
	m.ConsentDecisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("client_id", clientID),
		attribute.String("decision", decision),
	))
}

// RecordGrantIssued records a grant code being issued
func (m *Metrics) RecordGrantIssued(ctx context.Context, clientID string) {
	m.GrantsIssued.Add(ctx, 1, metric.WithAttributes(
		attribute.String("client_id", clientID),
	))
}

// RecordCodeExchange records a successful code exchange
func (m *Metrics) RecordCodeExchange(ctx context.Context, clientID string) {
	m.CodeExchanged.Add(ctx, 1, metric.WithAttributes(
		attribute.String("client_id", clientID),
	))
}

// RecordTokenExchangeFailed records a rejected token exchange
func (m *Metrics) RecordTokenExchangeFailed(ctx context.Context, errorCode string) {
	m.TokenExchangeFailed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("error_code", errorCode),
	))
}

// RecordStateReset records a reset of consent and grant state
func (m *Metrics) RecordStateReset(ctx context.Context) {
	m.StateResets.Add(ctx, 1)
}

// RecordRateLimitExceeded records a rate limit violation
func (m *Metrics) RecordRateLimitExceeded(ctx context.Context, limiterType string) {
	m.RateLimitExceeded.Add(ctx, 1, metric.WithAttributes(
		attribute.String("limiter_type", limiterType),
	))
}

// RecordLoginAttempt records a login attempt
func (m *Metrics) RecordLoginAttempt(ctx context.Context, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	m.LoginAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("result", result),
	))
}

// RecordStorageOperation records a storage operation
func (m *Metrics) RecordStorageOperation(ctx context.Context, operation, result string, durationMs float64) {
	m.StorageOperationTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("result", result),
	))
	m.StorageOperationDuration.Record(ctx, durationMs, metric.WithAttributes(
		attribute.String("operation", operation),
	))
}

// RecordAuditEvent records an audit event
func (m *Metrics) RecordAuditEvent(ctx context.Context, eventType string) {
	m.AuditEventsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
	))
}
