package instrumentation

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestMetrics_RecordMethods(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	inst, err := New(Config{Enabled: true, MetricReader: reader})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = inst.Shutdown(context.Background()) }()

	ctx := context.Background()
	m := inst.Metrics()

	m.RecordHTTPRequest(ctx, "GET", "authorize", 303, 1.5)
	m.RecordAuthorizationStarted(ctx, "acme")
	m.RecordConsentPrompted(ctx, "acme")
	m.RecordConsentDecision(ctx, "acme", true)
	m.RecordConsentDecision(ctx, "acme", false)
	m.RecordGrantIssued(ctx, "acme")
	m.RecordCodeExchange(ctx, "acme")
	m.RecordTokenExchangeFailed(ctx, "invalid_grant")
	m.RecordStateReset(ctx)
	m.RecordRateLimitExceeded(ctx, "ip")
	m.RecordLoginAttempt(ctx, true)
	m.RecordStorageOperation(ctx, "take_grant", "success", 0.1)
	m.RecordAuditEvent(ctx, "grant_issued")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	sums := counterSums(rm)
	tests := []struct {
		name string
		want int64
	}{
		{"oauth.http.requests.total", 1},
		{"oauth.authorization.started", 1},
		{"oauth.consent.prompted", 1},
		{"oauth.consent.decisions", 2},
		{"oauth.grant.issued", 1},
		{"oauth.code.exchanged", 1},
		{"oauth.token.exchange.failed", 1},
		{"oauth.state.resets", 1},
		{"oauth.rate_limit.exceeded", 1},
		{"oauth.login.attempts", 1},
		{"storage.operation.total", 1},
		{"oauth.audit.events.total", 1},
	}
	for _, tt := range tests {
		if got := sums[tt.name]; got != tt.want {
			t.Errorf("%s = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestMetrics_DisabledIsNoop(t *testing.T) {
	inst, err := New(Config{Enabled: false})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// Should not panic with no-op providers
	inst.Metrics().RecordGrantIssued(context.Background(), "acme")
	inst.Metrics().RecordHTTPRequest(context.Background(), "POST", "token", 200, 2)
}

func counterSums(rm metricdata.ResourceMetrics) map[string]int64 {
	out := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			s, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range s.DataPoints {
				out[m.Name] += dp.Value
			}
		}
	}
	return out
}
