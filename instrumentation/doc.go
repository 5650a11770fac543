// Package instrumentation provides OpenTelemetry instrumentation for the authorization server.
//
// It wires an SDK meter provider to a Prometheus exporter and an SDK tracer provider,
// and exposes pre-built metric instruments for every layer:
//   - Metrics: counters, histograms and gauges for grant flow, security and storage
//   - Traces: spans for HTTP endpoints and storage operations
//
// # Quick Start
//
//	inst, err := instrumentation.New(instrumentation.Config{
//		ServiceName:    "authcode-server",
//		ServiceVersion: "1.0.0",
//		Enabled:        true,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer inst.Shutdown(context.Background())
//
//	http.Handle("/metrics", inst.PrometheusHandler())
//
// When Enabled is false, no-op providers are used and PrometheusHandler responds 404.
//
// # Available Metrics
//
// HTTP Layer:
//   - oauth.http.requests.total{method, endpoint, status}
//   - oauth.http.request.duration{method, endpoint, status}
//
// Grant Flow:
//   - oauth.authorization.started{client_id}
//   - oauth.consent.prompted{client_id}
//   - oauth.consent.decisions{client_id, decision}
//   - oauth.grant.issued{client_id}
//   - oauth.code.exchanged{client_id}
//   - oauth.token.exchange.failed{error_code}
//   - oauth.state.resets
//
// Security:
//   - oauth.rate_limit.exceeded{limiter_type}
//   - oauth.login.attempts{result}
//   - oauth.audit.events.total{event_type}
//
// Storage:
//   - storage.operation.total{operation, result}
//   - storage.operation.duration{operation}
//   - storage.grants.count, storage.tokens.count, storage.authorisations.count
//
// Never record grant codes or access tokens as attribute values.
package instrumentation
