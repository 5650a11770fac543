package security

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"github.com/giantswarm/authcode-server/instrumentation"
)

// Auditor handles security event logging with PII protection.
type Auditor struct {
	logger  *slog.Logger
	enabled bool
	metrics *instrumentation.Metrics
}

// NewAuditor creates a new security auditor
func NewAuditor(logger *slog.Logger, enabled bool) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{
		logger:  logger,
		enabled: enabled,
	}
}

// SetInstrumentation enables the audit event counter
func (a *Auditor) SetInstrumentation(inst *instrumentation.Instrumentation) {
	if inst != nil {
		a.metrics = inst.Metrics()
	}
}

// Event represents a security audit event
type Event struct {
	Type      string
	UserID    string
	ClientID  string
	IPAddress string
	RequestID string
	Details   map[string]any
	Timestamp time.Time
}

// LogEvent logs a security event with hashed PII
func (a *Auditor) LogEvent(event Event) {
	if a == nil || !a.enabled {
		return
	}

	event.Timestamp = time.Now()

	attrs := []any{
		"event_type", event.Type,
		"user_id_hash", hashForLogging(event.UserID),
		"client_id", event.ClientID,
		"ip_address", event.IPAddress,
		"details", event.Details,
		"timestamp", event.Timestamp,
	}
	if event.RequestID != "" {
		attrs = append(attrs, "request_id", event.RequestID)
	}
	a.logger.Info("security_audit", attrs...)

	if a.metrics != nil {
		a.metrics.RecordAuditEvent(context.Background(), event.Type)
	}
}

// LogConsentPrompted logs that the resource owner was asked to approve scopes
func (a *Auditor) LogConsentPrompted(userID, clientID string, scopes []string) {
	a.LogEvent(Event{
		Type:     EventConsentPrompted,
		UserID:   userID,
		ClientID: clientID,
		Details:  map[string]any{"scopes": strings.Join(scopes, " ")},
	})
}

// LogConsentDecision logs an approval or a denial
func (a *Auditor) LogConsentDecision(userID, clientID string, approved bool, scopes []string) {
	eventType := EventConsentDenied
	if approved {
		eventType = EventConsentGranted
	}
	a.LogEvent(Event{
		Type:     eventType,
		UserID:   userID,
		ClientID: clientID,
		Details:  map[string]any{"scopes": strings.Join(scopes, " ")},
	})
}

// LogGrantIssued logs when a grant code is issued
func (a *Auditor) LogGrantIssued(userID, clientID, scope string) {
	a.LogEvent(Event{
		Type:     EventGrantIssued,
		UserID:   userID,
		ClientID: clientID,
		Details:  map[string]any{"scope": scope},
	})
}

// LogTokenIssued logs when a token is issued
func (a *Auditor) LogTokenIssued(clientID, ipAddress, scope string) {
	a.LogEvent(Event{
		Type:      EventTokenIssued,
		ClientID:  clientID,
		IPAddress: ipAddress,
		Details:   map[string]any{"scope": scope},
	})
}

// LogTokenExchangeRejected logs a failed code exchange with its internal reason
func (a *Auditor) LogTokenExchangeRejected(clientID, ipAddress, reason string) {
	a.LogEvent(Event{
		Type:      EventTokenExchangeRejected,
		ClientID:  clientID,
		IPAddress: ipAddress,
		Details:   map[string]any{"reason": reason},
	})
}

// LogUnknownClient logs a request naming an unregistered client
func (a *Auditor) LogUnknownClient(userID, clientID string) {
	a.LogEvent(Event{
		Type:     EventUnknownClient,
		UserID:   userID,
		ClientID: clientID,
	})
}

// LogStateReset logs a reset of consent and grant state
func (a *Auditor) LogStateReset(userID string) {
	a.LogEvent(Event{
		Type:   EventStateReset,
		UserID: userID,
	})
}

// LogLogin logs a resource owner login attempt
func (a *Auditor) LogLogin(username, ipAddress string, success bool, reason string) {
	event := Event{
		Type:      EventLoginSucceeded,
		UserID:    username,
		IPAddress: ipAddress,
	}
	if !success {
		event.Type = EventLoginFailed
		event.Details = map[string]any{"reason": reason}
	}
	a.LogEvent(event)
}

// LogLogout logs the end of a resource owner session
func (a *Auditor) LogLogout(username, ipAddress string) {
	a.LogEvent(Event{
		Type:      EventLogout,
		UserID:    username,
		IPAddress: ipAddress,
	})
}

// LogRateLimitExceeded logs a rate limit violation
func (a *Auditor) LogRateLimitExceeded(ipAddress, endpoint string) {
	a.LogEvent(Event{
		Type:      EventRateLimitExceeded,
		IPAddress: ipAddress,
		Details:   map[string]any{"endpoint": endpoint},
	})
}

// hashForLogging creates a SHA256 hash of sensitive data for logging
func hashForLogging(sensitive string) string {
	if sensitive == "" {
		return "<empty>"
	}
	hash := sha256.Sum256([]byte(sensitive))
	return hex.EncodeToString(hash[:])[:16]
}
