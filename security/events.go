package security

// Event type constants for security audit logging.
const (
	// Grant flow events

	// EventAuthorizationRequested is logged when a valid authorization request is received
	EventAuthorizationRequested = "authorization_requested"

	// EventConsentPrompted is logged when the resource owner is asked to approve scopes
	EventConsentPrompted = "consent_prompted"

	// EventConsentGranted is logged when the resource owner approves scopes for a client
	EventConsentGranted = "consent_granted"

	// EventConsentDenied is logged when the resource owner denies a request
	EventConsentDenied = "consent_denied"

	// EventGrantIssued is logged when a grant code is issued
	EventGrantIssued = "grant_issued"

	// Token events

	// EventTokenIssued is logged when an access token is issued to a client
	EventTokenIssued = "token_issued"

	// EventTokenExchangeRejected is logged when a code exchange fails validation
	EventTokenExchangeRejected = "token_exchange_rejected" //nolint:gosec // event type name, not a credential

	// Administrative events

	// EventStateReset is logged when consent and grant state is cleared
	EventStateReset = "state_reset"

	// Resource owner authentication events

	// EventLoginSucceeded is logged when a resource owner logs in
	EventLoginSucceeded = "login_succeeded"

	// EventLoginFailed is logged when a resource owner login is rejected
	EventLoginFailed = "login_failed"

	// EventLogout is logged when a resource owner session is ended
	EventLogout = "logout"

	// Security violation events

	// EventUnknownClient is logged when a request names a client that is not registered
	EventUnknownClient = "unknown_client"

	// EventRateLimitExceeded is logged when a rate limit is exceeded
	EventRateLimitExceeded = "rate_limit_exceeded"
)
