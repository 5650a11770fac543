// Package storage defines the interfaces holding authorization grant state:
// the consent ledger, the grant store and the access token store.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrGrantNotFound is returned when a grant code is unknown, already redeemed or expired.
	ErrGrantNotFound = errors.New("grant not found")

	// ErrTokenNotFound is returned when an access token is unknown or expired.
	ErrTokenNotFound = errors.New("access token not found")
)

// GrantStore maps issued grant codes to the authorization request that produced them.
// Entries are single-use and time-limited.
// All methods accept context.Context for tracing.
type GrantStore interface {
	// PutGrant stores a grant and schedules its eviction after the store's grant TTL.
	PutGrant(ctx context.Context, code string, grant *GrantRequest) error

	// TakeGrant atomically retrieves and removes a grant.
	// SECURITY: two concurrent callers must never both receive the same grant.
	// Returns ErrGrantNotFound if the code is unknown, already taken or expired.
	TakeGrant(ctx context.Context, code string) (*GrantRequest, error)

	// RemoveGrant removes a grant. Removing an absent code is a no-op.
	RemoveGrant(ctx context.Context, code string)
}

// AccessTokenStore records issued access tokens until they expire.
type AccessTokenStore interface {
	// PutAccessToken stores a token record and schedules its eviction after the token TTL.
	PutAccessToken(ctx context.Context, token string, record *AccessToken) error

	// GetAccessToken returns the record for a token, or ErrTokenNotFound if it is
	// unknown or expired.
	GetAccessToken(ctx context.Context, token string) (*AccessToken, error)

	// RemoveAccessToken removes a token. Removing an absent token is a no-op.
	RemoveAccessToken(ctx context.Context, token string)

	// TokenTTL is the lifetime given to stored tokens. It is reported to
	// clients as expires_in.
	TokenTTL() time.Duration
}

// ConsentLedger records the (client, scope) pairs the resource owner has approved.
// Entries never expire on their own; they are cleared only by a reset.
type ConsentLedger interface {
	// UnauthorisedScopes returns the requested scopes that have not been approved
	// for the client, in the order they were requested.
	UnauthorisedScopes(ctx context.Context, clientID string, scopes []string) []string

	// GrantScopes records approval of each scope for the client. Idempotent.
	GrantScopes(ctx context.Context, clientID string, scopes []string)
}

// Resetter clears the consent ledger and the grant store in one step.
// Implementations must make the reset atomic with respect to other store operations.
type Resetter interface {
	Reset(ctx context.Context)
}

// Authorisation is a standing resource-owner approval of one scope for one client.
// It is a comparable value and can be used directly as a map key.
type Authorisation struct {
	ClientID string
	Scope    string
}

// GrantRequest is a validated authorization request awaiting redemption.
type GrantRequest struct {
	ClientID     string
	RedirectURI  string
	Scope        string   // Scopes joined with single spaces
	Scopes       []string // parsed from Scope
	ResponseType string
	State        string // optional client state, echoed on the code redirect
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// AccessToken is the record kept for an issued access token.
type AccessToken struct {
	ClientID  string
	Scope     string
	CreatedAt time.Time
	ExpiresAt time.Time
}
