// Package providers defines how resource owners are authenticated before
// they may take part in an authorization flow.
package providers

import (
	"context"
	"errors"
)

// ErrInvalidCredentials is returned when a username and password pair is rejected.
// Providers must not reveal which of the two was wrong.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Provider authenticates resource owners.
type Provider interface {
	// Name returns the provider name (e.g., "static")
	Name() string

	// Authenticate checks a username and password. It returns
	// ErrInvalidCredentials when they do not match.
	Authenticate(ctx context.Context, username, password string) (*Principal, error)
}

// Principal is an authenticated resource owner
type Principal struct {
	// Username is the name the resource owner logged in with
	Username string

	// DisplayName is shown on consent pages; it defaults to Username
	DisplayName string
}
