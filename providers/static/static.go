// Package static implements a Provider backed by a fixed set of users from
// the server configuration.
package static

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/giantswarm/authcode-server/providers"
)

// ProviderName is the name reported by Provider.Name
const ProviderName = "static"

// dummyHash is compared against when a username is unknown, so that unknown
// and known users take the same time to reject.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)

// User is a configured resource owner. Exactly one of Password and
// PasswordHash should be set; a plain Password is hashed when the provider
// is created.
type User struct {
	Password     string `yaml:"password,omitempty" json:"password,omitempty"`
	PasswordHash string `yaml:"password_hash,omitempty" json:"password_hash,omitempty"`
	DisplayName  string `yaml:"display_name,omitempty" json:"display_name,omitempty"`
}

type account struct {
	hash        []byte
	displayName string
}

// Provider authenticates against configured users
type Provider struct {
	users  map[string]account
	logger *slog.Logger
}

var _ providers.Provider = (*Provider)(nil)

// New creates a provider for users. Plain passwords are hashed with bcrypt.
func New(users map[string]User, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}

	p := &Provider{
		users:  make(map[string]account, len(users)),
		logger: logger,
	}
	for name, u := range users {
		if name == "" {
			return nil, fmt.Errorf("user with empty name")
		}

		var hash []byte
		switch {
		case u.PasswordHash != "":
			if _, err := bcrypt.Cost([]byte(u.PasswordHash)); err != nil {
				return nil, fmt.Errorf("user %s: invalid password_hash: %w", name, err)
			}
			hash = []byte(u.PasswordHash)
		case u.Password != "":
			var err error
			hash, err = HashPassword(u.Password)
			if err != nil {
				return nil, fmt.Errorf("user %s: %w", name, err)
			}
			logger.Warn("User configured with a plain text password; prefer password_hash", "user", name)
		default:
			return nil, fmt.Errorf("user %s: password or password_hash is required", name)
		}

		display := u.DisplayName
		if display == "" {
			display = name
		}
		p.users[name] = account{hash: hash, displayName: display}
	}
	return p, nil
}

// HashPassword returns the bcrypt hash of password
func HashPassword(password string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return hash, nil
}

// Name implements providers.Provider
func (p *Provider) Name() string {
	return ProviderName
}

// Authenticate implements providers.Provider
func (p *Provider) Authenticate(ctx context.Context, username, password string) (*providers.Principal, error) {
	username = strings.TrimSpace(username)

	acct, ok := p.users[username]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		p.logger.Debug("Login rejected", "reason", "unknown_user")
		return nil, providers.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(acct.hash, []byte(password)); err != nil {
		p.logger.Debug("Login rejected", "reason", "password_mismatch")
		return nil, providers.ErrInvalidCredentials
	}

	return &providers.Principal{Username: username, DisplayName: acct.displayName}, nil
}

// Len returns the number of configured users
func (p *Provider) Len() int {
	return len(p.users)
}
