// Package mock provides a mock implementation of the storage interfaces for testing.
package mock

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/giantswarm/authcode-server/storage"
)

// MockStore implements every storage interface with plain maps. Each method
// delegates to a replaceable function field so tests can inject failures.
// Entries never expire.
type MockStore struct {
	mu             sync.Mutex
	grants         map[string]*storage.GrantRequest
	tokens         map[string]*storage.AccessToken
	authorisations map[storage.Authorisation]struct{}
	calls          map[string]int

	// TokenLifetime is returned by TokenTTL
	TokenLifetime time.Duration

	PutGrantFunc           func(ctx context.Context, code string, grant *storage.GrantRequest) error
	TakeGrantFunc          func(ctx context.Context, code string) (*storage.GrantRequest, error)
	RemoveGrantFunc        func(ctx context.Context, code string)
	PutAccessTokenFunc     func(ctx context.Context, token string, record *storage.AccessToken) error
	GetAccessTokenFunc     func(ctx context.Context, token string) (*storage.AccessToken, error)
	RemoveAccessTokenFunc  func(ctx context.Context, token string)
	UnauthorisedScopesFunc func(ctx context.Context, clientID string, scopes []string) []string
	GrantScopesFunc        func(ctx context.Context, clientID string, scopes []string)
	ResetFunc              func(ctx context.Context)
}

var (
	_ storage.GrantStore       = (*MockStore)(nil)
	_ storage.AccessTokenStore = (*MockStore)(nil)
	_ storage.ConsentLedger    = (*MockStore)(nil)
	_ storage.Resetter         = (*MockStore)(nil)
)

// NewMockStore creates a mock store whose default functions behave like a
// working store
func NewMockStore() *MockStore {
	m := &MockStore{
		grants:         make(map[string]*storage.GrantRequest),
		tokens:         make(map[string]*storage.AccessToken),
		authorisations: make(map[storage.Authorisation]struct{}),
		calls:          make(map[string]int),
		TokenLifetime:  time.Hour,
	}

	m.PutGrantFunc = func(_ context.Context, code string, grant *storage.GrantRequest) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.grants[code] = grant
		return nil
	}

	m.TakeGrantFunc = func(_ context.Context, code string) (*storage.GrantRequest, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		grant, ok := m.grants[code]
		if !ok {
			return nil, storage.ErrGrantNotFound
		}
		delete(m.grants, code)
		return grant, nil
	}

	m.RemoveGrantFunc = func(_ context.Context, code string) {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.grants, code)
	}

	m.PutAccessTokenFunc = func(_ context.Context, token string, record *storage.AccessToken) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.tokens[token] = record
		return nil
	}

	m.GetAccessTokenFunc = func(_ context.Context, token string) (*storage.AccessToken, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		record, ok := m.tokens[token]
		if !ok {
			return nil, storage.ErrTokenNotFound
		}
		return record, nil
	}

	m.RemoveAccessTokenFunc = func(_ context.Context, token string) {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.tokens, token)
	}

	m.UnauthorisedScopesFunc = func(_ context.Context, clientID string, scopes []string) []string {
		m.mu.Lock()
		defer m.mu.Unlock()
		var missing []string
		for _, scope := range scopes {
			if _, ok := m.authorisations[storage.Authorisation{ClientID: clientID, Scope: scope}]; !ok {
				missing = append(missing, scope)
			}
		}
		return missing
	}

	m.GrantScopesFunc = func(_ context.Context, clientID string, scopes []string) {
		m.mu.Lock()
		defer m.mu.Unlock()
		for _, scope := range scopes {
			m.authorisations[storage.Authorisation{ClientID: clientID, Scope: scope}] = struct{}{}
		}
	}

	m.ResetFunc = func(_ context.Context) {
		m.mu.Lock()
		defer m.mu.Unlock()
		clear(m.grants)
		clear(m.authorisations)
	}

	return m
}

func (m *MockStore) count(name string) {
	m.mu.Lock()
	m.calls[name]++
	m.mu.Unlock()
}

// PutGrant stores a grant
func (m *MockStore) PutGrant(ctx context.Context, code string, grant *storage.GrantRequest) error {
	m.count("PutGrant")
	return m.PutGrantFunc(ctx, code, grant)
}

// TakeGrant retrieves and removes a grant
func (m *MockStore) TakeGrant(ctx context.Context, code string) (*storage.GrantRequest, error) {
	m.count("TakeGrant")
	return m.TakeGrantFunc(ctx, code)
}

// RemoveGrant removes a grant
func (m *MockStore) RemoveGrant(ctx context.Context, code string) {
	m.count("RemoveGrant")
	m.RemoveGrantFunc(ctx, code)
}

// PutAccessToken stores a token record
func (m *MockStore) PutAccessToken(ctx context.Context, token string, record *storage.AccessToken) error {
	m.count("PutAccessToken")
	return m.PutAccessTokenFunc(ctx, token, record)
}

// GetAccessToken returns a token record
func (m *MockStore) GetAccessToken(ctx context.Context, token string) (*storage.AccessToken, error) {
	m.count("GetAccessToken")
	return m.GetAccessTokenFunc(ctx, token)
}

// RemoveAccessToken removes a token record
func (m *MockStore) RemoveAccessToken(ctx context.Context, token string) {
	m.count("RemoveAccessToken")
	m.RemoveAccessTokenFunc(ctx, token)
}

// TokenTTL returns TokenLifetime
func (m *MockStore) TokenTTL() time.Duration {
	return m.TokenLifetime
}

// UnauthorisedScopes returns the scopes not yet approved for the client
func (m *MockStore) UnauthorisedScopes(ctx context.Context, clientID string, scopes []string) []string {
	m.count("UnauthorisedScopes")
	return m.UnauthorisedScopesFunc(ctx, clientID, slices.Clone(scopes))
}

// GrantScopes records approval of scopes for the client
func (m *MockStore) GrantScopes(ctx context.Context, clientID string, scopes []string) {
	m.count("GrantScopes")
	m.GrantScopesFunc(ctx, clientID, scopes)
}

// Reset clears consent and grants
func (m *MockStore) Reset(ctx context.Context) {
	m.count("Reset")
	m.ResetFunc(ctx)
}

// CallCount returns how often the named method was called
func (m *MockStore) CallCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

// ResetCallCounts resets all call counters
func (m *MockStore) ResetCallCounts() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = make(map[string]int)
}
