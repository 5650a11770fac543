// Package mock provides a mock implementation of the Provider interface for testing.
package mock

import (
	"context"
	"sync"

	"github.com/giantswarm/authcode-server/providers"
)

// MockProvider is a mock implementation of the Provider interface for testing
type MockProvider struct {
	// NameFunc is called when Name() is invoked
	NameFunc func() string

	// AuthenticateFunc is called when Authenticate() is invoked
	AuthenticateFunc func(ctx context.Context, username, password string) (*providers.Principal, error)

	// CallCounts tracks how many times each method was called
	CallCounts map[string]int

	mu sync.RWMutex
}

var _ providers.Provider = (*MockProvider)(nil)

// NewMockProvider creates a mock that accepts any user whose password is "password"
func NewMockProvider() *MockProvider {
	return &MockProvider{
		CallCounts: make(map[string]int),
		NameFunc: func() string {
			return "mock"
		},
		AuthenticateFunc: func(ctx context.Context, username, password string) (*providers.Principal, error) {
			if password != "password" {
				return nil, providers.ErrInvalidCredentials
			}
			return &providers.Principal{Username: username, DisplayName: username}, nil
		},
	}
}

// Name implements providers.Provider
func (m *MockProvider) Name() string {
	// Release the lock before calling the function; it may call back into the mock
	m.mu.Lock()
	m.CallCounts["Name"]++
	fn := m.NameFunc
	m.mu.Unlock()

	if fn != nil {
		return fn()
	}
	return "mock"
}

// Authenticate implements providers.Provider
func (m *MockProvider) Authenticate(ctx context.Context, username, password string) (*providers.Principal, error) {
	m.mu.Lock()
	m.CallCounts["Authenticate"]++
	fn := m.AuthenticateFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, username, password)
	}
	return nil, providers.ErrInvalidCredentials
}

// GetCallCount returns how many times method was called
func (m *MockProvider) GetCallCount(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.CallCounts[method]
}

// ResetCallCounts resets all call counters
func (m *MockProvider) ResetCallCounts() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCounts = make(map[string]int)
}
