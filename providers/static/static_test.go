package static

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/giantswarm/authcode-server/providers"
)

func TestProvider_Authenticate(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	p, err := New(map[string]User{
		"alice": {Password: "wonderland", DisplayName: "Alice"},
		"bob":   {PasswordHash: string(hash)},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Len())
	assert.Equal(t, ProviderName, p.Name())

	tests := []struct {
		name        string
		username    string
		password    string
		wantErr     bool
		wantDisplay string
	}{
		{name: "plain password", username: "alice", password: "wonderland", wantDisplay: "Alice"},
		{name: "hashed password", username: "bob", password: "s3cret", wantDisplay: "bob"},
		{name: "surrounding whitespace in username", username: " alice ", password: "wonderland", wantDisplay: "Alice"},
		{name: "wrong password", username: "alice", password: "nope", wantErr: true},
		{name: "unknown user", username: "mallory", password: "wonderland", wantErr: true},
		{name: "empty password", username: "bob", password: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			principal, err := p.Authenticate(context.Background(), tt.username, tt.password)
			if tt.wantErr {
				assert.True(t, errors.Is(err, providers.ErrInvalidCredentials), "error = %v", err)
				assert.Nil(t, principal)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDisplay, principal.DisplayName)
		})
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name  string
		users map[string]User
	}{
		{name: "empty name", users: map[string]User{"": {Password: "x"}}},
		{name: "no password", users: map[string]User{"alice": {}}},
		{name: "bad hash", users: map[string]User{"alice": {PasswordHash: "not-bcrypt"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.users, nil)
			assert.Error(t, err)
		})
	}
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword(hash, []byte("correct horse")))
}
