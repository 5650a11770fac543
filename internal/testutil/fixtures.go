package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// Registry fixture values
const (
	ClientID       = "acme"
	ClientName     = "Acme Corp"
	RedirectURI    = "https://cb"
	OtherClientID  = "other"
	OtherRedirect  = "https://other.example.com/cb"
	ScopeRead      = "read"
	ScopeWrite     = "write"
	ScopeReadDesc  = "Read your data"
	ScopeWriteDesc = "Modify your data"
)

// Epoch is a fixed starting point for fake clocks
var Epoch = time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)

// RegistryYAML is a config fragment with two clients and two scopes
const RegistryYAML = `clients:
  acme:
    name: Acme Corp
  other:
    name: Other Client
scopes:
  read:
    description: Read your data
  write:
    description: Modify your data
`

// WriteFile writes content to name inside a fresh temporary directory and
// returns the full path
func WriteFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("os.WriteFile() error = %v", err)
	}
	return path
}
