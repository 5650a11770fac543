package oauth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/authcode-server/internal/testutil"
)

func TestLoadConfig_YAML(t *testing.T) {
	path := testutil.WriteFile(t, "config.yaml", `port: 9000
base_path: /auth/
api_path: v1
server_url: https://auth.example.com
grant_ttl: 120
token_ttl: 600
rate_limit:
  rate: 5
cors:
  allowed_origins:
    - https://app.example.com
log:
  level: debug
  format: json
users:
  alice:
    password_hash: "$2a$10$abcdefghijklmnopqrstuv"
`+testutil.RegistryYAML)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path())
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "/auth", cfg.BasePath)
	assert.Equal(t, "/v1", cfg.APIPath)
	assert.Equal(t, "/auth/v1", cfg.APIPrefix())
	assert.Equal(t, "/auth/v1/login", cfg.LoginURL)
	assert.Equal(t, int64(120), cfg.GrantTTL)
	assert.Equal(t, int64(600), cfg.TokenTTL)
	assert.Equal(t, int64(DefaultSessionTTL), cfg.SessionTTL)
	assert.Equal(t, 5, cfg.RateLimit.Rate)
	assert.Equal(t, 10, cfg.RateLimit.Burst)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Contains(t, cfg.Users, "alice")

	doc := cfg.RegistryDocument()
	assert.Equal(t, testutil.ClientName, doc.Clients[testutil.ClientID].Name)
	assert.Equal(t, testutil.ScopeReadDesc, doc.Scopes[testutil.ScopeRead].Description)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Empty(t, cfg.Path())
	assert.Equal(t, DefaultBasePath, cfg.BasePath)
	assert.Equal(t, DefaultAPIPath, cfg.APIPath)
	assert.Equal(t, "/oauth2/api/login", cfg.LoginURL)
	assert.Equal(t, int64(DefaultGrantTTL), cfg.GrantTTL)
	assert.Equal(t, int64(DefaultTokenTTL), cfg.TokenTTL)
	assert.Equal(t, 1, cfg.Security.TrustedProxyCount)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
	assert.Equal(t, DefaultLogFormat, cfg.Log.Format)
	assert.False(t, cfg.TLSEnabled())
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	path := testutil.WriteFile(t, "config.yaml", "port: 9000\ntoken_ttl: 600\n"+testutil.RegistryYAML)

	t.Setenv("AUTHCODE_PORT", "9443")
	t.Setenv("AUTHCODE_TOKEN_TTL", "60")
	t.Setenv("AUTHCODE_TLS_CERT_FILE", "/etc/tls/tls.crt")
	t.Setenv("AUTHCODE_TLS_KEY_FILE", "/etc/tls/tls.key")
	t.Setenv("AUTHCODE_METRICS_ENABLED", "true")
	t.Setenv("AUTHCODE_CORS_ALLOWED_ORIGINS", "https://a.example.com,https://b.example.com")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9443, cfg.Port)
	assert.Equal(t, int64(60), cfg.TokenTTL)
	assert.True(t, cfg.TLSEnabled())
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORS.AllowedOrigins)
	// Registry sections only come from the file
	assert.Len(t, cfg.Clients, 2)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"malformed yaml", "port: [", "failed to parse config"},
		{"port out of range", "port: 70000", "out of range"},
		{"unpaired tls", "tls_cert_file: /tmp/cert.pem", "must be set together"},
		{"bad server url", "server_url: ftp://example.com", "server_url"},
		{"wildcard origin", "cors:\n  allowed_origins: ['*']", "explicitly"},
		{"bad log format", "log:\n  format: xml", "unknown log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := testutil.WriteFile(t, "config.yaml", tt.content)
			_, err := LoadConfig(path)
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr), "error %q does not contain %q", err, tt.wantErr)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}
