package oauth

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/giantswarm/authcode-server/internal/util"
	"github.com/giantswarm/authcode-server/providers/static"
	"github.com/giantswarm/authcode-server/registry"
)

// EnvPrefix prefixes every environment variable read by LoadConfig,
// e.g. AUTHCODE_PORT or AUTHCODE_RATE_LIMIT_RATE.
const EnvPrefix = "authcode"

// Defaults applied by LoadConfig and NewServer
const (
	DefaultPort       = 8080
	DefaultBasePath   = "/oauth2"
	DefaultAPIPath    = "/api"
	DefaultGrantTTL   = 3600 // seconds
	DefaultTokenTTL   = 3600 // seconds
	DefaultSessionTTL = 1800 // seconds
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "text"
)

// Config holds the server configuration. It is read from a YAML (or JSON)
// file and may be overridden by AUTHCODE_* environment variables.
type Config struct {
	// Port is the TCP port to listen on
	Port int `yaml:"port" envconfig:"PORT"`

	// BasePath prefixes every route. Default: /oauth2
	BasePath string `yaml:"base_path" split_words:"true"`

	// APIPath is appended to BasePath for the protocol endpoints. Default: /api
	APIPath string `yaml:"api_path" split_words:"true"`

	// LoginURL is where unauthenticated browsers are sent.
	// Default: <base><api>/login
	LoginURL string `yaml:"login_url" split_words:"true"`

	// ServerURL is the externally visible URL. An https URL enables HSTS and
	// Secure session cookies.
	ServerURL string `yaml:"server_url" split_words:"true"`

	// TemplateDir overrides the embedded page templates (optional).
	// Its files are reloaded when they change.
	TemplateDir string `yaml:"template_dir" split_words:"true"`

	// WebRoot is served under BasePath. Empty serves the embedded index page.
	WebRoot string `yaml:"web_root" split_words:"true"`

	// GrantTTL is how long authorization codes are valid, in seconds
	GrantTTL int64 `yaml:"grant_ttl" split_words:"true"`

	// TokenTTL is how long access tokens are valid, in seconds
	TokenTTL int64 `yaml:"token_ttl" split_words:"true"`

	// SessionTTL is how long a browser session lasts, in seconds
	SessionTTL int64 `yaml:"session_ttl" split_words:"true"`

	// TLSCertFile and TLSKeyFile enable HTTPS when both are set
	TLSCertFile string `yaml:"tls_cert_file" envconfig:"TLS_CERT_FILE"`
	TLSKeyFile  string `yaml:"tls_key_file" envconfig:"TLS_KEY_FILE"`

	// Clients are the registered OAuth clients, keyed by client ID
	Clients map[string]registry.ClientConfig `yaml:"clients" ignored:"true"`

	// Scopes are the known scopes, keyed by scope ID
	Scopes map[string]registry.ScopeConfig `yaml:"scopes" ignored:"true"`

	// Users are the resource owners allowed to log in
	Users map[string]static.User `yaml:"users" ignored:"true"`

	// WatchConfig reloads clients and scopes when the config file changes
	WatchConfig bool `yaml:"watch_config" split_words:"true"`

	RateLimit RateLimitConfig `yaml:"rate_limit" split_words:"true"`
	CORS      CORSConfig      `yaml:"cors"`
	Security  SecurityConfig  `yaml:"security"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`

	// Logger for structured logging (optional, uses default if not provided)
	Logger *slog.Logger `yaml:"-" ignored:"true"`

	// path is the file the configuration was loaded from
	path string
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	// Rate is requests per second allowed per IP on the protocol endpoints.
	// Zero disables limiting.
	Rate int `yaml:"rate"`

	// Burst is the maximum burst size allowed per IP
	Burst int `yaml:"burst"`

	// LoginRate is login attempts per second allowed per IP. Zero disables.
	LoginRate int `yaml:"login_rate" split_words:"true"`

	// LoginBurst is the maximum burst of login attempts per IP
	LoginBurst int `yaml:"login_burst" split_words:"true"`
}

// CORSConfig controls cross-origin access to the token endpoint
type CORSConfig struct {
	// AllowedOrigins lists origins allowed to call /token from a browser.
	// Empty disables CORS.
	AllowedOrigins []string `yaml:"allowed_origins" split_words:"true"`
}

// SecurityConfig holds security settings
type SecurityConfig struct {
	// TrustProxy enables trusting X-Forwarded-For and X-Real-IP headers.
	// Only enable behind a trusted reverse proxy.
	TrustProxy bool `yaml:"trust_proxy" split_words:"true"`

	// TrustedProxyCount is the number of proxies in front of this server.
	// Default: 1
	TrustedProxyCount int `yaml:"trusted_proxy_count" split_words:"true"`

	// EnableAuditLogging logs security events with user identifiers hashed
	EnableAuditLogging bool `yaml:"enable_audit_logging" split_words:"true"`
}

// MetricsConfig controls OpenTelemetry instrumentation
type MetricsConfig struct {
	// Enabled turns on metrics and tracing and serves /metrics
	Enabled bool `yaml:"enabled"`

	// LogClientIPs includes client IP addresses in traces
	LogClientIPs bool `yaml:"log_client_ips" split_words:"true"`
}

// LogConfig selects the log handler built by the command line
type LogConfig struct {
	// Level is debug, info, warn or error. Default: info
	Level string `yaml:"level"`

	// Format is text or json. Default: text
	Format string `yaml:"format"`
}

// LoadConfig reads the configuration file at path, applies environment
// overrides and fills in defaults. An empty path uses the environment and
// defaults only. A .env file in the working directory is loaded first when
// present.
func LoadConfig(path string) (*Config, error) {
	if err := loadEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		cfg.path = path
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEnvironment() error {
	err := godotenv.Load()
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Path returns the file the configuration was loaded from, or ""
func (c *Config) Path() string {
	return c.path
}

// RegistryDocument returns the clients and scopes section
func (c *Config) RegistryDocument() registry.Document {
	return registry.Document{Clients: c.Clients, Scopes: c.Scopes}
}

// APIPrefix returns the path prefix of the protocol endpoints
func (c *Config) APIPrefix() string {
	return c.BasePath + c.APIPath
}

// TLSEnabled reports whether both TLS files are configured
func (c *Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.BasePath == "" {
		c.BasePath = DefaultBasePath
	}
	c.BasePath = util.CleanPath(c.BasePath)
	if c.APIPath == "" {
		c.APIPath = DefaultAPIPath
	}
	c.APIPath = util.CleanPath(c.APIPath)
	if c.LoginURL == "" {
		c.LoginURL = c.APIPrefix() + "/login"
	}
	if c.GrantTTL <= 0 {
		c.GrantTTL = DefaultGrantTTL
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = DefaultTokenTTL
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = DefaultSessionTTL
	}
	if c.Security.TrustedProxyCount <= 0 {
		c.Security.TrustedProxyCount = 1
	}
	if c.RateLimit.Rate > 0 && c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = c.RateLimit.Rate * 2
	}
	if c.RateLimit.LoginRate > 0 && c.RateLimit.LoginBurst <= 0 {
		c.RateLimit.LoginBurst = c.RateLimit.LoginRate
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

// Validate checks the configuration for mistakes that would only surface
// at request time
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return errors.New("tls_cert_file and tls_key_file must be set together")
	}
	if c.ServerURL != "" && !strings.HasPrefix(c.ServerURL, "http://") && !strings.HasPrefix(c.ServerURL, "https://") {
		return fmt.Errorf("server_url must be an http or https URL: %q", c.ServerURL)
	}
	for _, origin := range c.CORS.AllowedOrigins {
		if origin == "*" {
			return errors.New("cors.allowed_origins must list origins explicitly")
		}
	}
	if _, err := registry.NewSnapshot(c.RegistryDocument()); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}
