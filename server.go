package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/giantswarm/authcode-server/instrumentation"
	"github.com/giantswarm/authcode-server/internal/clock"
	"github.com/giantswarm/authcode-server/providers"
	"github.com/giantswarm/authcode-server/providers/static"
	"github.com/giantswarm/authcode-server/registry"
	"github.com/giantswarm/authcode-server/security"
	"github.com/giantswarm/authcode-server/server"
	"github.com/giantswarm/authcode-server/session"
	"github.com/giantswarm/authcode-server/storage/memory"
	"github.com/giantswarm/authcode-server/view"
)

// Server wires the protocol core to its registry, stores, identity provider,
// views and instrumentation. Its Handler serves the HTTP interface.
type Server struct {
	Core            *server.Server
	Config          *Config
	Registry        *registry.Registry
	Store           *memory.Store
	Sessions        *session.Store
	Renderer        *view.Renderer
	Provider        providers.Provider
	Auditor         *security.Auditor
	Instrumentation *instrumentation.Instrumentation

	// RateLimiter limits the protocol endpoints per client IP (nil when disabled)
	RateLimiter *security.RateLimiter

	// LoginRateLimiter limits login attempts per client IP (nil when disabled)
	LoginRateLimiter *security.RateLimiter

	Logger *slog.Logger
}

// Option customises NewServer
type Option func(*options)

type options struct {
	provider providers.Provider
	clock    clock.Clock
	version  string
	spans    sdktrace.SpanProcessor
}

// WithSpanProcessor sends finished spans to sp when metrics are enabled
func WithSpanProcessor(sp sdktrace.SpanProcessor) Option {
	return func(o *options) { o.spans = sp }
}

// WithProvider replaces the identity provider built from Config.Users
func WithProvider(p providers.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithClock sets the clock driving grant, token and session expiry
func WithClock(clk clock.Clock) Option {
	return func(o *options) { o.clock = clk }
}

// WithVersion sets the service version reported by instrumentation
func WithVersion(version string) Option {
	return func(o *options) { o.version = version }
}

// NewServer builds a server from config
func NewServer(config *Config, opts ...Option) (*Server, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	o := options{clock: clock.Real()}
	for _, opt := range opts {
		opt(&o)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{Config: config, Logger: logger}

	if config.Security.TrustProxy {
		logger.Warn("Trusting proxy headers for client IP addresses",
			"trusted_proxy_count", config.Security.TrustedProxyCount)
	}

	inst, err := instrumentation.New(instrumentation.Config{
		Enabled:        config.Metrics.Enabled,
		LogClientIPs:   config.Metrics.LogClientIPs,
		ServiceVersion: o.version,
		SpanProcessor:  o.spans,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize instrumentation: %w", err)
	}
	s.Instrumentation = inst

	if config.Path() != "" {
		s.Registry, err = registry.Load(config.Path(), logger)
	} else {
		s.Registry, err = registry.New(config.RegistryDocument(), logger)
	}
	if err != nil {
		return nil, err
	}

	s.Store = memory.NewWithClock(o.clock,
		time.Duration(config.GrantTTL)*time.Second,
		time.Duration(config.TokenTTL)*time.Second)
	s.Store.SetLogger(logger)
	s.Store.SetInstrumentation(inst)

	s.Provider = o.provider
	if s.Provider == nil {
		s.Provider, err = static.New(config.Users, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create identity provider: %w", err)
		}
	}

	s.Renderer, err = view.New(config.TemplateDir, logger)
	if err != nil {
		return nil, err
	}

	s.Sessions = session.NewWithClock(session.Config{
		Path:   cookiePath(config.BasePath),
		TTL:    time.Duration(config.SessionTTL) * time.Second,
		Secure: strings.HasPrefix(config.ServerURL, "https://") || config.TLSEnabled(),
	}, o.clock, logger)

	s.Auditor = security.NewAuditor(logger, config.Security.EnableAuditLogging)
	s.Auditor.SetInstrumentation(inst)

	if config.RateLimit.Rate > 0 {
		s.RateLimiter = security.NewRateLimiter(config.RateLimit.Rate, config.RateLimit.Burst, logger)
	}
	if config.RateLimit.LoginRate > 0 {
		s.LoginRateLimiter = security.NewRateLimiter(config.RateLimit.LoginRate, config.RateLimit.LoginBurst, logger)
	}

	s.Core, err = server.New(s.Registry, s.Store, s.Store, s.Store, s.Store, logger)
	if err != nil {
		return nil, err
	}
	s.Core.SetAuditor(s.Auditor)
	s.Core.SetInstrumentation(inst)

	logger.Info("Authorization server configured",
		"base_path", config.BasePath,
		"api_path", config.APIPath,
		"clients", len(s.Registry.Snapshot().ClientIDs()),
		"grant_ttl", config.GrantTTL,
		"token_ttl", config.TokenTTL,
		"metrics", config.Metrics.Enabled)

	return s, nil
}

// Handler returns the HTTP handler serving every route
func (s *Server) Handler() http.Handler {
	return NewHandler(s, s.Logger).Routes()
}

// Watch starts reloading the registry (when Config.WatchConfig is set and
// the config came from a file) and the template directory (when set). Both
// stop when ctx is done.
func (s *Server) Watch(ctx context.Context) error {
	if s.Config.WatchConfig && s.Config.Path() != "" {
		if err := s.Registry.Watch(ctx); err != nil {
			return fmt.Errorf("failed to watch config: %w", err)
		}
	}
	if err := s.Renderer.Watch(ctx); err != nil {
		return fmt.Errorf("failed to watch templates: %w", err)
	}
	return nil
}

// Shutdown stops background work and flushes instrumentation
func (s *Server) Shutdown(ctx context.Context) error {
	s.Store.Stop()
	s.Sessions.Stop()
	if s.RateLimiter != nil {
		s.RateLimiter.Stop()
	}
	if s.LoginRateLimiter != nil {
		s.LoginRateLimiter.Stop()
	}
	return s.Instrumentation.Shutdown(ctx)
}

func cookiePath(basePath string) string {
	if basePath == "" {
		return "/"
	}
	return basePath
}
