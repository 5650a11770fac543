package server

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/giantswarm/authcode-server/instrumentation"
	"github.com/giantswarm/authcode-server/security"
	"github.com/giantswarm/authcode-server/storage"
)

// Registry answers client and scope lookups
type Registry interface {
	IsKnownClient(clientID string) bool
	ClientName(clientID string) string
	ScopeDescription(scope string) string
}

// Fountain produces grant codes and access tokens
type Fountain interface {
	NextGrantCode() string
	NextAccessToken() string
}

// Server implements the authorization code grant. It composes the registry,
// the consent ledger, the grant and token stores and the token fountain.
type Server struct {
	registry Registry
	ledger   storage.ConsentLedger
	grants   storage.GrantStore
	tokens   storage.AccessTokenStore
	resetter storage.Resetter
	fountain Fountain

	// resetMu is held shared by protocol operations and exclusively by Reset
	resetMu sync.RWMutex

	Auditor *security.Auditor
	metrics *instrumentation.Metrics
	Logger  *slog.Logger
}

// New creates a server. The in-memory store satisfies ledger, grants,
// tokens and resetter at once.
func New(
	registry Registry,
	ledger storage.ConsentLedger,
	grants storage.GrantStore,
	tokens storage.AccessTokenStore,
	resetter storage.Resetter,
	logger *slog.Logger,
) (*Server, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("consent ledger is required")
	}
	if grants == nil {
		return nil, fmt.Errorf("grant store is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("access token store is required")
	}
	if resetter == nil {
		return nil, fmt.Errorf("resetter is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		registry: registry,
		ledger:   ledger,
		grants:   grants,
		tokens:   tokens,
		resetter: resetter,
		fountain: security.NewTokenFountain(),
		Logger:   logger,
	}, nil
}

// SetAuditor sets the security auditor
func (s *Server) SetAuditor(aud *security.Auditor) {
	s.Auditor = aud
}

// SetInstrumentation enables protocol metrics
func (s *Server) SetInstrumentation(inst *instrumentation.Instrumentation) {
	if inst != nil {
		s.metrics = inst.Metrics()
	}
}

// SetFountain replaces the source of codes and tokens
func (s *Server) SetFountain(f Fountain) {
	if f != nil {
		s.fountain = f
	}
}
