package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/giantswarm/authcode-server/instrumentation"
	"github.com/giantswarm/authcode-server/internal/clock"
	"github.com/giantswarm/authcode-server/internal/util"
	"github.com/giantswarm/authcode-server/storage"
)

const (
	// DefaultTTL is the lifetime of grants and access tokens when none is configured
	DefaultTTL = time.Hour

	// tokenIDLogLength is the number of characters of a code or token included in logs
	tokenIDLogLength = 8

	storageType = "memory"
)

type grantEntry struct {
	grant *storage.GrantRequest
	timer clock.Timer
}

type tokenEntry struct {
	record *storage.AccessToken
	timer  clock.Timer
}

// Store is an in-memory implementation of GrantStore, AccessTokenStore,
// ConsentLedger and Resetter. A single mutex guards all three maps, so a
// Reset is never observed half done.
type Store struct {
	mu sync.Mutex

	grants         map[string]*grantEntry
	tokens         map[string]*tokenEntry
	authorisations map[storage.Authorisation]struct{}

	clock    clock.Clock
	grantTTL time.Duration
	tokenTTL time.Duration

	// Instrumentation
	instrumentation *instrumentation.Instrumentation
	tracer          trace.Tracer

	// Atomic counters for the size gauges (read without the lock)
	grantsCountAtomic         atomic.Int64
	tokensCountAtomic         atomic.Int64
	authorisationsCountAtomic atomic.Int64

	logger *slog.Logger
}

// Compile-time interface checks
var (
	_ storage.GrantStore       = (*Store)(nil)
	_ storage.AccessTokenStore = (*Store)(nil)
	_ storage.ConsentLedger    = (*Store)(nil)
	_ storage.Resetter         = (*Store)(nil)
)

// New creates a store using the system clock. A TTL of zero or less
// selects DefaultTTL.
func New(grantTTL, tokenTTL time.Duration) *Store {
	return NewWithClock(clock.Real(), grantTTL, tokenTTL)
}

// NewWithClock creates a store that schedules evictions on clk
func NewWithClock(clk clock.Clock, grantTTL, tokenTTL time.Duration) *Store {
	if grantTTL <= 0 {
		grantTTL = DefaultTTL
	}
	if tokenTTL <= 0 {
		tokenTTL = DefaultTTL
	}
	return &Store{
		grants:         make(map[string]*grantEntry),
		tokens:         make(map[string]*tokenEntry),
		authorisations: make(map[storage.Authorisation]struct{}),
		clock:          clk,
		grantTTL:       grantTTL,
		tokenTTL:       tokenTTL,
		logger:         slog.Default(),
	}
}

// SetLogger sets a custom logger
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
}

// SetInstrumentation sets OpenTelemetry instrumentation for the store
func (s *Store) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.mu.Lock()
	s.instrumentation = inst
	if inst != nil {
		s.tracer = inst.Tracer("storage")
	}
	s.updateCountsLocked()
	s.mu.Unlock()

	if inst != nil {
		err := inst.RegisterStorageSizeCallbacks(
			func() int64 { return s.grantsCountAtomic.Load() },
			func() int64 { return s.tokensCountAtomic.Load() },
			func() int64 { return s.authorisationsCountAtomic.Load() },
		)
		if err != nil {
			s.logger.Warn("Failed to register storage size callbacks", "error", err)
		}
	}
}

// GrantTTL returns the lifetime given to stored grants
func (s *Store) GrantTTL() time.Duration {
	return s.grantTTL
}

// TokenTTL returns the lifetime given to stored access tokens
func (s *Store) TokenTTL() time.Duration {
	return s.tokenTTL
}

// Stop cancels all pending eviction timers. Stored entries stay in place
// and still expire on lookup.
func (s *Store) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.grants {
		e.timer.Stop()
	}
	for _, e := range s.tokens {
		e.timer.Stop()
	}
}

// ============================================================
// GrantStore Implementation
// ============================================================

// PutGrant stores a copy of grant under code. CreatedAt and ExpiresAt are
// stamped from the store clock and TTL.
func (s *Store) PutGrant(ctx context.Context, code string, grant *storage.GrantRequest) error {
	ctx, span := s.startStorageSpan(ctx, "put_grant")
	defer span.End()

	startTime := time.Now()
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "put_grant", err, startTime)
	}()

	if code == "" {
		err = fmt.Errorf("grant code cannot be empty")
		return err
	}
	if grant == nil {
		err = fmt.Errorf("grant cannot be nil")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.grants[code]; exists {
		err = fmt.Errorf("grant code already in use")
		return err
	}

	stored := *grant
	stored.Scopes = append([]string(nil), grant.Scopes...)
	stored.CreatedAt = s.clock.Now()
	stored.ExpiresAt = stored.CreatedAt.Add(s.grantTTL)

	entry := &grantEntry{grant: &stored}
	entry.timer = s.clock.AfterFunc(s.grantTTL, func() {
		s.evictGrant(code, entry)
	})
	s.grants[code] = entry
	s.updateCountsLocked()

	s.logger.Debug("Stored grant",
		"code_prefix", util.SafeTruncate(code, tokenIDLogLength),
		"client_id", grant.ClientID,
		"expires_at", stored.ExpiresAt)
	return nil
}

// TakeGrant removes and returns the grant stored under code. Only one
// caller can ever receive a given grant.
func (s *Store) TakeGrant(ctx context.Context, code string) (*storage.GrantRequest, error) {
	ctx, span := s.startStorageSpan(ctx, "take_grant")
	defer span.End()

	startTime := time.Now()
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "take_grant", err, startTime)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.grants[code]
	if !ok {
		err = storage.ErrGrantNotFound
		return nil, err
	}

	delete(s.grants, code)
	entry.timer.Stop()
	s.updateCountsLocked()

	// The eviction timer may not have fired yet
	if !s.clock.Now().Before(entry.grant.ExpiresAt) {
		s.logger.Debug("Dropped expired grant on take",
			"code_prefix", util.SafeTruncate(code, tokenIDLogLength))
		err = storage.ErrGrantNotFound
		return nil, err
	}

	return entry.grant, nil
}

// RemoveGrant removes the grant stored under code, if any
func (s *Store) RemoveGrant(ctx context.Context, code string) {
	_, span := s.startStorageSpan(ctx, "remove_grant")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.grants[code]; ok {
		entry.timer.Stop()
		delete(s.grants, code)
		s.updateCountsLocked()
	}
}

// evictGrant is the timer callback. It only removes the entry it was
// scheduled for.
func (s *Store) evictGrant(code string, entry *grantEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.grants[code]; ok && current == entry {
		delete(s.grants, code)
		s.updateCountsLocked()
		s.logger.Debug("Evicted expired grant",
			"code_prefix", util.SafeTruncate(code, tokenIDLogLength))
	}
}

// ============================================================
// AccessTokenStore Implementation
// ============================================================

// PutAccessToken stores a copy of record under token
func (s *Store) PutAccessToken(ctx context.Context, token string, record *storage.AccessToken) error {
	ctx, span := s.startStorageSpan(ctx, "put_access_token")
	defer span.End()

	startTime := time.Now()
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "put_access_token", err, startTime)
	}()

	if token == "" {
		err = fmt.Errorf("access token cannot be empty")
		return err
	}
	if record == nil {
		err = fmt.Errorf("access token record cannot be nil")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tokens[token]; exists {
		err = fmt.Errorf("access token already in use")
		return err
	}

	stored := *record
	stored.CreatedAt = s.clock.Now()
	stored.ExpiresAt = stored.CreatedAt.Add(s.tokenTTL)

	entry := &tokenEntry{record: &stored}
	entry.timer = s.clock.AfterFunc(s.tokenTTL, func() {
		s.evictToken(token, entry)
	})
	s.tokens[token] = entry
	s.updateCountsLocked()

	s.logger.Debug("Stored access token",
		"token_prefix", util.SafeTruncate(token, tokenIDLogLength),
		"client_id", record.ClientID,
		"expires_at", stored.ExpiresAt)
	return nil
}

// GetAccessToken returns a copy of the record stored under token
func (s *Store) GetAccessToken(ctx context.Context, token string) (*storage.AccessToken, error) {
	ctx, span := s.startStorageSpan(ctx, "get_access_token")
	defer span.End()

	startTime := time.Now()
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "get_access_token", err, startTime)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.tokens[token]
	if !ok {
		err = storage.ErrTokenNotFound
		return nil, err
	}
	if !s.clock.Now().Before(entry.record.ExpiresAt) {
		entry.timer.Stop()
		delete(s.tokens, token)
		s.updateCountsLocked()
		err = storage.ErrTokenNotFound
		return nil, err
	}

	record := *entry.record
	return &record, nil
}

// RemoveAccessToken removes token, if present
func (s *Store) RemoveAccessToken(ctx context.Context, token string) {
	_, span := s.startStorageSpan(ctx, "remove_access_token")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.tokens[token]; ok {
		entry.timer.Stop()
		delete(s.tokens, token)
		s.updateCountsLocked()
	}
}

func (s *Store) evictToken(token string, entry *tokenEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.tokens[token]; ok && current == entry {
		delete(s.tokens, token)
		s.updateCountsLocked()
		s.logger.Debug("Evicted expired access token",
			"token_prefix", util.SafeTruncate(token, tokenIDLogLength))
	}
}

// ============================================================
// ConsentLedger Implementation
// ============================================================

// UnauthorisedScopes returns the scopes in requested that clientID has not
// been granted, keeping their order
func (s *Store) UnauthorisedScopes(ctx context.Context, clientID string, requested []string) []string {
	_, span := s.startStorageSpan(ctx, "unauthorised_scopes")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	var missing []string
	for _, scope := range requested {
		if _, ok := s.authorisations[storage.Authorisation{ClientID: clientID, Scope: scope}]; !ok {
			missing = append(missing, scope)
		}
	}
	return missing
}

// GrantScopes records consent for each scope
func (s *Store) GrantScopes(ctx context.Context, clientID string, scopes []string) {
	_, span := s.startStorageSpan(ctx, "grant_scopes")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, scope := range scopes {
		s.authorisations[storage.Authorisation{ClientID: clientID, Scope: scope}] = struct{}{}
	}
	s.updateCountsLocked()
}

// Reset forgets every consent and every outstanding grant. Access tokens
// already issued are kept.
func (s *Store) Reset(ctx context.Context) {
	_, span := s.startStorageSpan(ctx, "reset")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.grants {
		e.timer.Stop()
	}
	grants, authorisations := len(s.grants), len(s.authorisations)
	s.grants = make(map[string]*grantEntry)
	s.authorisations = make(map[storage.Authorisation]struct{})
	s.updateCountsLocked()

	s.logger.Info("Cleared consent ledger and grant store",
		"grants", grants,
		"authorisations", authorisations)
}

// Counts returns the number of stored grants, access tokens and
// authorisations
func (s *Store) Counts() (grants, tokens, authorisations int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.grants), len(s.tokens), len(s.authorisations)
}

// updateCountsLocked must be called with mu held
func (s *Store) updateCountsLocked() {
	s.grantsCountAtomic.Store(int64(len(s.grants)))
	s.tokensCountAtomic.Store(int64(len(s.tokens)))
	s.authorisationsCountAtomic.Store(int64(len(s.authorisations)))
}

// ============================================================
// Instrumentation Helpers
// ============================================================

// startStorageSpan starts a new span for a storage operation
func (s *Store) startStorageSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	if s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}

	ctx, span := s.tracer.Start(ctx, "storage."+operation,
		trace.WithAttributes(attribute.String("operation", operation)))
	instrumentation.AddStorageAttributes(span, operation, storageType)
	return ctx, span
}

// recordStorageOperation records metrics for a storage operation and sets span status.
// A missing grant or token is an expected outcome and is recorded as not_found.
func (s *Store) recordStorageOperation(ctx context.Context, span trace.Span, operation string, err error, startTime time.Time) {
	if s.instrumentation == nil {
		return
	}

	durationMs := float64(time.Since(startTime).Milliseconds())
	result := "success"
	switch {
	case errors.Is(err, storage.ErrGrantNotFound), errors.Is(err, storage.ErrTokenNotFound):
		result = "not_found"
		instrumentation.SetSpanSuccess(span)
	case err != nil:
		result = "error"
		instrumentation.RecordError(span, err)
	default:
		instrumentation.SetSpanSuccess(span)
	}

	s.instrumentation.Metrics().RecordStorageOperation(ctx, operation, result, durationMs)
}
