// Package registry holds the clients and scopes the authorization server
// knows about. The data is read-only once loaded; a reload replaces it
// wholesale.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/giantswarm/authcode-server/internal/watch"
)

// ClientConfig is the configuration entry for one client
type ClientConfig struct {
	Name string `yaml:"name" json:"name"`
}

// ScopeConfig is the configuration entry for one scope
type ScopeConfig struct {
	Description string `yaml:"description" json:"description"`
}

// Document is the part of the configuration file the registry reads.
// Other keys in the file are ignored.
type Document struct {
	Clients map[string]ClientConfig `yaml:"clients" json:"clients"`
	Scopes  map[string]ScopeConfig  `yaml:"scopes" json:"scopes"`
}

// Client is a registered client
type Client struct {
	ID   string
	Name string
}

// Scope is a named permission a client can request
type Scope struct {
	ID          string
	Description string
}

// Snapshot is an immutable view of the registry
type Snapshot struct {
	clients map[string]Client
	scopes  map[string]Scope
}

// NewSnapshot validates doc and builds a snapshot from it
func NewSnapshot(doc Document) (*Snapshot, error) {
	s := &Snapshot{
		clients: make(map[string]Client, len(doc.Clients)),
		scopes:  make(map[string]Scope, len(doc.Scopes)),
	}
	for id, c := range doc.Clients {
		if id == "" {
			return nil, fmt.Errorf("client with empty id")
		}
		name := c.Name
		if name == "" {
			name = id
		}
		s.clients[id] = Client{ID: id, Name: name}
	}
	for id, sc := range doc.Scopes {
		if id == "" {
			return nil, fmt.Errorf("scope with empty id")
		}
		s.scopes[id] = Scope{ID: id, Description: sc.Description}
	}
	return s, nil
}

// Client returns the client registered under id
func (s *Snapshot) Client(id string) (Client, bool) {
	c, ok := s.clients[id]
	return c, ok
}

// Scope returns the scope registered under id
func (s *Snapshot) Scope(id string) (Scope, bool) {
	sc, ok := s.scopes[id]
	return sc, ok
}

// ClientIDs returns the registered client IDs in sorted order
func (s *Snapshot) ClientIDs() []string {
	ids := make([]string, 0, len(s.clients))
	for id := range s.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Registry serves lookups from the current snapshot
type Registry struct {
	current atomic.Pointer[Snapshot]
	path    string
	logger  *slog.Logger
}

// New creates a registry from an in-memory document
func New(doc Document, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	snap, err := NewSnapshot(doc)
	if err != nil {
		return nil, err
	}
	r := &Registry{logger: logger}
	r.current.Store(snap)
	return r, nil
}

// Load creates a registry from the clients and scopes in the YAML (or JSON)
// file at path. The registry remembers path for Reload and Watch.
func Load(path string, logger *slog.Logger) (*Registry, error) {
	doc, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	r, err := New(doc, logger)
	if err != nil {
		return nil, fmt.Errorf("invalid registry in %s: %w", path, err)
	}
	r.path = path
	return r, nil
}

// ReadFile parses the registry document in the file at path
func ReadFile(path string) (Document, error) {
	var doc Document
	data, err := os.ReadFile(path)
	if err != nil {
		return doc, fmt.Errorf("failed to read registry: %w", err)
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("failed to parse registry %s: %w", path, err)
	}
	return doc, nil
}

// Snapshot returns the current snapshot
func (r *Registry) Snapshot() *Snapshot {
	return r.current.Load()
}

// IsKnownClient reports whether id is a registered client
func (r *Registry) IsKnownClient(id string) bool {
	_, ok := r.current.Load().Client(id)
	return ok
}

// ClientName returns the display name of a client, or "" if it is unknown
func (r *Registry) ClientName(id string) string {
	c, _ := r.current.Load().Client(id)
	return c.Name
}

// ScopeDescription returns the description of a scope. Unknown scopes and
// scopes without a description are described by their ID.
func (r *Registry) ScopeDescription(scope string) string {
	if sc, ok := r.current.Load().Scope(scope); ok && sc.Description != "" {
		return sc.Description
	}
	return scope
}

// Reload rereads the file the registry was loaded from. On error the
// current snapshot is kept.
func (r *Registry) Reload() error {
	if r.path == "" {
		return fmt.Errorf("registry was not loaded from a file")
	}
	doc, err := ReadFile(r.path)
	if err != nil {
		return err
	}
	snap, err := NewSnapshot(doc)
	if err != nil {
		return fmt.Errorf("invalid registry in %s: %w", r.path, err)
	}
	r.current.Store(snap)
	r.logger.Info("Reloaded client registry",
		"path", r.path,
		"clients", len(snap.clients),
		"scopes", len(snap.scopes))
	return nil
}

// Watch reloads the registry whenever its file changes, until ctx is done
func (r *Registry) Watch(ctx context.Context) error {
	if r.path == "" {
		return fmt.Errorf("registry was not loaded from a file")
	}
	abs, err := filepath.Abs(r.path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", r.path, err)
	}

	// Watch the directory so editors that replace the file are seen
	return watch.Dir(ctx, filepath.Dir(abs), watch.Options{
		Match:  func(name string) bool { return filepath.Clean(name) == abs },
		Logger: r.logger,
	}, func() {
		if err := r.Reload(); err != nil {
			r.logger.Error("Failed to reload client registry, keeping previous", "path", r.path, "error", err)
		}
	})
}
