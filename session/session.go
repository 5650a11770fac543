// Package session keeps browser sessions for the resource owner in memory.
//
// A session is identified by a random ID carried in an HttpOnly cookie and
// records who is signed in. Sessions exist only after a successful login and
// expire a fixed time after they are created. Where to send the browser
// after login is kept in a separate cookie, so anonymous requests hold no
// server state.
package session

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/giantswarm/authcode-server/internal/clock"
	"github.com/giantswarm/authcode-server/internal/util"
)

const (
	// DefaultCookieName is the session cookie name
	DefaultCookieName = "authcode_session"

	// returnCookieSuffix is appended to the cookie name for the return URL cookie
	returnCookieSuffix = "_return"

	// DefaultTTL is the session lifetime
	DefaultTTL = 30 * time.Minute

	idLogLength = 8
)

// Session is a snapshot of a browser session
type Session struct {
	ID          string
	Username    string
	DisplayName string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Authenticated reports whether a user is signed in to the session
func (s *Session) Authenticated() bool {
	return s != nil && s.Username != ""
}

// Config configures a Store
type Config struct {
	CookieName string
	// Path scopes the cookie. Defaults to "/".
	Path string
	TTL  time.Duration
	// Secure marks the cookie Secure; set it when serving over HTTPS
	Secure bool
}

type entry struct {
	session Session
	timer   clock.Timer
}

// Store holds sessions in memory. It is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*entry
	config   Config
	clock    clock.Clock
	logger   *slog.Logger
}

// New returns a Store using the system clock
func New(config Config, logger *slog.Logger) *Store {
	return NewWithClock(config, clock.Real(), logger)
}

// NewWithClock returns a Store using clk for expiry
func NewWithClock(config Config, clk clock.Clock, logger *slog.Logger) *Store {
	if config.CookieName == "" {
		config.CookieName = DefaultCookieName
	}
	if config.Path == "" {
		config.Path = "/"
	}
	if config.TTL <= 0 {
		config.TTL = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		sessions: make(map[string]*entry),
		config:   config,
		clock:    clk,
		logger:   logger,
	}
}

// Load returns the session named by the request cookie, or nil if there is
// none or it has expired.
func (s *Store) Load(r *http.Request) *Session {
	c, err := r.Cookie(s.config.CookieName)
	if err != nil || c.Value == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[c.Value]
	if !ok {
		return nil
	}
	if !s.clock.Now().Before(e.session.ExpiresAt) {
		s.removeLocked(c.Value, e)
		return nil
	}
	sess := e.session
	return &sess
}

// SetReturnURL records where to send the browser after login. The URL is
// kept in a cookie that lives as long as a session would.
func (s *Store) SetReturnURL(w http.ResponseWriter, returnURL string) {
	value := base64.RawURLEncoding.EncodeToString([]byte(returnURL))
	http.SetCookie(w, s.returnCookie(value, int(s.config.TTL/time.Second)))
}

// Login starts a new authenticated session for username and returns the
// URL recorded by SetReturnURL, if any. A previous session is discarded so
// that its ID cannot be reused.
func (s *Store) Login(w http.ResponseWriter, r *http.Request, username, displayName string) string {
	if prev := s.Load(r); prev != nil {
		s.remove(prev.ID)
	}

	var returnURL string
	if c, err := r.Cookie(s.config.CookieName + returnCookieSuffix); err == nil {
		if b, err := base64.RawURLEncoding.DecodeString(c.Value); err == nil {
			returnURL = string(b)
		}
		http.SetCookie(w, s.returnCookie("", -1))
	}

	sess := s.create(w, Session{Username: username, DisplayName: displayName})
	s.logger.Debug("Started session", "session_prefix", util.SafeTruncate(sess.ID, idLogLength))
	return returnURL
}

// Destroy removes the request's session and clears the cookie
func (s *Store) Destroy(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(s.config.CookieName); err == nil {
		s.remove(c.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.CookieName,
		Value:    "",
		Path:     s.config.Path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, s.returnCookie("", -1))
}

// Len returns the number of live sessions
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Stop cancels all expiry timers
func (s *Store) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.sessions {
		e.timer.Stop()
	}
}

func (s *Store) create(w http.ResponseWriter, sess Session) *Session {
	now := s.clock.Now()
	sess.ID = uuid.NewString()
	sess.CreatedAt = now
	sess.ExpiresAt = now.Add(s.config.TTL)

	e := &entry{session: sess}
	s.mu.Lock()
	s.sessions[sess.ID] = e
	e.timer = s.clock.AfterFunc(s.config.TTL, func() { s.expire(sess.ID, e) })
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     s.config.CookieName,
		Value:    sess.ID,
		Path:     s.config.Path,
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   s.config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return &sess
}

func (s *Store) returnCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     s.config.CookieName + returnCookieSuffix,
		Value:    value,
		Path:     s.config.Path,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.config.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (s *Store) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[id]; ok {
		s.removeLocked(id, e)
	}
}

func (s *Store) removeLocked(id string, e *entry) {
	if e.timer != nil {
		e.timer.Stop()
	}
	delete(s.sessions, id)
}

// expire runs from the entry's timer and only removes that same entry
func (s *Store) expire(id string, e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.sessions[id]; ok && cur == e {
		delete(s.sessions, id)
	}
}
