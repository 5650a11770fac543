// Package view renders the HTML pages shown to the resource owner: the
// consent prompt and the login form.
//
// Templates are embedded in the binary. A template directory may override
// any of them by file name and is reloaded when its files change.
package view

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/giantswarm/authcode-server/internal/watch"
)

// Template names
const (
	ConsentTemplate = "consent.html"
	LoginTemplate   = "login.html"
)

//go:embed templates/*.html
var embeddedTemplates embed.FS

//go:embed static
var embeddedStatic embed.FS

// Client identifies the client on the consent page
type Client struct {
	ID   string
	Name string
}

// ConsentPage is the data for the consent template. Query holds the
// original authorization parameters, replayed as hidden form fields.
type ConsentPage struct {
	Client            Client
	ScopeDescriptions []string
	Query             url.Values
	// Action is the URL the form submits to
	Action   string
	Username string
}

// LoginPage is the data for the login template
type LoginPage struct {
	Action   string
	Username string
	Error    string
}

// Renderer executes the page templates. It is safe for concurrent use.
type Renderer struct {
	dir       string
	logger    *slog.Logger
	templates atomic.Pointer[template.Template]
}

// New returns a Renderer using the embedded templates, overridden by any
// *.html files in dir. An empty dir uses the embedded templates only.
func New(dir string, logger *slog.Logger) (*Renderer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Renderer{dir: dir, logger: logger}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload parses the templates again. On error the previous set stays in use.
func (r *Renderer) Reload() error {
	t, err := parse(r.dir)
	if err != nil {
		return err
	}
	r.templates.Store(t)
	r.logger.Info("Loaded templates", "dir", r.dir)
	return nil
}

// Watch reloads the templates whenever a file in the template directory
// changes, until ctx is done. It does nothing when no directory is set.
func (r *Renderer) Watch(ctx context.Context) error {
	if r.dir == "" {
		return nil
	}
	return watch.Dir(ctx, r.dir, watch.Options{
		Match:  func(name string) bool { return strings.HasSuffix(name, ".html") },
		Logger: r.logger,
	}, func() {
		if err := r.Reload(); err != nil {
			r.logger.Error("Failed to reload templates, keeping previous set", "dir", r.dir, "error", err)
		}
	})
}

// RenderConsent writes the consent page to w. Nothing is written on error.
func (r *Renderer) RenderConsent(w io.Writer, page *ConsentPage) error {
	return r.render(w, ConsentTemplate, page)
}

// RenderLogin writes the login page to w. Nothing is written on error.
func (r *Renderer) RenderLogin(w io.Writer, page *LoginPage) error {
	return r.render(w, LoginTemplate, page)
}

func (r *Renderer) render(w io.Writer, name string, data any) error {
	var buf bytes.Buffer
	if err := r.templates.Load().ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("failed to execute template %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// Static returns the embedded static web root
func Static() fs.FS {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

func parse(dir string) (*template.Template, error) {
	t, err := template.New("").ParseFS(embeddedTemplates, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded templates: %w", err)
	}
	if dir == "" {
		return t, nil
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.html"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return t, nil
	}
	if _, err := t.ParseFiles(files...); err != nil {
		return nil, fmt.Errorf("failed to parse templates from %s: %w", dir, err)
	}
	return t, nil
}
