package oauth

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/giantswarm/authcode-server/security"
	"github.com/giantswarm/authcode-server/view"
)

// Routes returns a router with every endpoint registered:
//
//	GET       /health
//	GET       /metrics                 (when metrics are enabled)
//	GET       <base><api>/authorize    (login required)
//	any       <base><api>/approveauth  (login required)
//	GET       <base><api>/reset        (login required)
//	GET, POST <base><api>/token
//	GET, POST <base><api>/login
//	any       <base><api>/logout
//	GET       <base>                   redirects to <base>/index.html
//	GET       <base>/*                 static web root
func (h *Handler) Routes() http.Handler {
	cfg := h.server.Config
	api := cfg.APIPrefix()

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(security.RequestIDMiddleware)

	r.Get("/health", h.ServeHealth)
	if cfg.Metrics.Enabled {
		r.Handle("/metrics", h.server.Instrumentation.PrometheusHandler())
	}

	// The limiter runs before the login check so anonymous traffic is limited too
	r.With(h.rateLimit(h.server.RateLimiter, endpointAuthorize), h.RequireLogin).
		Get(api+"/"+endpointAuthorize, h.ServeAuthorize)
	r.With(h.rateLimit(h.server.RateLimiter, endpointApproveAuth), h.RequireLogin).
		HandleFunc(api+"/"+endpointApproveAuth, h.ServeApproveAuth)
	r.With(h.rateLimit(h.server.RateLimiter, endpointReset), h.RequireLogin).
		Get(api+"/"+endpointReset, h.ServeReset)

	token := h.rateLimit(h.server.RateLimiter, endpointToken)(http.HandlerFunc(h.ServeToken))
	if len(cfg.CORS.AllowedOrigins) > 0 {
		token = cors.New(cors.Options{
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         3600,
		}).Handler(token)
		r.Options(api+"/"+endpointToken, token.ServeHTTP)
	}
	r.Get(api+"/"+endpointToken, token.ServeHTTP)
	r.Post(api+"/"+endpointToken, token.ServeHTTP)

	r.Get(api+"/"+endpointLogin, h.ServeLoginPage)
	r.With(h.rateLimit(h.server.LoginRateLimiter, endpointLogin)).
		Post(api+"/"+endpointLogin, h.ServeLogin)
	r.HandleFunc(api+"/"+endpointLogout, h.ServeLogout)

	if cfg.BasePath != "" {
		r.Get(cfg.BasePath, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, cfg.BasePath+"/index.html", http.StatusFound)
		})
	}
	r.Get(cfg.BasePath+"/*", h.staticHandler().ServeHTTP)

	return r
}

// staticHandler serves the configured web root, or the embedded index page
func (h *Handler) staticHandler() http.Handler {
	var files http.Handler
	if root := h.server.Config.WebRoot; root != "" {
		files = http.FileServer(http.Dir(root))
	} else {
		files = http.FileServerFS(view.Static())
	}
	return http.StripPrefix(h.server.Config.BasePath, files)
}
