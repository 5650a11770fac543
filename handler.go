package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"github.com/giantswarm/authcode-server/instrumentation"
	"github.com/giantswarm/authcode-server/providers"
	"github.com/giantswarm/authcode-server/security"
	"github.com/giantswarm/authcode-server/server"
	"github.com/giantswarm/authcode-server/view"
)

// Endpoint names used in logs, spans and metrics
const (
	endpointAuthorize   = "authorize"
	endpointApproveAuth = "approveauth"
	endpointToken       = "token"
	endpointReset       = "reset"
	endpointLogin       = "login"
	endpointLogout      = "logout"
)

// Login form fields
const (
	formUsername = "username"
	formPassword = "password"
)

const msgInvalidCredentials = "Invalid username or password"

// Handler is a thin HTTP adapter for the Server.
// It handles HTTP requests and delegates to the protocol core.
type Handler struct {
	server  *Server
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *instrumentation.Metrics
}

// NewHandler creates a new HTTP handler
func NewHandler(s *Server, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		server:  s,
		logger:  logger,
		tracer:  s.Instrumentation.Tracer("http"),
		metrics: s.Instrumentation.Metrics(),
	}
}

// ServeAuthorize handles an authorization request. It redirects with a code
// when every requested scope is already approved and renders the consent
// page otherwise.
func (h *Handler) ServeAuthorize(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	ctx, span := h.tracer.Start(r.Context(), "oauth.http.authorize")
	defer span.End()

	params := r.URL.Query()
	instrumentation.AddGrantAttributes(span, params.Get(server.ParamClientID), params.Get(server.ParamScope))

	res, err := h.server.Core.Authorize(ctx, params)
	if err != nil {
		h.writeRequestError(ctx, w, r, endpointAuthorize, err, msgAuthorizeFailed, span, startTime)
		return
	}

	if res.Consent != nil {
		span.SetAttributes(attribute.String(instrumentation.AttrConsent, "prompted"))
		h.renderConsent(ctx, w, r, res.Consent, span, startTime)
		return
	}

	span.SetAttributes(attribute.String(instrumentation.AttrConsent, "not_required"))
	h.redirect(ctx, w, r, endpointAuthorize, res.RedirectURL, span, startTime)
}

// ServeApproveAuth applies the resource owner's answer to the consent page
func (h *Handler) ServeApproveAuth(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	ctx, span := h.tracer.Start(r.Context(), "oauth.http.approveauth")
	defer span.End()

	if err := r.ParseForm(); err != nil {
		h.writeRequestError(ctx, w, r, endpointApproveAuth, err, msgApproveFailed, span, startTime)
		return
	}
	instrumentation.AddGrantAttributes(span, r.Form.Get(server.ParamClientID), r.Form.Get(server.ParamScope))

	redirectURL, err := h.server.Core.ApproveAuth(ctx, r.Form)
	if errors.Is(err, server.ErrConsentDenied) {
		span.SetAttributes(attribute.String(instrumentation.AttrConsent, "denied"))
		h.redirect(ctx, w, r, endpointApproveAuth, redirectURL, span, startTime)
		return
	}
	if err != nil {
		h.writeRequestError(ctx, w, r, endpointApproveAuth, err, msgApproveFailed, span, startTime)
		return
	}

	span.SetAttributes(attribute.String(instrumentation.AttrConsent, "granted"))
	h.redirect(ctx, w, r, endpointApproveAuth, redirectURL, span, startTime)
}

// ServeToken exchanges a grant code for an access token. Parameters are
// read from the query string and from a form body.
func (h *Handler) ServeToken(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	ctx, span := h.tracer.Start(r.Context(), "oauth.http.token_exchange")
	defer span.End()

	if err := r.ParseForm(); err != nil {
		instrumentation.RecordError(span, err)
		h.writeError(w, ErrorCodeInvalidRequest, "failed to parse request", http.StatusBadRequest)
		h.finish(ctx, span, r, endpointToken, http.StatusBadRequest, startTime)
		return
	}

	clientID := r.Form.Get(server.ParamClientID)
	clientIP := h.clientIP(r)
	instrumentation.SetSpanAttributes(span,
		attribute.String(instrumentation.AttrClientID, clientID),
		attribute.String(instrumentation.AttrGrantType, r.Form.Get(server.ParamGrantType)))
	if h.server.Instrumentation.ShouldLogClientIPs() {
		instrumentation.AddSecurityAttributes(span, clientIP)
	}

	token, scope, err := h.server.Core.Token(ctx, r.Form, clientIP)
	if err != nil {
		oauthErr := OAuthErrorFromServerError(err)
		if oauthErr.Status >= http.StatusInternalServerError {
			security.LoggerFromContext(ctx, h.logger).Error("Failed to exchange grant code",
				"client_id", clientID, "error", err)
		}
		instrumentation.RecordError(span, err)
		span.SetAttributes(attribute.String(instrumentation.AttrError, oauthErr.Code))
		h.writeError(w, oauthErr.Code, oauthErr.Description, oauthErr.Status)
		h.finish(ctx, span, r, endpointToken, oauthErr.Status, startTime)
		return
	}

	security.LoggerFromContext(ctx, h.logger).Info("Token exchange successful", "client_id", clientID)
	instrumentation.SetSpanAttributes(span, attribute.String(instrumentation.AttrScope, scope))
	instrumentation.SetSpanSuccess(span)
	h.writeTokenResponse(w, token, scope)
	h.finish(ctx, span, r, endpointToken, http.StatusOK, startTime)
}

// ServeReset forgets all approvals and outstanding codes, then returns the
// browser to the base path
func (h *Handler) ServeReset(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	ctx, span := h.tracer.Start(r.Context(), "oauth.http.reset")
	defer span.End()

	h.server.Core.Reset(ctx)
	h.redirect(ctx, w, r, endpointReset, h.homePath(), span, startTime)
}

// ServeLoginPage renders the login form
func (h *Handler) ServeLoginPage(w http.ResponseWriter, r *http.Request) {
	h.renderLogin(r.Context(), w, http.StatusOK, &view.LoginPage{Action: h.loginAction()})
}

// ServeLogin authenticates the login form and starts a session. On success
// the browser goes back to the page that required login.
func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	ctx, span := h.tracer.Start(r.Context(), "oauth.http.login")
	defer span.End()

	if err := r.ParseForm(); err != nil {
		instrumentation.RecordError(span, err)
		http.Error(w, "failed to parse login form", http.StatusBadRequest)
		h.finish(ctx, span, r, endpointLogin, http.StatusBadRequest, startTime)
		return
	}

	username := strings.TrimSpace(r.PostForm.Get(formUsername))
	clientIP := h.clientIP(r)
	logger := security.LoggerFromContext(ctx, h.logger)

	principal, err := h.server.Provider.Authenticate(ctx, username, r.PostForm.Get(formPassword))
	if err != nil {
		reason := "invalid_credentials"
		if !errors.Is(err, providers.ErrInvalidCredentials) {
			reason = "provider_error"
			logger.Error("Identity provider failed", "provider", h.server.Provider.Name(), "error", err)
		}
		logger.Warn("Login failed", "ip", clientIP, "reason", reason)
		h.server.Auditor.LogLogin(username, clientIP, false, reason)
		h.metrics.RecordLoginAttempt(ctx, false)
		instrumentation.SetSpanError(span, reason)

		h.renderLogin(ctx, w, http.StatusForbidden, &view.LoginPage{
			Action:   h.loginAction(),
			Username: username,
			Error:    msgInvalidCredentials,
		})
		h.finish(ctx, span, r, endpointLogin, http.StatusForbidden, startTime)
		return
	}

	returnURL := h.server.Sessions.Login(w, r, principal.Username, principal.DisplayName)
	if !isLocalPath(returnURL) {
		returnURL = h.homePath()
	}

	logger.Info("Login succeeded", "ip", clientIP)
	h.server.Auditor.LogLogin(principal.Username, clientIP, true, "")
	h.metrics.RecordLoginAttempt(ctx, true)
	instrumentation.SetSpanSuccess(span)

	http.Redirect(w, r, returnURL, http.StatusFound)
	h.finish(ctx, span, r, endpointLogin, http.StatusFound, startTime)
}

// ServeLogout ends the session and returns the browser to the index page
func (h *Handler) ServeLogout(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	ctx, span := h.tracer.Start(r.Context(), "oauth.http.logout")
	defer span.End()

	if sess := h.server.Sessions.Load(r); sess.Authenticated() {
		h.server.Auditor.LogLogout(sess.Username, h.clientIP(r))
	}
	h.server.Sessions.Destroy(w, r)
	http.Redirect(w, r, h.server.Config.BasePath+"/index.html", http.StatusFound)
	instrumentation.SetSpanSuccess(span)
	h.finish(ctx, span, r, endpointLogout, http.StatusFound, startTime)
}

// ServeHealth reports that the process is serving
func (h *Handler) ServeHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok")
}

// RequireLogin passes requests with an authenticated session on with the
// principal in their context. Other requests are sent to the login URL; the
// requested URL is kept in a cookie to return to afterwards.
func (h *Handler) RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := h.server.Sessions.Load(r)
		if sess.Authenticated() {
			ctx := providers.WithPrincipal(r.Context(), &providers.Principal{
				Username:    sess.Username,
				DisplayName: sess.DisplayName,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		h.server.Sessions.SetReturnURL(w, r.URL.RequestURI())
		http.Redirect(w, r, h.server.Config.LoginURL, http.StatusFound)
	})
}

// rateLimit rejects requests from client IPs that exceed limiter. A nil
// limiter disables the check.
func (h *Handler) rateLimit(limiter *security.RateLimiter, endpoint string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := h.clientIP(r)
			if limiter.Allow(clientIP) {
				next.ServeHTTP(w, r)
				return
			}

			security.LoggerFromContext(r.Context(), h.logger).Warn("Rate limit exceeded",
				"ip", clientIP, "endpoint", endpoint)
			h.metrics.RecordRateLimitExceeded(r.Context(), endpoint)
			h.server.Auditor.LogRateLimitExceeded(clientIP, endpoint)

			w.Header().Set("Retry-After", "1")
			limitErr := ErrRateLimitExceeded(msgRateLimited)
			if endpoint == endpointToken {
				h.writeError(w, limitErr.Code, limitErr.Description, limitErr.Status)
				return
			}
			http.Error(w, limitErr.Description, limitErr.Status)
		})
	}
}

func (h *Handler) renderConsent(ctx context.Context, w http.ResponseWriter, r *http.Request, prompt *server.ConsentPrompt, span trace.Span, startTime time.Time) {
	page := &view.ConsentPage{
		Client:            view.Client{ID: prompt.ClientID, Name: prompt.ClientName},
		ScopeDescriptions: prompt.ScopeDescriptions,
		Query:             prompt.Query,
		Action:            h.server.Config.APIPrefix() + "/" + endpointApproveAuth,
		Username:          providers.UsernameFromContext(ctx),
	}

	security.SetPageSecurityHeaders(w, h.server.Config.ServerURL)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.server.Renderer.RenderConsent(w, page); err != nil {
		security.LoggerFromContext(ctx, h.logger).Error("Failed to render consent page",
			"client_id", prompt.ClientID, "error", err)
		instrumentation.RecordError(span, err)
		http.Error(w, server.ErrRenderFailure.Error(), http.StatusBadRequest)
		h.finish(ctx, span, r, endpointAuthorize, http.StatusBadRequest, startTime)
		return
	}
	instrumentation.SetSpanSuccess(span)
	h.finish(ctx, span, r, endpointAuthorize, http.StatusOK, startTime)
}

// renderLogin writes the login page with status. The page is rendered
// before anything is written so that a failure can still change the status.
func (h *Handler) renderLogin(ctx context.Context, w http.ResponseWriter, status int, page *view.LoginPage) {
	var buf bytes.Buffer
	if err := h.server.Renderer.RenderLogin(&buf, page); err != nil {
		security.LoggerFromContext(ctx, h.logger).Error("Failed to render login page", "error", err)
		http.Error(w, "failed to render login page", http.StatusInternalServerError)
		return
	}
	security.SetPageSecurityHeaders(w, h.server.Config.ServerURL)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// writeRequestError answers a failed browser request with 400 and a text
// body. Request errors are described; other failures get fallback and are
// logged in full.
func (h *Handler) writeRequestError(ctx context.Context, w http.ResponseWriter, r *http.Request, endpoint string, err error, fallback string, span trace.Span, startTime time.Time) {
	msg, known := requestErrorMessage(err, fallback)
	logger := security.LoggerFromContext(ctx, h.logger)
	if known {
		logger.Info("Rejected request", "endpoint", endpoint, "reason", msg)
	} else {
		logger.Error("Request failed", "endpoint", endpoint, "error", err)
	}

	instrumentation.RecordError(span, err)
	security.SetSecurityHeaders(w, h.server.Config.ServerURL)
	http.Error(w, msg, http.StatusBadRequest)
	h.finish(ctx, span, r, endpoint, http.StatusBadRequest, startTime)
}

func (h *Handler) redirect(ctx context.Context, w http.ResponseWriter, r *http.Request, endpoint, location string, span trace.Span, startTime time.Time) {
	security.SetSecurityHeaders(w, h.server.Config.ServerURL)
	http.Redirect(w, r, location, http.StatusSeeOther)
	instrumentation.SetSpanSuccess(span)
	h.finish(ctx, span, r, endpoint, http.StatusSeeOther, startTime)
}

func (h *Handler) writeTokenResponse(w http.ResponseWriter, token *oauth2.Token, scope string) {
	security.SetSecurityHeaders(w, h.server.Config.ServerURL)
	security.SetNoStoreHeaders(w)

	tokenType := token.TokenType
	if tokenType == "" {
		tokenType = "bearer"
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(TokenResponse{
		AccessToken: token.AccessToken,
		TokenType:   tokenType,
		ExpiresIn:   token.ExpiresIn,
		Scope:       scope,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, code, description string, status int) {
	security.SetSecurityHeaders(w, h.server.Config.ServerURL)
	security.SetNoStoreHeaders(w)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:            code,
		ErrorDescription: description,
	})
}

// finish records the outcome of a request on its span and in metrics
func (h *Handler) finish(ctx context.Context, span trace.Span, r *http.Request, endpoint string, status int, startTime time.Time) {
	instrumentation.AddHTTPAttributes(span, r.Method, endpoint, status)
	if id := security.GetRequestID(ctx); id != "" {
		span.SetAttributes(attribute.String(instrumentation.AttrRequestID, id))
	}
	duration := float64(time.Since(startTime).Microseconds()) / 1000
	h.metrics.RecordHTTPRequest(ctx, r.Method, endpoint, status, duration)
}

func (h *Handler) clientIP(r *http.Request) string {
	return security.GetClientIP(r, h.server.Config.Security.TrustProxy, h.server.Config.Security.TrustedProxyCount)
}

func (h *Handler) loginAction() string {
	return h.server.Config.APIPrefix() + "/" + endpointLogin
}

// homePath is where the browser lands after reset or a login with no
// pending request
func (h *Handler) homePath() string {
	if h.server.Config.BasePath == "" {
		return "/"
	}
	return h.server.Config.BasePath
}

// isLocalPath reports whether u is a path on this server. Only such paths
// are followed after login.
func isLocalPath(u string) bool {
	return strings.HasPrefix(u, "/") && !strings.HasPrefix(u, "//") && !strings.HasPrefix(u, "/\\")
}
