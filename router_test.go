package oauth

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/giantswarm/authcode-server/instrumentation"
	"github.com/giantswarm/authcode-server/internal/testutil"
	"github.com/giantswarm/authcode-server/session"
)

func TestRoutes_LoginRequired(t *testing.T) {
	ts := setupTestServer(t, nil)

	for _, path := range []string{"/authorize", "/approveauth", "/reset"} {
		t.Run(path, func(t *testing.T) {
			rr := ts.get(t, apiPrefix+path, authorizeQuery(testutil.ScopeRead), nil)
			testutil.AssertStatus(t, rr, http.StatusFound)
			assert.Equal(t, apiPrefix+"/login", rr.Header().Get("Location"))
		})
	}

	_, _, authorisations := ts.srv.Store.Counts()
	assert.Zero(t, authorisations)
}

func TestRoutes_LoginReturnsToRequest(t *testing.T) {
	ts := setupTestServer(t, nil)

	// The unauthenticated request is remembered in a fresh session
	target := apiPrefix + "/authorize?" + authorizeQuery(testutil.ScopeRead).Encode()
	rr := testutil.NewHTTPRequest(http.MethodGet, target).Do(ts.handler)
	testutil.AssertStatus(t, rr, http.StatusFound)
	anonCookies := rr.Result().Cookies()
	require.NotEmpty(t, anonCookies)

	rr = testutil.NewHTTPRequest(http.MethodPost, apiPrefix+"/login").
		WithForm(url.Values{formUsername: {testUser}, formPassword: {testPassword}}).
		WithCookies(anonCookies...).
		Do(ts.handler)
	testutil.AssertStatus(t, rr, http.StatusFound)
	assert.Equal(t, target, rr.Header().Get("Location"))

	// The logged-in session can now follow the redirect
	rr = testutil.NewHTTPRequest(http.MethodGet, target).WithCookies(rr.Result().Cookies()...).Do(ts.handler)
	testutil.AssertStatus(t, rr, http.StatusOK)
	testutil.AssertStringContains(t, rr.Body.String(), "Signed in as "+testUser)
}

func TestRoutes_LoginWithoutPendingRequest(t *testing.T) {
	ts := setupTestServer(t, nil)

	rr := testutil.NewHTTPRequest(http.MethodPost, apiPrefix+"/login").
		WithForm(url.Values{formUsername: {testUser}, formPassword: {testPassword}}).
		Do(ts.handler)
	testutil.AssertStatus(t, rr, http.StatusFound)
	assert.Equal(t, "/oauth2", rr.Header().Get("Location"))
}

func TestRoutes_LoginFailure(t *testing.T) {
	ts := setupTestServer(t, nil)

	rr := testutil.NewHTTPRequest(http.MethodPost, apiPrefix+"/login").
		WithForm(url.Values{formUsername: {testUser}, formPassword: {"wrong"}}).
		Do(ts.handler)
	testutil.AssertStatus(t, rr, http.StatusForbidden)
	assert.Contains(t, rr.Body.String(), msgInvalidCredentials)
	assert.Contains(t, rr.Body.String(), `value="alice"`)
	assert.Zero(t, ts.srv.Sessions.Len())
}

func TestRoutes_LoginPage(t *testing.T) {
	ts := setupTestServer(t, nil)

	rr := ts.get(t, apiPrefix+"/login", nil, nil)
	testutil.AssertStatus(t, rr, http.StatusOK)
	assert.Contains(t, rr.Body.String(), `action="/oauth2/api/login"`)
	assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
}

func TestRoutes_Logout(t *testing.T) {
	ts := setupTestServer(t, nil)
	cookies := ts.login(t)

	rr := ts.get(t, apiPrefix+"/logout", nil, cookies)
	testutil.AssertStatus(t, rr, http.StatusFound)
	assert.Equal(t, "/oauth2/index.html", rr.Header().Get("Location"))

	rr = ts.get(t, apiPrefix+"/authorize", authorizeQuery(testutil.ScopeRead), cookies)
	testutil.AssertStatus(t, rr, http.StatusFound)
	assert.Equal(t, apiPrefix+"/login", rr.Header().Get("Location"))
}

func TestRoutes_CustomLoginURL(t *testing.T) {
	ts := setupTestServer(t, func(c *Config) { c.LoginURL = "/oauth2/login.html" })

	rr := ts.get(t, apiPrefix+"/authorize", authorizeQuery(testutil.ScopeRead), nil)
	testutil.AssertStatus(t, rr, http.StatusFound)
	assert.Equal(t, "/oauth2/login.html", rr.Header().Get("Location"))
}

func TestRoutes_SessionCookie(t *testing.T) {
	ts := setupTestServer(t, nil)

	var found bool
	for _, c := range ts.login(t) {
		if c.Name == session.DefaultCookieName {
			found = true
			assert.True(t, c.HttpOnly)
			assert.Equal(t, "/oauth2", c.Path)
		}
	}
	assert.True(t, found, "session cookie not set")
}

func TestRoutes_Static(t *testing.T) {
	ts := setupTestServer(t, nil)

	rr := ts.get(t, "/oauth2", nil, nil)
	testutil.AssertStatus(t, rr, http.StatusFound)
	assert.Equal(t, "/oauth2/index.html", rr.Header().Get("Location"))

	rr = ts.get(t, "/oauth2/", nil, nil)
	testutil.AssertStatus(t, rr, http.StatusOK)
	assert.Contains(t, rr.Body.String(), "Authorization server")
}

func TestRoutes_WebRoot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hello"), 0o600))
	ts := setupTestServer(t, func(c *Config) { c.WebRoot = dir })

	rr := ts.get(t, "/oauth2/hello.txt", nil, nil)
	testutil.AssertStatus(t, rr, http.StatusOK)
	assert.Equal(t, "hello", rr.Body.String())
}

func TestRoutes_Health(t *testing.T) {
	ts := setupTestServer(t, nil)

	rr := ts.get(t, "/health", nil, nil)
	testutil.AssertStatus(t, rr, http.StatusOK)
	assert.Equal(t, "ok", rr.Body.String())
}

func TestRoutes_Metrics(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		ts := setupTestServer(t, nil)
		rr := ts.get(t, "/metrics", nil, nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("enabled", func(t *testing.T) {
		ts := setupTestServer(t, func(c *Config) { c.Metrics.Enabled = true })
		ts.get(t, "/health", nil, nil)
		code := ts.approve(t, ts.login(t), testutil.ScopeRead)
		testutil.AssertStatus(t, ts.token(t, tokenForm(code)), http.StatusOK)

		rr := ts.get(t, "/metrics", nil, nil)
		testutil.AssertStatus(t, rr, http.StatusOK)
		assert.Contains(t, rr.Body.String(), "oauth_http_requests")
		assert.Contains(t, rr.Body.String(), "oauth_grant_issued")
	})
}

func TestRoutes_TokenRateLimit(t *testing.T) {
	ts := setupTestServer(t, func(c *Config) {
		c.RateLimit.Rate = 1
		c.RateLimit.Burst = 1
	})

	first := ts.token(t, tokenForm("nope"))
	testutil.AssertStatus(t, first, http.StatusBadRequest)

	rr := ts.token(t, tokenForm("nope"))
	testutil.AssertStatus(t, rr, http.StatusTooManyRequests)
	var body ErrorResponse
	testutil.DecodeJSON(t, rr, &body)
	assert.Equal(t, ErrorCodeRateLimitExceeded, body.Error)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
}

func TestRoutes_LoginRateLimit(t *testing.T) {
	ts := setupTestServer(t, func(c *Config) {
		c.RateLimit.LoginRate = 1
		c.RateLimit.LoginBurst = 1
	})

	bad := url.Values{formUsername: {testUser}, formPassword: {"wrong"}}
	rr := testutil.NewHTTPRequest(http.MethodPost, apiPrefix+"/login").WithForm(bad).Do(ts.handler)
	testutil.AssertStatus(t, rr, http.StatusForbidden)

	rr = testutil.NewHTTPRequest(http.MethodPost, apiPrefix+"/login").WithForm(bad).Do(ts.handler)
	testutil.AssertStatus(t, rr, http.StatusTooManyRequests)
}

func TestRoutes_TokenCORS(t *testing.T) {
	const origin = "https://app.example.com"
	ts := setupTestServer(t, func(c *Config) { c.CORS.AllowedOrigins = []string{origin} })

	rr := testutil.NewHTTPRequest(http.MethodOptions, apiPrefix+"/token").
		WithHeader("Origin", origin).
		WithHeader("Access-Control-Request-Method", http.MethodPost).
		Do(ts.handler)
	assert.Equal(t, origin, rr.Header().Get("Access-Control-Allow-Origin"))

	rr = testutil.NewHTTPRequest(http.MethodPost, apiPrefix+"/token").
		WithForm(tokenForm("nope")).
		WithHeader("Origin", "https://evil.example.com").
		Do(ts.handler)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRoutes_AnonymousTrafficIsRateLimited(t *testing.T) {
	ts := setupTestServer(t, func(c *Config) {
		c.RateLimit.Rate = 1
		c.RateLimit.Burst = 1
	})

	for _, path := range []string{"/authorize", "/approveauth", "/reset"} {
		t.Run(path, func(t *testing.T) {
			const requests = 50
			limited := 0
			for range requests {
				rr := ts.get(t, apiPrefix+path, authorizeQuery(testutil.ScopeRead), nil)
				switch rr.Code {
				case http.StatusTooManyRequests:
					limited++
				case http.StatusFound:
				default:
					t.Fatalf("status = %d, want 302 or 429", rr.Code)
				}
			}
			assert.GreaterOrEqual(t, limited, requests-5)
		})
	}

	assert.Zero(t, ts.srv.Sessions.Len(), "anonymous requests must not create sessions")
}

func TestRoutes_EndpointSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	ts := setupTestServer(t, func(c *Config) { c.Metrics.Enabled = true }, WithSpanProcessor(recorder))

	cookies := ts.login(t)
	ts.approve(t, cookies, testutil.ScopeRead)
	rr := ts.get(t, apiPrefix+"/logout", nil, cookies)
	testutil.AssertStatus(t, rr, http.StatusFound)

	statuses := map[string]int64{}
	for _, span := range recorder.Ended() {
		for _, kv := range span.Attributes() {
			if kv.Key == instrumentation.AttrHTTPStatusCode {
				statuses[span.Name()] = kv.Value.AsInt64()
			}
		}
	}
	assert.Equal(t, int64(http.StatusFound), statuses["oauth.http.login"])
	assert.Equal(t, int64(http.StatusSeeOther), statuses["oauth.http.approveauth"])
	assert.Equal(t, int64(http.StatusFound), statuses["oauth.http.logout"])
}

func TestRoutes_RateLimitMessage(t *testing.T) {
	ts := setupTestServer(t, func(c *Config) {
		c.RateLimit.Rate = 1
		c.RateLimit.Burst = 1
	})

	ts.token(t, tokenForm("nope"))
	rr := ts.token(t, tokenForm("nope"))
	testutil.AssertStatus(t, rr, http.StatusTooManyRequests)
	var body ErrorResponse
	testutil.DecodeJSON(t, rr, &body)
	assert.Equal(t, msgRateLimited, body.ErrorDescription)

	rr = ts.get(t, apiPrefix+"/authorize", authorizeQuery(testutil.ScopeRead), nil)
	testutil.AssertStatus(t, rr, http.StatusTooManyRequests)
	assert.Contains(t, rr.Body.String(), msgRateLimited)
}
