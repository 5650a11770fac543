package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

// HTTPRequest is a helper for making test HTTP requests
type HTTPRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Form    url.Values
	Cookies []*http.Cookie
}

// NewHTTPRequest creates a new HTTP request helper
func NewHTTPRequest(method, target string) *HTTPRequest {
	return &HTTPRequest{
		Method:  method,
		URL:     target,
		Headers: make(map[string]string),
	}
}

// WithHeader adds a header to the request
func (r *HTTPRequest) WithHeader(key, value string) *HTTPRequest {
	r.Headers[key] = value
	return r
}

// WithForm sets an application/x-www-form-urlencoded body
func (r *HTTPRequest) WithForm(form url.Values) *HTTPRequest {
	r.Form = form
	return r
}

// WithCookies attaches cookies to the request
func (r *HTTPRequest) WithCookies(cookies ...*http.Cookie) *HTTPRequest {
	r.Cookies = append(r.Cookies, cookies...)
	return r
}

// Build creates the *http.Request
func (r *HTTPRequest) Build() *http.Request {
	var req *http.Request
	if r.Form != nil {
		req = httptest.NewRequest(r.Method, r.URL, strings.NewReader(r.Form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(r.Method, r.URL, nil)
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	for _, c := range r.Cookies {
		req.AddCookie(c)
	}
	return req
}

// Do executes the HTTP request against handler
func (r *HTTPRequest) Do(handler http.Handler) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, r.Build())
	return rr
}

// AssertStatus fails the test if the recorded status differs from want
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status = %d, want %d (body: %s)", rr.Code, want, rr.Body.String())
	}
}

// RedirectLocation parses the Location header of a redirect response
func RedirectLocation(t *testing.T, rr *httptest.ResponseRecorder) *url.URL {
	t.Helper()
	loc := rr.Header().Get("Location")
	if loc == "" {
		t.Fatalf("response has no Location header (status %d)", rr.Code)
	}
	u, err := url.Parse(loc)
	if err != nil {
		t.Fatalf("url.Parse(%q) error = %v", loc, err)
	}
	return u
}

// DecodeJSON decodes the recorded body into v
func DecodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("Content-Type = %q, want application/json", ct)
	}
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("json.Unmarshal() error = %v (body: %s)", err, rr.Body.String())
	}
}

// AssertNoError fails the test if err is not nil
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertStringContains fails the test if s does not contain substr
func AssertStringContains(t *testing.T, s, substr string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Errorf("string %q does not contain %q", s, substr)
	}
}
