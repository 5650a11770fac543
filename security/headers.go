package security

import (
	"net/http"
	"net/url"
)

// SetSecurityHeaders sets the common security headers on protocol responses.
// serverURL decides whether HSTS is sent.
func SetSecurityHeaders(w http.ResponseWriter, serverURL string) {
	h := w.Header()

	// Prevent clickjacking and MIME sniffing
	h.Set("X-Frame-Options", "DENY")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Referrer-Policy", "no-referrer")

	if parsed, err := url.Parse(serverURL); err == nil && parsed.Scheme == "https" {
		h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	}
}

// SetNoStoreHeaders marks a response as uncacheable. Token endpoint
// responses must carry exactly these two headers (RFC 6749 section 5.1).
func SetNoStoreHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}

// SetPageSecurityHeaders sets headers for HTML pages rendered by the server.
// Inline styles are allowed for the bundled templates; scripts are not.
// form-action is left open because the consent form is answered with a
// redirect to the client.
func SetPageSecurityHeaders(w http.ResponseWriter, serverURL string) {
	SetSecurityHeaders(w, serverURL)
	w.Header().Set("Content-Security-Policy",
		"default-src 'none'; style-src 'self' 'unsafe-inline'; img-src 'self'; frame-ancestors 'none'")
	w.Header().Set("Cache-Control", "no-store")
}
