// Package security holds the security building blocks shared by the
// authorization server's HTTP layer and protocol core.
//
// # Token fountain
//
// TokenFountain draws grant codes (160 bits, 32 lowercase base32
// characters) and access tokens (256 bits, 43 base64url characters) from
// crypto/rand. It has no state and is safe for concurrent use.
//
// # Rate limiting
//
// RateLimiter keeps a token bucket per identifier, usually the client IP
// returned by GetClientIP. Buckets are bounded by an LRU and swept when idle.
//
// # Audit logging
//
// Auditor writes structured security_audit records for consent decisions,
// grant and token issuance, rejected exchanges, resets and logins. User
// identifiers are hashed before they are logged.
//
// # Headers and request IDs
//
// SetSecurityHeaders, SetNoStoreHeaders and SetPageSecurityHeaders set
// response headers for protocol, token and HTML responses respectively.
// RequestIDMiddleware propagates X-Request-ID through the request context.
package security
