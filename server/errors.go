package server

import (
	"errors"
	"fmt"
)

// OAuth 2.0 error codes returned by the token endpoint (RFC 6749 section 5.2)
// and in authorization redirects (section 4.1.2.1).
// These are duplicated in the root package; keep them in sync.
const (
	ErrorCodeInvalidRequest       = "invalid_request"
	ErrorCodeInvalidClient        = "invalid_client"
	ErrorCodeInvalidGrant         = "invalid_grant"
	ErrorCodeUnsupportedGrantType = "unsupported_grant_type"
	ErrorCodeAccessDenied         = "access_denied"
	ErrorCodeServerError          = "server_error"
)

var (
	// ErrMissingParameter is matched by a ParameterError for an absent or empty parameter
	ErrMissingParameter = errors.New("missing parameter")

	// ErrParameterMismatch is matched by a ParameterError for a parameter with the wrong value
	ErrParameterMismatch = errors.New("parameter mismatch")

	// ErrUnknownClient is returned when client_id is not registered
	ErrUnknownClient = errors.New("unknown client")

	// ErrGrantNotFound is returned when a code is unknown, already redeemed or expired
	ErrGrantNotFound = errors.New("could not find the access code")

	// ErrClientMismatch is returned when a code is redeemed by a client other than the one it was issued to
	ErrClientMismatch = errors.New("client id does not match the grant")

	// ErrRedirectMismatch is returned when the redirect_uri differs from the one the code was issued for
	ErrRedirectMismatch = errors.New("redirect uri does not match the grant")

	// ErrUnsupportedGrantType is returned for any grant_type other than authorization_code
	ErrUnsupportedGrantType = errors.New("unsupported grant type")

	// ErrConsentDenied is returned alongside the access_denied redirect when the resource owner declines
	ErrConsentDenied = errors.New("consent denied")

	// ErrRenderFailure is reported when the consent page cannot be produced
	ErrRenderFailure = errors.New("failed to render auth request page")
)

// ParameterError describes a request parameter that failed validation.
// It matches ErrMissingParameter or ErrParameterMismatch with errors.Is.
type ParameterError struct {
	Name     string
	Expected string // set for mismatches only
	kind     error
}

// MissingParameter returns the error for an absent required parameter
func MissingParameter(name string) *ParameterError {
	return &ParameterError{Name: name, kind: ErrMissingParameter}
}

// ParameterMismatch returns the error for a parameter whose value must equal expected
func ParameterMismatch(name, expected string) *ParameterError {
	return &ParameterError{Name: name, Expected: expected, kind: ErrParameterMismatch}
}

func (e *ParameterError) Error() string {
	if e.kind == ErrParameterMismatch {
		return fmt.Sprintf("the request parameter: %s should be %s", e.Name, e.Expected)
	}
	return fmt.Sprintf("the request is missing parameter: %s", e.Name)
}

func (e *ParameterError) Unwrap() error {
	return e.kind
}

// UnknownClientError names the unregistered client. It matches ErrUnknownClient.
type UnknownClientError struct {
	ClientID string
}

func (e *UnknownClientError) Error() string {
	return fmt.Sprintf("unknown client id: %s", e.ClientID)
}

func (e *UnknownClientError) Unwrap() error {
	return ErrUnknownClient
}

// TokenError is a token endpoint failure. Code and Description are sent to
// the client; Err holds the cause for errors.Is and server-side logging.
type TokenError struct {
	Code        string
	Description string
	Err         error
}

func newTokenError(code, description string, err error) *TokenError {
	return &TokenError{Code: code, Description: description, Err: err}
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func (e *TokenError) Unwrap() error {
	return e.Err
}
