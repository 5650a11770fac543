package oauth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/giantswarm/authcode-server/server"
)

// OAuth error codes as constants
const (
	ErrorCodeInvalidRequest       = server.ErrorCodeInvalidRequest
	ErrorCodeInvalidGrant         = server.ErrorCodeInvalidGrant
	ErrorCodeInvalidClient        = server.ErrorCodeInvalidClient
	ErrorCodeUnsupportedGrantType = server.ErrorCodeUnsupportedGrantType
	ErrorCodeServerError          = server.ErrorCodeServerError
	ErrorCodeAccessDenied         = server.ErrorCodeAccessDenied
	ErrorCodeRateLimitExceeded    = "rate_limit_exceeded"
)

// Messages sent when an authorization endpoint fails for a reason the
// resource owner cannot fix. Details go to the server log.
const (
	msgAuthorizeFailed = "failed to authorize. See server logs"
	msgApproveFailed   = "failed to apply authorization. See server logs"
	msgTokenFailed     = "failed to issue token. See server logs"
)

const msgRateLimited = "Rate limit exceeded. Please try again later."

// OAuthError represents an OAuth 2.0 error response
type OAuthError struct {
	Code        string // OAuth error code (e.g., "invalid_request", "invalid_grant")
	Description string // Human-readable error description
	Status      int    // HTTP status code
}

// Error implements the error interface
func (e *OAuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// NewOAuthError creates a new OAuth error
func NewOAuthError(code, description string, status int) *OAuthError {
	return &OAuthError{
		Code:        code,
		Description: description,
		Status:      status,
	}
}

// Common OAuth errors as reusable constructors
var (
	// ErrInvalidRequest indicates the request is malformed or missing required parameters
	ErrInvalidRequest = func(desc string) *OAuthError {
		return NewOAuthError(ErrorCodeInvalidRequest, desc, http.StatusBadRequest)
	}

	// ErrInvalidGrant indicates the authorization code is unknown, spent, expired or
	// was issued for another redirect URI
	ErrInvalidGrant = func(desc string) *OAuthError {
		return NewOAuthError(ErrorCodeInvalidGrant, desc, http.StatusBadRequest)
	}

	// ErrInvalidClient indicates the code was issued to another client
	ErrInvalidClient = func(desc string) *OAuthError {
		return NewOAuthError(ErrorCodeInvalidClient, desc, http.StatusBadRequest)
	}

	// ErrUnsupportedGrantType indicates the grant type is not supported
	ErrUnsupportedGrantType = func(desc string) *OAuthError {
		return NewOAuthError(ErrorCodeUnsupportedGrantType, desc, http.StatusBadRequest)
	}

	// ErrServerError indicates an internal server error occurred
	ErrServerError = func(desc string) *OAuthError {
		return NewOAuthError(ErrorCodeServerError, desc, http.StatusInternalServerError)
	}

	// ErrRateLimitExceeded indicates the caller sent too many requests
	ErrRateLimitExceeded = func(desc string) *OAuthError {
		return NewOAuthError(ErrorCodeRateLimitExceeded, desc, http.StatusTooManyRequests)
	}
)

// OAuthErrorFromServerError maps an error from the token exchange to the
// response sent to the client. Protocol failures keep their code and
// description; anything else becomes a generic server_error.
func OAuthErrorFromServerError(err error) *OAuthError {
	var tokenErr *server.TokenError
	if errors.As(err, &tokenErr) {
		switch tokenErr.Code {
		case ErrorCodeInvalidRequest:
			return ErrInvalidRequest(tokenErr.Description)
		case ErrorCodeInvalidClient:
			return ErrInvalidClient(tokenErr.Description)
		case ErrorCodeInvalidGrant:
			return ErrInvalidGrant(tokenErr.Description)
		case ErrorCodeUnsupportedGrantType:
			return ErrUnsupportedGrantType(tokenErr.Description)
		}
		return NewOAuthError(tokenErr.Code, tokenErr.Description, http.StatusBadRequest)
	}

	var paramErr *server.ParameterError
	if errors.As(err, &paramErr) {
		return ErrInvalidRequest(paramErr.Error())
	}

	return ErrServerError(msgTokenFailed)
}

// requestErrorMessage returns the text shown for a failed browser request.
// Request errors are described; anything else gets fallback.
func requestErrorMessage(err error, fallback string) (string, bool) {
	switch {
	case errors.Is(err, server.ErrMissingParameter),
		errors.Is(err, server.ErrParameterMismatch),
		errors.Is(err, server.ErrUnknownClient):
		return err.Error(), true
	}
	return fallback, false
}
