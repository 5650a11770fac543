package server

import (
	"net/url"
	"strings"

	"github.com/giantswarm/authcode-server/storage"
)

// Request parameter names
const (
	ParamClientID     = "client_id"
	ParamRedirectURI  = "redirect_uri"
	ParamScope        = "scope"
	ParamResponseType = "response_type"
	ParamState        = "state"
	ParamCode         = "code"
	ParamGrantType    = "grant_type"
	ParamApproved     = "approved"
	ParamError        = "error"
)

const (
	// ResponseTypeCode is the only supported response_type
	ResponseTypeCode = "code"

	// GrantTypeAuthorizationCode is the only supported grant_type
	GrantTypeAuthorizationCode = "authorization_code"

	// ApprovedYes is the approved value that grants consent; anything else denies
	ApprovedYes = "Yes"
)

// AccessRequest is a parsed token request
type AccessRequest struct {
	ClientID    string
	RedirectURI string
	Code        string
	GrantType   string
}

// ParseGrantRequest validates the parameters of an authorization or
// approval request. Parameters are checked in a fixed order and the first
// failure is returned.
func ParseGrantRequest(params url.Values) (*storage.GrantRequest, error) {
	clientID, err := required(params, ParamClientID)
	if err != nil {
		return nil, err
	}
	redirectURI, err := required(params, ParamRedirectURI)
	if err != nil {
		return nil, err
	}
	scope, err := required(params, ParamScope)
	if err != nil {
		return nil, err
	}
	scopes := strings.Fields(scope)
	if len(scopes) == 0 {
		return nil, MissingParameter(ParamScope)
	}
	responseType, err := required(params, ParamResponseType)
	if err != nil {
		return nil, err
	}
	if responseType != ResponseTypeCode {
		return nil, ParameterMismatch(ParamResponseType, ResponseTypeCode)
	}

	return &storage.GrantRequest{
		ClientID:     clientID,
		RedirectURI:  redirectURI,
		Scope:        strings.Join(scopes, " "),
		Scopes:       scopes,
		ResponseType: responseType,
		State:        params.Get(ParamState),
	}, nil
}

// ParseAccessRequest validates the parameters of a token request. Only the
// presence of grant_type is checked here; its value is checked after the
// grant has been taken.
func ParseAccessRequest(params url.Values) (*AccessRequest, error) {
	clientID, err := required(params, ParamClientID)
	if err != nil {
		return nil, err
	}
	redirectURI, err := required(params, ParamRedirectURI)
	if err != nil {
		return nil, err
	}
	code, err := required(params, ParamCode)
	if err != nil {
		return nil, err
	}
	grantType, err := required(params, ParamGrantType)
	if err != nil {
		return nil, err
	}

	return &AccessRequest{
		ClientID:    clientID,
		RedirectURI: redirectURI,
		Code:        code,
		GrantType:   grantType,
	}, nil
}

// required returns the first value of name, treating an empty value as missing
func required(params url.Values, name string) (string, error) {
	v := params.Get(name)
	if v == "" {
		return "", MissingParameter(name)
	}
	return v, nil
}

// appendQuery adds params to redirectURI, joining with & when the URI
// already has a query
func appendQuery(redirectURI string, params url.Values) string {
	sep := "?"
	if strings.Contains(redirectURI, "?") {
		sep = "&"
	}
	return redirectURI + sep + params.Encode()
}
