package server

import (
	"errors"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/giantswarm/authcode-server/storage"
)

func validGrantParams() url.Values {
	return url.Values{
		ParamClientID:     {"acme"},
		ParamRedirectURI:  {"https://cb"},
		ParamScope:        {"read  write\tadmin"},
		ParamResponseType: {"code"},
	}
}

func TestParseGrantRequest(t *testing.T) {
	params := validGrantParams()
	params.Set(ParamState, "xyz")

	got, err := ParseGrantRequest(params)
	if err != nil {
		t.Fatalf("ParseGrantRequest() error = %v", err)
	}

	want := &storage.GrantRequest{
		ClientID:     "acme",
		RedirectURI:  "https://cb",
		Scope:        "read write admin",
		Scopes:       []string{"read", "write", "admin"},
		ResponseType: "code",
		State:        "xyz",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseGrantRequest() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseGrantRequest_Errors(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(url.Values)
		wantKind error
		wantMsg  string
	}{
		{
			name:     "missing client_id",
			mutate:   func(v url.Values) { v.Del(ParamClientID) },
			wantKind: ErrMissingParameter,
			wantMsg:  "the request is missing parameter: client_id",
		},
		{
			name:     "empty redirect_uri",
			mutate:   func(v url.Values) { v.Set(ParamRedirectURI, "") },
			wantKind: ErrMissingParameter,
			wantMsg:  "the request is missing parameter: redirect_uri",
		},
		{
			name:     "missing scope",
			mutate:   func(v url.Values) { v.Del(ParamScope) },
			wantKind: ErrMissingParameter,
			wantMsg:  "the request is missing parameter: scope",
		},
		{
			name:     "whitespace-only scope",
			mutate:   func(v url.Values) { v.Set(ParamScope, "  \t ") },
			wantKind: ErrMissingParameter,
			wantMsg:  "the request is missing parameter: scope",
		},
		{
			name:     "missing response_type",
			mutate:   func(v url.Values) { v.Del(ParamResponseType) },
			wantKind: ErrMissingParameter,
			wantMsg:  "the request is missing parameter: response_type",
		},
		{
			name:     "wrong response_type",
			mutate:   func(v url.Values) { v.Set(ParamResponseType, "token") },
			wantKind: ErrParameterMismatch,
			wantMsg:  "the request parameter: response_type should be code",
		},
		{
			name: "first failure wins",
			mutate: func(v url.Values) {
				v.Del(ParamRedirectURI)
				v.Del(ParamScope)
			},
			wantKind: ErrMissingParameter,
			wantMsg:  "the request is missing parameter: redirect_uri",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := validGrantParams()
			tt.mutate(params)

			_, err := ParseGrantRequest(params)
			if !errors.Is(err, tt.wantKind) {
				t.Fatalf("ParseGrantRequest() error = %v, want %v", err, tt.wantKind)
			}
			if err.Error() != tt.wantMsg {
				t.Errorf("error message = %q, want %q", err.Error(), tt.wantMsg)
			}
			var perr *ParameterError
			if !errors.As(err, &perr) {
				t.Errorf("error %T is not a *ParameterError", err)
			}
		})
	}
}

func TestParseAccessRequest(t *testing.T) {
	params := url.Values{
		ParamClientID:    {"acme"},
		ParamRedirectURI: {"https://cb"},
		ParamCode:        {"abc"},
		ParamGrantType:   {"password"},
	}

	got, err := ParseAccessRequest(params)
	if err != nil {
		t.Fatalf("ParseAccessRequest() error = %v", err)
	}
	// The grant type value is not checked by the parser
	want := &AccessRequest{ClientID: "acme", RedirectURI: "https://cb", Code: "abc", GrantType: "password"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseAccessRequest() mismatch (-want +got):\n%s", diff)
	}

	for _, name := range []string{ParamClientID, ParamRedirectURI, ParamCode, ParamGrantType} {
		t.Run("missing "+name, func(t *testing.T) {
			p := url.Values{}
			for k, v := range params {
				p[k] = v
			}
			p.Del(name)

			_, err := ParseAccessRequest(p)
			if !errors.Is(err, ErrMissingParameter) {
				t.Fatalf("ParseAccessRequest() error = %v, want %v", err, ErrMissingParameter)
			}
			if want := "the request is missing parameter: " + name; err.Error() != want {
				t.Errorf("error message = %q, want %q", err.Error(), want)
			}
		})
	}
}

func TestAppendQuery(t *testing.T) {
	tests := []struct {
		name     string
		redirect string
		params   url.Values
		want     string
	}{
		{
			name:     "no existing query",
			redirect: "https://cb",
			params:   url.Values{"code": {"abc"}},
			want:     "https://cb?code=abc",
		},
		{
			name:     "existing query",
			redirect: "https://cb/path?x=1",
			params:   url.Values{"code": {"abc"}, "state": {"s t"}},
			want:     "https://cb/path?x=1&code=abc&state=s+t",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := appendQuery(tt.redirect, tt.params); got != tt.want {
				t.Errorf("appendQuery() = %q, want %q", got, tt.want)
			}
		})
	}
}
