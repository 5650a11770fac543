package server

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/giantswarm/authcode-server/internal/util"
	"github.com/giantswarm/authcode-server/providers"
	"github.com/giantswarm/authcode-server/storage"
)

// tokenTypeBearer is the token_type of issued access tokens
const tokenTypeBearer = "bearer"

// codeLogLength is the number of characters of a code included in logs
const codeLogLength = 8

// ConsentPrompt is what the resource owner must see before the request can
// proceed: the client, the scopes not yet approved and the original
// parameters so that the approval can replay them.
type ConsentPrompt struct {
	ClientID          string
	ClientName        string
	Scopes            []string
	ScopeDescriptions []string
	Query             url.Values
}

// AuthorizeResult is the outcome of Authorize. Exactly one field is set.
type AuthorizeResult struct {
	Consent     *ConsentPrompt
	RedirectURL string
}

// Authorize handles an authorization request. If the resource owner has
// already approved every requested scope for the client a grant is issued
// and the redirect URL is returned; otherwise a consent prompt is returned.
func (s *Server) Authorize(ctx context.Context, params url.Values) (*AuthorizeResult, error) {
	req, err := ParseGrantRequest(params)
	if err != nil {
		return nil, err
	}

	s.resetMu.RLock()
	defer s.resetMu.RUnlock()

	if err := s.checkClient(ctx, req.ClientID); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordAuthorizationStarted(ctx, req.ClientID)
	}

	unauthorised := s.ledger.UnauthorisedScopes(ctx, req.ClientID, req.Scopes)
	if len(unauthorised) > 0 {
		descriptions := make([]string, len(unauthorised))
		for i, scope := range unauthorised {
			descriptions[i] = s.registry.ScopeDescription(scope)
		}

		if s.Auditor != nil {
			s.Auditor.LogConsentPrompted(providers.UsernameFromContext(ctx), req.ClientID, unauthorised)
		}
		if s.metrics != nil {
			s.metrics.RecordConsentPrompted(ctx, req.ClientID)
		}

		return &AuthorizeResult{Consent: &ConsentPrompt{
			ClientID:          req.ClientID,
			ClientName:        s.registry.ClientName(req.ClientID),
			Scopes:            unauthorised,
			ScopeDescriptions: descriptions,
			Query:             replayQuery(req),
		}}, nil
	}

	redirectURL, err := s.issueGrant(ctx, req)
	if err != nil {
		return nil, err
	}
	return &AuthorizeResult{RedirectURL: redirectURL}, nil
}

// ApproveAuth applies the resource owner's answer to a consent prompt.
// Approval records consent for every scope not yet approved and issues a
// grant. Any answer other than "Yes" returns the access_denied redirect URL
// together with ErrConsentDenied and leaves the consent ledger unchanged.
func (s *Server) ApproveAuth(ctx context.Context, params url.Values) (string, error) {
	req, err := ParseGrantRequest(params)
	if err != nil {
		return "", err
	}

	s.resetMu.RLock()
	defer s.resetMu.RUnlock()

	if err := s.checkClient(ctx, req.ClientID); err != nil {
		return "", err
	}

	user := providers.UsernameFromContext(ctx)
	approved := params.Get(ParamApproved) == ApprovedYes
	if s.metrics != nil {
		s.metrics.RecordConsentDecision(ctx, req.ClientID, approved)
	}

	if !approved {
		if s.Auditor != nil {
			s.Auditor.LogConsentDecision(user, req.ClientID, false, req.Scopes)
		}
		q := url.Values{ParamError: {ErrorCodeAccessDenied}}
		if req.State != "" {
			q.Set(ParamState, req.State)
		}
		return appendQuery(req.RedirectURI, q), ErrConsentDenied
	}

	unauthorised := s.ledger.UnauthorisedScopes(ctx, req.ClientID, req.Scopes)
	s.ledger.GrantScopes(ctx, req.ClientID, unauthorised)
	if s.Auditor != nil {
		s.Auditor.LogConsentDecision(user, req.ClientID, true, unauthorised)
	}

	return s.issueGrant(ctx, req)
}

// issueGrant stores req under a fresh code and returns the redirect URL
// carrying it. Callers hold resetMu.
func (s *Server) issueGrant(ctx context.Context, req *storage.GrantRequest) (string, error) {
	code := s.fountain.NextGrantCode()
	if err := s.grants.PutGrant(ctx, code, req); err != nil {
		return "", fmt.Errorf("failed to store grant: %w", err)
	}

	s.Logger.Debug("Issued grant",
		"client_id", req.ClientID,
		"scope", req.Scope,
		"code_prefix", util.SafeTruncate(code, codeLogLength))
	if s.Auditor != nil {
		s.Auditor.LogGrantIssued(providers.UsernameFromContext(ctx), req.ClientID, req.Scope)
	}
	if s.metrics != nil {
		s.metrics.RecordGrantIssued(ctx, req.ClientID)
	}

	q := url.Values{ParamCode: {code}}
	if req.State != "" {
		q.Set(ParamState, req.State)
	}
	return appendQuery(req.RedirectURI, q), nil
}

// Token exchanges a grant code for an access token. Protocol failures are
// returned as *TokenError. The granted scope is returned alongside the token.
//
// The grant is taken before the request is checked against it, so a code
// presented with the wrong client, redirect URI or grant type is spent.
func (s *Server) Token(ctx context.Context, params url.Values, clientIP string) (*oauth2.Token, string, error) {
	req, err := ParseAccessRequest(params)
	if err != nil {
		return nil, "", s.rejectToken(ctx, "", clientIP, newTokenError(ErrorCodeInvalidRequest, err.Error(), err))
	}

	s.resetMu.RLock()
	defer s.resetMu.RUnlock()

	grant, err := s.grants.TakeGrant(ctx, req.Code)
	if err != nil {
		if !errors.Is(err, storage.ErrGrantNotFound) {
			return nil, "", fmt.Errorf("failed to take grant: %w", err)
		}
		s.Logger.Warn("Token exchange rejected",
			"client_id", req.ClientID,
			"reason", "grant_not_found",
			"code_prefix", util.SafeTruncate(req.Code, codeLogLength))
		return nil, "", s.rejectToken(ctx, req.ClientID, clientIP,
			newTokenError(ErrorCodeInvalidGrant, ErrGrantNotFound.Error(), ErrGrantNotFound))
	}

	if req.ClientID != grant.ClientID {
		s.Logger.Warn("Token exchange rejected",
			"reason", "client_id_mismatch",
			"client_id", req.ClientID,
			"grant_client_id", grant.ClientID)
		return nil, "", s.rejectToken(ctx, req.ClientID, clientIP,
			newTokenError(ErrorCodeInvalidClient, ErrClientMismatch.Error(), ErrClientMismatch))
	}

	if req.RedirectURI != grant.RedirectURI {
		s.Logger.Warn("Token exchange rejected",
			"reason", "redirect_uri_mismatch",
			"client_id", req.ClientID,
			"redirect_uri", req.RedirectURI,
			"grant_redirect_uri", grant.RedirectURI)
		return nil, "", s.rejectToken(ctx, req.ClientID, clientIP,
			newTokenError(ErrorCodeInvalidGrant, ErrRedirectMismatch.Error(), ErrRedirectMismatch))
	}

	if req.GrantType != GrantTypeAuthorizationCode {
		s.Logger.Warn("Token exchange rejected",
			"reason", "unsupported_grant_type",
			"client_id", req.ClientID,
			"grant_type", req.GrantType)
		return nil, "", s.rejectToken(ctx, req.ClientID, clientIP,
			newTokenError(ErrorCodeUnsupportedGrantType,
				ParameterMismatch(ParamGrantType, GrantTypeAuthorizationCode).Error(),
				ErrUnsupportedGrantType))
	}

	accessToken := s.fountain.NextAccessToken()
	record := &storage.AccessToken{ClientID: grant.ClientID, Scope: grant.Scope}
	if err := s.tokens.PutAccessToken(ctx, accessToken, record); err != nil {
		return nil, "", fmt.Errorf("failed to store access token: %w", err)
	}

	ttl := s.tokens.TokenTTL()
	token := &oauth2.Token{
		AccessToken: accessToken,
		TokenType:   tokenTypeBearer,
		ExpiresIn:   int64(ttl / time.Second),
		Expiry:      time.Now().Add(ttl),
	}

	if s.Auditor != nil {
		s.Auditor.LogTokenIssued(grant.ClientID, clientIP, grant.Scope)
	}
	if s.metrics != nil {
		s.metrics.RecordCodeExchange(ctx, grant.ClientID)
	}

	return token, grant.Scope, nil
}

func (s *Server) rejectToken(ctx context.Context, clientID, clientIP string, err *TokenError) *TokenError {
	if s.Auditor != nil {
		s.Auditor.LogTokenExchangeRejected(clientID, clientIP, err.Code+": "+err.Err.Error())
	}
	if s.metrics != nil {
		s.metrics.RecordTokenExchangeFailed(ctx, err.Code)
	}
	return err
}

// Reset forgets all consent and all outstanding grants. It waits for
// in-flight protocol operations and blocks new ones until it is done.
func (s *Server) Reset(ctx context.Context) {
	s.resetMu.Lock()
	defer s.resetMu.Unlock()

	s.resetter.Reset(ctx)

	s.Logger.Info("Reset consent and grant state")
	if s.Auditor != nil {
		s.Auditor.LogStateReset(providers.UsernameFromContext(ctx))
	}
	if s.metrics != nil {
		s.metrics.RecordStateReset(ctx)
	}
}

func (s *Server) checkClient(ctx context.Context, clientID string) error {
	if s.registry.IsKnownClient(clientID) {
		return nil
	}
	s.Logger.Warn("Rejected request for unknown client", "client_id", clientID)
	if s.Auditor != nil {
		s.Auditor.LogUnknownClient(providers.UsernameFromContext(ctx), clientID)
	}
	return &UnknownClientError{ClientID: clientID}
}

// replayQuery rebuilds the validated request parameters for the consent form
func replayQuery(req *storage.GrantRequest) url.Values {
	q := url.Values{
		ParamClientID:     {req.ClientID},
		ParamRedirectURI:  {req.RedirectURI},
		ParamScope:        {req.Scope},
		ParamResponseType: {req.ResponseType},
	}
	if req.State != "" {
		q.Set(ParamState, req.State)
	}
	return q
}
