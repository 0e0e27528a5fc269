// Package broker implements the Authorization-Code Broker: it mediates an
// OAuth 2.1 authorization_code flow between a dynamically registered MCP
// client and the upstream IdP, maintaining two short-lived, concurrency-safe
// record stores (pending transactions and redeemable codes) the way the
// reference module's jwks.Cache maintains its key cache.
package broker

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/mcpauth/gateway/internal/oauth/internal/idgen"
	"github.com/mcpauth/gateway/internal/oauth/internal/idp"
	"github.com/mcpauth/gateway/internal/oauth/oautherr"
	oauthtypes "github.com/mcpauth/gateway/pkg/oauth"
)

// ClientRegistry is the subset of registry.Registry the broker needs: client
// lookup and redirect_uri validation for clients the Dynamic Client Registry
// issued.
type ClientRegistry interface {
	ValidateRedirectURI(clientID, redirectURI string) bool
}

// IdPClient is the subset of idp.Client the broker needs to exchange codes
// and refresh tokens with the upstream IdP.
type IdPClient interface {
	ExchangeCode(ctx context.Context, code, redirectURI, codeVerifier string) (*idp.TokenResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*idp.TokenResponse, error)
}

// AuthTransaction represents a pending authorization request while the user
// is at the IdP, keyed by proxy_state.
type AuthTransaction struct {
	ProxyState                string
	ClientID                  string
	ClientRedirectURI         string
	ClientState               string
	ClientCodeChallenge       string
	ClientCodeChallengeMethod string
	ProxyCodeVerifier         string
	RequestedScope            string
	CreatedAt                 time.Time
}

func (t *AuthTransaction) expired(ttl time.Duration, now time.Time) bool {
	return now.Sub(t.CreatedAt) > ttl
}

// AuthorizationCodeRecord represents a one-shot proxy code redeemable at
// /token, keyed by proxy_code.
type AuthorizationCodeRecord struct {
	ProxyCode                 string
	AccessToken               string
	RefreshToken              string
	ExpiresIn                 int64
	Scope                     string
	ClientCodeChallenge       string
	ClientCodeChallengeMethod string
	CreatedAt                 time.Time
}

func (r *AuthorizationCodeRecord) expired(ttl time.Duration, now time.Time) bool {
	return now.Sub(r.CreatedAt) > ttl
}

// TokenResult is the token response the broker hands back to the MCP
// client, mirroring RFC 6749 Section 5.1's success shape.
type TokenResult struct {
	AccessToken  string
	TokenType    string
	ExpiresIn    int64
	RefreshToken string
	Scope        string
}

// AuthorizeRequest carries the query parameters of an incoming /authorize
// request.
type AuthorizeRequest struct {
	ClientID            string
	RedirectURI         string
	Scope               string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
	ResponseType        string
}

// CallbackRequest carries the query parameters of an incoming
// /auth/callback request from the IdP.
type CallbackRequest struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// TokenRequest carries the form parameters of an incoming /token request.
type TokenRequest struct {
	GrantType    string
	Code         string
	CodeVerifier string
	RefreshToken string
}

// Broker implements the authorization_code and refresh_token grants and
// owns the transaction/code stores for the lifetime of the process.
type Broker struct {
	registry ClientRegistry
	idp      IdPClient

	gatewayClientID  string
	callbackURI      string
	gatewayScope     string
	companionScopes  []string
	authorizationURL string

	transactionTTL time.Duration
	codeTTL        time.Duration

	mu           sync.Mutex
	transactions map[string]*AuthTransaction
	codes        map[string]*AuthorizationCodeRecord

	stop chan struct{}
	done chan struct{}
}

// Config bundles the broker's construction-time dependencies.
type Config struct {
	Registry              ClientRegistry
	IdPClient             IdPClient
	GatewayClientID       string
	CallbackURI           string
	AuthorizationEndpoint string
	GatewayScope          string
	CompanionScopes       []string
	TransactionTTL        time.Duration
	CodeTTL               time.Duration
	SweepInterval         time.Duration
}

// New creates a Broker and starts its background sweeper goroutine. Call
// Close to stop the sweeper during graceful shutdown.
func New(cfg Config) *Broker {
	if cfg.Registry == nil {
		panic("broker: nil ClientRegistry")
	}
	if cfg.IdPClient == nil {
		panic("broker: nil IdPClient")
	}

	b := &Broker{
		registry:         cfg.Registry,
		idp:              cfg.IdPClient,
		gatewayClientID:  cfg.GatewayClientID,
		callbackURI:      cfg.CallbackURI,
		gatewayScope:     cfg.GatewayScope,
		companionScopes:  cfg.CompanionScopes,
		authorizationURL: cfg.AuthorizationEndpoint,
		transactionTTL:   cfg.TransactionTTL,
		codeTTL:          cfg.CodeTTL,
		transactions:     make(map[string]*AuthTransaction),
		codes:            make(map[string]*AuthorizationCodeRecord),
		stop:             make(chan struct{}),
		done:             make(chan struct{}),
	}

	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go b.sweepLoop(interval)

	return b
}

// Close stops the sweeper goroutine. Safe to call once during shutdown.
func (b *Broker) Close() {
	close(b.stop)
	<-b.done
}

func (b *Broker) sweepLoop(interval time.Duration) {
	defer close(b.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.sweep()
		case <-b.stop:
			return
		}
	}
}

func (b *Broker) sweep() {
	now := time.Now()
	b.mu.Lock()
	defer b.mu.Unlock()
	for state, txn := range b.transactions {
		if txn.expired(b.transactionTTL, now) {
			delete(b.transactions, state)
		}
	}
	for code, rec := range b.codes {
		if rec.expired(b.codeTTL, now) {
			delete(b.codes, code)
		}
	}
}

// Authorize validates an incoming /authorize request, mints a fresh
// gateway-side PKCE pair and proxy_state, and returns the URL the caller
// should redirect the user agent to.
func (b *Broker) Authorize(req AuthorizeRequest) (string, error) {
	if req.ResponseType != oauthtypes.ResponseTypeCode {
		return "", oautherr.NewUnsupportedResponseTypeError("Authorize", req.ResponseType)
	}
	if req.ClientID == "" || req.RedirectURI == "" {
		return "", oautherr.NewInvalidRequestError("Authorize", "client_id and redirect_uri are required")
	}
	if !b.registry.ValidateRedirectURI(req.ClientID, req.RedirectURI) {
		return "", oautherr.NewInvalidRequestError("Authorize", "redirect_uri not registered for client_id")
	}

	proxyState, err := idgen.State()
	if err != nil {
		return "", oautherr.NewInvalidRequestError("Authorize", fmt.Sprintf("failed to generate state: %v", err))
	}
	proxyVerifier, err := idgen.CodeVerifier()
	if err != nil {
		return "", oautherr.NewInvalidRequestError("Authorize", fmt.Sprintf("failed to generate code_verifier: %v", err))
	}
	proxyChallenge := idgen.S256Challenge(proxyVerifier)

	txn := &AuthTransaction{
		ProxyState:                proxyState,
		ClientID:                  req.ClientID,
		ClientRedirectURI:         req.RedirectURI,
		ClientState:               req.State,
		ClientCodeChallenge:       req.CodeChallenge,
		ClientCodeChallengeMethod: req.CodeChallengeMethod,
		ProxyCodeVerifier:         proxyVerifier,
		RequestedScope:            req.Scope,
		CreatedAt:                 time.Now(),
	}

	b.mu.Lock()
	b.transactions[proxyState] = txn
	b.mu.Unlock()

	return b.buildIdPAuthorizeURL(proxyState, proxyChallenge), nil
}

func (b *Broker) buildIdPAuthorizeURL(proxyState, proxyChallenge string) string {
	scopes := b.gatewayScope
	for _, s := range b.companionScopes {
		scopes += " " + s
	}

	q := url.Values{
		"client_id":             {b.gatewayClientID},
		"response_type":         {oauthtypes.ResponseTypeCode},
		"redirect_uri":          {b.callbackURI},
		"scope":                 {scopes},
		"state":                 {proxyState},
		"code_challenge":        {proxyChallenge},
		"code_challenge_method": {oauthtypes.CodeChallengeMethodS256},
	}

	return b.authorizationURL + "?" + q.Encode()
}

// CallbackResult describes how a /auth/callback request resolved.
type CallbackResult struct {
	RedirectURI string
}

// Callback consumes an IdP redirect, exchanges the upstream code for
// tokens, mints a proxy code for the client, and returns the redirect
// target the transport layer should send the user agent to.
func (b *Broker) Callback(ctx context.Context, req CallbackRequest) (*CallbackResult, error) {
	if req.Error != "" {
		return nil, oautherr.NewIdPError("Callback", req.Error, req.ErrorDescription)
	}
	if req.State == "" {
		return nil, oautherr.NewInvalidStateError("Callback", req.State)
	}

	txn, ok := b.takeTransaction(req.State)
	if !ok {
		return nil, oautherr.NewInvalidStateError("Callback", req.State)
	}

	tokenResp, err := b.idp.ExchangeCode(ctx, req.Code, b.callbackURI, txn.ProxyCodeVerifier)
	if err != nil {
		return nil, err
	}

	proxyCode, err := idgen.AuthCode()
	if err != nil {
		return nil, oautherr.NewInvalidRequestError("Callback", fmt.Sprintf("failed to generate proxy code: %v", err))
	}

	rec := &AuthorizationCodeRecord{
		ProxyCode:                 proxyCode,
		AccessToken:               tokenResp.AccessToken,
		RefreshToken:              tokenResp.RefreshToken,
		ExpiresIn:                 tokenResp.ExpiresIn,
		Scope:                     tokenResp.Scope,
		ClientCodeChallenge:       txn.ClientCodeChallenge,
		ClientCodeChallengeMethod: txn.ClientCodeChallengeMethod,
		CreatedAt:                 time.Now(),
	}

	b.mu.Lock()
	b.codes[proxyCode] = rec
	b.mu.Unlock()

	redirectURL, err := url.Parse(txn.ClientRedirectURI)
	if err != nil {
		return nil, oautherr.NewInvalidRequestError("Callback", "client_redirect_uri is invalid")
	}
	q := redirectURL.Query()
	q.Set("code", proxyCode)
	if txn.ClientState != "" {
		q.Set("state", txn.ClientState)
	}
	redirectURL.RawQuery = q.Encode()

	return &CallbackResult{RedirectURI: redirectURL.String()}, nil
}

// takeTransaction atomically looks up and removes a transaction, enforcing
// both single-use and TTL expiry in one critical section.
func (b *Broker) takeTransaction(proxyState string) (*AuthTransaction, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	txn, ok := b.transactions[proxyState]
	if !ok {
		return nil, false
	}
	delete(b.transactions, proxyState)

	if txn.expired(b.transactionTTL, time.Now()) {
		return nil, false
	}
	return txn, true
}

// takeCode atomically looks up and removes a code record.
func (b *Broker) takeCode(proxyCode string) (*AuthorizationCodeRecord, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.codes[proxyCode]
	if !ok {
		return nil, false
	}
	delete(b.codes, proxyCode)

	if rec.expired(b.codeTTL, time.Now()) {
		return nil, false
	}
	return rec, true
}

// Token handles a /token request for the authorization_code and
// refresh_token grants.
func (b *Broker) Token(ctx context.Context, req TokenRequest) (*TokenResult, error) {
	switch req.GrantType {
	case oauthtypes.GrantTypeAuthorizationCode:
		return b.tokenFromCode(req)
	case oauthtypes.GrantTypeRefreshToken:
		return b.tokenFromRefresh(ctx, req)
	default:
		return nil, oautherr.NewUnsupportedGrantTypeError("Token", req.GrantType)
	}
}

func (b *Broker) tokenFromCode(req TokenRequest) (*TokenResult, error) {
	if req.Code == "" {
		return nil, oautherr.NewInvalidGrantError("Token", "code is required")
	}

	rec, ok := b.takeCode(req.Code)
	if !ok {
		return nil, oautherr.NewInvalidGrantError("Token", "code is invalid, expired, or already used")
	}

	if rec.ClientCodeChallenge != "" {
		if !verifyPKCE(rec.ClientCodeChallengeMethod, rec.ClientCodeChallenge, req.CodeVerifier) {
			return nil, oautherr.NewInvalidGrantError("Token", "PKCE verification failed")
		}
	}

	return &TokenResult{
		AccessToken:  rec.AccessToken,
		TokenType:    oauthtypes.TokenTypeBearer,
		ExpiresIn:    rec.ExpiresIn,
		RefreshToken: rec.RefreshToken,
		Scope:        rec.Scope,
	}, nil
}

func verifyPKCE(method, challenge, verifier string) bool {
	// RFC 7636 defaults an omitted code_challenge_method to "plain".
	if method == "" {
		method = oauthtypes.CodeChallengeMethodPlain
	}
	switch method {
	case oauthtypes.CodeChallengeMethodS256:
		return idgen.S256Challenge(verifier) == challenge
	case oauthtypes.CodeChallengeMethodPlain:
		return verifier == challenge
	default:
		return false
	}
}

func (b *Broker) tokenFromRefresh(ctx context.Context, req TokenRequest) (*TokenResult, error) {
	if req.RefreshToken == "" {
		return nil, oautherr.NewInvalidRequestError("Token", "refresh_token is required")
	}

	tokenResp, err := b.idp.RefreshToken(ctx, req.RefreshToken)
	if err != nil {
		return nil, err
	}

	return &TokenResult{
		AccessToken:  tokenResp.AccessToken,
		TokenType:    oauthtypes.TokenTypeBearer,
		ExpiresIn:    tokenResp.ExpiresIn,
		RefreshToken: tokenResp.RefreshToken,
		Scope:        tokenResp.Scope,
	}, nil
}

