package oauth

import (
	"context"
	"fmt"
	"time"

	"github.com/mcpauth/gateway/internal/oauth/internal/broker"
	"github.com/mcpauth/gateway/internal/oauth/internal/delegation"
	"github.com/mcpauth/gateway/internal/oauth/internal/idp"
	"github.com/mcpauth/gateway/internal/oauth/internal/jwks"
	"github.com/mcpauth/gateway/internal/oauth/internal/metadata"
	"github.com/mcpauth/gateway/internal/oauth/internal/registry"
	"github.com/mcpauth/gateway/internal/oauth/internal/token"
)

// tokenValidatorAdapter adapts token.Validator to oauth.TokenValidator interface.
type tokenValidatorAdapter struct {
	validator *token.Validator
}

func (a *tokenValidatorAdapter) ValidateToken(ctx context.Context, tokenString string) (*TokenClaims, error) {
	claims, err := a.validator.ValidateToken(ctx, tokenString)
	if err != nil {
		return nil, err
	}
	// Convert token.TokenClaims to oauth.TokenClaims
	return &TokenClaims{
		Subject:           claims.Subject,
		Issuer:            claims.Issuer,
		Audience:          claims.Audience,
		Scopes:            claims.Scopes,
		ExpiresAt:         claims.ExpiresAt,
		IssuedAt:          claims.IssuedAt,
		JTI:               claims.JTI,
		ObjectID:          claims.ObjectID,
		TenantID:          claims.TenantID,
		Name:              claims.Name,
		PreferredUsername: claims.PreferredUsername,
		RawToken:          claims.RawToken,
	}, nil
}

// metadataServiceAdapter adapts metadata.Service to oauth.MetadataService interface.
type metadataServiceAdapter struct {
	service *metadata.Service
}

func (a *metadataServiceAdapter) GetMetadata(ctx context.Context) (*ProtectedResourceMetadata, error) {
	meta, err := a.service.GetMetadata(ctx)
	if err != nil {
		return nil, err
	}
	// Convert metadata.ProtectedResourceMetadata to oauth.ProtectedResourceMetadata
	return &ProtectedResourceMetadata{
		Resource:               meta.Resource,
		AuthorizationServers:   meta.AuthorizationServers,
		ScopesSupported:        meta.ScopesSupported,
		BearerMethodsSupported: meta.BearerMethodsSupported,
	}, nil
}

func (a *metadataServiceAdapter) GetMetadataURL() string {
	return a.service.GetMetadataURL()
}

// GetAuthorizationServerMetadata returns the RFC 8414 authorization server
// metadata document.
func (a *metadataServiceAdapter) GetAuthorizationServerMetadata(ctx context.Context) (*AuthorizationServerMetadata, error) {
	meta, err := a.service.GetAuthorizationServerMetadata(ctx)
	if err != nil {
		return nil, err
	}
	return &AuthorizationServerMetadata{
		Issuer:                        meta.Issuer,
		AuthorizationEndpoint:         meta.AuthorizationEndpoint,
		TokenEndpoint:                 meta.TokenEndpoint,
		RegistrationEndpoint:          meta.RegistrationEndpoint,
		RevocationEndpoint:            meta.RevocationEndpoint,
		ResponseTypesSupported:        meta.ResponseTypesSupported,
		GrantTypesSupported:           meta.GrantTypesSupported,
		TokenEndpointAuthMethods:      meta.TokenEndpointAuthMethods,
		CodeChallengeMethodsSupported: meta.CodeChallengeMethodsSupported,
	}, nil
}

// GetAuthorizationServerMetadataURL returns the canonical URL where the AS
// metadata document is served.
func (a *metadataServiceAdapter) GetAuthorizationServerMetadataURL() string {
	return a.service.GetAuthorizationServerMetadataURL()
}

// clientRegistryAdapter adapts registry.Registry to the oauth.ClientRegistry interface.
type clientRegistryAdapter struct {
	registry *registry.Registry
}

func (a *clientRegistryAdapter) Register(req ClientRegistrationRequest) (*ClientRegistration, error) {
	reg, err := a.registry.Register(registry.Request{
		ClientName:   req.ClientName,
		RedirectURIs: req.RedirectURIs,
		GrantTypes:   req.GrantTypes,
		Scope:        req.Scope,
	})
	if err != nil {
		return nil, err
	}
	return &ClientRegistration{
		ClientID:                reg.ClientID,
		ClientName:              reg.ClientName,
		RedirectURIs:            reg.RedirectURIs,
		GrantTypes:              reg.GrantTypes,
		ResponseTypes:           reg.ResponseTypes,
		TokenEndpointAuthMethod: reg.TokenEndpointAuthMethod,
		Scope:                   reg.Scope,
		ClientIDIssuedAt:        reg.ClientIDIssuedAt,
	}, nil
}

func (a *clientRegistryAdapter) ValidateRedirectURI(clientID, redirectURI string) bool {
	return a.registry.ValidateRedirectURI(clientID, redirectURI)
}

// authorizationBrokerAdapter adapts broker.Broker to the oauth.AuthorizationBroker interface.
type authorizationBrokerAdapter struct {
	broker *broker.Broker
}

func (a *authorizationBrokerAdapter) Authorize(req AuthorizeRequest) (string, error) {
	return a.broker.Authorize(broker.AuthorizeRequest{
		ClientID:            req.ClientID,
		RedirectURI:         req.RedirectURI,
		Scope:               req.Scope,
		State:               req.State,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		ResponseType:        req.ResponseType,
	})
}

func (a *authorizationBrokerAdapter) Callback(ctx context.Context, req CallbackRequest) (*CallbackResult, error) {
	result, err := a.broker.Callback(ctx, broker.CallbackRequest{
		Code:             req.Code,
		State:            req.State,
		Error:            req.Error,
		ErrorDescription: req.ErrorDescription,
	})
	if err != nil {
		return nil, err
	}
	return &CallbackResult{RedirectURI: result.RedirectURI}, nil
}

func (a *authorizationBrokerAdapter) Token(ctx context.Context, req TokenRequest) (*TokenResult, error) {
	result, err := a.broker.Token(ctx, broker.TokenRequest{
		GrantType:    req.GrantType,
		Code:         req.Code,
		CodeVerifier: req.CodeVerifier,
		RefreshToken: req.RefreshToken,
	})
	if err != nil {
		return nil, err
	}
	return &TokenResult{
		AccessToken:  result.AccessToken,
		TokenType:    result.TokenType,
		ExpiresIn:    result.ExpiresIn,
		RefreshToken: result.RefreshToken,
		Scope:        result.Scope,
	}, nil
}

func (a *authorizationBrokerAdapter) Close() {
	a.broker.Close()
}

// delegatorAdapter adapts delegation.Helper to the oauth.Delegator interface.
type delegatorAdapter struct {
	helper *delegation.Helper
}

func (a *delegatorAdapter) ExchangeOnBehalfOf(ctx context.Context, identity UserIdentity, requestedScope string) (*DelegationResult, error) {
	result, err := a.helper.ExchangeOnBehalfOf(ctx, delegation.Identity{
		RawToken: identity.RawToken,
		ObjectID: identity.ObjectID,
	}, requestedScope)
	if err != nil {
		return nil, err
	}
	return &DelegationResult{
		AccessToken: result.AccessToken,
		ExpiresIn:   result.ExpiresIn,
		Scope:       result.Scope,
	}, nil
}

// scopeCheckerAdapter adapts token.ScopeChecker to oauth.ScopeChecker interface.
type scopeCheckerAdapter struct {
	checker *token.ScopeChecker
}

func (a *scopeCheckerAdapter) RequireScopes(claims *TokenClaims, required ...string) error {
	if claims == nil {
		return fmt.Errorf("claims cannot be nil")
	}
	// Convert oauth.TokenClaims to token.TokenClaims
	tokenClaims := &token.TokenClaims{
		Subject:   claims.Subject,
		Issuer:    claims.Issuer,
		Audience:  claims.Audience,
		Scopes:    claims.Scopes,
		ExpiresAt: claims.ExpiresAt,
		IssuedAt:  claims.IssuedAt,
		JTI:       claims.JTI,
	}
	return a.checker.RequireScopes(tokenClaims, required...)
}

func (a *scopeCheckerAdapter) RequireAnyScope(claims *TokenClaims, scopes ...string) error {
	if claims == nil {
		return fmt.Errorf("claims cannot be nil")
	}
	// Convert oauth.TokenClaims to token.TokenClaims
	tokenClaims := &token.TokenClaims{
		Subject:   claims.Subject,
		Issuer:    claims.Issuer,
		Audience:  claims.Audience,
		Scopes:    claims.Scopes,
		ExpiresAt: claims.ExpiresAt,
		IssuedAt:  claims.IssuedAt,
		JTI:       claims.JTI,
	}
	return a.checker.RequireAnyScope(tokenClaims, scopes...)
}

// Config holds the configuration needed to construct OAuth services.
type Config struct {
	// BaseURL is the canonical base URL for this protected resource.
	BaseURL string

	// AuthorizationServers is a list of trusted authorization server URLs.
	AuthorizationServers []string

	// Issuer is the expected "iss" claim on access tokens, i.e. the
	// configured IdP's issuer identifier.
	Issuer string

	// Audience is the expected audience (aud) claim in access tokens.
	Audience string

	// ScopesSupported is a list of OAuth scopes this server supports.
	ScopesSupported []string

	// JWKSCacheTTL is how long to cache JWKS keys.
	JWKSCacheTTL time.Duration

	// JWKSCacheCap bounds the number of key IDs the JWKS cache holds at
	// once; 0 means unbounded.
	JWKSCacheCap int

	// JWKSFetchRateLimit caps outbound JWKS fetches per minute to the IdP;
	// 0 means unlimited.
	JWKSFetchRateLimit int

	// ClockSkew is the allowed clock skew for token expiration validation.
	ClockSkew time.Duration

	// IdP settings, used by the Authorization-Code Broker, Delegation
	// Helper, and their shared idp.Client.
	IDPClientID           string
	IDPClientSecret       string
	IDPCompanionScopes    []string
	GatewayAPIScope       string
	AuthorizationEndpoint string
	TokenEndpoint         string
	IdPHTTPTimeout        time.Duration

	// CallbackURI is the gateway's own /auth/callback URL, registered with
	// the IdP as this confidential client's redirect_uri.
	CallbackURI string

	// Proxy settings for the Authorization-Code Broker.
	ProxyTransactionTTL time.Duration
	ProxyCodeTTL        time.Duration
	SweepInterval       time.Duration
}

// NewJWKSClient creates a new JWKS client with the provided configuration.
// The client will fetch JWKS from the configured authorization servers,
// cache keys for the specified TTL bounded to JWKSCacheCap entries, and
// coalesce/rate-limit outbound fetches per JWKSFetchRateLimit.
func NewJWKSClient(cfg *Config) JWKSClient {
	return jwks.NewClientWithOptions(cfg.AuthorizationServers, cfg.JWKSCacheTTL, cfg.JWKSCacheCap, cfg.JWKSFetchRateLimit)
}

// NewTokenValidator creates a new token validator with the provided configuration.
// The validator uses the JWKS client to verify token signatures and validates
// the issuer, audience, expiration, and other claims per OAuth 2.1.
func NewTokenValidator(cfg *Config, jwksClient JWKSClient) TokenValidator {
	validator := token.NewValidator(jwksClient, cfg.Issuer, cfg.Audience, cfg.ClockSkew)
	return &tokenValidatorAdapter{validator: validator}
}

// NewMetadataService creates a new protected resource metadata service.
// The service provides RFC 9728 compliant metadata at the well-known endpoint.
func NewMetadataService(cfg *Config) MetadataService {
	service := metadata.NewService(
		cfg.BaseURL,
		cfg.AuthorizationServers,
		cfg.ScopesSupported,
	)
	return &metadataServiceAdapter{service: service}
}

// NewScopeChecker creates a new scope checker.
// The checker validates token scopes against required scopes for operations.
func NewScopeChecker() ScopeChecker {
	checker := token.NewScopeChecker()
	return &scopeCheckerAdapter{checker: checker}
}

// newIdPClient creates the shared IdP token-endpoint client used by both the
// Authorization-Code Broker and the Delegation Helper.
func newIdPClient(cfg *Config) *idp.Client {
	return idp.NewClient(cfg.TokenEndpoint, cfg.IDPClientID, cfg.IDPClientSecret, cfg.IdPHTTPTimeout)
}

// NewClientRegistry creates a new RFC 7591 dynamic client registry.
func NewClientRegistry() ClientRegistry {
	return &clientRegistryAdapter{registry: registry.New()}
}

// NewAuthorizationBroker creates a new Authorization-Code Broker bound to
// the given client registry and a fresh IdP client.
func NewAuthorizationBroker(cfg *Config, clientRegistry ClientRegistry) AuthorizationBroker {
	reg, ok := clientRegistry.(*clientRegistryAdapter)
	if !ok {
		panic("oauth: NewAuthorizationBroker requires a registry created by NewClientRegistry")
	}
	b := broker.New(broker.Config{
		Registry:              reg.registry,
		IdPClient:             newIdPClient(cfg),
		GatewayClientID:       cfg.IDPClientID,
		CallbackURI:           cfg.CallbackURI,
		AuthorizationEndpoint: cfg.AuthorizationEndpoint,
		GatewayScope:          cfg.GatewayAPIScope,
		CompanionScopes:       cfg.IDPCompanionScopes,
		TransactionTTL:        cfg.ProxyTransactionTTL,
		CodeTTL:               cfg.ProxyCodeTTL,
		SweepInterval:         cfg.SweepInterval,
	})
	return &authorizationBrokerAdapter{broker: b}
}

// NewDelegator creates a new Delegation Helper bound to a fresh IdP client.
func NewDelegator(cfg *Config) Delegator {
	return &delegatorAdapter{helper: delegation.New(newIdPClient(cfg))}
}

// NewOAuthServices creates all OAuth services from the configuration.
// This is a convenience function for dependency injection.
func NewOAuthServices(cfg *Config) (TokenValidator, MetadataService, ScopeChecker, JWKSClient, ClientRegistry, AuthorizationBroker, Delegator) {
	jwksClient := NewJWKSClient(cfg)
	tokenValidator := NewTokenValidator(cfg, jwksClient)
	metadataService := NewMetadataService(cfg)
	scopeChecker := NewScopeChecker()
	clientRegistry := NewClientRegistry()
	authBroker := NewAuthorizationBroker(cfg, clientRegistry)
	delegator := NewDelegator(cfg)

	return tokenValidator, metadataService, scopeChecker, jwksClient, clientRegistry, authBroker, delegator
}
