// Package oauth provides OAuth 2.1 token validation and protected resource
// metadata services for the MCP server acting as a Resource Server.
package oauth

import (
	"context"
	"time"
)

// TokenValidator validates OAuth 2.1 access tokens.
// Implementations must verify token signatures, expiration, audience,
// and other security-critical claims per OAuth 2.1 Section 5.2.
type TokenValidator interface {
	// ValidateToken validates an access token and returns the parsed claims.
	// It verifies the token signature using JWKS from the issuing authorization server,
	// checks expiration with clock skew tolerance, validates the audience matches
	// this resource server, and ensures the token is valid per OAuth 2.1.
	//
	// Returns ErrUnauthorized from internal/errors if the token is invalid.
	ValidateToken(ctx context.Context, token string) (*TokenClaims, error)
}

// TokenClaims represents validated JWT claims from an access token.
// All fields are populated from the token after successful validation.
type TokenClaims struct {
	// Subject is the subject (sub) claim - typically the user identifier.
	Subject string

	// Issuer is the issuer (iss) claim - the authorization server that issued the token.
	Issuer string

	// Audience is the audience (aud) claim - the intended recipient(s) of the token.
	// For this resource server, must contain this server's canonical URI.
	Audience []string

	// Scopes is the list of OAuth scopes granted by this token.
	// Parsed from the "scp" claim, falling back to the "scope" claim
	// (space-separated string).
	Scopes []string

	// ExpiresAt is the expiration time (exp) claim.
	ExpiresAt time.Time

	// IssuedAt is the issued at (iat) claim.
	IssuedAt time.Time

	// JTI is the JWT ID (jti) claim - a unique identifier for this token.
	JTI string

	// ObjectID is Entra ID's "oid" claim - the stable per-tenant identifier
	// for the authenticated principal. Required; validation fails tokens
	// that omit it.
	ObjectID string

	// TenantID is Entra ID's "tid" claim - the directory tenant the token
	// was issued from.
	TenantID string

	// Name is the "name" claim, when present.
	Name string

	// PreferredUsername is the "preferred_username" claim, when present.
	PreferredUsername string

	// RawToken is the original bearer token string, carried forward so
	// callers (the Delegation Helper's OBO exchange) can present it as the
	// RFC 7523 assertion without the caller having to re-read the
	// Authorization header.
	RawToken string
}

// UserIdentity is the subset of TokenClaims relevant to identifying the
// caller, independent of the token's OAuth bookkeeping fields.
type UserIdentity struct {
	ObjectID          string
	TenantID          string
	Name              string
	PreferredUsername string
	Scopes            []string
	RawToken          string
}

// Identity projects TokenClaims down to the fields a downstream consumer
// (the Delegation Helper, request logging) needs, without exposing OAuth
// plumbing fields like audience or JTI.
func (c *TokenClaims) Identity() UserIdentity {
	if c == nil {
		return UserIdentity{}
	}
	return UserIdentity{
		ObjectID:          c.ObjectID,
		TenantID:          c.TenantID,
		Name:              c.Name,
		PreferredUsername: c.PreferredUsername,
		Scopes:            c.Scopes,
		RawToken:          c.RawToken,
	}
}

// HasScope returns true if the token has the specified scope.
func (c *TokenClaims) HasScope(scope string) bool {
	if c == nil {
		return false
	}
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// HasAnyScope returns true if the token has any of the specified scopes.
// Returns false if the token has none of the required scopes or if scopes is empty.
func (c *TokenClaims) HasAnyScope(scopes ...string) bool {
	if c == nil || len(scopes) == 0 {
		return false
	}
	for _, required := range scopes {
		if c.HasScope(required) {
			return true
		}
	}
	return false
}

// HasAllScopes returns true if the token has all specified scopes.
// Returns true if scopes is empty (vacuous truth).
func (c *TokenClaims) HasAllScopes(scopes ...string) bool {
	if c == nil {
		return len(scopes) == 0
	}
	for _, required := range scopes {
		if !c.HasScope(required) {
			return false
		}
	}
	return true
}

// MetadataService provides Protected Resource Metadata per RFC 9728.
// This metadata helps clients discover the authorization servers and
// supported scopes for this protected resource.
type MetadataService interface {
	// GetMetadata returns the protected resource metadata document.
	// The metadata includes authorization servers, supported scopes,
	// and other discovery information per RFC 9728.
	GetMetadata(ctx context.Context) (*ProtectedResourceMetadata, error)

	// GetMetadataURL returns the canonical URL where this metadata is served.
	// Typically: {baseURL}/.well-known/oauth-protected-resource
	GetMetadataURL() string

	// GetAuthorizationServerMetadata returns the RFC 8414 authorization
	// server metadata document for this gateway, which is itself the
	// authorization server the protected resource metadata points clients at.
	GetAuthorizationServerMetadata(ctx context.Context) (*AuthorizationServerMetadata, error)

	// GetAuthorizationServerMetadataURL returns the canonical URL where the
	// AS metadata document is served.
	// Typically: {baseURL}/.well-known/oauth-authorization-server
	GetAuthorizationServerMetadataURL() string
}

// AuthorizationServerMetadata represents OAuth 2.0 Authorization Server
// Metadata as defined in RFC 8414.
type AuthorizationServerMetadata struct {
	Issuer                        string   `json:"issuer"`
	AuthorizationEndpoint         string   `json:"authorization_endpoint"`
	TokenEndpoint                 string   `json:"token_endpoint"`
	RegistrationEndpoint          string   `json:"registration_endpoint"`
	RevocationEndpoint            string   `json:"revocation_endpoint"`
	ResponseTypesSupported        []string `json:"response_types_supported"`
	GrantTypesSupported           []string `json:"grant_types_supported"`
	TokenEndpointAuthMethods      []string `json:"token_endpoint_auth_methods_supported"`
	CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported"`
}

// ProtectedResourceMetadata represents the OAuth 2.0 Protected Resource
// Metadata as defined in RFC 9728. This metadata is served at the
// /.well-known/oauth-protected-resource endpoint to aid client discovery.
type ProtectedResourceMetadata struct {
	// Resource is the canonical URI for this protected resource.
	// This value must match the "aud" (audience) claim in access tokens.
	Resource string `json:"resource"`

	// AuthorizationServers is an array of authorization server URLs that can
	// issue tokens for this resource. At least one server must be listed.
	AuthorizationServers []string `json:"authorization_servers"`

	// ScopesSupported is an optional array of OAuth scope values supported
	// by this protected resource. Recommended for client discovery.
	ScopesSupported []string `json:"scopes_supported,omitempty"`

	// BearerMethodsSupported indicates supported methods for presenting
	// bearer tokens. OAuth 2.1 requires "header" (Authorization header only).
	BearerMethodsSupported []string `json:"bearer_methods_supported,omitempty"`
}

// JWKSClient fetches and caches JSON Web Key Sets (JWKS) from authorization servers.
// The client maintains an in-memory cache with TTL to minimize network requests
// while ensuring key rotation is respected.
type JWKSClient interface {
	// GetKey retrieves a public key for the given key ID (kid).
	// It first checks the cache, and if not found or expired, fetches
	// the JWKS from the authorization server.
	//
	// Returns the public key (typically *rsa.PublicKey or *ecdsa.PublicKey)
	// suitable for JWT signature verification.
	GetKey(ctx context.Context, keyID string) (any, error)

	// RefreshKeys forces a refresh of the JWKS cache from all configured
	// authorization servers. This is useful after receiving an "invalid_token"
	// error that might be due to key rotation.
	RefreshKeys(ctx context.Context) error
}

// ScopeChecker validates token scopes against required scopes.
// It provides methods for both "all required" and "any required" scope checks,
// returning appropriate OAuth errors per RFC 6750.
type ScopeChecker interface {
	// RequireScopes checks that the token has all of the specified scopes.
	// Returns an "insufficient_scope" error from internal/errors if any
	// required scope is missing.
	RequireScopes(claims *TokenClaims, required ...string) error

	// RequireAnyScope checks that the token has at least one of the specified scopes.
	// Returns an "insufficient_scope" error from internal/errors if none of
	// the scopes are present.
	RequireAnyScope(claims *TokenClaims, scopes ...string) error
}

// ClientRegistry is RFC 7591 Dynamic Client Registration: MCP clients
// register themselves with the gateway at runtime and receive a client_id
// they then use on the /authorize and /token endpoints.
type ClientRegistry interface {
	// Register validates and stores a new dynamic client registration,
	// minting a fresh client_id.
	Register(req ClientRegistrationRequest) (*ClientRegistration, error)

	// ValidateRedirectURI reports whether redirectURI was declared by the
	// client at registration time.
	ValidateRedirectURI(clientID, redirectURI string) bool
}

// ClientRegistrationRequest carries the fields of an incoming RFC 7591
// registration request.
type ClientRegistrationRequest struct {
	ClientName   string
	RedirectURIs []string
	GrantTypes   []string
	Scope        string
}

// ClientRegistration is a dynamically registered OAuth client, per RFC 7591
// Section 3.2.1's registration response fields.
type ClientRegistration struct {
	ClientID                string
	ClientName              string
	RedirectURIs            []string
	GrantTypes              []string
	ResponseTypes           []string
	TokenEndpointAuthMethod string
	Scope                   string
	ClientIDIssuedAt        time.Time
}

// AuthorizationBroker mediates an OAuth 2.1 authorization_code flow between
// a dynamically registered MCP client and the upstream IdP.
type AuthorizationBroker interface {
	// Authorize validates req against the client registry and returns the
	// upstream IdP authorization URL the user agent should be redirected to.
	Authorize(req AuthorizeRequest) (string, error)

	// Callback completes the upstream half of the flow after the IdP
	// redirects back, and returns the client-facing redirect (carrying the
	// gateway's own authorization code).
	Callback(ctx context.Context, req CallbackRequest) (*CallbackResult, error)

	// Token redeems either an authorization code or refresh token for
	// access/refresh tokens.
	Token(ctx context.Context, req TokenRequest) (*TokenResult, error)

	// Close stops the broker's background sweeper goroutine. Callers must
	// invoke it once during shutdown.
	Close()
}

// AuthorizeRequest carries the client's /authorize query parameters.
type AuthorizeRequest struct {
	ClientID            string
	RedirectURI         string
	Scope               string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
	ResponseType        string
}

// CallbackRequest carries the IdP's /auth/callback query parameters.
type CallbackRequest struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// CallbackResult is the redirect the gateway sends the user agent back to
// the MCP client with, carrying the gateway's own authorization code.
type CallbackResult struct {
	RedirectURI string
}

// TokenRequest carries the client's /token form parameters.
type TokenRequest struct {
	GrantType    string
	Code         string
	CodeVerifier string
	RefreshToken string
}

// TokenResult is the token response returned to the MCP client.
type TokenResult struct {
	AccessToken  string
	TokenType    string
	ExpiresIn    int64
	RefreshToken string
	Scope        string
}

// Delegator performs RFC 7523 on-behalf-of token exchange: given a
// validated caller identity, it exchanges the caller's own access token for
// a downstream-scoped token.
type Delegator interface {
	ExchangeOnBehalfOf(ctx context.Context, identity UserIdentity, requestedScope string) (*DelegationResult, error)
}

// DelegationResult is the downstream token a successful OBO exchange
// returns.
type DelegationResult struct {
	AccessToken string
	ExpiresIn   int64
	Scope       string
}
