// Package config provides configuration management for the OAuth 2.1 MCP server.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the complete server configuration in a flat structure.
type Config struct {
	// Server settings
	// Addr is the address to bind the HTTP server (e.g., ":8080").
	Addr string

	// BaseURL is the canonical base URL for this server (e.g., "https://example.com/mcp").
	// This is used for OAuth audience validation and resource metadata.
	BaseURL string

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes of the response.
	WriteTimeout time.Duration

	// IdleTimeout is the maximum duration to wait for the next request when keep-alives are enabled.
	IdleTimeout time.Duration

	// OAuth settings
	// AuthorizationServers is a list of trusted authorization server URLs.
	// These servers are listed in the protected resource metadata.
	AuthorizationServers []string

	// Audience is the expected audience (aud) claim in access tokens.
	// This should match the server's canonical URI.
	Audience string

	// ScopesSupported is a list of OAuth scopes this server supports.
	ScopesSupported []string

	// JWKSCacheTTL is how long to cache JWKS keys from authorization servers.
	JWKSCacheTTL time.Duration

	// ClockSkew is the allowed clock skew for token expiration validation.
	ClockSkew time.Duration

	// JWKSCacheCap bounds the number of key IDs the JWKS cache holds at once.
	JWKSCacheCap int

	// JWKSFetchRateLimit caps outbound JWKS fetches per minute to the IdP.
	JWKSFetchRateLimit int

	// IdP settings
	// IDPTenantID is the Entra ID tenant this gateway federates with.
	IDPTenantID string

	// IDPClientID is the gateway's own confidential client identifier,
	// registered with the IdP, used for the OBO token exchange.
	IDPClientID string

	// IDPClientSecret authenticates the gateway's confidential client to the IdP.
	IDPClientSecret string

	// GatewayAPIScope is the scope URI the IdP issues the gateway's own API
	// tokens under (e.g. api://<client-id>/.default), requested on the
	// upstream authorization request.
	GatewayAPIScope string

	// IDPCompanionScopes are additional scopes requested alongside
	// GatewayAPIScope on the upstream authorization request.
	IDPCompanionScopes []string

	// IDPAuthorityHost is the IdP host, without scheme or tenant path.
	IDPAuthorityHost string

	// IDPAuthority is the tenant-scoped IdP authority URL, derived from
	// IDPAuthorityHost and IDPTenantID unless overridden.
	IDPAuthority string

	// Issuer is the expected "iss" claim on tokens minted by the IdP.
	Issuer string

	// JWKSURI is the IdP's published JSON Web Key Set endpoint.
	JWKSURI string

	// AuthorizationEndpoint is the IdP's authorization endpoint this gateway
	// redirects the user agent to for the upstream half of the code flow.
	AuthorizationEndpoint string

	// TokenEndpoint is the IdP's token endpoint used for code exchange,
	// refresh, and OBO delegation requests.
	TokenEndpoint string

	// IdPHTTPTimeout bounds outbound HTTP calls to the IdP's token endpoint.
	IdPHTTPTimeout time.Duration

	// Proxy settings
	// ProxyTransactionTTL is how long a pending /authorize transaction lives
	// before it is swept as expired.
	ProxyTransactionTTL time.Duration

	// ProxyCodeTTL is how long a minted authorization code may be redeemed
	// before it is swept as expired.
	ProxyCodeTTL time.Duration

	// SweepInterval is how often the broker sweeps expired transactions and
	// codes from memory.
	SweepInterval time.Duration

	// MCP settings
	// SessionTTL is the duration before an MCP session expires.
	SessionTTL time.Duration
}

// Load reads configuration from environment variables and returns a Config.
// It sets default values for optional fields and validates the configuration.
func Load() (*Config, error) {
	// Parse durations with error handling
	readTimeout, err := parseDurationWithDefault("SERVER_READ_TIMEOUT", "30s")
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_READ_TIMEOUT: %w", err)
	}

	writeTimeout, err := parseDurationWithDefault("SERVER_WRITE_TIMEOUT", "30s")
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_WRITE_TIMEOUT: %w", err)
	}

	idleTimeout, err := parseDurationWithDefault("SERVER_IDLE_TIMEOUT", "120s")
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_IDLE_TIMEOUT: %w", err)
	}

	jwksCacheTTL, err := parseDurationWithDefault("OAUTH_JWKS_CACHE_TTL", "1h")
	if err != nil {
		return nil, fmt.Errorf("invalid OAUTH_JWKS_CACHE_TTL: %w", err)
	}

	clockSkew, err := parseDurationWithDefault("OAUTH_CLOCK_SKEW", "1m")
	if err != nil {
		return nil, fmt.Errorf("invalid OAUTH_CLOCK_SKEW: %w", err)
	}

	sessionTTL, err := parseDurationWithDefault("MCP_SESSION_TTL", "1h")
	if err != nil {
		return nil, fmt.Errorf("invalid MCP_SESSION_TTL: %w", err)
	}

	idpHTTPTimeout, err := parseDurationWithDefault("IDP_HTTP_TIMEOUT", "10s")
	if err != nil {
		return nil, fmt.Errorf("invalid IDP_HTTP_TIMEOUT: %w", err)
	}

	proxyTransactionTTL, err := parseDurationWithDefault("PROXY_TRANSACTION_TTL", "10m")
	if err != nil {
		return nil, fmt.Errorf("invalid PROXY_TRANSACTION_TTL: %w", err)
	}

	proxyCodeTTL, err := parseDurationWithDefault("PROXY_CODE_TTL", "5m")
	if err != nil {
		return nil, fmt.Errorf("invalid PROXY_CODE_TTL: %w", err)
	}

	sweepInterval, err := parseDurationWithDefault("SWEEP_INTERVAL", "5m")
	if err != nil {
		return nil, fmt.Errorf("invalid SWEEP_INTERVAL: %w", err)
	}

	jwksCacheCap, err := parseIntWithDefault("JWKS_CACHE_CAP", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid JWKS_CACHE_CAP: %w", err)
	}

	jwksFetchRateLimit, err := parseIntWithDefault("JWKS_FETCH_RATE_LIMIT", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid JWKS_FETCH_RATE_LIMIT: %w", err)
	}

	companionScopes := parseCommaSeparated("IDP_COMPANION_SCOPES")
	if companionScopes == nil {
		companionScopes = []string{"openid", "profile", "offline_access"}
	}

	baseURL := os.Getenv("SERVER_BASE_URL")
	if baseURL == "" {
		baseURL = os.Getenv("GATEWAY_BASE_URL")
	}

	authorityHost := getEnvWithDefault("IDP_AUTHORITY_HOST", "login.microsoftonline.com")
	tenantID := os.Getenv("IDP_TENANT_ID")

	authority := os.Getenv("IDP_AUTHORITY")
	if authority == "" {
		authority = fmt.Sprintf("https://%s/%s", authorityHost, tenantID)
	}

	issuer := getEnvWithDefault("IDP_ISSUER", authority+"/v2.0")
	jwksURI := getEnvWithDefault("IDP_JWKS_URI", authority+"/discovery/v2.0/keys")
	authorizationEndpoint := getEnvWithDefault("IDP_AUTHORIZATION_ENDPOINT", authority+"/oauth2/v2.0/authorize")
	tokenEndpoint := getEnvWithDefault("IDP_TOKEN_ENDPOINT", authority+"/oauth2/v2.0/token")

	cfg := &Config{
		// Server settings
		Addr:         getEnvWithDefault("SERVER_ADDR", ":8080"),
		BaseURL:      baseURL,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,

		// OAuth settings
		AuthorizationServers: parseCommaSeparated("OAUTH_AUTHORIZATION_SERVERS"),
		Audience:             os.Getenv("OAUTH_AUDIENCE"),
		ScopesSupported:      parseCommaSeparated("OAUTH_SCOPES_SUPPORTED"),
		JWKSCacheTTL:         jwksCacheTTL,
		ClockSkew:            clockSkew,
		JWKSCacheCap:         jwksCacheCap,
		JWKSFetchRateLimit:   jwksFetchRateLimit,

		// IdP settings
		IDPTenantID:           tenantID,
		IDPClientID:           os.Getenv("IDP_CLIENT_ID"),
		IDPClientSecret:       os.Getenv("IDP_CLIENT_SECRET"),
		GatewayAPIScope:       os.Getenv("GATEWAY_API_SCOPE"),
		IDPCompanionScopes:    companionScopes,
		IDPAuthorityHost:      authorityHost,
		IDPAuthority:          authority,
		Issuer:                issuer,
		JWKSURI:               jwksURI,
		AuthorizationEndpoint: authorizationEndpoint,
		TokenEndpoint:         tokenEndpoint,
		IdPHTTPTimeout:        idpHTTPTimeout,

		// Proxy settings
		ProxyTransactionTTL: proxyTransactionTTL,
		ProxyCodeTTL:        proxyCodeTTL,
		SweepInterval:       sweepInterval,

		// MCP settings
		SessionTTL: sessionTTL,
	}

	// Validate configuration
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// getEnvWithDefault returns the environment variable value or the default if not set.
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseCommaSeparated parses a comma-separated environment variable into a string slice.
// Empty values are filtered out. Returns nil if the environment variable is not set.
func parseCommaSeparated(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}

	parts := strings.Split(value, ",")
	var result []string
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}

// parseIntWithDefault parses an integer from an environment variable.
// If the variable is not set, it uses the default value. Returns an error
// if the value is set but cannot be parsed.
func parseIntWithDefault(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("cannot parse integer %q: %w", value, err)
	}

	return parsed, nil
}

// parseDurationWithDefault parses a duration from an environment variable.
// If the variable is not set, it uses the default value.
// Returns an error if the value is set but cannot be parsed.
func parseDurationWithDefault(key, defaultValue string) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		// Use default if not set
		duration, err := time.ParseDuration(defaultValue)
		if err != nil {
			return 0, fmt.Errorf("invalid default duration %q: %w", defaultValue, err)
		}
		return duration, nil
	}

	// Parse the provided value
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("cannot parse duration %q: %w", value, err)
	}

	return duration, nil
}

// String returns a string representation of the configuration (for debugging).
// Sensitive values are redacted.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Addr: %s, BaseURL: %s, ReadTimeout: %v, WriteTimeout: %v, IdleTimeout: %v, AuthorizationServers: %v, Audience: %s, ScopesSupported: %v, JWKSCacheTTL: %v, ClockSkew: %v, SessionTTL: %v, IDPTenantID: %s, IDPClientID: %s, IDPClientSecret: [REDACTED], GatewayAPIScope: %s, IDPAuthority: %s, Issuer: %s}",
		c.Addr, c.BaseURL, c.ReadTimeout, c.WriteTimeout, c.IdleTimeout,
		c.AuthorizationServers, c.Audience, c.ScopesSupported,
		c.JWKSCacheTTL, c.ClockSkew, c.SessionTTL,
		c.IDPTenantID, c.IDPClientID, c.GatewayAPIScope, c.IDPAuthority, c.Issuer)
}
