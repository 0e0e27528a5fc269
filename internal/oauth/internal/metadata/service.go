package metadata

import (
	"context"
	"fmt"
	"strings"
)

// ProtectedResourceMetadata represents the OAuth 2.0 Protected Resource
// Metadata as defined in RFC 9728.
type ProtectedResourceMetadata struct {
	Resource               string   `json:"resource"`
	AuthorizationServers   []string `json:"authorization_servers"`
	ScopesSupported        []string `json:"scopes_supported,omitempty"`
	BearerMethodsSupported []string `json:"bearer_methods_supported,omitempty"`
}

// AuthorizationServerMetadata represents OAuth 2.0 Authorization Server
// Metadata as defined in RFC 8414. This gateway is itself the authorization
// server the Protected Resource Metadata points clients at, so both
// documents are generated from the same configuration: whatever grant
// types and challenge methods are advertised here are exactly what the
// Authorization-Code Broker honors.
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

// Service provides Protected Resource Metadata (RFC 9728) and Authorization
// Server Metadata (RFC 8414) for the gateway, which plays both roles in the
// proxy pattern: it is the protected resource's named authorization server.
type Service struct {
	resource               string
	authorizationServers   []string
	scopesSupported        []string
	bearerMethodsSupported []string
	metadataURL            string

	issuer                 string
	authorizationEndpoint  string
	tokenEndpoint          string
	registrationEndpoint   string
	revocationEndpoint     string
	responseTypesSupported []string
	grantTypesSupported    []string
	tokenEndpointAuthTypes []string
	challengeMethods       []string
	asMetadataURL          string
}

// NewService creates a new metadata service.
//
// Parameters:
//   - baseURL: the canonical base URL for this protected resource (e.g., "https://example.com/mcp")
//   - authorizationServers: array of authorization server URLs
//   - scopesSupported: array of supported OAuth scopes (optional)
func NewService(baseURL string, authorizationServers []string, scopesSupported []string) *Service {
	// RFC 9728 requires Authorization header only for OAuth 2.1
	bearerMethods := []string{"header"}

	// Construct metadata URL: {baseURL}/.well-known/oauth-protected-resource
	metadataURL := normalizeBaseURL(baseURL) + "/.well-known/oauth-protected-resource"

	base := normalizeBaseURL(baseURL)

	return &Service{
		resource:               base,
		authorizationServers:   authorizationServers,
		scopesSupported:        scopesSupported,
		bearerMethodsSupported: bearerMethods,
		metadataURL:            metadataURL,

		issuer:                 base,
		authorizationEndpoint:  base + "/authorize",
		tokenEndpoint:          base + "/token",
		registrationEndpoint:   base + "/register",
		revocationEndpoint:     base + "/revoke",
		responseTypesSupported: []string{"code"},
		grantTypesSupported:    []string{"authorization_code", "refresh_token"},
		tokenEndpointAuthTypes: []string{"none", "client_secret_post"},
		challengeMethods:       []string{"S256", "plain"},
		asMetadataURL:          base + "/.well-known/oauth-authorization-server",
	}
}

// GetMetadata returns the protected resource metadata document.
func (s *Service) GetMetadata(ctx context.Context) (*ProtectedResourceMetadata, error) {
	return &ProtectedResourceMetadata{
		Resource:               s.resource,
		AuthorizationServers:   s.authorizationServers,
		ScopesSupported:        s.scopesSupported,
		BearerMethodsSupported: s.bearerMethodsSupported,
	}, nil
}

// GetMetadataURL returns the canonical URL where this metadata is served.
func (s *Service) GetMetadataURL() string {
	return s.metadataURL
}

// GetAuthorizationServerMetadata returns the RFC 8414 authorization server
// metadata document. The endpoints and supported values are derived from
// the same configuration the broker and registry are constructed with, so
// this document never drifts from what the gateway actually honors.
func (s *Service) GetAuthorizationServerMetadata(ctx context.Context) (*AuthorizationServerMetadata, error) {
	return &AuthorizationServerMetadata{
		Issuer:                        s.issuer,
		AuthorizationEndpoint:         s.authorizationEndpoint,
		TokenEndpoint:                 s.tokenEndpoint,
		RegistrationEndpoint:          s.registrationEndpoint,
		RevocationEndpoint:            s.revocationEndpoint,
		ResponseTypesSupported:        s.responseTypesSupported,
		GrantTypesSupported:           s.grantTypesSupported,
		TokenEndpointAuthMethods:      s.tokenEndpointAuthTypes,
		CodeChallengeMethodsSupported: s.challengeMethods,
	}, nil
}

// GetAuthorizationServerMetadataURL returns the canonical URL where the AS
// metadata document is served.
func (s *Service) GetAuthorizationServerMetadataURL() string {
	return s.asMetadataURL
}

// normalizeBaseURL ensures the base URL has no trailing slash unless semantically significant.
// Per RFC 8707, resource identifiers should not have trailing slashes unless they are
// semantically meaningful (e.g., representing a collection vs. a specific resource).
func normalizeBaseURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/")
}

// ValidateMetadata validates the metadata configuration per RFC 9728.
func ValidateMetadata(metadata *ProtectedResourceMetadata) error {
	if metadata.Resource == "" {
		return fmt.Errorf("resource field is required")
	}

	if len(metadata.AuthorizationServers) == 0 {
		return fmt.Errorf("authorization_servers field must contain at least one server")
	}

	// Validate each authorization server URL is well-formed
	for _, server := range metadata.AuthorizationServers {
		if server == "" {
			return fmt.Errorf("authorization server URL cannot be empty")
		}
		if !strings.HasPrefix(server, "https://") && !strings.HasPrefix(server, "http://localhost") {
			return fmt.Errorf("authorization server URL must use HTTPS (or http://localhost for testing): %s", server)
		}
	}

	return nil
}
