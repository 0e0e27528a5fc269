// Package oautherr provides OAuth 2.1 error constructors.
// This package is separate from internal/oauth to avoid import cycles
// when internal packages need to create OAuth errors.
package oautherr

import (
	"fmt"

	ierrors "github.com/mcpauth/gateway/internal/errors"
)

// Domain identifier for OAuth errors.
const domainOAuth = "oauth"

// NewInvalidTokenError creates a DomainError for invalid token with context.
func NewInvalidTokenError(op string, err error) *ierrors.DomainError {
	return ierrors.New(domainOAuth, op, ierrors.ErrUnauthorized, err).
		WithContext("oauth_error", ierrors.ErrorCodeInvalidToken)
}

// NewInsufficientScopeError creates a DomainError for insufficient scope.
func NewInsufficientScopeError(op string, required []string) *ierrors.DomainError {
	// Import the sentinel error from the parent package
	return ierrors.New(domainOAuth, op, ierrors.ErrForbidden, fmt.Errorf("insufficient_scope")).
		WithContext("oauth_error", ierrors.ErrorCodeInsufficientScope).
		WithContext("required_scopes", required)
}

// NewInvalidAudienceError creates a DomainError for invalid audience.
func NewInvalidAudienceError(op string, expected string, actual []string) *ierrors.DomainError {
	return ierrors.New(domainOAuth, op, ierrors.ErrUnauthorized, fmt.Errorf("invalid audience")).
		WithContext("oauth_error", ierrors.ErrorCodeInvalidToken).
		WithContext("expected_audience", expected).
		WithContext("actual_audience", actual)
}

// NewInvalidIssuerError creates a DomainError for an iss claim that doesn't
// match the configured IdP issuer.
func NewInvalidIssuerError(op string, expected string, actual string) *ierrors.DomainError {
	return ierrors.New(domainOAuth, op, ierrors.ErrUnauthorized, fmt.Errorf("invalid issuer")).
		WithContext("oauth_error", ierrors.ErrorCodeInvalidToken).
		WithContext("expected_issuer", expected).
		WithContext("actual_issuer", actual)
}

// NewTokenExpiredError creates a DomainError for expired token.
func NewTokenExpiredError(op string, err error) *ierrors.DomainError {
	return ierrors.New(domainOAuth, op, ierrors.ErrUnauthorized, err).
		WithContext("oauth_error", ierrors.ErrorCodeInvalidToken).
		WithContext("reason", "token_expired")
}

// NewInvalidSignatureError creates a DomainError for signature verification failure.
func NewInvalidSignatureError(op string, err error) *ierrors.DomainError {
	return ierrors.New(domainOAuth, op, ierrors.ErrUnauthorized, err).
		WithContext("oauth_error", ierrors.ErrorCodeInvalidToken).
		WithContext("reason", "invalid_signature")
}

// NewUnsupportedAlgorithmError creates a DomainError for unsupported signing algorithm.
func NewUnsupportedAlgorithmError(op string, algorithm string) *ierrors.DomainError {
	return ierrors.New(domainOAuth, op, ierrors.ErrUnauthorized, fmt.Errorf("unsupported algorithm")).
		WithContext("oauth_error", ierrors.ErrorCodeInvalidToken).
		WithContext("algorithm", algorithm)
}

// NewMissingClaimError creates a DomainError for missing JWT claim.
func NewMissingClaimError(op string, claim string) *ierrors.DomainError {
	return ierrors.New(domainOAuth, op, ierrors.ErrUnauthorized, fmt.Errorf("missing claim: %s", claim)).
		WithContext("oauth_error", ierrors.ErrorCodeInvalidToken).
		WithContext("missing_claim", claim)
}

// NewKeyNotFoundError creates a DomainError for JWKS key not found.
func NewKeyNotFoundError(op string, keyID string) *ierrors.DomainError {
	return ierrors.New(domainOAuth, op, ierrors.ErrUnauthorized, fmt.Errorf("key not found")).
		WithContext("oauth_error", ierrors.ErrorCodeInvalidToken).
		WithContext("key_id", keyID)
}

// NewJWKSFetchError creates a DomainError for JWKS fetch failure.
func NewJWKSFetchError(op string, serverURL string, err error) *ierrors.DomainError {
	return ierrors.New(domainOAuth, op, ierrors.ErrInternal, fmt.Errorf("jwks fetch failed: %v", err)).
		WithContext("authorization_server", serverURL)
}

// NewInvalidMetadataError creates a DomainError for invalid authorization server metadata.
func NewInvalidMetadataError(op string, serverURL string, err error) *ierrors.DomainError {
	return ierrors.New(domainOAuth, op, ierrors.ErrInternal, fmt.Errorf("invalid metadata: %v", err)).
		WithContext("authorization_server", serverURL)
}

// NewUnsupportedResponseTypeError creates a DomainError for an /authorize
// request that asked for a response_type other than "code".
func NewUnsupportedResponseTypeError(op string, responseType string) *ierrors.DomainError {
	return ierrors.New(domainOAuth, op, ierrors.ErrBadRequest, fmt.Errorf("unsupported response_type: %s", responseType)).
		WithContext("oauth_error", ierrors.ErrorCodeUnsupportedResponseType).
		WithContext("response_type", responseType)
}

// NewInvalidStateError creates a DomainError for a callback whose state
// parameter was never issued or has already been consumed.
func NewInvalidStateError(op string, state string) *ierrors.DomainError {
	return ierrors.New(domainOAuth, op, ierrors.ErrBadRequest, fmt.Errorf("unknown or expired state")).
		WithContext("oauth_error", ierrors.ErrorCodeInvalidState).
		WithContext("state", state)
}

// NewInvalidGrantError creates a DomainError for an invalid authorization
// code, PKCE mismatch, or other invalid_grant condition.
func NewInvalidGrantError(op string, description string) *ierrors.DomainError {
	return ierrors.New(domainOAuth, op, ierrors.ErrBadRequest, fmt.Errorf("%s", description)).
		WithContext("oauth_error", ierrors.ErrorCodeInvalidGrant).
		WithContext("error_description", description)
}

// NewUnsupportedGrantTypeError creates a DomainError for a /token request
// using an unrecognized grant_type.
func NewUnsupportedGrantTypeError(op string, grantType string) *ierrors.DomainError {
	return ierrors.New(domainOAuth, op, ierrors.ErrBadRequest, fmt.Errorf("unsupported grant_type: %s", grantType)).
		WithContext("oauth_error", ierrors.ErrorCodeUnsupportedGrantType).
		WithContext("grant_type", grantType)
}

// NewInvalidRequestError creates a DomainError for a malformed OAuth request
// (missing required parameter).
func NewInvalidRequestError(op string, description string) *ierrors.DomainError {
	return ierrors.New(domainOAuth, op, ierrors.ErrBadRequest, fmt.Errorf("%s", description)).
		WithContext("oauth_error", ierrors.ErrorCodeInvalidRequest).
		WithContext("error_description", description)
}

// NewIdPError wraps an error response surfaced verbatim by the IdP (token
// exchange, refresh, or callback error) as a DomainError carrying the IdP's
// own error code and description.
func NewIdPError(op string, idpError string, idpDescription string) *ierrors.DomainError {
	return ierrors.New(domainOAuth, op, ierrors.ErrBadRequest, fmt.Errorf("idp error: %s", idpError)).
		WithContext("oauth_error", idpError).
		WithContext("error_description", idpDescription)
}

// NewIdPConnectivityError creates a DomainError for a failure to reach the
// IdP (network error, timeout, non-2xx without a structured error body).
func NewIdPConnectivityError(op string, err error) *ierrors.DomainError {
	return ierrors.New(domainOAuth, op, ierrors.ErrInternal, err).
		WithContext("oauth_error", ierrors.ErrorCodeServerError)
}

// NewDelegationFailedError creates a DomainError for an OBO exchange the IdP
// rejected. Unlike the other constructors here this uses ErrDelegationFailed
// rather than ErrUnauthorized/ErrBadRequest so transport renders it as a
// tool-level failure, not an HTTP 401 — the caller is already authenticated.
func NewDelegationFailedError(op string, idpError string, idpDescription string) *ierrors.DomainError {
	return ierrors.New(domainOAuth, op, ierrors.ErrDelegationFailed, fmt.Errorf("%s", idpError)).
		WithContext("oauth_error", idpError).
		WithContext("error_description", idpDescription)
}
