// Package delegation implements the On-Behalf-Of (OBO) Delegation Helper:
// given a validated incoming identity, it exchanges the caller's own access
// token for a downstream-scoped token via RFC 7523's JWT-bearer grant.
package delegation

import (
	"context"

	"github.com/mcpauth/gateway/internal/oauth/internal/idp"
	"github.com/mcpauth/gateway/internal/oauth/oautherr"
)

// IdPClient is the subset of idp.Client the helper needs.
type IdPClient interface {
	ExchangeOnBehalfOf(ctx context.Context, userAssertion, requestedScope string) (*idp.TokenResponse, error)
}

// Identity is the subset of the validated caller identity the helper needs
// to perform the exchange: the raw bearer token presented as the OBO
// assertion, per RFC 7523.
type Identity struct {
	RawToken string
	ObjectID string
}

// Helper performs on-behalf-of token exchange against the IdP, memoizing a
// single confidential-client configuration for the process lifetime.
type Helper struct {
	idp IdPClient
}

// New creates a Delegation Helper bound to the shared IdP client. The IdP
// client itself already carries the gateway's confidential client
// credentials, so there is nothing further for this helper to memoize
// beyond holding onto the one instance for the process lifetime.
func New(idpClient IdPClient) *Helper {
	if idpClient == nil {
		panic("delegation: nil IdPClient")
	}
	return &Helper{idp: idpClient}
}

// Result is the downstream token the helper returns on a successful
// exchange.
type Result struct {
	AccessToken string
	ExpiresIn   int64
	Scope       string
}

// ExchangeOnBehalfOf performs the OBO exchange for identity against
// requestedScope. Failures from the IdP surface as ierrors.ErrDelegationFailed
// via oautherr.NewDelegationFailedError (see internal/oauth/internal/idp),
// distinct from a gateway auth failure: the caller is already authenticated,
// they simply lack delegated consent for requestedScope.
func (h *Helper) ExchangeOnBehalfOf(ctx context.Context, identity Identity, requestedScope string) (*Result, error) {
	if identity.RawToken == "" {
		return nil, oautherr.NewInvalidRequestError("ExchangeOnBehalfOf", "missing caller assertion")
	}
	if requestedScope == "" {
		return nil, oautherr.NewInvalidRequestError("ExchangeOnBehalfOf", "requested scope is required")
	}

	resp, err := h.idp.ExchangeOnBehalfOf(ctx, identity.RawToken, requestedScope)
	if err != nil {
		return nil, err
	}

	return &Result{
		AccessToken: resp.AccessToken,
		ExpiresIn:   resp.ExpiresIn,
		Scope:       resp.Scope,
	}, nil
}
