// Package idp is a thin client for the upstream identity provider's token
// endpoint. It is shared by the Authorization-Code Broker (code exchange,
// refresh) and the Delegation Helper (on-behalf-of exchange), mirroring the
// way the JWKS client centralizes outbound calls to the same provider.
package idp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mcpauth/gateway/internal/oauth/oautherr"
	oauthtypes "github.com/mcpauth/gateway/pkg/oauth"
)

// TokenResponse is the subset of RFC 6749 Section 5.1's token response this
// gateway consumes from the upstream IdP.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
}

// errorResponse is RFC 6749 Section 5.2's error response shape.
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Client talks to the IdP's token endpoint over application/x-www-form-urlencoded
// requests, the same shape regardless of grant type.
type Client struct {
	httpClient    *http.Client
	tokenEndpoint string
	clientID      string
	clientSecret  string
}

// NewClient creates an IdP client bound to a token endpoint and the
// gateway's own confidential client credentials.
func NewClient(tokenEndpoint, clientID, clientSecret string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		tokenEndpoint: tokenEndpoint,
		clientID:      clientID,
		clientSecret:  clientSecret,
	}
}

// ExchangeCode redeems an upstream authorization code for tokens, per RFC
// 6749 Section 4.1.3.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI, codeVerifier string) (*TokenResponse, error) {
	form := url.Values{
		"grant_type":    {oauthtypes.GrantTypeAuthorizationCode},
		"code":          {code},
		"redirect_uri":  {redirectURI},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
	}
	if codeVerifier != "" {
		form.Set("code_verifier", codeVerifier)
	}
	return c.doTokenRequest(ctx, "ExchangeCode", form)
}

// RefreshToken exchanges a refresh token for a new access token, per RFC
// 6749 Section 6.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := url.Values{
		"grant_type":    {oauthtypes.GrantTypeRefreshToken},
		"refresh_token": {refreshToken},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
	}
	return c.doTokenRequest(ctx, "RefreshToken", form)
}

// ExchangeOnBehalfOf performs the RFC 7523 JWT-bearer on-behalf-of exchange:
// the gateway presents the user's own access token as the assertion and
// receives a new token scoped for the downstream resource.
func (c *Client) ExchangeOnBehalfOf(ctx context.Context, userAssertion string, requestedScope string) (*TokenResponse, error) {
	form := url.Values{
		"grant_type":          {oauthtypes.GrantTypeJWTBearer},
		"assertion":           {userAssertion},
		"scope":               {requestedScope},
		"requested_token_use": {"on_behalf_of"},
		"client_id":           {c.clientID},
		"client_secret":       {c.clientSecret},
	}
	return c.doTokenRequest(ctx, "ExchangeOnBehalfOf", form)
}

func (c *Client) doTokenRequest(ctx context.Context, op string, form url.Values) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, oautherr.NewIdPConnectivityError(op, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set(oauthtypes.HeaderContentType, oauthtypes.ContentTypeFormURLEncoded)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, oautherr.NewIdPConnectivityError(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, oautherr.NewIdPConnectivityError(op, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		var oauthErr errorResponse
		if jsonErr := json.Unmarshal(body, &oauthErr); jsonErr == nil && oauthErr.Error != "" {
			if op == "ExchangeOnBehalfOf" {
				return nil, oautherr.NewDelegationFailedError(op, oauthErr.Error, oauthErr.ErrorDescription)
			}
			return nil, oautherr.NewIdPError(op, oauthErr.Error, oauthErr.ErrorDescription)
		}
		return nil, oautherr.NewIdPConnectivityError(op, fmt.Errorf("idp returned status %d", resp.StatusCode))
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, oautherr.NewIdPConnectivityError(op, fmt.Errorf("decode token response: %w", err))
	}

	return &tokenResp, nil
}
