package broker

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	ierrors "github.com/mcpauth/gateway/internal/errors"
	"github.com/mcpauth/gateway/internal/oauth/internal/idgen"
	"github.com/mcpauth/gateway/internal/oauth/internal/idp"
	oauthtypes "github.com/mcpauth/gateway/pkg/oauth"
)

type mockRegistry struct {
	redirectURIs map[string][]string
}

func newMockRegistry() *mockRegistry {
	return &mockRegistry{redirectURIs: make(map[string][]string)}
}

func (m *mockRegistry) register(clientID string, uris ...string) {
	m.redirectURIs[clientID] = uris
}

func (m *mockRegistry) ValidateRedirectURI(clientID, redirectURI string) bool {
	for _, uri := range m.redirectURIs[clientID] {
		if uri == redirectURI {
			return true
		}
	}
	return false
}

type mockIdP struct {
	mu             sync.Mutex
	exchangeResp   *idp.TokenResponse
	exchangeErr    error
	refreshResp    *idp.TokenResponse
	refreshErr     error
	exchangeCalled int
}

func (m *mockIdP) ExchangeCode(ctx context.Context, code, redirectURI, codeVerifier string) (*idp.TokenResponse, error) {
	m.mu.Lock()
	m.exchangeCalled++
	m.mu.Unlock()
	if m.exchangeErr != nil {
		return nil, m.exchangeErr
	}
	return m.exchangeResp, nil
}

func (m *mockIdP) RefreshToken(ctx context.Context, refreshToken string) (*idp.TokenResponse, error) {
	if m.refreshErr != nil {
		return nil, m.refreshErr
	}
	return m.refreshResp, nil
}

func newTestBroker(registry *mockRegistry, idpClient *mockIdP) *Broker {
	b := New(Config{
		Registry:              registry,
		IdPClient:             idpClient,
		GatewayClientID:       "gateway-client",
		CallbackURI:           "https://gw.example.com/auth/callback",
		AuthorizationEndpoint: "https://idp.example.com/oauth2/v2.0/authorize",
		GatewayScope:          "api://mcp-access",
		CompanionScopes:       []string{"openid", "offline_access"},
		TransactionTTL:        10 * time.Minute,
		CodeTTL:               5 * time.Minute,
		SweepInterval:         time.Hour,
	})
	return b
}

// scenario A — happy path: authorize -> callback -> token.
func TestBroker_HappyPath(t *testing.T) {
	t.Parallel()

	registry := newMockRegistry()
	registry.register("c1", "https://app.example.com/cb")

	verifier, err := idgen.CodeVerifier()
	if err != nil {
		t.Fatalf("CodeVerifier() error: %v", err)
	}
	challenge := idgen.S256Challenge(verifier)

	idpClient := &mockIdP{
		exchangeResp: &idp.TokenResponse{
			AccessToken:  "JWT1",
			RefreshToken: "R1",
			ExpiresIn:    3600,
			Scope:        "api://mcp-access",
		},
	}
	b := newTestBroker(registry, idpClient)
	defer b.Close()

	authorizeURL, err := b.Authorize(AuthorizeRequest{
		ClientID:            "c1",
		RedirectURI:         "https://app.example.com/cb",
		Scope:                "api://mcp-access",
		State:                "s1",
		CodeChallenge:        challenge,
		CodeChallengeMethod:  oauthtypes.CodeChallengeMethodS256,
		ResponseType:         oauthtypes.ResponseTypeCode,
	})
	if err != nil {
		t.Fatalf("Authorize() unexpected error: %v", err)
	}

	parsed, err := url.Parse(authorizeURL)
	if err != nil {
		t.Fatalf("Authorize() returned unparseable URL: %v", err)
	}
	proxyState := parsed.Query().Get("state")
	if proxyState == "" {
		t.Fatal("Authorize() did not include a state parameter")
	}
	if parsed.Query().Get("code_challenge_method") != oauthtypes.CodeChallengeMethodS256 {
		t.Error("Authorize() IdP request must always use S256")
	}

	result, err := b.Callback(context.Background(), CallbackRequest{
		Code:  "idpCode",
		State: proxyState,
	})
	if err != nil {
		t.Fatalf("Callback() unexpected error: %v", err)
	}

	redirectURL, err := url.Parse(result.RedirectURI)
	if err != nil {
		t.Fatalf("Callback() returned unparseable redirect: %v", err)
	}
	if redirectURL.Scheme+"://"+redirectURL.Host+redirectURL.Path != "https://app.example.com/cb" {
		t.Errorf("Callback() redirect base = %q, want https://app.example.com/cb", result.RedirectURI)
	}
	if redirectURL.Query().Get("state") != "s1" {
		t.Errorf("Callback() redirect state = %q, want s1", redirectURL.Query().Get("state"))
	}
	proxyCode := redirectURL.Query().Get("code")
	if proxyCode == "" {
		t.Fatal("Callback() redirect missing code parameter")
	}

	tokenResult, err := b.Token(context.Background(), TokenRequest{
		GrantType:    oauthtypes.GrantTypeAuthorizationCode,
		Code:         proxyCode,
		CodeVerifier: verifier,
	})
	if err != nil {
		t.Fatalf("Token() unexpected error: %v", err)
	}
	if tokenResult.AccessToken != "JWT1" {
		t.Errorf("AccessToken = %q, want JWT1", tokenResult.AccessToken)
	}
	if tokenResult.RefreshToken != "R1" {
		t.Errorf("RefreshToken = %q, want R1", tokenResult.RefreshToken)
	}
	if tokenResult.TokenType != oauthtypes.TokenTypeBearer {
		t.Errorf("TokenType = %q, want Bearer", tokenResult.TokenType)
	}
}

// Invariant 1 — single-use codes.
func TestBroker_Token_CodeSingleUse(t *testing.T) {
	t.Parallel()

	registry := newMockRegistry()
	registry.register("c1", "https://app.example.com/cb")

	idpClient := &mockIdP{exchangeResp: &idp.TokenResponse{AccessToken: "JWT1"}}
	b := newTestBroker(registry, idpClient)
	defer b.Close()

	proxyState, verifier := mustAuthorize(t, b, "c1", "https://app.example.com/cb")
	result, err := b.Callback(context.Background(), CallbackRequest{Code: "idpCode", State: proxyState})
	if err != nil {
		t.Fatalf("Callback() unexpected error: %v", err)
	}
	redirectURL, _ := url.Parse(result.RedirectURI)
	proxyCode := redirectURL.Query().Get("code")

	if _, err := b.Token(context.Background(), TokenRequest{GrantType: oauthtypes.GrantTypeAuthorizationCode, Code: proxyCode, CodeVerifier: verifier}); err != nil {
		t.Fatalf("first Token() unexpected error: %v", err)
	}

	_, err = b.Token(context.Background(), TokenRequest{GrantType: oauthtypes.GrantTypeAuthorizationCode, Code: proxyCode, CodeVerifier: verifier})
	if err == nil {
		t.Fatal("second Token() with same code expected invalid_grant, got nil")
	}
	assertInvalidGrant(t, err)
}

// Scenario B — PKCE attack: wrong verifier rejected, and the code cannot be
// redeemed again even with the correct verifier.
func TestBroker_Token_PKCEMismatch(t *testing.T) {
	t.Parallel()

	registry := newMockRegistry()
	registry.register("c1", "https://app.example.com/cb")

	verifier, _ := idgen.CodeVerifier()
	challenge := idgen.S256Challenge(verifier)

	idpClient := &mockIdP{exchangeResp: &idp.TokenResponse{AccessToken: "JWT1"}}
	b := newTestBroker(registry, idpClient)
	defer b.Close()

	authorizeURL, err := b.Authorize(AuthorizeRequest{
		ClientID:            "c1",
		RedirectURI:         "https://app.example.com/cb",
		State:               "s1",
		CodeChallenge:       challenge,
		CodeChallengeMethod: oauthtypes.CodeChallengeMethodS256,
		ResponseType:        oauthtypes.ResponseTypeCode,
	})
	if err != nil {
		t.Fatalf("Authorize() unexpected error: %v", err)
	}
	parsed, _ := url.Parse(authorizeURL)
	proxyState := parsed.Query().Get("state")

	result, err := b.Callback(context.Background(), CallbackRequest{Code: "idpCode", State: proxyState})
	if err != nil {
		t.Fatalf("Callback() unexpected error: %v", err)
	}
	redirectURL, _ := url.Parse(result.RedirectURI)
	proxyCode := redirectURL.Query().Get("code")

	_, err = b.Token(context.Background(), TokenRequest{
		GrantType:    oauthtypes.GrantTypeAuthorizationCode,
		Code:         proxyCode,
		CodeVerifier: "wrong",
	})
	if err == nil {
		t.Fatal("Token() with wrong verifier expected error, got nil")
	}
	assertInvalidGrant(t, err)
	if !strings.Contains(err.Error(), "PKCE") {
		t.Errorf("Token() error = %v, want to mention PKCE", err)
	}

	_, err = b.Token(context.Background(), TokenRequest{
		GrantType:    oauthtypes.GrantTypeAuthorizationCode,
		Code:         proxyCode,
		CodeVerifier: verifier,
	})
	if err == nil {
		t.Fatal("Token() retry with correct verifier expected error (code consumed), got nil")
	}
}

// Invariant 3 / Scenario D — state binding.
func TestBroker_Callback_UnknownState(t *testing.T) {
	t.Parallel()

	registry := newMockRegistry()
	idpClient := &mockIdP{}
	b := newTestBroker(registry, idpClient)
	defer b.Close()

	_, err := b.Callback(context.Background(), CallbackRequest{Code: "x", State: "never_issued"})
	if err == nil {
		t.Fatal("Callback() expected invalid_state error, got nil")
	}
	var domainErr *ierrors.DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("Callback() error type = %T, want *errors.DomainError", err)
	}
	if !domainErr.Is(ierrors.ErrBadRequest) {
		t.Errorf("Callback() error kind = %v, want ErrBadRequest", domainErr.Kind)
	}
}

// Invariant 7 — transaction atomicity: two concurrent callbacks with the
// same state result in exactly one success.
func TestBroker_Callback_ConcurrentSameState(t *testing.T) {
	t.Parallel()

	registry := newMockRegistry()
	registry.register("c1", "https://app.example.com/cb")

	idpClient := &mockIdP{exchangeResp: &idp.TokenResponse{AccessToken: "JWT1"}}
	b := newTestBroker(registry, idpClient)
	defer b.Close()

	proxyState, _ := mustAuthorize(t, b, "c1", "https://app.example.com/cb")

	var wg sync.WaitGroup
	var successes, failures int32
	var mu sync.Mutex
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := b.Callback(context.Background(), CallbackRequest{Code: "idpCode", State: proxyState})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else {
				failures++
			}
		}()
	}
	wg.Wait()

	if successes != 1 || failures != 1 {
		t.Errorf("successes=%d failures=%d, want exactly one of each", successes, failures)
	}
}

// Scenario E — refresh grant forwards the IdP's response verbatim.
func TestBroker_Token_Refresh(t *testing.T) {
	t.Parallel()

	registry := newMockRegistry()
	idpClient := &mockIdP{refreshResp: &idp.TokenResponse{
		AccessToken:  "JWT2",
		RefreshToken: "R2",
		ExpiresIn:    3600,
	}}
	b := newTestBroker(registry, idpClient)
	defer b.Close()

	result, err := b.Token(context.Background(), TokenRequest{
		GrantType:    oauthtypes.GrantTypeRefreshToken,
		RefreshToken: "R1",
	})
	if err != nil {
		t.Fatalf("Token() unexpected error: %v", err)
	}
	if result.AccessToken != "JWT2" || result.RefreshToken != "R2" {
		t.Errorf("Token() = %+v, want JWT2/R2", result)
	}
}

func TestBroker_Token_UnsupportedGrantType(t *testing.T) {
	t.Parallel()

	b := newTestBroker(newMockRegistry(), &mockIdP{})
	defer b.Close()

	_, err := b.Token(context.Background(), TokenRequest{GrantType: "client_credentials"})
	if err == nil {
		t.Fatal("Token() expected error for unsupported grant_type, got nil")
	}
	if !strings.Contains(err.Error(), "client_credentials") {
		t.Errorf("Token() error = %v, want to mention grant_type", err)
	}
}

func TestBroker_Authorize_UnregisteredRedirectURI(t *testing.T) {
	t.Parallel()

	registry := newMockRegistry()
	registry.register("c1", "https://app.example.com/cb")

	b := newTestBroker(registry, &mockIdP{})
	defer b.Close()

	_, err := b.Authorize(AuthorizeRequest{
		ClientID:     "c1",
		RedirectURI:  "https://evil.example.com/cb",
		ResponseType: oauthtypes.ResponseTypeCode,
	})
	if err == nil {
		t.Fatal("Authorize() expected error for unregistered redirect_uri, got nil")
	}
}

func TestBroker_Authorize_UnsupportedResponseType(t *testing.T) {
	t.Parallel()

	b := newTestBroker(newMockRegistry(), &mockIdP{})
	defer b.Close()

	_, err := b.Authorize(AuthorizeRequest{ClientID: "c1", RedirectURI: "https://app.example.com/cb", ResponseType: "token"})
	if err == nil {
		t.Fatal("Authorize() expected error for response_type=token, got nil")
	}
}

func TestBroker_Sweeper_RemovesExpiredTransactions(t *testing.T) {
	t.Parallel()

	registry := newMockRegistry()
	registry.register("c1", "https://app.example.com/cb")

	b := New(Config{
		Registry:              registry,
		IdPClient:             &mockIdP{},
		GatewayClientID:       "gateway-client",
		CallbackURI:           "https://gw.example.com/auth/callback",
		AuthorizationEndpoint: "https://idp.example.com/oauth2/v2.0/authorize",
		GatewayScope:          "api://mcp-access",
		TransactionTTL:        1 * time.Millisecond,
		CodeTTL:               1 * time.Millisecond,
		SweepInterval:         10 * time.Millisecond,
	})
	defer b.Close()

	proxyState, _ := mustAuthorize(t, b, "c1", "https://app.example.com/cb")

	time.Sleep(50 * time.Millisecond)

	b.mu.Lock()
	_, stillPresent := b.transactions[proxyState]
	b.mu.Unlock()
	if stillPresent {
		t.Error("sweeper did not remove expired transaction")
	}
}

func mustAuthorize(t *testing.T, b *Broker, clientID, redirectURI string) (string, string) {
	t.Helper()
	verifier, _ := idgen.CodeVerifier()
	challenge := idgen.S256Challenge(verifier)
	authorizeURL, err := b.Authorize(AuthorizeRequest{
		ClientID:            clientID,
		RedirectURI:         redirectURI,
		State:               "client-state",
		CodeChallenge:       challenge,
		CodeChallengeMethod: oauthtypes.CodeChallengeMethodS256,
		ResponseType:        oauthtypes.ResponseTypeCode,
	})
	if err != nil {
		t.Fatalf("Authorize() unexpected error: %v", err)
	}
	parsed, err := url.Parse(authorizeURL)
	if err != nil {
		t.Fatalf("Authorize() returned unparseable URL: %v", err)
	}
	return parsed.Query().Get("state"), verifier
}

func assertInvalidGrant(t *testing.T, err error) {
	t.Helper()
	var domainErr *ierrors.DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("error type = %T, want *errors.DomainError", err)
	}
	if !domainErr.Is(ierrors.ErrBadRequest) {
		t.Errorf("error kind = %v, want ErrBadRequest", domainErr.Kind)
	}
}
