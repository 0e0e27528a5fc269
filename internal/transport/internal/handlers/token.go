package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mcpauth/gateway/internal/oauth"
	"github.com/mcpauth/gateway/internal/oauth/oautherr"
	pkgoauth "github.com/mcpauth/gateway/pkg/oauth"
)

// tokenResponse is the RFC 6749 Section 5.1 token response shape.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// tokenHandler serves the client-facing /token endpoint: it redeems either
// an authorization code or a refresh token for access/refresh tokens.
type tokenHandler struct {
	broker oauth.AuthorizationBroker
}

// NewTokenHandler creates a handler for the /token endpoint.
func NewTokenHandler(broker oauth.AuthorizationBroker) http.Handler {
	if broker == nil {
		panic("broker cannot be nil")
	}
	return &tokenHandler{broker: broker}
}

func (h *tokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, "Token", oautherr.NewInvalidRequestError("Token", "malformed form body"))
		return
	}

	req := oauth.TokenRequest{
		GrantType:    r.PostForm.Get("grant_type"),
		Code:         r.PostForm.Get("code"),
		CodeVerifier: r.PostForm.Get("code_verifier"),
		RefreshToken: r.PostForm.Get("refresh_token"),
	}

	result, err := h.broker.Token(r.Context(), req)
	if err != nil {
		writeOAuthError(w, "Token", err)
		return
	}

	resp := tokenResponse{
		AccessToken:  result.AccessToken,
		TokenType:    result.TokenType,
		ExpiresIn:    result.ExpiresIn,
		RefreshToken: result.RefreshToken,
		Scope:        result.Scope,
	}

	w.Header().Set(pkgoauth.HeaderContentType, pkgoauth.ContentTypeJSON)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode token response", "error", err)
	}
}
