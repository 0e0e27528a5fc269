package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mcpauth/gateway/internal/oauth"
	"github.com/mcpauth/gateway/internal/oauth/oautherr"
	pkgoauth "github.com/mcpauth/gateway/pkg/oauth"
)

// registerRequest is the RFC 7591 Section 3.1 client metadata this gateway
// accepts. Unrecognized fields are accepted and ignored.
type registerRequest struct {
	ClientName   string   `json:"client_name"`
	RedirectURIs []string `json:"redirect_uris"`
	GrantTypes   []string `json:"grant_types"`
	Scope        string   `json:"scope"`
}

// registerResponse is the RFC 7591 Section 3.2.1 registration response.
type registerResponse struct {
	ClientID                string   `json:"client_id"`
	ClientName              string   `json:"client_name,omitempty"`
	RedirectURIs            []string `json:"redirect_uris"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	Scope                   string   `json:"scope,omitempty"`
	ClientIDIssuedAt        int64    `json:"client_id_issued_at"`
}

// registerHandler serves RFC 7591 Dynamic Client Registration.
type registerHandler struct {
	registry oauth.ClientRegistry
}

// NewRegisterHandler creates a handler for the /register endpoint.
func NewRegisterHandler(registry oauth.ClientRegistry) http.Handler {
	if registry == nil {
		panic("registry cannot be nil")
	}
	return &registerHandler{registry: registry}
}

func (h *registerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeOAuthError(w, "Register", oautherr.NewInvalidRequestError("Register", "malformed registration request body"))
		return
	}

	reg, err := h.registry.Register(oauth.ClientRegistrationRequest{
		ClientName:   req.ClientName,
		RedirectURIs: req.RedirectURIs,
		GrantTypes:   req.GrantTypes,
		Scope:        req.Scope,
	})
	if err != nil {
		writeOAuthError(w, "Register", err)
		return
	}

	resp := registerResponse{
		ClientID:                reg.ClientID,
		ClientName:              reg.ClientName,
		RedirectURIs:            reg.RedirectURIs,
		GrantTypes:              reg.GrantTypes,
		ResponseTypes:           reg.ResponseTypes,
		TokenEndpointAuthMethod: reg.TokenEndpointAuthMethod,
		Scope:                   reg.Scope,
		ClientIDIssuedAt:        reg.ClientIDIssuedAt.Unix(),
	}

	w.Header().Set(pkgoauth.HeaderContentType, pkgoauth.ContentTypeJSON)
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode registration response", "error", err)
	}
}
