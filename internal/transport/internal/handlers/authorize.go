package handlers

import (
	"net/http"

	"github.com/mcpauth/gateway/internal/oauth"
)

// authorizeHandler serves the client-facing /authorize endpoint: it starts
// an OAuth 2.1 authorization_code flow by redirecting the user agent to the
// upstream IdP, with the gateway acting as a proxying authorization server.
type authorizeHandler struct {
	broker oauth.AuthorizationBroker
}

// NewAuthorizeHandler creates a handler for the /authorize endpoint.
func NewAuthorizeHandler(broker oauth.AuthorizationBroker) http.Handler {
	if broker == nil {
		panic("broker cannot be nil")
	}
	return &authorizeHandler{broker: broker}
}

func (h *authorizeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	req := oauth.AuthorizeRequest{
		ClientID:            q.Get("client_id"),
		RedirectURI:         q.Get("redirect_uri"),
		Scope:               q.Get("scope"),
		State:               q.Get("state"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
		ResponseType:        q.Get("response_type"),
	}

	idpURL, err := h.broker.Authorize(req)
	if err != nil {
		writeOAuthError(w, "Authorize", err)
		return
	}

	http.Redirect(w, r, idpURL, http.StatusFound)
}
