package handlers

import (
	"net/http"

	"github.com/mcpauth/gateway/internal/oauth"
)

// callbackHandler serves the /auth/callback endpoint the upstream IdP
// redirects back to after the user completes authentication there. It
// redeems the upstream code and redirects the user agent on to the MCP
// client's own redirect_uri with the gateway's own authorization code.
type callbackHandler struct {
	broker oauth.AuthorizationBroker
}

// NewCallbackHandler creates a handler for the /auth/callback endpoint.
func NewCallbackHandler(broker oauth.AuthorizationBroker) http.Handler {
	if broker == nil {
		panic("broker cannot be nil")
	}
	return &callbackHandler{broker: broker}
}

func (h *callbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	req := oauth.CallbackRequest{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	}

	result, err := h.broker.Callback(r.Context(), req)
	if err != nil {
		writeOAuthError(w, "Callback", err)
		return
	}

	http.Redirect(w, r, result.RedirectURI, http.StatusFound)
}
