package handlers

import "net/http"

// revokeHandler serves RFC 7009 token revocation. The gateway holds no
// local token state to revoke (access/refresh tokens are the IdP's own,
// and the gateway's proxy codes are already single-use and short-lived),
// so this always reports success without contacting the IdP.
type revokeHandler struct{}

// NewRevokeHandler creates a handler for the /revoke endpoint.
func NewRevokeHandler() http.Handler {
	return &revokeHandler{}
}

func (h *revokeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}
