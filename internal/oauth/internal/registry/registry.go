// Package registry implements RFC 7591 Dynamic Client Registration: MCP
// clients register themselves with the gateway at runtime and receive a
// client_id they then use on the /authorize and /token endpoints.
package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"

	ierrors "github.com/mcpauth/gateway/internal/errors"
	"github.com/mcpauth/gateway/internal/oauth/oautherr"
	oauthtypes "github.com/mcpauth/gateway/pkg/oauth"
)

// ClientRegistration is a dynamically registered OAuth client, per RFC 7591
// Section 3.2.1's registration response fields.
type ClientRegistration struct {
	ClientID                string
	ClientName              string
	RedirectURIs            []string
	GrantTypes              []string
	ResponseTypes           []string
	TokenEndpointAuthMethod string
	Scope                   string
	ClientIDIssuedAt        time.Time
}

// Request carries the fields of an incoming registration request this
// gateway honors. Unrecognized RFC 7591 metadata fields are accepted and
// ignored rather than rejected, matching the teacher's permissive handling
// of optional metadata elsewhere in the stack.
type Request struct {
	ClientName   string
	RedirectURIs []string
	GrantTypes   []string
	Scope        string
}

// Registry stores dynamically registered clients in memory. There is no
// persistence layer: a gateway restart requires every MCP client to
// re-register, which is the expected steady state for this component.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*ClientRegistration
}

// New creates an empty client registry.
func New() *Registry {
	return &Registry{
		clients: make(map[string]*ClientRegistration),
	}
}

// Register validates and stores a new dynamic client registration,
// minting a fresh client_id for it.
func (r *Registry) Register(req Request) (*ClientRegistration, error) {
	if len(req.RedirectURIs) == 0 {
		return nil, oautherr.NewInvalidRequestError("Register", "redirect_uris is required")
	}

	grantTypes := req.GrantTypes
	if len(grantTypes) == 0 {
		grantTypes = []string{oauthtypes.GrantTypeAuthorizationCode, oauthtypes.GrantTypeRefreshToken}
	}

	reg := &ClientRegistration{
		ClientID:                uuid.NewString(),
		ClientName:              req.ClientName,
		RedirectURIs:            req.RedirectURIs,
		GrantTypes:              grantTypes,
		ResponseTypes:           []string{oauthtypes.ResponseTypeCode},
		TokenEndpointAuthMethod: oauthtypes.TokenEndpointAuthMethodNone,
		Scope:                   req.Scope,
		ClientIDIssuedAt:        time.Now(),
	}

	r.mu.Lock()
	r.clients[reg.ClientID] = reg
	r.mu.Unlock()

	return reg, nil
}

// Get looks up a registered client by client_id.
func (r *Registry) Get(clientID string) (*ClientRegistration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.clients[clientID]
	if !ok {
		return nil, ierrors.New("registry", "Get", ierrors.ErrNotFound, nil).
			WithContext("client_id", clientID)
	}
	return reg, nil
}

// ValidateRedirectURI reports whether redirectURI was declared by the
// client at registration time, per RFC 6749 Section 3.1.2.3's exact-match
// requirement.
func (r *Registry) ValidateRedirectURI(clientID, redirectURI string) bool {
	reg, err := r.Get(clientID)
	if err != nil {
		return false
	}
	for _, uri := range reg.RedirectURIs {
		if uri == redirectURI {
			return true
		}
	}
	return false
}

// Count returns the number of currently registered clients. Used for
// diagnostics; registrations are never evicted, so this only grows for the
// lifetime of the process.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
