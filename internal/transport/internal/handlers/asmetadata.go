package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mcpauth/gateway/internal/oauth"
	"github.com/mcpauth/gateway/internal/transport/transportcore"
	pkgoauth "github.com/mcpauth/gateway/pkg/oauth"
)

// asMetadataHandler serves OAuth 2.0 Authorization Server Metadata per RFC
// 8414. The gateway is the authorization server the protected resource
// metadata points clients at, so this document and the protected resource
// metadata are generated from the same underlying service.
type asMetadataHandler struct {
	service   oauth.MetadataService
	responder transportcore.ErrorResponder
}

// NewAuthorizationServerMetadataHandler creates a handler for the
// /.well-known/oauth-authorization-server endpoint.
func NewAuthorizationServerMetadataHandler(service oauth.MetadataService, responder transportcore.ErrorResponder) http.Handler {
	if service == nil {
		panic("service cannot be nil")
	}
	if responder == nil {
		panic("responder cannot be nil")
	}
	return &asMetadataHandler{service: service, responder: responder}
}

func (h *asMetadataHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	metadata, err := h.service.GetAuthorizationServerMetadata(r.Context())
	if err != nil {
		slog.Error("failed to get authorization server metadata", "error", err)
		h.responder.InternalError(w, err)
		return
	}

	w.Header().Set(pkgoauth.HeaderContentType, pkgoauth.ContentTypeJSON)
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(metadata); err != nil {
		slog.Error("failed to encode authorization server metadata", "error", err)
	}
}
