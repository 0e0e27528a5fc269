package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	ierrors "github.com/mcpauth/gateway/internal/errors"
	pkgoauth "github.com/mcpauth/gateway/pkg/oauth"
)

// oauthErrorBody is the RFC 6749 Section 5.2 error response shape shared by
// the /register, /authorize, and /token endpoints.
type oauthErrorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// writeOAuthError renders err as an RFC 6749 error response, picking the
// HTTP status from the error's DomainError.Kind and the "error"/
// "error_description" body fields from its oautherr context.
func writeOAuthError(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	code := ierrors.ErrorCodeServerError
	description := err.Error()

	var de *ierrors.DomainError
	if errors.As(err, &de) {
		if v, ok := de.Context["oauth_error"].(string); ok && v != "" {
			code = v
		}
		if v, ok := de.Context["error_description"].(string); ok && v != "" {
			description = v
		}
		switch {
		case de.Is(ierrors.ErrBadRequest):
			status = http.StatusBadRequest
		case de.Is(ierrors.ErrUnauthorized):
			status = http.StatusUnauthorized
		case de.Is(ierrors.ErrInternal):
			status = http.StatusBadGateway
		}
	}

	slog.Warn("oauth request failed", "op", op, "error", code, "description", description)

	w.Header().Set(pkgoauth.HeaderContentType, pkgoauth.ContentTypeJSON)
	w.WriteHeader(status)
	body := oauthErrorBody{Error: code, ErrorDescription: description}
	if encErr := json.NewEncoder(w).Encode(body); encErr != nil {
		slog.Error("failed to encode oauth error response", "error", encErr)
	}
}
