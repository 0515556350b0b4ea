package utils

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/zhouzirui/mana-voice/backend/pkg/errorsx"
	"github.com/zhouzirui/mana-voice/backend/pkg/log"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string       `json:"error"`
	Kind  errorsx.Kind `json:"kind,omitempty"`
}

// RespondJSON writes payload as JSON with the given status.
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warnw("failed to encode response", "error", err)
	}
}

// RespondError writes a plain error message.
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, ErrorBody{Error: message})
}

// RespondKindError maps err's kind to a status code and writes it. A turn that ran out
// of time is a 504 regardless of kind.
func RespondKindError(w http.ResponseWriter, err error) {
	kind := errorsx.KindOf(err)
	status := StatusForKind(kind)
	message := err.Error()
	if errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
		message = "request timed out"
	}
	if status == http.StatusInternalServerError {
		log.Errorw("request failed", "kind", kind, "error", err)
		message = "internal error"
	}
	RespondJSON(w, status, ErrorBody{Error: message, Kind: kind})
}

// StatusForKind returns the HTTP status used for an error kind.
func StatusForKind(kind errorsx.Kind) int {
	switch kind {
	case errorsx.KindSessionNotFound:
		return http.StatusNotFound
	case errorsx.KindSessionAlreadyClosed:
		return http.StatusConflict
	case errorsx.KindExternalServiceUnavailable:
		return http.StatusServiceUnavailable
	case errorsx.KindInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
