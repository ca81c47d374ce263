package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/justestif/go-spotify-jukebox/internal/auth"
	"github.com/justestif/go-spotify-jukebox/internal/proxy"
)

// errorResponse is the JSON body of every failed /api call.
type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status, body := errorStatus(err)
	writeJSON(w, status, body)
}

// errorStatus maps auth and proxy errors to an HTTP status and body.
func errorStatus(err error) (int, errorResponse) {
	var pe *proxy.Error
	if errors.As(err, &pe) {
		body := errorResponse{Error: string(pe.Kind), Details: pe.Detail}
		switch pe.Kind {
		case proxy.KindUnauthenticated, proxy.KindReauthRequired:
			return http.StatusUnauthorized, body
		case proxy.KindInvalidArgument:
			return http.StatusBadRequest, body
		}
		if pe.Status == http.StatusGatewayTimeout {
			return http.StatusGatewayTimeout, body
		}
		return http.StatusBadGateway, body
	}

	var ae *auth.Error
	if errors.As(err, &ae) {
		body := errorResponse{Error: string(ae.Kind), Details: ae.Detail}
		if ae.Kind == auth.KindNotAuthenticated {
			return http.StatusUnauthorized, body
		}
		return http.StatusBadGateway, body
	}

	return http.StatusInternalServerError, errorResponse{Error: "internal", Details: "unexpected error"}
}
