package api

import (
	"encoding/json"
	"net/http"

	"github.com/zjrosen/vhosts/internal/application/hosts"
	"github.com/zjrosen/vhosts/internal/log"
)

// APIError is the JSON body of every error response.
type APIError struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

// respondJSON writes a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.ErrorErr(log.CatAPI, "Failed to encode response", err)
		}
	}
}

// respondRaw writes an already encoded JSON body.
func respondRaw(w http.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// respondError writes a JSON error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, &APIError{Code: status, Message: message})
}

// handleError converts registry errors to HTTP errors.
func handleError(w http.ResponseWriter, err error) {
	kind := hosts.ErrorKind(err)
	status := statusForKind(kind)
	message := err.Error()
	if status == http.StatusInternalServerError {
		log.ErrorErr(log.CatAPI, "Request failed", err, "kind", kind)
		message = "internal server error"
	}
	respondJSON(w, status, &APIError{Code: status, Kind: kind, Message: message})
}

func statusForKind(kind string) int {
	switch kind {
	case "not_found":
		return http.StatusNotFound
	case "lock_timeout", "duplicate":
		return http.StatusConflict
	case "parse":
		return http.StatusUnprocessableEntity
	case "invalid_domain":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
