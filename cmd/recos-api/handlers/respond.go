// Package handlers provides HTTP handlers for the Local Recos API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/localrecos/recos-engine/internal/domain"
	"github.com/localrecos/recos-engine/internal/observability"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message, detail string) {
	resp := map[string]string{
		"error":   message,
		"message": message,
	}
	if detail != "" {
		resp["detail"] = detail
	}
	writeJSON(w, status, resp)
}

// statusFor maps a domain error type to an HTTP status.
func statusFor(err error) int {
	switch domain.TypeOf(err) {
	case domain.ErrorTypeValidation:
		return http.StatusBadRequest
	case domain.ErrorTypeNotFound:
		return http.StatusNotFound
	case domain.ErrorTypeUpstream:
		return http.StatusBadGateway
	case domain.ErrorTypeConfig:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError logs server-side failures and writes the mapped status.
// Client errors carry their message; server errors keep details out of the body.
func writeDomainError(w http.ResponseWriter, logger *observability.Logger, err error, message string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Int("status", status).Msg(message)
		writeError(w, status, message, "")
		return
	}
	writeError(w, status, errMessage(err, message), "")
}

func errMessage(err error, fallback string) string {
	var de *domain.DomainError
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return fallback
}
