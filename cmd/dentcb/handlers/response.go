// Package handlers provides HTTP handlers for the assistant API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Pablo751/dentcb/internal/domain"
	"github.com/Pablo751/dentcb/internal/observability"
)

// ErrorResponseDTO is the body of every non-2xx response.
type ErrorResponseDTO struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// statusFor maps a pipeline error to an HTTP status.
func statusFor(err error) int {
	switch domain.TypeOf(err) {
	case domain.ErrorTypeValidation:
		return http.StatusBadRequest
	case domain.ErrorTypeDataNotFound:
		return http.StatusNotFound
	case domain.ErrorTypeNoKeywords:
		return http.StatusUnprocessableEntity
	case domain.ErrorTypeAPI:
		return http.StatusBadGateway
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, logger *observability.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeDomainError writes err with the user-facing message of its type.
func writeDomainError(w http.ResponseWriter, logger *observability.Logger, err error) {
	status := statusFor(err)
	errType := string(domain.TypeOf(err))
	if errType == "" {
		errType = "internal"
	}
	writeJSON(w, logger, status, ErrorResponseDTO{
		Error:   errType,
		Message: domain.UserMessage(err),
		Detail:  err.Error(),
	})
}

func writeBadRequest(w http.ResponseWriter, logger *observability.Logger, message, detail string) {
	writeJSON(w, logger, http.StatusBadRequest, ErrorResponseDTO{
		Error:   string(domain.ErrorTypeValidation),
		Message: message,
		Detail:  detail,
	})
}
