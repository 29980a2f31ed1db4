package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cryptotracker/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	json.NewEncoder(w).Encode(response)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// parseJSONBody parses JSON request body.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// Transport-level error codes
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// respondServiceError maps a service error to an HTTP response.
func respondServiceError(w http.ResponseWriter, err error) {
	var serviceErr *types.ServiceError
	if !errors.As(err, &serviceErr) {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "An internal error occurred", nil)
		return
	}

	respondError(w, statusForCode(serviceErr.Code), serviceErr.Code, serviceErr.Message, serviceErr.Details)
}

func statusForCode(code string) int {
	switch code {
	case types.CodeValidation, types.CodePasswordMismatch, types.CodeInviteRequired:
		return http.StatusBadRequest
	case types.CodeBadCredentials, types.CodeUnauthorized:
		return http.StatusUnauthorized
	case types.CodeForbidden, types.CodeInviteInvalid:
		return http.StatusForbidden
	case types.CodeNotFound:
		return http.StatusNotFound
	case types.CodeUsernameTaken, types.CodeDuplicateAddress, types.CodeDuplicateAccount:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
