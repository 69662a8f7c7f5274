package handlers

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mwhitby/lingoduel/internal/errors"
	"github.com/mwhitby/lingoduel/internal/services"
)

// Error codes for standardized API error responses
const (
	ErrCodeBadRequest        = "BAD_REQUEST"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeInternalServer    = "INTERNAL_SERVER_ERROR"
	ErrCodeNoContent         = "NO_CONTENT_AVAILABLE"
	ErrCodeAlreadySubmitted  = "ALREADY_SUBMITTED"
	ErrCodeInvalidMatchState = "INVALID_MATCH_STATE"
	ErrCodePowerUpCooldown   = "POWERUP_ON_COOLDOWN"
	ErrCodeNotYourTurn       = "NOT_YOUR_TURN"
)

// APIError represents an error with an HTTP status code and error code
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return e.Message
}

// BadRequest creates a 400 error with a custom message
func BadRequest(message string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Code: ErrCodeBadRequest, Message: message}
}

// NotFound creates a 404 error with a custom message
func NotFound(message string) *APIError {
	return &APIError{Status: http.StatusNotFound, Code: ErrCodeNotFound, Message: message}
}

// Conflict creates a 409 error with a custom message and code
func Conflict(code, message string) *APIError {
	return &APIError{Status: http.StatusConflict, Code: code, Message: message}
}

// InternalError creates a 500 error hiding the original message
func InternalError() *APIError {
	return &APIError{Status: http.StatusInternalServerError, Code: ErrCodeInternalServer, Message: "Internal server error"}
}

// respondJSON writes a JSON response with the given status code
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondOK writes a 200 OK JSON response
func respondOK(w http.ResponseWriter, data interface{}) {
	respondJSON(w, http.StatusOK, data)
}

// respondError writes an error response
func (h *Handlers) respondError(w http.ResponseWriter, err error) {
	apiErr, ok := err.(*APIError)
	if !ok {
		apiErr = h.toAPIError(err)
	}
	if apiErr.Status >= http.StatusInternalServerError {
		h.Log.Error("request failed", "error", err)
	}
	respondJSON(w, apiErr.Status, apiErr)
}

// decodeJSON decodes JSON from request body into the target
func decodeJSON(r *http.Request, target interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		if err == io.EOF {
			return BadRequest("Request body is empty")
		}
		return BadRequest("Invalid JSON: " + err.Error())
	}
	return nil
}

// requireParam extracts a non-empty URL parameter
func requireParam(r *http.Request, name string) (string, error) {
	param := chi.URLParam(r, name)
	if param == "" {
		return "", BadRequest("Missing " + name + " parameter")
	}
	return param, nil
}

// toAPIError converts service errors to appropriate API errors
func (h *Handlers) toAPIError(err error) *APIError {
	var appErr *errors.Error
	if stderrors.As(err, &appErr) {
		switch appErr.Kind {
		case errors.ErrNotFound:
			return NotFound(appErr.Message)
		case errors.ErrValidation, errors.ErrInvalidInput:
			return &APIError{Status: http.StatusBadRequest, Code: ErrCodeValidation, Message: appErr.Message}
		case errors.ErrConflict:
			return Conflict(ErrCodeConflict, appErr.Message)
		default:
			return InternalError()
		}
	}

	switch err {
	case services.ErrNotInLobby:
		return NotFound(err.Error())
	case services.ErrNoContentAvailable:
		return Conflict(ErrCodeNoContent, err.Error())
	case services.ErrDuplicateSubmission:
		return Conflict(ErrCodeAlreadySubmitted, err.Error())
	case services.ErrInvalidMatchState, services.ErrPlayersNotFound:
		return Conflict(ErrCodeInvalidMatchState, err.Error())
	case services.ErrNotYourTurn:
		return Conflict(ErrCodeNotYourTurn, err.Error())
	case services.ErrNotParticipant:
		return &APIError{Status: http.StatusForbidden, Code: ErrCodeForbidden, Message: err.Error()}
	case services.ErrPowerUpOnCooldown:
		return &APIError{Status: http.StatusTooManyRequests, Code: ErrCodePowerUpCooldown, Message: err.Error()}
	}

	if svcErr, ok := err.(*services.ServiceError); ok {
		return BadRequest(svcErr.Message)
	}
	return InternalError()
}
