package chat

import "net/http"

// Machine-readable error codes returned in the "code" field.
const (
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeRateLimited    = "RATE_LIMITED"
	CodeInvalidInput   = "INVALID_INPUT"
	CodeContentBlocked = "CONTENT_BLOCKED"
	CodeMissingAPIKey  = "MISSING_API_KEY"
	CodeAPIError       = "API_ERROR"
	CodeInternalError  = "INTERNAL_ERROR"
	CodeStreamError    = "STREAM_ERROR"
)

// ErrorResponse represents an error to return to the client (value type).
type ErrorResponse struct {
	Status  int
	Code    string
	Message string
}

// Error implements error so pipeline failures can travel as errors.
func (e ErrorResponse) Error() string {
	return e.Code + ": " + e.Message
}

// WithMessage returns a copy carrying a more specific message.
func (e ErrorResponse) WithMessage(msg string) ErrorResponse {
	e.Message = msg
	return e
}

// Common error responses
var (
	ErrUnauthorized = ErrorResponse{
		Status:  http.StatusUnauthorized,
		Code:    CodeUnauthorized,
		Message: "Authentication required",
	}
	ErrRateLimited = ErrorResponse{
		Status:  http.StatusTooManyRequests,
		Code:    CodeRateLimited,
		Message: "Too many requests. Please try again later.",
	}
	ErrInvalidInput = ErrorResponse{
		Status:  http.StatusBadRequest,
		Code:    CodeInvalidInput,
		Message: "Invalid input",
	}
	ErrContentBlocked = ErrorResponse{
		Status:  http.StatusBadRequest,
		Code:    CodeContentBlocked,
		Message: "Your message was blocked by content moderation",
	}
	ErrMissingAPIKey = ErrorResponse{
		Status:  http.StatusInternalServerError,
		Code:    CodeMissingAPIKey,
		Message: "AI service is not configured",
	}
	ErrUpstream = ErrorResponse{
		Status:  http.StatusBadGateway,
		Code:    CodeAPIError,
		Message: "AI service error",
	}
	ErrInternal = ErrorResponse{
		Status:  http.StatusInternalServerError,
		Code:    CodeInternalError,
		Message: "An unexpected error occurred",
	}
)
