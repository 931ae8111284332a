package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"fishmarket/internal/apperror"

	"go.uber.org/zap"
)

// ErrorResponse represents a structured error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
	Details   any    `json:"details,omitempty"`
	Timestamp string `json:"timestamp"`
}

const CodeRateLimited = "RATE_LIMITED"

// codeForStatus names errors raised by the HTTP layer itself, before any service runs.
func codeForStatus(statusCode int) string {
	switch statusCode {
	case http.StatusBadRequest:
		return string(apperror.CodeValidation)
	case http.StatusUnauthorized:
		return string(apperror.CodeUnauthenticated)
	case http.StatusForbidden:
		return string(apperror.CodeUnauthorized)
	case http.StatusNotFound:
		return string(apperror.CodeNotFound)
	case http.StatusConflict:
		return string(apperror.CodeConflict)
	case http.StatusTooManyRequests:
		return CodeRateLimited
	case http.StatusServiceUnavailable:
		return string(apperror.CodeTransientIO)
	default:
		return string(apperror.CodeInternal)
	}
}

// RespondWithError sends a structured error response
func RespondWithError(w http.ResponseWriter, statusCode int, message string) {
	writeError(w, statusCode, ErrorDetail{Code: codeForStatus(statusCode), Message: message})
}

// RespondWithErrorDetails sends a structured error response with additional details
func RespondWithErrorDetails(w http.ResponseWriter, statusCode int, message string, details any) {
	writeError(w, statusCode, ErrorDetail{Code: codeForStatus(statusCode), Message: message, Details: details})
}

// RespondWithAppError maps a service error onto the envelope. Errors without a code are
// internal; their text is logged and never sent.
func RespondWithAppError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	appErr := apperror.As(err)
	code := apperror.CodeOf(err)
	meta := apperror.MetadataFor(code)

	detail := ErrorDetail{Code: string(code), Message: meta.PublicMessage, Retryable: meta.Retryable}
	if appErr != nil && code != apperror.CodeInternal && code != apperror.CodeTransientIO {
		detail.Message = appErr.Message()
	}
	if appErr != nil && meta.DetailsAllowed {
		detail.Details = appErr.Details()
	}

	if logger != nil {
		fields := []zap.Field{
			zap.String("code", string(code)),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		}
		if meta.HTTPStatus >= http.StatusInternalServerError {
			logger.Error("Request failed", fields...)
		} else {
			logger.Debug("Request rejected", fields...)
		}
	}

	writeError(w, meta.HTTPStatus, detail)
}

func writeError(w http.ResponseWriter, statusCode int, detail ErrorDetail) {
	detail.Timestamp = time.Now().UTC().Format(time.RFC3339)
	RespondWithJSON(w, statusCode, ErrorResponse{Error: detail})
}

// RespondWithValidationErrors sends validation error response
func RespondWithValidationErrors(w http.ResponseWriter, errors []ValidationError) {
	RespondWithErrorDetails(w, http.StatusBadRequest, "validation failed", map[string]any{"validation_errors": errors})
}

// ErrorHandlingMiddleware catches panics and converts them to 500 errors
func ErrorHandlingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("Panic recovered",
						zap.Any("error", err),
						zap.String("path", r.URL.Path),
						zap.String("method", r.Method),
					)

					RespondWithError(w, http.StatusInternalServerError, "internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// RespondWithJSON sends a JSON response
func RespondWithJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}
