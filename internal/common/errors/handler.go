// internal/common/errors/handler.go
package errors

import (
	stderrors "errors"
	"net/http"
)

// ==========================
// HTTP Error Integration
// ==========================

// HTTPStatusMapping maps internal error codes to HTTP status codes. The
// boundary layer uses this; the core never sees HTTP.
var HTTPStatusMapping = map[ErrorCode]int{
	ErrCodeApplicationNotFound:      http.StatusNotFound,
	ErrCodeGrantNotFound:            http.StatusNotFound,
	ErrCodeInvalidStatus:            http.StatusBadRequest,
	ErrCodeValidationFailed:         http.StatusBadRequest,
	ErrCodeDuplicateApplication:     http.StatusConflict,
	ErrCodeAggregationFailed:        http.StatusInternalServerError,
	ErrCodePersistenceFailed:        http.StatusInternalServerError,
	ErrCodeDatabaseConnectionFailed: http.StatusServiceUnavailable,
	ErrCodeQueryExecutionFailed:     http.StatusInternalServerError,
	ErrCodeSearchQueryFailed:        http.StatusInternalServerError,
	ErrCodeNotificationSendFailed:   http.StatusInternalServerError,
	ErrCodeUnauthorized:             http.StatusUnauthorized,
	ErrCodeForbidden:                http.StatusForbidden,
	ErrCodeRateLimited:              http.StatusTooManyRequests,
	ErrCodeInternalError:            http.StatusInternalServerError,
}

// HTTPStatus returns the HTTP status for an error code.
func HTTPStatus(code ErrorCode) int {
	if status, ok := HTTPStatusMapping[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Normalize ensures any error is a StandardError.
func Normalize(err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}
