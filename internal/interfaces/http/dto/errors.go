package dto

import (
	"net/http"

	"github.com/marketplace/returns/internal/domain/shared"
)

// Transport error codes. Domain codes (shared.Code*) and their specific
// variants such as INVALID_QUANTITY pass through to clients unchanged.
const (
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeInvalidToken     = "INVALID_TOKEN"
	ErrCodeTokenExpired     = "TOKEN_EXPIRED"
	ErrCodeInvalidSignature = "INVALID_SIGNATURE"
	ErrCodeRequestTooLarge  = "REQUEST_TOO_LARGE"
	ErrCodeRequestTimeout   = "REQUEST_TIMEOUT"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// KindHTTPStatus maps error kinds to HTTP status codes
var KindHTTPStatus = map[shared.ErrorKind]int{
	shared.KindValidation:        http.StatusBadRequest,
	shared.KindInvalidTransition: http.StatusUnprocessableEntity,
	shared.KindNotFound:          http.StatusNotFound,
	shared.KindUnauthorized:      http.StatusUnauthorized,
	shared.KindForbidden:         http.StatusForbidden,
	shared.KindCourier:           http.StatusBadGateway,
	shared.KindPersistence:       http.StatusInternalServerError,
}

// ErrorCodeHTTPStatus maps the generic codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	shared.CodeValidation:        http.StatusBadRequest,
	shared.CodeInvalidTransition: http.StatusUnprocessableEntity,
	shared.CodeNotFound:          http.StatusNotFound,
	shared.CodeUnauthorized:      http.StatusUnauthorized,
	shared.CodeForbidden:         http.StatusForbidden,
	shared.CodeCourier:           http.StatusBadGateway,
	shared.CodePersistence:       http.StatusInternalServerError,

	ErrCodeBadRequest:       http.StatusBadRequest,
	ErrCodeInvalidToken:     http.StatusUnauthorized,
	ErrCodeTokenExpired:     http.StatusUnauthorized,
	ErrCodeInvalidSignature: http.StatusUnauthorized,
	ErrCodeRequestTooLarge:  http.StatusRequestEntityTooLarge,
	ErrCodeRequestTimeout:   http.StatusGatewayTimeout,
	ErrCodeRateLimited:      http.StatusTooManyRequests,
	ErrCodeInternal:         http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status for an error code.
// Unknown codes map to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// GetHTTPStatusForKind returns the HTTP status for an error kind.
// Errors that are not DomainErrors ("" kind) map to 500.
func GetHTTPStatusForKind(kind shared.ErrorKind) int {
	if status, ok := KindHTTPStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}
