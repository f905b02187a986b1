package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode is the machine-readable error kind returned in the "error"
// field of a JSON error body.
type ErrorCode string

const (
	ErrCodeInvalidOffer       ErrorCode = "invalid_offer"
	ErrCodeInvalidCandidate   ErrorCode = "invalid_candidate"
	ErrCodeUnknownPeer        ErrorCode = "unknown_peer"
	ErrCodeExhausted          ErrorCode = "exhausted"
	ErrCodeBadRequest         ErrorCode = "bad_request"
	ErrCodeRateLimited        ErrorCode = "rate_limited"
	ErrCodeInternal           ErrorCode = "internal_error"
	ErrCodeServiceUnavailable ErrorCode = "service_unavailable"
)

// AppError is an application error carrying the HTTP status and JSON kind
// it should be rendered as.
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
	Context    map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func NewAppError(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus}
}

func WrapError(err error, code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus, Cause: err}
}

func NewInvalidOfferError(message string) *AppError {
	return NewAppError(ErrCodeInvalidOffer, message, http.StatusBadRequest)
}

func NewInvalidCandidateError(message string) *AppError {
	return NewAppError(ErrCodeInvalidCandidate, message, http.StatusBadRequest)
}

func NewUnknownPeerError(peerID string) *AppError {
	return NewAppError(ErrCodeUnknownPeer, fmt.Sprintf("peer %q is not known", peerID), http.StatusNotFound)
}

func NewExhaustedError() *AppError {
	return NewAppError(ErrCodeExhausted, "peer capacity reached", http.StatusServiceUnavailable)
}

func NewBadRequestError(message string) *AppError {
	return NewAppError(ErrCodeBadRequest, message, http.StatusBadRequest)
}

func NewRateLimitedError() *AppError {
	return NewAppError(ErrCodeRateLimited, "rate limit exceeded", http.StatusTooManyRequests)
}

func NewInternalError(message string) *AppError {
	return NewAppError(ErrCodeInternal, message, http.StatusInternalServerError)
}

func NewServiceUnavailableError(message string) *AppError {
	return NewAppError(ErrCodeServiceUnavailable, message, http.StatusServiceUnavailable)
}

// IsAppError reports whether err is an *AppError.
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// GetAppError extracts an *AppError from err's unwrap chain, or nil.
func GetAppError(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	type unwrapper interface {
		Unwrap() error
	}
	if u, ok := err.(unwrapper); ok {
		return GetAppError(u.Unwrap())
	}
	return nil
}
