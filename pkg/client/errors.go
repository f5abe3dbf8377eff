package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all network retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of request errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors (except 429).
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors (except 504).
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 rate limit errors.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassGatewayTimeout represents 504 errors. Kept apart from the
	// other 5xx: a 504 while the server-side date filter is active signals
	// that the upstream cannot evaluate the filter, which triggers the
	// client-side filter fallback instead of a plain retry.
	ErrorClassGatewayTimeout ErrorClass = "gateway_timeout"

	// ErrorClassNetwork represents connection/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// ClassifyStatus categorizes an HTTP status code.
func ClassifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusGatewayTimeout:
		return ErrorClassGatewayTimeout
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// ODataError represents an upstream error with classification and detail.
type ODataError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Detail     string
	Err        error
}

// Error implements the error interface.
func (e *ODataError) Error() string {
	msg := fmt.Sprintf("odata %s error (status %d): %s", e.ErrorClass, e.StatusCode, e.Message)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ODataError) Unwrap() error {
	return e.Err
}

// Class extracts the error class from an error chain.
// Errors without a classification count as network errors.
func Class(err error) ErrorClass {
	var oerr *ODataError
	if errors.As(err, &oerr) {
		return oerr.ErrorClass
	}
	return ErrorClassNetwork
}

// IsGatewayTimeout reports whether err is a 504 from the upstream.
func IsGatewayTimeout(err error) bool {
	return Class(err) == ErrorClassGatewayTimeout
}

// IsFatal reports whether err must never be retried (4xx except 429).
func IsFatal(err error) bool {
	return Class(err) == ErrorClassClient
}

// shouldRetry reports whether an error may be retried at the transport
// level. Only unclassified network/decode errors qualify; classified
// status errors are returned to the walker untouched.
func shouldRetry(err error) bool {
	var oerr *ODataError
	return !errors.As(err, &oerr)
}
