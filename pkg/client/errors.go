package client

import (
	"errors"
	"fmt"
)

// ErrorClass represents a classification of catalog API failures.
type ErrorClass string

const (
	// ErrorClassQuota means the account-level request quota is exhausted.
	ErrorClassQuota ErrorClass = "quota"

	// ErrorClassTimeout represents a network-level timeout of a single call.
	ErrorClassTimeout ErrorClass = "timeout"

	// ErrorClassClient represents other 4xx errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents transport errors that are not timeouts.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents a 200 response whose body is not a valid page.
	ErrorClassDecode ErrorClass = "decode"
)

// Reasons the API reports in error.errors[].reason that mean the quota is gone.
var quotaReasons = map[string]bool{
	"quotaExceeded":      true,
	"dailyLimitExceeded": true,
}

// ErrMissingAPIKey is returned by New when no API key is configured.
var ErrMissingAPIKey = errors.New("api key is required")

// APIError is a classified catalog API failure.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	Reason     string
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := e.Message
	if e.Reason != "" {
		msg = fmt.Sprintf("%s: %s", e.Reason, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("catalog API %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, msg, e.Err)
	}
	return fmt.Sprintf("catalog API %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, msg)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Class returns the classification of the error.
func (e *APIError) Class() ErrorClass {
	return e.ErrorClass
}

// ClassOf extracts the ErrorClass from err, or "" when err carries none.
func ClassOf(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorClass
	}
	return ""
}
