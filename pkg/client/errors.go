package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx responses.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx responses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassUnexpected represents non-2xx responses outside 4xx/5xx.
	ErrorClassUnexpected ErrorClass = "unexpected"

	// ErrorClassNetwork represents connection and protocol errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassTimeout represents request timeouts and deadline expiry.
	ErrorClassTimeout ErrorClass = "timeout"
)

// APIError is returned for a non-2xx response. The body is not kept.
type APIError struct {
	StatusCode int
	Status     string
	Class      ErrorClass
}

// Error implements the error interface.
// Format: "Error: 500 Internal Server Error"
func (e *APIError) Error() string {
	status := strings.TrimSpace(e.Status)
	if status == "" {
		status = fmt.Sprintf("%d", e.StatusCode)
	}
	return "Error: " + status
}

// TransportError is returned when no usable response was received.
type TransportError struct {
	Class ErrorClass
	Err   error
}

// Error implements the error interface.
// Format: "Request failed: <detail>"
func (e *TransportError) Error() string {
	return fmt.Sprintf("Request failed: %v", e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// classifyStatus categorizes a non-2xx status code.
func classifyStatus(code int) ErrorClass {
	switch {
	case code >= 400 && code < 500:
		return ErrorClassClient
	case code >= 500:
		return ErrorClassServer
	default:
		return ErrorClassUnexpected
	}
}

// classifyTransport categorizes an error from http.Client.Do or body reads.
func classifyTransport(err error) ErrorClass {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorClassTimeout
	}

	return ErrorClassNetwork
}

// classOf returns the class carried by an error produced by this package.
func classOf(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Class
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return transportErr.Class
	}

	return ErrorClassNetwork
}

func asAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}
