package vapi

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownTarget is returned when an operation names a target kind with no
	// endpoint mapping. This indicates a code defect, not a runtime condition.
	ErrUnknownTarget = errors.New("unknown vAPI target")

	// ErrUnknownAction is returned when an action operation names an unsupported action.
	ErrUnknownAction = errors.New("unknown vAPI action")

	// ErrAuthFailed is returned when every session authentication method has been exhausted.
	ErrAuthFailed = errors.New("all authentication methods failed")
)

// UpstreamError carries an application-level error message extracted from a
// vAPI response body (the "error" envelope field). It is recoverable by the
// caller and is never retried automatically.
type UpstreamError struct {
	Message string
}

func (e *UpstreamError) Error() string {
	return "vAPI error: " + e.Message
}

// statusError represents a non-2xx HTTP response from vCenter.
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("vCenter returned HTTP %d", e.Code)
	}
	return fmt.Sprintf("vCenter returned HTTP %d: %s", e.Code, e.Body)
}

// IsNotFound reports whether err represents an HTTP 404 from vCenter.
func IsNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.Code == 404
}

// isUnauthorized reports whether err indicates a 401-class condition. The
// message check catches upstream failures that only surface "401" in text.
func isUnauthorized(err error) bool {
	if err == nil {
		return false
	}
	var se *statusError
	if errors.As(err, &se) && se.Code == 401 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "401") || strings.Contains(strings.ToLower(msg), "unauthorized")
}
