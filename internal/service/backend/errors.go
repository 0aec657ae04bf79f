package backend

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ConfigurationError reports a backend that cannot be called because its credential or
// model settings are missing. It only disables the personas bound to that backend.
type ConfigurationError struct {
	Provider string
	Message  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Provider, strings.TrimSpace(e.Message))
}

// BackendError is any failed call to a provider: transport failure, non-2xx status or a
// payload that could not be decoded.
type BackendError struct {
	Provider   string
	StatusCode int
	Message    string
	RetryAfter *time.Duration
	Cause      error
}

func (e *BackendError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if msg == "" {
		msg = "request failed"
	}
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s error: %s", e.Provider, msg)
	}
	return fmt.Sprintf("%s error (status=%d): %s", e.Provider, e.StatusCode, msg)
}

func (e *BackendError) Unwrap() error { return e.Cause }

// Retryable reports whether a caller-level retry could plausibly succeed.
func (e *BackendError) Retryable() bool {
	switch {
	case e.StatusCode == 0:
		return e.Cause != nil
	case e.StatusCode == 408, e.StatusCode == 429:
		return true
	case e.StatusCode >= 500:
		return true
	default:
		return false
	}
}

func errorFromStatus(provider string, statusCode int, message string, retryAfter *time.Duration) *BackendError {
	return &BackendError{
		Provider:   provider,
		StatusCode: statusCode,
		Message:    message,
		RetryAfter: retryAfter,
	}
}

func parseRetryAfter(v string) *time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return nil
	}
	d := time.Duration(secs) * time.Second
	return &d
}
