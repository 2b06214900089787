package entity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// FailureReason classifies why a model request failed.
type FailureReason int32

const (
	FailureUnknown FailureReason = iota
	FailureAuth
	FailureRateLimit
	FailureBilling
	FailureTimeout
	FailureFormat
	FailureUnavailable
	FailureServerError
)

func (r FailureReason) String() string {
	switch r {
	case FailureUnknown:
		return "unknown"
	case FailureAuth:
		return "auth"
	case FailureRateLimit:
		return "rate_limit"
	case FailureBilling:
		return "billing"
	case FailureTimeout:
		return "timeout"
	case FailureFormat:
		return "format"
	case FailureUnavailable:
		return "unavailable"
	case FailureServerError:
		return "server_error"
	default:
		return fmt.Sprintf("FailureReason(%d)", r)
	}
}

// IsRetryable reports whether the same request may succeed if sent again.
func (r FailureReason) IsRetryable() bool {
	switch r {
	case FailureRateLimit, FailureTimeout, FailureUnavailable, FailureServerError:
		return true
	default:
		return false
	}
}

// ModelError is a classified model failure.
type ModelError struct {
	Reason     FailureReason
	Provider   string
	Model      string
	StatusCode int
	Cause      error
}

func (e *ModelError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s/%s: ", e.Reason, e.Provider, e.Model)
	if e.Cause != nil {
		sb.WriteString(e.Cause.Error())
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&sb, " (HTTP %d)", e.StatusCode)
	}
	return sb.String()
}

func (e *ModelError) Unwrap() error { return e.Cause }

// NewModelError classifies err. Caller cancellation is not a model failure and
// is returned unchanged.
func NewModelError(err error, provider, model string) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}
	var me *ModelError
	if errors.As(err, &me) {
		return me
	}
	return &ModelError{
		Reason:     ClassifyError(err),
		Provider:   provider,
		Model:      model,
		StatusCode: extractStatusCode(err),
		Cause:      err,
	}
}

// ClassifyError determines the reason from a raw error: HTTP status first,
// then message patterns.
func ClassifyError(err error) FailureReason {
	if err == nil {
		return FailureUnknown
	}
	var me *ModelError
	if errors.As(err, &me) {
		return me.Reason
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	if status := extractStatusCode(err); status != 0 {
		if r := classifyFromStatus(status); r != FailureUnknown {
			return r
		}
	}
	return classifyFromMessage(err.Error())
}

func classifyFromStatus(status int) FailureReason {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return FailureAuth
	case http.StatusPaymentRequired:
		return FailureBilling
	case http.StatusTooManyRequests:
		return FailureRateLimit
	case http.StatusRequestTimeout:
		return FailureTimeout
	case http.StatusBadRequest:
		return FailureFormat
	case http.StatusServiceUnavailable:
		return FailureUnavailable
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusGatewayTimeout:
		return FailureServerError
	}
	return FailureUnknown
}

var messagePatterns = []struct {
	reason   FailureReason
	patterns []string
}{
	{FailureTimeout, []string{"timeout", "timed out", "deadline exceeded"}},
	{FailureRateLimit, []string{"rate limit", "rate_limit", "too many requests", "quota exceeded", "throttl"}},
	{FailureAuth, []string{"unauthorized", "authentication", "invalid api key", "invalid_api_key", "forbidden", "access denied"}},
	{FailureBilling, []string{"billing", "payment", "insufficient_quota"}},
	{FailureUnavailable, []string{"unavailable", "overloaded", "connection refused"}},
	{FailureServerError, []string{"internal server error", "internal error", "bad gateway"}},
}

func classifyFromMessage(msg string) FailureReason {
	lower := strings.ToLower(msg)
	for _, group := range messagePatterns {
		for _, p := range group.patterns {
			if strings.Contains(lower, p) {
				return group.reason
			}
		}
	}
	return FailureUnknown
}

type statusCodeCarrier interface {
	StatusCode() int
}

type statusCarrier interface {
	Status() int
}

func extractStatusCode(err error) int {
	var c statusCodeCarrier
	if errors.As(err, &c) {
		return c.StatusCode()
	}
	var s statusCarrier
	if errors.As(err, &s) {
		return s.Status()
	}
	return 0
}
