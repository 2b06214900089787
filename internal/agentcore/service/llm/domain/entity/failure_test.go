package entity

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type codeErr int

func (e codeErr) Error() string   { return fmt.Sprintf("status %d", int(e)) }
func (e codeErr) StatusCode() int { return int(e) }

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureReason
	}{
		{"nil", nil, FailureUnknown},
		{"deadline", context.DeadlineExceeded, FailureTimeout},
		{"401", codeErr(401), FailureAuth},
		{"402", codeErr(402), FailureBilling},
		{"429 wrapped", fmt.Errorf("call: %w", codeErr(429)), FailureRateLimit},
		{"503", codeErr(503), FailureUnavailable},
		{"502", codeErr(502), FailureServerError},
		{"message rate limit", errors.New("Rate limit reached for requests"), FailureRateLimit},
		{"message api key", errors.New("Invalid API key provided"), FailureAuth},
		{"message overloaded", errors.New("model is overloaded"), FailureUnavailable},
		{"unrecognised", errors.New("something odd"), FailureUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestNewModelError(t *testing.T) {
	if err := NewModelError(context.Canceled, "p", "m"); err != context.Canceled {
		t.Fatalf("cancellation should pass through, got %v", err)
	}

	err := NewModelError(codeErr(429), "openai", "gpt")
	var me *ModelError
	if !errors.As(err, &me) {
		t.Fatalf("expected ModelError, got %T", err)
	}
	if me.Reason != FailureRateLimit || me.StatusCode != 429 || !me.Reason.IsRetryable() {
		t.Errorf("unexpected: %+v", me)
	}
	if again := NewModelError(err, "other", "x"); again != me {
		t.Errorf("already classified errors should be returned as is")
	}
	if FailureAuth.IsRetryable() {
		t.Error("auth failures are not retryable")
	}
}
