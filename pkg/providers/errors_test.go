package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorKindString(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want string
	}{
		{KindRetryable, "retryable"},
		{KindNonRetryable, "non_retryable"},
		{KindTimeout, "timeout"},
		{ErrorKind(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("ErrorKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestCallErrorMessage(t *testing.T) {
	withStatus := &CallError{Provider: "openai", Kind: KindRetryable, StatusCode: 503, Message: "overloaded"}
	if got := withStatus.Error(); !strings.Contains(got, "503") || !strings.Contains(got, "retryable") {
		t.Errorf("Error() = %q, want status and kind present", got)
	}

	noStatus := &CallError{Provider: "openai", Kind: KindTimeout, Message: "deadline"}
	if got := noStatus.Error(); strings.Contains(got, "status") {
		t.Errorf("Error() = %q, want no status segment", got)
	}
}

func TestCallErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewRetryableError("openai", "transport", cause)
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}

	wrapped := fmt.Errorf("calling provider: %w", err)
	var ce *CallError
	if !errors.As(wrapped, &ce) {
		t.Fatal("errors.As through wrap = false, want true")
	}
	if ce.Kind != KindRetryable {
		t.Errorf("Kind = %v, want KindRetryable", ce.Kind)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"pre-classified non-retryable", NewNonRetryableError("p", "auth", nil), KindNonRetryable},
		{"pre-classified timeout", NewTimeoutError("p", "slow", nil), KindTimeout},
		{"wrapped call error", fmt.Errorf("outer: %w", NewNonRetryableError("p", "bad", nil)), KindNonRetryable},
		{"deadline exceeded", context.DeadlineExceeded, KindTimeout},
		{"wrapped deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), KindTimeout},
		{"unclassified", errors.New("broken pipe"), KindRetryable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsProviderAttributable(t *testing.T) {
	if IsProviderAttributable(KindNonRetryable) {
		t.Error("IsProviderAttributable(KindNonRetryable) = true, want false")
	}
	if !IsProviderAttributable(KindRetryable) || !IsProviderAttributable(KindTimeout) {
		t.Error("retryable and timeout kinds must count toward the breaker")
	}
}
