package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "validation", err: NewValidationError("userId is required"), want: KindValidation},
		{name: "forbidden", err: NewForbiddenError("not your job"), want: KindForbidden},
		{name: "not found", err: NewNotFoundError("job", "abc"), want: KindNotFound},
		{name: "wrapped upstream", err: fmt.Errorf("chunk 2: %w", NewUpstreamError("embedding failed", errors.New("boom"))), want: KindUpstream},
		{name: "plain error is internal", err: errors.New("disk on fire"), want: KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKind_Retryable(t *testing.T) {
	for _, k := range []Kind{KindInternal, KindValidation, KindAuth, KindForbidden, KindNotFound} {
		if k.Retryable() {
			t.Errorf("%v.Retryable() = true, want false", k)
		}
	}
	if !KindUpstream.Retryable() {
		t.Errorf("upstream.Retryable() = false, want true")
	}
}

func TestPublicMessage(t *testing.T) {
	internal := NewInternalError(errors.New("password=hunter2"))
	if got := PublicMessage(internal); got != "internal error" {
		t.Errorf("PublicMessage() = %q, want %q", got, "internal error")
	}
	if got := PublicMessage(errors.New("raw")); got != "internal error" {
		t.Errorf("PublicMessage() = %q, want %q", got, "internal error")
	}
	if got := PublicMessage(NewNotFoundError("job", "x")); got != `job "x" not found` {
		t.Errorf("PublicMessage() = %q", got)
	}
	if got := PublicMessage(nil); got != "" {
		t.Errorf("PublicMessage(nil) = %q, want empty", got)
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("timeout")
	err := NewUpstreamError("embedding failed", cause)
	if !errors.Is(err, cause) {
		t.Errorf("errors.Is() did not find cause through Error")
	}
}
