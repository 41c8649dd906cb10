package logging

import (
	"context"
	"testing"
)

func TestWithRequestIDGeneratesWhenEmpty(t *testing.T) {
	ctx, id := WithRequestID(context.Background(), "")
	if id == "" {
		t.Fatal("expected a generated request ID")
	}
	if got := RequestID(ctx); got != id {
		t.Errorf("RequestID(ctx) = %q, want %q", got, id)
	}
}

func TestWithRequestIDKeepsCallerValue(t *testing.T) {
	ctx, id := WithRequestID(context.Background(), "  req-42  ")
	if id != "req-42" {
		t.Errorf("expected trimmed caller ID, got %q", id)
	}
	if got := RequestID(ctx); got != "req-42" {
		t.Errorf("RequestID(ctx) = %q, want %q", got, "req-42")
	}
}

func TestRequestIDEmptyWithoutValue(t *testing.T) {
	if got := RequestID(context.Background()); got != "" {
		t.Errorf("expected empty ID on a bare context, got %q", got)
	}
	if got := RequestID(nil); got != "" {
		t.Errorf("expected empty ID on a nil context, got %q", got)
	}
}
