package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestMonitorErrorMatchesBaseErrors(t *testing.T) {
	cases := []struct {
		err  error
		base error
	}{
		{WrapTimeoutError("fetch_latest", "/latest", errors.New("deadline exceeded")), ErrTimeout},
		{WrapConnectionError("fetch_latest", "/latest", errors.New("refused")), ErrConnectionFailed},
		{WrapMalformedError("fetch_latest", "/latest", errors.New("bad json")), ErrMalformedResponse},
		{NewValidationError("update_thresholds", "unknown kind %q", "swap"), ErrInvalidInput},
	}

	for _, tc := range cases {
		if !errors.Is(tc.err, tc.base) {
			t.Errorf("%v should match %v", tc.err, tc.base)
		}
	}
}

func TestUnwrapPreservesCause(t *testing.T) {
	cause := errors.New("socket closed")
	err := WrapConnectionError("fetch_latest", "/latest", cause)

	if !errors.Is(err, cause) {
		t.Error("wrapped error should unwrap to its cause")
	}
}

func TestRetryability(t *testing.T) {
	if !IsRetryableError(WrapTimeoutError("fetch_latest", "/latest", ErrTimeout)) {
		t.Error("timeouts are retryable on the next cycle")
	}
	if !IsRetryableError(WrapConnectionError("fetch_latest", "/latest", ErrConnectionFailed)) {
		t.Error("connection failures are retryable on the next cycle")
	}
	if IsRetryableError(WrapMalformedError("fetch_latest", "/latest", ErrMalformedResponse)) {
		t.Error("malformed payloads will not improve on retry")
	}
	if IsRetryableError(NewValidationError("update_thresholds", "negative threshold")) {
		t.Error("validation errors are caller bugs, not transient faults")
	}
}

func TestStatusCodeRetryability(t *testing.T) {
	cases := []struct {
		code      int
		retryable bool
	}{
		{500, true},
		{503, true},
		{429, true},
		{408, true},
		{404, false},
		{400, false},
	}

	for _, tc := range cases {
		err := WrapAPIError("fetch_latest", "/latest", fmt.Errorf("status %d", tc.code), tc.code)
		if got := IsRetryableError(err); got != tc.retryable {
			t.Errorf("status %d: retryable = %v, want %v", tc.code, got, tc.retryable)
		}
	}
}

func TestValidationErrorDetection(t *testing.T) {
	if !IsValidationError(NewValidationError("update_thresholds", "bad value")) {
		t.Error("validation error not detected")
	}
	if IsValidationError(WrapAPIError("fetch_latest", "/latest", errors.New("boom"), 500)) {
		t.Error("api error misclassified as validation")
	}
}

func TestErrorStringIncludesOperationAndEndpoint(t *testing.T) {
	err := WrapAPIError("query_range", "/query", errors.New("status 500"), 500)
	want := "query_range failed on /query: status 500"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}
