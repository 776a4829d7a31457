package httpx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"
)

type statusErr int

func (e statusErr) Error() string       { return fmt.Sprintf("status %d", int(e)) }
func (e statusErr) HTTPStatusCode() int { return int(e) }

func TestStatusCodeUnwraps(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", statusErr(429))
	if got := StatusCode(err); got != 429 {
		t.Fatalf("StatusCode=%d", got)
	}
	if got := StatusCode(errors.New("plain")); got != 0 {
		t.Fatalf("StatusCode(plain)=%d", got)
	}
}

func TestIsTransportError(t *testing.T) {
	if !IsTransportError(context.DeadlineExceeded) {
		t.Fatalf("deadline should be transport")
	}
	if !IsTransportError(&net.OpError{Op: "dial", Err: errors.New("refused")}) {
		t.Fatalf("op error should be transport")
	}
	if IsTransportError(statusErr(500)) {
		t.Fatalf("status error is not transport")
	}
}

func TestRetryAfterDuration(t *testing.T) {
	resp := &http.Response{Header: http.Header{"Retry-After": []string{"30"}}}
	if got := RetryAfterDuration(resp, time.Second, 10*time.Second); got != 10*time.Second {
		t.Fatalf("capped=%s", got)
	}
	if got := RetryAfterDuration(nil, 2*time.Second, 0); got != 2*time.Second {
		t.Fatalf("fallback=%s", got)
	}
}
