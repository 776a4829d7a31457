package completion

import (
	"errors"
	"fmt"
	"time"
)

type ErrorKind string

const (
	// KindRateLimited is the only kind with a recovery path (model fallback).
	KindRateLimited ErrorKind = "rate_limited"
	// KindTransport covers network failures and timeouts.
	KindTransport ErrorKind = "transport"
	// KindProtocol covers undecodable or structurally empty responses.
	KindProtocol ErrorKind = "protocol"
	// KindUpstream covers every other non-2xx answer from the provider.
	KindUpstream ErrorKind = "upstream"
)

type ProviderError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "provider error"
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("completion %s (status=%d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("completion %s: %s", e.Kind, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// KindOf returns the ErrorKind carried by err. Errors that are not provider
// errors are reported as transport failures.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) && pe != nil {
		return pe.Kind
	}
	return KindTransport
}

func IsRateLimited(err error) bool {
	return err != nil && KindOf(err) == KindRateLimited
}
