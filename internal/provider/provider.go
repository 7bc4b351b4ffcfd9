// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package provider defines the uniform contract every external capability
// provider implements, and the error taxonomy fallback chains decide on.
// Planners, research sources, image sources, icon sources, and render
// engines all share the same shape; callers never special-case a provider
// by name.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Provider is one concrete external implementation of a capability. An
// implementation holds no state across calls; Invoke is effectively a pure
// function of (input, deadline). The context carries the per-provider
// timeout set by the calling chain.
type Provider[I, O any] interface {
	// Name returns the configured identifier of this provider.
	Name() string

	// Invoke performs one call. Failures should be returned as *Error so
	// the chain can classify them; a bare error is treated as Unknown.
	Invoke(ctx context.Context, input I) (O, error)
}

// ErrorKind classifies a provider failure for chain decisions.
type ErrorKind string

const (
	// KindTimeout: the call exceeded its deadline. Try the next provider.
	KindTimeout ErrorKind = "timeout"

	// KindRateLimited: the provider refused due to quota. The chain may
	// retry the same provider once before moving on.
	KindRateLimited ErrorKind = "rate_limited"

	// KindInvalidInput: the input is malformed for every provider of the
	// capability. Never retried; the chain aborts immediately.
	KindInvalidInput ErrorKind = "invalid_input"

	// KindUnavailable: the provider is down or misconfigured. Try the
	// next provider.
	KindUnavailable ErrorKind = "unavailable"

	// KindUnknown: unclassified failure. Try the next provider.
	KindUnknown ErrorKind = "unknown"
)

// Error is a classified provider failure.
type Error struct {
	Provider string
	Kind     ErrorKind
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds a classified provider error.
func Errorf(name string, kind ErrorKind, format string, args ...any) *Error {
	return &Error{Provider: name, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies err as coming from the named provider. Context deadline
// errors become Timeout; already-classified errors keep their kind but gain
// the provider name if missing.
func Wrap(name string, err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		if pe.Provider == "" {
			pe.Provider = name
		}
		return pe
	}
	kind := KindUnknown
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &Error{Provider: name, Kind: kind, Err: err}
}

// KindOf extracts the error kind, defaulting to Unknown for unclassified
// errors and Timeout for context deadline errors.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindUnknown
}

// KindFromStatus maps an HTTP response status to an error kind.
func KindFromStatus(status int) ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return KindInvalidInput
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return KindTimeout
	case status >= 500, status == http.StatusUnauthorized, status == http.StatusForbidden, status == http.StatusNotFound:
		return KindUnavailable
	default:
		return KindUnknown
	}
}
