// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package chain implements the ordered fallback coordinator used by every
// capability: try providers strictly in configured priority order, stop at
// the first success, and accumulate the full attempt history for
// diagnostics. Chains are stateless and reentrant; one chain value may be
// run concurrently for different jobs and sections.
package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/renderforge/internal/provider"
)

// Attempt records one provider invocation inside a chain run.
type Attempt struct {
	Provider  string
	Success   bool
	Kind      provider.ErrorKind
	Err       error
	StartedAt time.Time
	EndedAt   time.Time
}

// ExhaustedError reports that every provider in the chain failed. It
// carries the full attempt history.
type ExhaustedError struct {
	Capability string
	Attempts   []Attempt
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = fmt.Sprintf("%s (%s)", a.Provider, a.Kind)
	}
	return fmt.Sprintf("%s: all providers exhausted: %s", e.Capability, strings.Join(parts, ", "))
}

// InvalidInputError reports that a provider classified the input as
// malformed. The chain aborts without trying further providers: the input
// is bad for every provider, not just the one that noticed.
type InvalidInputError struct {
	Capability string
	Attempt    Attempt
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("%s: invalid input: %v", e.Capability, e.Attempt.Err)
}

func (e *InvalidInputError) Unwrap() error { return e.Attempt.Err }

// Chain tries an ordered list of providers for one capability.
type Chain[I, O any] struct {
	capability      string
	providers       []provider.Provider[I, O]
	providerTimeout time.Duration
	sameRetries     int
}

// Option adjusts chain behavior at construction time.
type Option func(*options)

type options struct {
	sameRetries int
}

// WithSameProviderRetries sets how many extra attempts a RateLimited
// provider gets before the chain moves on. Render chains pass 0: a render
// engine that failed for this input is never re-run within the same cycle.
func WithSameProviderRetries(n int) Option {
	return func(o *options) { o.sameRetries = n }
}

// New builds a chain over the given providers in priority order. The order
// is a correctness requirement for cost and quality, not a hint. Provider
// resolution from configured names happens before this call; a chain never
// looks a provider up by string at run time.
func New[I, O any](capability string, providers []provider.Provider[I, O], providerTimeout time.Duration, opts ...Option) (*Chain[I, O], error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("%s: no providers configured", capability)
	}
	if providerTimeout <= 0 {
		return nil, fmt.Errorf("%s: provider timeout must be positive", capability)
	}
	o := options{sameRetries: 1}
	for _, opt := range opts {
		opt(&o)
	}
	return &Chain[I, O]{
		capability:      capability,
		providers:       providers,
		providerTimeout: providerTimeout,
		sameRetries:     o.sameRetries,
	}, nil
}

// Run tries providers in order until one succeeds or all are exhausted.
// The returned attempts cover every invocation made, including the
// successful one. On failure the error is either *InvalidInputError,
// *ExhaustedError, or the parent context's error.
func (c *Chain[I, O]) Run(ctx context.Context, input I) (O, []Attempt, error) {
	var zero O
	var attempts []Attempt

	for _, p := range c.providers {
		for try := 0; ; try++ {
			if err := ctx.Err(); err != nil {
				return zero, attempts, err
			}

			callCtx, cancel := context.WithTimeout(ctx, c.providerTimeout)
			started := time.Now()
			out, err := p.Invoke(callCtx, input)
			cancel()

			a := Attempt{
				Provider:  p.Name(),
				StartedAt: started,
				EndedAt:   time.Now(),
			}
			if err == nil {
				a.Success = true
				attempts = append(attempts, a)
				return out, attempts, nil
			}

			a.Kind = provider.KindOf(err)
			a.Err = err
			attempts = append(attempts, a)

			// The parent context ending is not a provider failure.
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return zero, attempts, ctx.Err()
			}

			if a.Kind == provider.KindInvalidInput {
				return zero, attempts, &InvalidInputError{Capability: c.capability, Attempt: a}
			}
			if a.Kind == provider.KindRateLimited && try < c.sameRetries {
				continue
			}
			break
		}
	}

	return zero, attempts, &ExhaustedError{Capability: c.capability, Attempts: attempts}
}
