// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package chain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pdiddy/renderforge/internal/provider"
)

// fakeProvider returns canned outcomes in sequence, then repeats the last.
type fakeProvider struct {
	name     string
	outcomes []outcome
	calls    int
}

type outcome struct {
	out string
	err error
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Invoke(_ context.Context, _ string) (string, error) {
	i := f.calls
	if i >= len(f.outcomes) {
		i = len(f.outcomes) - 1
	}
	f.calls++
	o := f.outcomes[i]
	return o.out, o.err
}

func ok(out string) outcome { return outcome{out: out} }

func fail(name string, kind provider.ErrorKind) outcome {
	return outcome{err: provider.Errorf(name, kind, "simulated %s", kind)}
}

func newChain(t *testing.T, providers []provider.Provider[string, string], opts ...Option) *Chain[string, string] {
	t.Helper()
	c, err := New("test", providers, time.Second, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestRunStopsAtFirstSuccess(t *testing.T) {
	a := &fakeProvider{name: "a", outcomes: []outcome{fail("a", provider.KindUnavailable)}}
	b := &fakeProvider{name: "b", outcomes: []outcome{ok("from-b")}}
	c := &fakeProvider{name: "c", outcomes: []outcome{ok("from-c")}}

	ch := newChain(t, []provider.Provider[string, string]{a, b, c})
	out, attempts, err := ch.Run(context.Background(), "input")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "from-b" {
		t.Errorf("out = %q, want from-b", out)
	}
	if c.calls != 0 {
		t.Errorf("provider c was invoked %d times; must never run after b succeeds", c.calls)
	}
	if len(attempts) != 2 {
		t.Fatalf("len(attempts) = %d, want 2", len(attempts))
	}
	if !attempts[1].Success {
		t.Errorf("last attempt not marked success")
	}
}

func TestRunPriorityOrder(t *testing.T) {
	var order []string
	mk := func(name string) provider.Provider[string, string] {
		return providerFunc{name: name, fn: func() (string, error) {
			order = append(order, name)
			return "", provider.Errorf(name, provider.KindUnavailable, "down")
		}}
	}

	ch := newChain(t, []provider.Provider[string, string]{mk("first"), mk("second"), mk("third")})
	_, _, err := ch.Run(context.Background(), "x")

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("err = %v, want *ExhaustedError", err)
	}
	want := []string{"first", "second", "third"}
	if len(order) != len(want) {
		t.Fatalf("invocation order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
	if len(exhausted.Attempts) != 3 {
		t.Errorf("attempt history length = %d, want 3", len(exhausted.Attempts))
	}
}

type providerFunc struct {
	name string
	fn   func() (string, error)
}

func (p providerFunc) Name() string { return p.name }
func (p providerFunc) Invoke(context.Context, string) (string, error) {
	return p.fn()
}

func TestRunAbortsOnInvalidInput(t *testing.T) {
	a := &fakeProvider{name: "a", outcomes: []outcome{fail("a", provider.KindInvalidInput)}}
	b := &fakeProvider{name: "b", outcomes: []outcome{ok("never")}}

	ch := newChain(t, []provider.Provider[string, string]{a, b})
	_, attempts, err := ch.Run(context.Background(), "bad")

	var invalid *InvalidInputError
	if !errors.As(err, &invalid) {
		t.Fatalf("err = %v, want *InvalidInputError", err)
	}
	if b.calls != 0 {
		t.Errorf("provider b invoked after invalid input; chain must abort")
	}
	if len(attempts) != 1 {
		t.Errorf("len(attempts) = %d, want 1", len(attempts))
	}
}

func TestRunRetriesRateLimitedOnce(t *testing.T) {
	a := &fakeProvider{name: "a", outcomes: []outcome{
		fail("a", provider.KindRateLimited),
		ok("second-try"),
	}}

	ch := newChain(t, []provider.Provider[string, string]{a}, WithSameProviderRetries(1))
	out, attempts, err := ch.Run(context.Background(), "x")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "second-try" {
		t.Errorf("out = %q, want second-try", out)
	}
	if a.calls != 2 {
		t.Errorf("a.calls = %d, want 2", a.calls)
	}
	if len(attempts) != 2 {
		t.Errorf("len(attempts) = %d, want 2", len(attempts))
	}
}

func TestRunNoSameProviderRetryWhenDisabled(t *testing.T) {
	a := &fakeProvider{name: "a", outcomes: []outcome{fail("a", provider.KindRateLimited)}}
	b := &fakeProvider{name: "b", outcomes: []outcome{ok("from-b")}}

	ch := newChain(t, []provider.Provider[string, string]{a, b}, WithSameProviderRetries(0))
	out, _, err := ch.Run(context.Background(), "x")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if a.calls != 1 {
		t.Errorf("a.calls = %d, want 1 (no same-provider retry)", a.calls)
	}
	if out != "from-b" {
		t.Errorf("out = %q, want from-b", out)
	}
}

func TestRunExhaustedCarriesHistory(t *testing.T) {
	a := &fakeProvider{name: "a", outcomes: []outcome{fail("a", provider.KindTimeout)}}
	b := &fakeProvider{name: "b", outcomes: []outcome{fail("b", provider.KindUnavailable)}}

	ch := newChain(t, []provider.Provider[string, string]{a, b})
	_, _, err := ch.Run(context.Background(), "x")

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("err = %v, want *ExhaustedError", err)
	}
	if exhausted.Attempts[0].Kind != provider.KindTimeout {
		t.Errorf("attempt 0 kind = %v, want timeout", exhausted.Attempts[0].Kind)
	}
	if exhausted.Attempts[1].Kind != provider.KindUnavailable {
		t.Errorf("attempt 1 kind = %v, want unavailable", exhausted.Attempts[1].Kind)
	}
}

func TestRunHonorsCancelledContext(t *testing.T) {
	a := &fakeProvider{name: "a", outcomes: []outcome{ok("never")}}
	ch := newChain(t, []provider.Provider[string, string]{a})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := ch.Run(ctx, "x")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if a.calls != 0 {
		t.Errorf("provider invoked after cancellation")
	}
}

func TestNewRejectsEmptyProviderList(t *testing.T) {
	_, err := New[string, string]("empty", nil, time.Second)
	if err == nil {
		t.Fatal("New accepted an empty provider list")
	}
}
