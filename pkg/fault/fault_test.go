package fault_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/hearsaylabs/hearsay/pkg/fault"
)

func TestKindPredicates(t *testing.T) {
	cases := []struct {
		err  error
		want func(error) bool
	}{
		{fault.Validation("op", "audio missing"), fault.IsValidation},
		{fault.Configuration("op", "no api key"), fault.IsConfiguration},
		{fault.State("op", "session stopped"), fault.IsState},
		{fault.Remote("op", errors.New("boom"), "provider call failed"), fault.IsRemote},
		{fault.NotFound("op", "unknown user"), fault.IsNotFound},
	}
	preds := []func(error) bool{
		fault.IsValidation, fault.IsConfiguration, fault.IsState, fault.IsRemote, fault.IsNotFound,
	}
	for i, c := range cases {
		for j, p := range preds {
			got := p(c.err)
			want := i == j
			if got != want {
				t.Errorf("case %d pred %d: got %v, want %v", i, j, got, want)
			}
		}
	}
}

func TestWrapping(t *testing.T) {
	cause := errors.New("connection reset")
	err := fault.Remote("session.Start", cause, "open stream")

	// Classification survives further wrapping.
	wrapped := fmt.Errorf("start session s1: %w", err)
	if !fault.IsRemote(wrapped) {
		t.Fatalf("IsRemote(wrapped) = false, want true")
	}
	if !errors.Is(wrapped, cause) {
		t.Fatalf("errors.Is(wrapped, cause) = false, want true")
	}

	e, ok := fault.As(wrapped)
	if !ok {
		t.Fatalf("As: not a fault error")
	}
	if e.Op != "session.Start" {
		t.Errorf("Op = %q, want %q", e.Op, "session.Start")
	}
}

func TestErrorString(t *testing.T) {
	err := fault.State("session.SendAudio", "session %q is stopped", "s1")
	want := `session.SendAudio: session "s1" is stopped`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
