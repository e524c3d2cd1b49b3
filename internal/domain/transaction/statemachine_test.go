package transaction

import (
	"errors"
	"testing"
)

func TestTransitionTable(t *testing.T) {
	all := []Status{
		StatusPending, StatusProcessing, StatusApproved,
		StatusRejected, StatusCompleted, StatusCancelled, StatusFailed,
	}

	legal := map[Status]map[Status]bool{
		StatusPending:  {StatusApproved: true, StatusRejected: true, StatusCancelled: true},
		StatusApproved: {StatusCompleted: true, StatusCancelled: true, StatusFailed: true},
		StatusRejected: {StatusPending: true},
	}

	for _, from := range all {
		for _, to := range all {
			want := legal[from][to]
			got, err := Transition(from, to)
			if want {
				if err != nil {
					t.Errorf("%s -> %s: unexpected error %v", from, to, err)
				}
				if got != to {
					t.Errorf("%s -> %s: returned %s", from, to, got)
				}
			} else {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Errorf("%s -> %s: want ErrInvalidTransition, got %v", from, to, err)
				}
				if got != from {
					t.Errorf("%s -> %s: illegal transition must not move, returned %s", from, to, got)
				}
			}
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusCancelled, StatusRejected} {
		if !s.IsTerminal() {
			t.Errorf("%s must be terminal", s)
		}
	}
	for _, s := range []Status{StatusPending, StatusApproved} {
		if s.IsTerminal() {
			t.Errorf("%s must not be terminal", s)
		}
	}
}
