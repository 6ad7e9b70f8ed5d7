package order

import (
	"errors"
	"testing"
)

func TestStatusValues(t *testing.T) {
	if StatusOpen != 0 || StatusCompleted != 1 || StatusCancelled != 2 {
		t.Fatalf("status values changed: %d %d %d", StatusOpen, StatusCompleted, StatusCancelled)
	}
	if st, ok := ParseStatus("cancelled"); !ok || st != StatusCancelled {
		t.Fatalf("parse cancelled: %v %v", st, ok)
	}
	if _, ok := ParseStatus("filled"); ok {
		t.Fatalf("unexpected status parsed")
	}
}

func TestStateMachineTransitions(t *testing.T) {
	sm := NewStateMachine()
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusOpen, StatusCompleted, true},
		{StatusOpen, StatusCancelled, true},
		{StatusOpen, StatusOpen, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCompleted, StatusCompleted, false},
		{StatusCancelled, StatusCompleted, false},
		{StatusCancelled, StatusOpen, false},
	}
	for _, c := range cases {
		err := sm.ValidateTransition(c.from, c.to)
		if c.ok && err != nil {
			t.Fatalf("%s -> %s: unexpected error %v", c.from, c.to, err)
		}
		if !c.ok && !errors.Is(err, ErrIllegalTransition) {
			t.Fatalf("%s -> %s: expected illegal transition, got %v", c.from, c.to, err)
		}
	}
	for _, st := range []Status{StatusCompleted, StatusCancelled} {
		if sm.CanSettle(st) || sm.CanCancel(st) {
			t.Fatalf("%s must be terminal", st)
		}
	}
	if !sm.CanSettle(StatusOpen) || !sm.CanCancel(StatusOpen) {
		t.Fatalf("open order must be settleable and cancellable")
	}
}

func TestTransitionReturnsCopy(t *testing.T) {
	sm := NewStateMachine()
	o := Order{ID: 3, Status: StatusOpen}
	next, err := sm.Transition(o, StatusCancelled)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if o.Status != StatusOpen || next.Status != StatusCancelled {
		t.Fatalf("unexpected statuses %s %s", o.Status, next.Status)
	}
	if o.Expired(o.Maker.ExpirationTimestamp) {
		t.Fatalf("order must not be expired at its expiration timestamp")
	}
}
