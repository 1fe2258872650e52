package issue

import (
	"errors"
	"testing"
)

func TestParseStatus(t *testing.T) {
	got, err := ParseStatus(" Resolved ")
	if err != nil {
		t.Fatalf("ParseStatus() error = %v", err)
	}
	if got != StatusResolved {
		t.Fatalf("ParseStatus() = %q", got)
	}

	if _, err := ParseStatus("regressed"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("ParseStatus(regressed) error = %v, want ErrInvalidStatus", err)
	}
}

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		name    string
		apply   func(Status) Transition
		from    Status
		next    Status
		changed bool
		refresh bool
	}{
		{"resolve from unresolved", Resolve, StatusUnresolved, StatusResolved, true, true},
		{"resolve from ignored", Resolve, StatusIgnored, StatusResolved, true, true},
		{"resolve idempotent refreshes", Resolve, StatusResolved, StatusResolved, false, true},
		{"unresolve from resolved", Unresolve, StatusResolved, StatusUnresolved, true, true},
		{"unresolve from ignored", Unresolve, StatusIgnored, StatusUnresolved, true, true},
		{"unresolve idempotent no-op", Unresolve, StatusUnresolved, StatusUnresolved, false, false},
		{"ignore from unresolved", Ignore, StatusUnresolved, StatusIgnored, true, true},
		{"ignore from resolved", Ignore, StatusResolved, StatusIgnored, true, true},
		{"ignore idempotent refreshes", Ignore, StatusIgnored, StatusIgnored, false, true},
	}

	for _, tc := range cases {
		tr := tc.apply(tc.from)
		if tr.Next != tc.next || tr.Changed != tc.changed || tr.Refresh != tc.refresh {
			t.Fatalf("%s: got next=%q changed=%v refresh=%v, want next=%q changed=%v refresh=%v",
				tc.name, tr.Next, tr.Changed, tr.Refresh, tc.next, tc.changed, tc.refresh)
		}
	}
}

func TestOnRecurrence(t *testing.T) {
	if next, regressed := OnRecurrence(StatusResolved); next != StatusUnresolved || !regressed {
		t.Fatalf("OnRecurrence(resolved) = %q, %v", next, regressed)
	}
	if next, regressed := OnRecurrence(StatusUnresolved); next != StatusUnresolved || regressed {
		t.Fatalf("OnRecurrence(unresolved) = %q, %v", next, regressed)
	}
	if next, regressed := OnRecurrence(StatusIgnored); next != StatusIgnored || regressed {
		t.Fatalf("OnRecurrence(ignored) = %q, %v", next, regressed)
	}
}

func TestShortID(t *testing.T) {
	if got := ShortID("acme", 1); got != "ACME-1" {
		t.Fatalf("ShortID() = %q", got)
	}
	if got := ShortID("acme", 95); got != "ACME-2N" {
		t.Fatalf("ShortID() = %q", got)
	}
	if got := ShortID(" web ", 36); got != "WEB-10" {
		t.Fatalf("ShortID() = %q", got)
	}
}
