package domain

import (
	"errors"
	"testing"
)

func TestDefaultStatusCatalog(t *testing.T) {
	catalog := DefaultStatusCatalog()

	cases := map[int]Status{
		0: StatusRegistered,
		1: StatusHeld,
		2: StatusDeposited,
		3: StatusReversed,
		4: StatusRefunded,
		5: StatusACSAuth,
		6: StatusDeclined,
	}
	for code, want := range cases {
		got, ok := catalog.Lookup(code)
		if !ok || got != want {
			t.Fatalf("code %d: expected %s, got %s (ok=%v)", code, want, got, ok)
		}
	}

	if _, ok := catalog.Lookup(99); ok {
		t.Fatal("expected code 99 to be unmapped")
	}
}

func TestNewStatusCatalogOverrides(t *testing.T) {
	catalog, err := NewStatusCatalog(map[int]string{7: "declined", 2: "HELD"})
	if err != nil {
		t.Fatalf("new catalog: %v", err)
	}
	if got, _ := catalog.Lookup(7); got != StatusDeclined {
		t.Fatalf("expected override for 7, got %s", got)
	}
	if got, _ := catalog.Lookup(2); got != StatusHeld {
		t.Fatalf("expected override for 2, got %s", got)
	}

	defaults := DefaultStatusCatalog()
	if got, _ := defaults.Lookup(2); got != StatusDeposited {
		t.Fatalf("overrides leaked into default catalog: %s", got)
	}
}

func TestNewStatusCatalogRejectsUnknownStatus(t *testing.T) {
	catalog, err := NewStatusCatalog(map[int]string{8: "SETTLED"})
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if _, ok := catalog.Lookup(8); ok {
		t.Fatal("rejected override must not be applied")
	}
}

func TestStatusTerminal(t *testing.T) {
	terminal := []Status{StatusDeposited, StatusReversed, StatusRefunded, StatusDeclined}
	for _, status := range terminal {
		if !status.Terminal() {
			t.Fatalf("expected %s to be terminal", status)
		}
	}
	for _, status := range append([]Status{StatusError}, ReconcilableStatuses...) {
		if status.Terminal() {
			t.Fatalf("expected %s to be non-terminal", status)
		}
	}
}

func TestParseStatuses(t *testing.T) {
	got, err := ParseStatuses([]string{"new", " HELD", "NEW"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 2 || got[0] != StatusNew || got[1] != StatusHeld {
		t.Fatalf("unexpected statuses: %v", got)
	}

	if _, err := ParseStatuses([]string{"PAID"}); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}
