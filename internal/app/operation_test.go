package app

import (
	"errors"
	"testing"
)

func TestNewOperation(t *testing.T) {
	op := NewOperation("archive run", "--limit 5")

	if op.ID != 0 {
		t.Errorf("ID = %d, want 0", op.ID)
	}
	if op.Status != StatusSuccess {
		t.Errorf("Status = %q, want %q", op.Status, StatusSuccess)
	}
	if op.Persisted() {
		t.Error("new operation reports persisted")
	}

	op.ID = 3
	if !op.Persisted() {
		t.Error("Persisted() = false with an id")
	}
}

func TestOperation_Fail(t *testing.T) {
	op := NewOperation("shell", "")

	if err := op.Fail(nil); err != nil || op.Status != StatusSuccess {
		t.Fatalf("Fail(nil) = %v, status %q", err, op.Status)
	}

	boom := errors.New("boom")
	if err := op.Fail(boom); !errors.Is(err, boom) {
		t.Errorf("Fail() = %v, want boom", err)
	}
	if op.Status != StatusError {
		t.Errorf("Status = %q, want %q", op.Status, StatusError)
	}
}
