package fault

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, Unknown},
		{"plain error", errors.New("boom"), Unknown},
		{"timeout", New(Timeout, "slow"), Timeout},
		{"wrapped logic", fmt.Errorf("login: %w", New(Logic, "RUT no encontrado")), Logic},
		{"server", ServerError(502, "bad gateway"), Server},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		kind Kind
		want bool
	}{
		{Timeout, false},
		{Network, true},
		{Server, true},
		{Logic, true},
		{Validation, false},
		{Configuration, false},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			if got := Retryable(New(tt.kind, "x")); got != tt.want {
				t.Errorf("Retryable(%v) = %v, want %v", tt.kind, got, tt.want)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	if Wrap(Network, nil, "ignored") != nil {
		t.Error("Wrap(nil) should return nil")
	}

	cause := errors.New("connection refused")
	err := Wrap(Network, cause, "request failed")
	if !errors.Is(err, cause) {
		t.Error("wrapped error should unwrap to its cause")
	}
	if got := err.Error(); got != "request failed: connection refused" {
		t.Errorf("Error() = %q", got)
	}
	if got := Message(err); got != "request failed" {
		t.Errorf("Message() = %q, want %q", got, "request failed")
	}
}

func TestServerError_Status(t *testing.T) {
	err := fmt.Errorf("calling backend: %w", ServerError(503, "unavailable"))

	var fe *Error
	if !errors.As(err, &fe) {
		t.Fatal("expected *Error in chain")
	}
	if fe.Status != 503 {
		t.Errorf("Status = %d, want 503", fe.Status)
	}
}
