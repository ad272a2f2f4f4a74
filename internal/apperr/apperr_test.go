package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestNew_MatchesKindAndSelf(t *testing.T) {
	errBooked := New(ErrConflict, "slot already booked")

	wrapped := fmt.Errorf("book: %w", errBooked)
	if !errors.Is(wrapped, errBooked) {
		t.Error("expected wrapped error to match its sentinel")
	}
	if !errors.Is(wrapped, ErrConflict) {
		t.Error("expected wrapped error to match its kind")
	}
	if errors.Is(wrapped, ErrNotFound) {
		t.Error("did not expect a conflict to match not found")
	}
	if wrapped.Error() != "book: slot already booked" {
		t.Errorf("unexpected message %q", wrapped.Error())
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"validation", New(ErrValidation, "bad"), ErrValidation},
		{"wrapped", Wrap(ErrForbidden, errors.New("not the owner")), ErrForbidden},
		{"infrastructure", errors.New("connection reset"), nil},
		{"nil", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Kind(tt.err); got != tt.want {
				t.Errorf("Kind() = %v, want %v", got, tt.want)
			}
		})
	}
}
