package errors

import (
	"errors"
	"fmt"
	"testing"
)

// -----------------------------------------------------------------------------
// TransportError Tests
// -----------------------------------------------------------------------------

func TestTransportError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *TransportError
		want string
	}{
		{
			name: "full context",
			err:  NewTransportError("read", "selection", ErrDecode).WithKind("file"),
			want: "transport error [kind=file, id=selection]: read: payload decode failed",
		},
		{
			name: "identifier only",
			err:  NewTransportError("write", "button", ErrNilPayload),
			want: "transport error [id=button]: write: payload is nil",
		},
		{
			name: "no context no cause",
			err:  NewTransportError("delete all", "", nil),
			want: "transport error: delete all",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTransportError_Unwrap(t *testing.T) {
	err := NewTransportError("write", "button", ErrStorageUnavailable)

	if !errors.Is(err, ErrStorageUnavailable) {
		t.Error("errors.Is should match the wrapped sentinel")
	}

	wrapped := fmt.Errorf("outer: %w", err)
	var terr *TransportError
	if !As(wrapped, &terr) {
		t.Fatal("errors.As should find the TransportError")
	}
	if terr.Identifier != "button" {
		t.Errorf("Identifier = %q, want %q", terr.Identifier, "button")
	}
}

// -----------------------------------------------------------------------------
// SessionError Tests
// -----------------------------------------------------------------------------

func TestSessionError_Error(t *testing.T) {
	err := NewSessionError("send message", ErrUnreachable).WithRole("watch")
	want := "session error [role=watch]: send message: counterpart not reachable"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	bare := NewSessionError("activate", nil)
	if got := bare.Error(); got != "session error: activate" {
		t.Errorf("Error() = %q", got)
	}
	if !Is(err, ErrUnreachable) {
		t.Error("SessionError should unwrap to ErrUnreachable")
	}
}

// -----------------------------------------------------------------------------
// Classification Tests
// -----------------------------------------------------------------------------

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"empty identifier", ErrEmptyIdentifier, false},
		{"nil payload", NewTransportError("write", "x", ErrNilPayload), false},
		{"encode", fmt.Errorf("json: %w", ErrEncode), false},
		{"storage unavailable", NewTransportError("write", "x", ErrStorageUnavailable), true},
		{"coordination", ErrCoordination, true},
		{"unreachable", ErrUnreachable, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsReadMiss(t *testing.T) {
	for _, err := range []error{ErrNotFound, ErrDecode, ErrEmptyIdentifier, ErrInvalidIdentifier} {
		if !IsReadMiss(NewTransportError("read", "x", err)) {
			t.Errorf("IsReadMiss(%v) = false, want true", err)
		}
	}
	if IsReadMiss(ErrStorageUnavailable) {
		t.Error("storage failures are not read misses")
	}
}
