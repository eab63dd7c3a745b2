// Package errors provides centralized error definitions and error handling utilities
// for wormhole. It defines the sentinel errors produced below the public
// messaging boundary, typed errors that carry identifier and transport context,
// and classification helpers.
//
// # Error Types
//
// Sentinel errors name a failure condition (empty identifier, storage
// unavailable, unreachable counterpart, ...). Typed errors wrap a sentinel
// with context:
//   - TransportError: a failed transport operation for one identifier
//   - SessionError: a failed duplex session primitive
//
// # Boundary
//
// Transports, the messenger and the session channel never surface these
// errors to their callers: the public API reports failures as a false result
// or an absent payload. Errors exist so that the layer below the boundary can
// be tested precisely and so that the boundary can log what happened.
//
// # Usage
//
//	err := errors.NewTransportError("write", "button", errors.ErrStorageUnavailable)
//	if errors.Is(err, errors.ErrStorageUnavailable) { ... }
//
//	var terr *errors.TransportError
//	if errors.As(err, &terr) { log.Println(terr.Identifier) }
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Identifier and payload errors
var (
	// ErrEmptyIdentifier indicates that an operation was given an empty identifier.
	ErrEmptyIdentifier = New("identifier is empty")
	// ErrInvalidIdentifier indicates that an identifier cannot name a storage slot.
	ErrInvalidIdentifier = New("identifier is invalid")
	// ErrNilPayload indicates that a write was given no payload.
	ErrNilPayload = New("payload is nil")
)

// Storage errors
var (
	// ErrGroupUnavailable indicates that the application group container could not be resolved.
	ErrGroupUnavailable = New("application group container unavailable")
	// ErrStorageUnavailable indicates that the message directory could not be resolved or created.
	ErrStorageUnavailable = New("message storage unavailable")
	// ErrCoordination indicates that the coordinated-access scope could not be entered.
	ErrCoordination = New("file coordination failed")
	// ErrNotFound indicates that no message is persisted for an identifier.
	ErrNotFound = New("message not found")
)

// Codec errors
var (
	// ErrEncode indicates that a payload could not be serialized.
	ErrEncode = New("payload encode failed")
	// ErrDecode indicates that persisted bytes could not be deserialized.
	ErrDecode = New("payload decode failed")
)

// Session errors
var (
	// ErrSessionUnsupported indicates that the duplex session is not supported on this device.
	ErrSessionUnsupported = New("session not supported")
	// ErrSessionInactive indicates that the session has not been activated.
	ErrSessionInactive = New("session is not active")
	// ErrSessionRequired indicates that a session-based transport was built without a session.
	ErrSessionRequired = New("session-based transport requires a session")
	// ErrUnreachable indicates that the counterpart is not currently reachable.
	ErrUnreachable = New("counterpart not reachable")
)

// -----------------------------------------------------------------------------
// Typed Errors
// -----------------------------------------------------------------------------

// TransportError describes a failed transport operation for one identifier.
//
// Example:
//
//	err := errors.NewTransportError("read", "selection", errors.ErrDecode).WithKind("file")
//	fmt.Println(err) // "transport error [kind=file, id=selection]: read: payload decode failed"
type TransportError struct {
	Op         string
	Identifier string
	Kind       string
	cause      error
}

// NewTransportError creates a new TransportError.
func NewTransportError(op, identifier string, cause error) *TransportError {
	return &TransportError{Op: op, Identifier: identifier, cause: cause}
}

// WithKind records which transport strategy produced the error.
func (e *TransportError) WithKind(kind string) *TransportError {
	e.Kind = kind
	return e
}

// Error returns the formatted error message.
func (e *TransportError) Error() string {
	var parts []string
	if e.Kind != "" {
		parts = append(parts, fmt.Sprintf("kind=%s", e.Kind))
	}
	if e.Identifier != "" {
		parts = append(parts, fmt.Sprintf("id=%s", e.Identifier))
	}

	prefix := "transport error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("transport error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Op, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Op)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.cause
}

// SessionError describes a failed duplex session primitive.
type SessionError struct {
	Op    string
	Role  string
	cause error
}

// NewSessionError creates a new SessionError.
func NewSessionError(op string, cause error) *SessionError {
	return &SessionError{Op: op, cause: cause}
}

// WithRole records which side of the session produced the error.
func (e *SessionError) WithRole(role string) *SessionError {
	e.Role = role
	return e
}

// Error returns the formatted error message.
func (e *SessionError) Error() string {
	prefix := "session error"
	if e.Role != "" {
		prefix = fmt.Sprintf("session error [role=%s]", e.Role)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Op, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Op)
}

// Unwrap returns the underlying error.
func (e *SessionError) Unwrap() error {
	return e.cause
}

// -----------------------------------------------------------------------------
// Classification
// -----------------------------------------------------------------------------

// IsRetryable reports whether err is a transient write failure that a caller
// may reasonably retry. Identifier and payload errors are never retryable.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case Is(err, ErrEmptyIdentifier), Is(err, ErrInvalidIdentifier), Is(err, ErrNilPayload):
		return false
	case Is(err, ErrEncode), Is(err, ErrSessionUnsupported), Is(err, ErrSessionRequired):
		return false
	default:
		return true
	}
}

// IsReadMiss reports whether err collapses into an absent read result.
// Missing, undecodable and unaddressable messages are indistinguishable to callers.
func IsReadMiss(err error) bool {
	return Is(err, ErrNotFound) || Is(err, ErrDecode) ||
		Is(err, ErrEmptyIdentifier) || Is(err, ErrInvalidIdentifier)
}
