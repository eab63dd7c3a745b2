// Package session defines the duplex session contract used by the
// session-based transports and provides two implementations of it.
//
// A session links exactly two endpoints. It offers three delivery
// primitives with different guarantees:
//
//   - application context: a whole-map snapshot that replaces the previous
//     one; only the latest undelivered snapshot survives
//   - message: realtime delivery that requires the peer to be reachable
//   - file transfer: queued delivery of a file plus string metadata
//
// [Pair] connects two in-process endpoints. [Spool] connects two processes
// through a shared directory.
package session

import (
	"maps"
)

// ActivationState describes where a session is in its lifecycle.
type ActivationState int

const (
	// NotActivated is the state before Activate and after deactivation.
	NotActivated ActivationState = iota
	// Inactive means the session is winding down and no longer sends.
	Inactive
	// Activated means the session can send and receive.
	Activated
)

func (s ActivationState) String() string {
	switch s {
	case NotActivated:
		return "not-activated"
	case Inactive:
		return "inactive"
	case Activated:
		return "activated"
	default:
		return "unknown"
	}
}

// MetadataIdentifier is the file-transfer metadata key carrying the
// identifier the file belongs to.
const MetadataIdentifier = "identifier"

// File is a transferred file handed to a Delegate. The file at Path is only
// guaranteed to exist until DidReceiveFile returns.
type File struct {
	Path     string
	Metadata map[string]string
}

// Delegate receives session events. Callbacks run on a goroutine owned by the
// session implementation.
type Delegate interface {
	ActivationDidComplete(state ActivationState, err error)
	DidBecomeInactive()
	DidDeactivate()
	DidReceiveMessage(msg map[string][]byte)
	DidReceiveApplicationContext(ctx map[string][]byte)
	DidReceiveFile(f File)
}

// Session is one endpoint of a duplex link.
type Session interface {
	Activate() error
	State() ActivationState
	IsSupported() bool
	IsReachable() bool

	// ApplicationContext returns the last context this endpoint sent.
	ApplicationContext() map[string][]byte
	// ReceivedApplicationContext returns the last context delivered from the peer.
	ReceivedApplicationContext() map[string][]byte
	// UpdateApplicationContext replaces the context seen by the peer.
	UpdateApplicationContext(ctx map[string][]byte) error

	// SendMessage delivers msg if the peer is reachable. Failures are
	// reported through onError, which may be nil.
	SendMessage(msg map[string][]byte, onError func(error))

	// TransferFile queues a copy of the file at path for the peer. The caller
	// may remove path once TransferFile returns.
	TransferFile(path string, metadata map[string]string) error

	SetDelegate(d Delegate)
}

// NopDelegate ignores every event. Embed it to implement a subset of Delegate.
type NopDelegate struct{}

func (NopDelegate) ActivationDidComplete(ActivationState, error) {}
func (NopDelegate) DidBecomeInactive() {}
func (NopDelegate) DidDeactivate() {}
func (NopDelegate) DidReceiveMessage(map[string][]byte) {}
func (NopDelegate) DidReceiveApplicationContext(map[string][]byte) {}
func (NopDelegate) DidReceiveFile(File) {}

// cloneContext deep-copies a context map so callers and the session never
// share byte slices.
func cloneContext(m map[string][]byte) map[string][]byte {
	out := make(map[string][]byte, len(m))
	for k, v := range m {
		out[k] = append([]byte(nil), v...)
	}
	return out
}

func cloneMetadata(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return maps.Clone(m)
}
