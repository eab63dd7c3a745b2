package transport

import (
	"fmt"
	"strings"
)

// Kind selects a transport strategy.
type Kind int

const (
	KindFile Kind = iota
	KindCoordinatedFile
	KindSessionContext
	KindSessionMessage
	KindSessionFile
)

var kindNames = map[Kind]string{
	KindFile:            "file",
	KindCoordinatedFile: "coordinated-file",
	KindSessionContext:  "session-context",
	KindSessionMessage:  "session-message",
	KindSessionFile:     "session-file",
}

// Kinds returns every strategy in declaration order.
func Kinds() []Kind {
	return []Kind{KindFile, KindCoordinatedFile, KindSessionContext, KindSessionMessage, KindSessionFile}
}

// KindNames returns the configuration names of every strategy.
func KindNames() []string {
	names := make([]string, 0, len(kindNames))
	for _, k := range Kinds() {
		names = append(names, k.String())
	}
	return names
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsSession reports whether the strategy needs a session.
func (k Kind) IsSession() bool {
	return k == KindSessionContext || k == KindSessionMessage || k == KindSessionFile
}

// ParseKind parses a configuration name. Underscores and case are ignored so
// "Coordinated_File" parses as KindCoordinatedFile.
func ParseKind(s string) (Kind, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	for k, name := range kindNames {
		if name == normalized {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown transport %q (valid: %s)", s, strings.Join(KindNames(), ", "))
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if _, ok := kindNames[k]; !ok {
		return nil, fmt.Errorf("unknown transport kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Outcome describes what happened to a delivered payload.
type Outcome int

const (
	// OutcomeFailed means the payload was rejected; nothing was stored or sent.
	OutcomeFailed Outcome = iota
	// OutcomePersisted means the payload is durably stored and readable.
	OutcomePersisted
	// OutcomeSent means the payload was handed to a reachable counterpart.
	OutcomeSent
	// OutcomeQueued means the payload was handed to a session that delivers
	// it later, possibly coalesced with newer payloads.
	OutcomeQueued
	// OutcomeDropped means the payload was accepted but discarded because the
	// counterpart was unreachable.
	OutcomeDropped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFailed:
		return "failed"
	case OutcomePersisted:
		return "persisted"
	case OutcomeSent:
		return "sent"
	case OutcomeQueued:
		return "queued"
	case OutcomeDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Accepted reports whether Write returns true for this outcome. Dropped
// session messages count as accepted.
func (o Outcome) Accepted() bool {
	return o != OutcomeFailed
}

// Confirmed reports whether the payload is known to be readable or delivered.
func (o Outcome) Confirmed() bool {
	return o == OutcomePersisted || o == OutcomeSent
}
