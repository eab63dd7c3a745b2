package transport

import (
	"github.com/Iron-Ham/wormhole/internal/codec"
	"github.com/Iron-Ham/wormhole/internal/errors"
	"github.com/Iron-Ham/wormhole/internal/logging"
	"github.com/Iron-Ham/wormhole/internal/session"
)

// MessageTransport sends each write as a realtime session message
// {identifier: bytes}. Delivery is push only: Read always reports absent and
// deletes do nothing. Writes to an unreachable peer are dropped, not queued.
type MessageTransport struct {
	session session.Session
	codec   codec.Codec
	logger  *logging.Logger
}

// NewMessageTransport creates a session-message transport. WithSession is required.
func NewMessageTransport(opts ...Option) (*MessageTransport, error) {
	o := buildOptions(KindSessionMessage, opts)
	sess, err := requireSession(KindSessionMessage, o)
	if err != nil {
		return nil, err
	}
	return &MessageTransport{session: sess, codec: o.codec, logger: o.logger}, nil
}

// Kind implements Transport.
func (t *MessageTransport) Kind() Kind {
	return KindSessionMessage
}

// Deliver implements Transport. An unreachable peer yields OutcomeDropped,
// which Write still reports as accepted.
func (t *MessageTransport) Deliver(payload any, identifier string) Outcome {
	id, err := NormalizeIdentifier(identifier)
	if err == nil && payload == nil {
		err = errors.ErrNilPayload
	}
	var data []byte
	if err == nil {
		data, err = t.codec.Encode(payload)
	}
	if err != nil {
		logFailure(t.logger, KindSessionMessage, "write", identifier, err)
		return OutcomeFailed
	}

	if !t.session.IsReachable() {
		t.logger.WithIdentifier(id).Warn("counterpart unreachable, message dropped")
		return OutcomeDropped
	}

	t.session.SendMessage(map[string][]byte{id: data}, func(err error) {
		logFailure(t.logger, KindSessionMessage, "send", id, err)
	})
	return OutcomeSent
}

// Write implements Transport.
func (t *MessageTransport) Write(payload any, identifier string) bool {
	return t.Deliver(payload, identifier).Accepted()
}

// Read implements Transport. Messages cannot be pulled.
func (t *MessageTransport) Read(string) (any, bool) {
	return nil, false
}

// Delete implements Transport. Nothing is stored, so there is nothing to remove.
func (t *MessageTransport) Delete(string) {}

// DeleteAll implements Transport.
func (t *MessageTransport) DeleteAll() {}
