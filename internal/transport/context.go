package transport

import (
	"sync"

	"github.com/Iron-Ham/wormhole/internal/codec"
	"github.com/Iron-Ham/wormhole/internal/errors"
	"github.com/Iron-Ham/wormhole/internal/logging"
	"github.com/Iron-Ham/wormhole/internal/session"
)

// ContextTransport stores each identifier as a key of the session's
// application context. Every write pushes the whole context, so rapid updates
// coalesce and only the latest value per key is guaranteed to arrive.
type ContextTransport struct {
	session session.Session
	codec   codec.Codec
	logger  *logging.Logger

	mu sync.Mutex
	// lastContext is the context most recently pushed by this transport.
	// A key cannot be removed from a context by omission, so deletes start
	// from this snapshot and push it without the key.
	lastContext map[string][]byte
}

// NewContextTransport creates a session-context transport. WithSession is required.
func NewContextTransport(opts ...Option) (*ContextTransport, error) {
	o := buildOptions(KindSessionContext, opts)
	sess, err := requireSession(KindSessionContext, o)
	if err != nil {
		return nil, err
	}
	return &ContextTransport{session: sess, codec: o.codec, logger: o.logger}, nil
}

// Kind implements Transport.
func (t *ContextTransport) Kind() Kind {
	return KindSessionContext
}

// Deliver implements Transport.
func (t *ContextTransport) Deliver(payload any, identifier string) Outcome {
	if err := t.write(payload, identifier); err != nil {
		logFailure(t.logger, KindSessionContext, "write", identifier, err)
		return OutcomeFailed
	}
	return OutcomeQueued
}

// Write implements Transport.
func (t *ContextTransport) Write(payload any, identifier string) bool {
	return t.Deliver(payload, identifier).Accepted()
}

func (t *ContextTransport) write(payload any, identifier string) error {
	id, err := NormalizeIdentifier(identifier)
	if err != nil {
		return err
	}
	if payload == nil {
		return errors.ErrNilPayload
	}
	if !t.session.IsSupported() {
		return errors.ErrSessionUnsupported
	}
	data, err := t.codec.Encode(payload)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	ctx := t.session.ApplicationContext()
	if ctx == nil {
		ctx = map[string][]byte{}
	}
	ctx[id] = data
	if err := t.session.UpdateApplicationContext(ctx); err != nil {
		return err
	}
	t.lastContext = ctx
	return nil
}

// Read implements Transport. The context received from the peer wins over
// the context this side pushed.
func (t *ContextTransport) Read(identifier string) (any, bool) {
	id, err := NormalizeIdentifier(identifier)
	if err != nil {
		return nil, false
	}

	data, ok := t.session.ReceivedApplicationContext()[id]
	if !ok {
		data, ok = t.sentContext()[id]
	}
	if !ok {
		logFailure(t.logger, KindSessionContext, "read", id, errors.ErrNotFound)
		return nil, false
	}

	v, err := t.codec.Decode(data)
	if err != nil {
		logFailure(t.logger, KindSessionContext, "read", id, err)
		return nil, false
	}
	return v, true
}

// sentContext returns the local snapshot, or the session's context before
// this transport has pushed anything.
func (t *ContextTransport) sentContext() map[string][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lastContext != nil {
		return t.lastContext
	}
	return t.session.ApplicationContext()
}

// Delete implements Transport. The local snapshot is updated even if the
// session refuses the new context.
func (t *ContextTransport) Delete(identifier string) {
	id, err := NormalizeIdentifier(identifier)
	if err != nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var ctx map[string][]byte
	if t.lastContext != nil {
		ctx = make(map[string][]byte, len(t.lastContext))
		for k, v := range t.lastContext {
			ctx[k] = v
		}
	} else {
		ctx = t.session.ApplicationContext()
		if ctx == nil {
			ctx = map[string][]byte{}
		}
	}
	delete(ctx, id)
	t.lastContext = ctx

	if err := t.session.UpdateApplicationContext(ctx); err != nil {
		logFailure(t.logger, KindSessionContext, "delete", id, err)
	}
}

// DeleteAll implements Transport by pushing an empty context.
func (t *ContextTransport) DeleteAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lastContext = map[string][]byte{}
	if err := t.session.UpdateApplicationContext(map[string][]byte{}); err != nil {
		logFailure(t.logger, KindSessionContext, "delete all", "", err)
	}
}

// LastContext returns a copy of the context most recently pushed.
func (t *ContextTransport) LastContext() map[string][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string][]byte, len(t.lastContext))
	for k, v := range t.lastContext {
		out[k] = append([]byte(nil), v...)
	}
	return out
}
