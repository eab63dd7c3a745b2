// Package channel wraps a duplex session in a long-lived messaging endpoint.
//
// A [Channel] owns a Messenger that uses one of the session transports and
// installs itself as the session's delegate. Payloads that arrive pushed by
// the session (messages, context updates, transferred files) are decoded and
// handed to the same listeners that change signals reach, so callers see one
// listener API regardless of how a payload travelled.
//
// Construct one Channel per session at startup and pass it to whoever needs
// it. Close it on shutdown.
package channel

import (
	"fmt"
	"os"
	"sync"

	"github.com/Iron-Ham/wormhole/internal/codec"
	"github.com/Iron-Ham/wormhole/internal/container"
	"github.com/Iron-Ham/wormhole/internal/errors"
	"github.com/Iron-Ham/wormhole/internal/logging"
	"github.com/Iron-Ham/wormhole/internal/messenger"
	"github.com/Iron-Ham/wormhole/internal/session"
	"github.com/Iron-Ham/wormhole/internal/transport"
)

type options struct {
	codec         codec.Codec
	resolver      *container.Resolver
	logger        *logging.Logger
	messengerOpts []messenger.Option
}

// Option configures a Channel.
type Option func(*options)

// WithCodec sets the codec used on the wire and for re-persisted files.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithContainer sets the group container resolver.
func WithContainer(r *container.Resolver) Option {
	return func(o *options) {
		o.resolver = r
	}
}

// WithLogger attaches a logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMessengerOptions passes extra options to the owned Messenger, such as
// messenger.WithDispatcher or messenger.WithCenter.
func WithMessengerOptions(opts ...messenger.Option) Option {
	return func(o *options) {
		o.messengerOpts = append(o.messengerOpts, opts...)
	}
}

// Channel routes messages over a session.
type Channel struct {
	session   session.Session
	messenger *messenger.Messenger
	archive   *transport.FileTransport
	codec     codec.Codec
	logger    *logging.Logger

	mu     sync.Mutex
	closed bool
}

// New creates a Channel over sess and makes it the session's delegate.
// cfg.Kind selects which session transport outgoing messages use.
func New(sess session.Session, cfg messenger.Config, opts ...Option) (*Channel, error) {
	if sess == nil {
		return nil, errors.ErrSessionRequired
	}

	o := options{codec: codec.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.resolver == nil {
		o.resolver = container.NewResolver(container.DefaultRoot())
	}
	logger := logging.OrNop(o.logger)

	msgOpts := append([]messenger.Option{
		messenger.WithSession(sess),
		messenger.WithCodec(o.codec),
		messenger.WithContainer(o.resolver),
		messenger.WithLogger(logger),
	}, o.messengerOpts...)
	m, err := messenger.New(cfg, msgOpts...)
	if err != nil {
		return nil, fmt.Errorf("create channel messenger: %w", err)
	}

	archive := transport.NewFileTransport(transport.Config{
		GroupIdentifier: cfg.GroupIdentifier,
		Directory:       cfg.Directory,
	}, transport.WithCodec(o.codec), transport.WithContainer(o.resolver), transport.WithLogger(logger))

	c := &Channel{
		session:   sess,
		messenger: m,
		archive:   archive,
		codec:     o.codec,
		logger:    logger.With("component", "channel"),
	}
	sess.SetDelegate(c)
	return c, nil
}

// Activate activates the session. Calling it again once active does nothing.
func (c *Channel) Activate() error {
	if c.session.State() == session.Activated {
		return nil
	}
	if err := c.session.Activate(); err != nil {
		c.logger.Warn("session activation failed", "error", err.Error())
		return err
	}
	return nil
}

// Session returns the wrapped session.
func (c *Channel) Session() session.Session {
	return c.session
}

// Messenger returns the owned Messenger.
func (c *Channel) Messenger() *messenger.Messenger {
	return c.messenger
}

// Transport returns the messenger's session transport.
func (c *Channel) Transport() transport.Transport {
	return c.messenger.Transport()
}

// PassMessage sends payload for identifier over the session.
func (c *Channel) PassMessage(payload any, identifier string) transport.Outcome {
	return c.messenger.PassMessage(payload, identifier)
}

// MessageForIdentifier returns the latest payload known for identifier.
func (c *Channel) MessageForIdentifier(identifier string) (any, bool) {
	return c.messenger.MessageForIdentifier(identifier)
}

// ClearMessageContents deletes the payload for identifier.
func (c *Channel) ClearMessageContents(identifier string) {
	c.messenger.ClearMessageContents(identifier)
}

// ClearAllMessageContents deletes every payload.
func (c *Channel) ClearAllMessageContents() {
	c.messenger.ClearAllMessageContents()
}

// ListenForMessage registers l for identifier.
func (c *Channel) ListenForMessage(identifier string, l messenger.Listener) {
	c.messenger.ListenForMessage(identifier, l)
}

// StopListeningForMessage removes the listener for identifier.
func (c *Channel) StopListeningForMessage(identifier string) {
	c.messenger.StopListeningForMessage(identifier)
}

// NotifyListenerForMessage calls the listener for identifier with payload.
func (c *Channel) NotifyListenerForMessage(identifier string, payload any) {
	c.messenger.NotifyListenerForMessage(identifier, payload)
}

// Close detaches from the session and closes the messenger. The session
// itself stays open.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.session.SetDelegate(nil)
	return c.messenger.Close()
}

func (c *Channel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// deliver decodes one pushed entry and notifies its listener.
func (c *Channel) deliver(source, identifier string, data []byte) {
	payload, err := c.codec.Decode(data)
	if err != nil {
		c.logger.WithIdentifier(identifier).Warn("dropping undecodable payload",
			"source", source,
			"error", err.Error(),
		)
		return
	}
	c.messenger.NotifyListenerForMessage(identifier, payload)
}

// ActivationDidComplete implements session.Delegate.
func (c *Channel) ActivationDidComplete(state session.ActivationState, err error) {
	if err != nil {
		c.logger.Warn("session activation completed with error", "state", state.String(), "error", err.Error())
		return
	}
	c.logger.Info("session activation completed", "state", state.String())
}

// DidBecomeInactive implements session.Delegate.
func (c *Channel) DidBecomeInactive() {
	c.logger.Info("session became inactive")
}

// DidDeactivate implements session.Delegate. The session is activated again
// so that it can pair with the next counterpart.
func (c *Channel) DidDeactivate() {
	c.logger.Info("session deactivated")
	if c.isClosed() {
		return
	}
	if err := c.session.Activate(); err != nil {
		c.logger.Warn("session reactivation failed", "error", err.Error())
	}
}

// DidReceiveMessage implements session.Delegate.
func (c *Channel) DidReceiveMessage(msg map[string][]byte) {
	for identifier, data := range msg {
		c.deliver("message", identifier, data)
	}
}

// DidReceiveApplicationContext implements session.Delegate.
func (c *Channel) DidReceiveApplicationContext(ctx map[string][]byte) {
	for identifier, data := range ctx {
		c.deliver("context", identifier, data)
	}
}

// DidReceiveFile implements session.Delegate. The file is stored in the
// archive layout of the channel's group so that later reads find it.
func (c *Channel) DidReceiveFile(f session.File) {
	identifier := f.Metadata[session.MetadataIdentifier]
	if identifier == "" {
		c.logger.Warn("dropping transferred file without identifier", "path", f.Path)
		return
	}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		c.logger.WithIdentifier(identifier).Warn("failed to read transferred file", "error", err.Error())
		return
	}
	if err := c.archive.Persist(identifier, data); err != nil {
		c.logger.WithIdentifier(identifier).Warn("failed to persist transferred file", "error", err.Error())
	}
	c.deliver("file", identifier, data)
}

var _ session.Delegate = (*Channel)(nil)
