package transport

import (
	"fmt"

	"github.com/Iron-Ham/wormhole/internal/codec"
	"github.com/Iron-Ham/wormhole/internal/container"
	"github.com/Iron-Ham/wormhole/internal/errors"
	"github.com/Iron-Ham/wormhole/internal/logging"
	"github.com/Iron-Ham/wormhole/internal/session"
)

// Transport persists or sends payloads keyed by identifier.
type Transport interface {
	// Kind reports the strategy.
	Kind() Kind
	// Deliver writes payload for identifier and reports how it was handled.
	Deliver(payload any, identifier string) Outcome
	// Write is Deliver(payload, identifier).Accepted().
	Write(payload any, identifier string) bool
	// Read returns the latest payload for identifier, or false when there is
	// none, it was deleted, or it cannot be decoded.
	Read(identifier string) (any, bool)
	// Delete removes the payload for identifier. Missing payloads are ignored.
	Delete(identifier string)
	// DeleteAll removes every payload this strategy stores.
	DeleteAll()
}

// Config locates persisted messages. It is fixed for a transport's lifetime.
type Config struct {
	// GroupIdentifier names the shared container both processes can access.
	GroupIdentifier string
	// Directory is an optional subdirectory of the container.
	Directory string
}

type options struct {
	codec    codec.Codec
	logger   *logging.Logger
	resolver *container.Resolver
	session  session.Session
	sync     bool
}

// Option configures a transport.
type Option func(*options)

// WithCodec sets the payload codec. The default is JSON.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithContainer sets the resolver for group containers. The default resolves
// groups under container.DefaultRoot().
func WithContainer(r *container.Resolver) Option {
	return func(o *options) {
		if r != nil {
			o.resolver = r
		}
	}
}

// WithSession sets the session used by the session strategies.
func WithSession(s session.Session) Option {
	return func(o *options) {
		o.session = s
	}
}

// WithSync makes file writes fsync before they become visible.
func WithSync(enabled bool) Option {
	return func(o *options) {
		o.sync = enabled
	}
}

func buildOptions(kind Kind, opts []Option) options {
	o := options{codec: codec.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.resolver == nil {
		o.resolver = container.NewResolver(container.DefaultRoot())
	}
	o.logger = logging.OrNop(o.logger).WithTransport(kind.String())
	return o
}

// New builds the strategy for kind. Session strategies require WithSession.
// A Config.Directory that would leave the group container is rejected.
func New(kind Kind, cfg Config, opts ...Option) (Transport, error) {
	if err := ValidateDirectory(cfg.Directory); err != nil {
		return nil, err
	}
	switch kind {
	case KindFile:
		return NewFileTransport(cfg, opts...), nil
	case KindCoordinatedFile:
		return NewCoordinatedFileTransport(cfg, opts...), nil
	case KindSessionContext:
		return NewContextTransport(opts...)
	case KindSessionMessage:
		return NewMessageTransport(opts...)
	case KindSessionFile:
		return NewFileTransferTransport(cfg, opts...)
	default:
		return nil, fmt.Errorf("unsupported transport kind %s", kind)
	}
}

// requireSession returns the configured session or ErrSessionRequired.
func requireSession(kind Kind, o options) (session.Session, error) {
	if o.session == nil {
		return nil, fmt.Errorf("%s transport: %w", kind, errors.ErrSessionRequired)
	}
	return o.session, nil
}

// logFailure records why an operation on identifier failed.
func logFailure(l *logging.Logger, kind Kind, op, identifier string, err error) {
	terr := errors.NewTransportError(op, identifier, err).WithKind(kind.String())
	if errors.IsReadMiss(err) && op == "read" {
		l.WithIdentifier(identifier).Debug("read miss", "error", terr.Error())
		return
	}
	l.WithIdentifier(identifier).Warn("transport operation failed", "op", op, "error", terr.Error())
}
