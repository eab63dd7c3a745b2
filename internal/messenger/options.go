package messenger

import (
	"github.com/Iron-Ham/wormhole/internal/codec"
	"github.com/Iron-Ham/wormhole/internal/container"
	"github.com/Iron-Ham/wormhole/internal/dispatch"
	"github.com/Iron-Ham/wormhole/internal/logging"
	"github.com/Iron-Ham/wormhole/internal/session"
	"github.com/Iron-Ham/wormhole/internal/signal"
	"github.com/Iron-Ham/wormhole/internal/transport"
)

type options struct {
	transport  transport.Transport
	center     signal.Center
	dispatcher dispatch.Dispatcher
	codec      codec.Codec
	session    session.Session
	resolver   *container.Resolver
	logger     *logging.Logger
	signalDir  string
}

// Option configures a Messenger.
type Option func(*options)

// WithTransport uses a prebuilt transport instead of building one from
// Config.Kind.
func WithTransport(t transport.Transport) Option {
	return func(o *options) {
		o.transport = t
	}
}

// WithCenter sets the change-signal center. The messenger does not close a
// center it was given. By default it opens a signal.FileCenter in the groups
// root so that every process using the same root sees its signals.
func WithCenter(c signal.Center) Option {
	return func(o *options) {
		o.center = c
	}
}

// WithSignalDir sets the directory of the default file-backed center.
func WithSignalDir(dir string) Option {
	return func(o *options) {
		o.signalDir = dir
	}
}

// WithDispatcher sets where listeners run. By default the messenger starts
// a dispatch.Queue on its own goroutine.
func WithDispatcher(d dispatch.Dispatcher) Option {
	return func(o *options) {
		o.dispatcher = d
	}
}

// WithCodec sets the payload codec for the built transport.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

// WithSession sets the session used by session-based transports.
func WithSession(s session.Session) Option {
	return func(o *options) {
		o.session = s
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
