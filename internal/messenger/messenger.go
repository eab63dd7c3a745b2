package messenger

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/Iron-Ham/wormhole/internal/container"
	"github.com/Iron-Ham/wormhole/internal/dispatch"
	"github.com/Iron-Ham/wormhole/internal/logging"
	"github.com/Iron-Ham/wormhole/internal/signal"
	"github.com/Iron-Ham/wormhole/internal/transport"
)

// SignalDirName is the directory inside the groups root used by the default
// change-signal center. It is shared by every group under that root, so a
// signal for an identifier wakes listeners for the same identifier in other
// groups; they re-read their own slot. WithSignalDir scopes it per group.
const SignalDirName = ".signals"

// Listener receives the payload of a changed identifier.
type Listener func(payload any)

// Config selects where and how messages travel. It is fixed for a
// messenger's lifetime.
type Config struct {
	GroupIdentifier string
	Directory       string
	Kind            transport.Kind
}

// Messenger passes messages through one transport and notifies listeners of
// changes. It is safe for concurrent use.
type Messenger struct {
	cfg        Config
	transport  transport.Transport
	center     signal.Center
	dispatcher dispatch.Dispatcher
	logger     *logging.Logger

	// Resources created by New and released by Close.
	ownedCenter *signal.FileCenter
	ownedQueue  *dispatch.Queue

	mu            sync.Mutex
	listeners     map[string]Listener
	subscriptions map[string]signal.Subscription
	closed        bool
}

// New creates a Messenger.
//
// A group that cannot be resolved is a configuration error: outside of tests
// New panics rather than returning a messenger whose every write fails.
func New(cfg Config, opts ...Option) (*Messenger, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.resolver == nil {
		o.resolver = container.NewResolver(container.DefaultRoot())
	}
	logger := logging.OrNop(o.logger)

	if cfg.GroupIdentifier != "" {
		o.resolver.MustBeConfigured(cfg.GroupIdentifier)
	}

	m := &Messenger{
		cfg:           cfg,
		transport:     o.transport,
		center:        o.center,
		dispatcher:    o.dispatcher,
		listeners:     make(map[string]Listener),
		subscriptions: make(map[string]signal.Subscription),
	}

	if m.transport == nil {
		t, err := transport.New(cfg.Kind, transport.Config{
			GroupIdentifier: cfg.GroupIdentifier,
			Directory:       cfg.Directory,
		},
			transport.WithCodec(o.codec),
			transport.WithLogger(logger),
			transport.WithContainer(o.resolver),
			transport.WithSession(o.session),
		)
		if err != nil {
			return nil, fmt.Errorf("create transport: %w", err)
		}
		m.transport = t
	}
	m.logger = logger.WithTransport(m.transport.Kind().String())

	if m.center == nil {
		dir := o.signalDir
		if dir == "" {
			dir = filepath.Join(o.resolver.Root, SignalDirName)
		}
		fc, err := signal.NewFileCenter(dir, signal.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("create signal center: %w", err)
		}
		m.center = fc
		m.ownedCenter = fc
	}

	if m.dispatcher == nil {
		q := dispatch.NewQueue()
		q.Start()
		m.dispatcher = q
		m.ownedQueue = q
	}

	m.logger.Debug("messenger created",
		"group", cfg.GroupIdentifier,
		"directory", cfg.Directory,
	)
	return m, nil
}

// Config returns the messenger's configuration.
func (m *Messenger) Config() Config {
	return m.cfg
}

// Transport returns the transport in use.
func (m *Messenger) Transport() transport.Transport {
	return m.transport
}

// PassMessage writes payload for identifier and, if the transport accepted
// it, signals the change. An empty identifier is ignored.
func (m *Messenger) PassMessage(payload any, identifier string) transport.Outcome {
	id, err := transport.NormalizeIdentifier(identifier)
	if err != nil {
		return transport.OutcomeFailed
	}

	outcome := m.transport.Deliver(payload, id)
	if outcome.Accepted() {
		m.center.Post(id)
	}
	m.logger.WithIdentifier(id).Debug("message passed", "outcome", outcome.String())
	return outcome
}

// MessageForIdentifier returns the stored payload for identifier.
func (m *Messenger) MessageForIdentifier(identifier string) (any, bool) {
	return m.transport.Read(identifier)
}

// ClearMessageContents deletes the stored payload for identifier.
func (m *Messenger) ClearMessageContents(identifier string) {
	m.transport.Delete(identifier)
}

// ClearAllMessageContents deletes every stored payload.
func (m *Messenger) ClearAllMessageContents() {
	m.transport.DeleteAll()
}

// ListenForMessage registers l for identifier, replacing any previous
// listener for it. Empty identifiers and nil listeners are ignored.
func (m *Messenger) ListenForMessage(identifier string, l Listener) {
	id, err := transport.NormalizeIdentifier(identifier)
	if err != nil || l == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	m.listeners[id] = l
	if sub, ok := m.subscriptions[id]; ok {
		sub.Cancel()
	}
	m.subscriptions[id] = m.center.Observe(id, m.handleSignal)
}

// StopListeningForMessage removes the listener for identifier.
func (m *Messenger) StopListeningForMessage(identifier string) {
	id, err := transport.NormalizeIdentifier(identifier)
	if err != nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.listeners, id)
	if sub, ok := m.subscriptions[id]; ok {
		sub.Cancel()
		delete(m.subscriptions, id)
	}
}

// NotifyListenerForMessage calls the listener for identifier with payload
// through the dispatcher. Nothing happens without a listener or payload.
//
// The listener is looked up again when the dispatched call runs, so a
// listener that was replaced or removed in the meantime is not called.
func (m *Messenger) NotifyListenerForMessage(identifier string, payload any) {
	id, err := transport.NormalizeIdentifier(identifier)
	if err != nil || payload == nil {
		return
	}
	if m.listener(id) == nil {
		return
	}

	m.dispatcher.Dispatch(func() {
		if l := m.listener(id); l != nil {
			l(payload)
		}
	})
}

// IsListening reports whether a listener is registered for identifier.
func (m *Messenger) IsListening(identifier string) bool {
	id, err := transport.NormalizeIdentifier(identifier)
	if err != nil {
		return false
	}
	return m.listener(id) != nil
}

func (m *Messenger) listener(id string) Listener {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listeners[id]
}

// handleSignal runs on the center's delivery goroutine.
func (m *Messenger) handleSignal(identifier string) {
	if m.listener(identifier) == nil {
		return
	}
	payload, ok := m.transport.Read(identifier)
	if !ok {
		m.logger.WithIdentifier(identifier).Debug("signal without readable payload")
		return
	}
	m.NotifyListenerForMessage(identifier, payload)
}

// Close removes every listener and releases resources the messenger created.
// Transports and injected centers or dispatchers are left open.
//
// Close may be called from a listener. The owned queue is stopped without
// waiting, so listener work already queued still runs but finds no listener.
func (m *Messenger) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	for id, sub := range m.subscriptions {
		sub.Cancel()
		delete(m.subscriptions, id)
	}
	clear(m.listeners)
	m.mu.Unlock()

	var err error
	if m.ownedCenter != nil {
		err = m.ownedCenter.Close()
	}
	if m.ownedQueue != nil {
		m.ownedQueue.Stop()
	}
	return err
}
