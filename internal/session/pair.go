package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/Iron-Ham/wormhole/internal/errors"
	"github.com/Iron-Ham/wormhole/internal/logging"
	"github.com/Iron-Ham/wormhole/internal/util"
)

type eventKind int

const (
	evActivated eventKind = iota
	evInactive
	evDeactivated
	evMessage
	evContext
	evFile
)

type event struct {
	kind  eventKind
	state ActivationState
	err   error
	data  map[string][]byte
	file  File
}

// lifecycle events are delivered even while the endpoint is not activated.
func (e event) lifecycle() bool {
	return e.kind <= evDeactivated
}

// link is the connection shared by the two endpoints of a pair.
type link struct {
	reachable atomic.Bool
	fileSeq   atomic.Uint64
}

// Endpoint is one side of an in-process session created by Pair.
//
// Deliveries to an endpoint run on its own goroutine in arrival order. Data
// deliveries wait until the endpoint is activated and has a delegate; a newer
// application context replaces an older one still waiting.
type Endpoint struct {
	name   string
	link   *link
	peer   *Endpoint
	logger *logging.Logger

	mu              sync.Mutex
	cond            *sync.Cond
	state           ActivationState
	supported       bool
	delegate        Delegate
	sentContext     map[string][]byte
	receivedContext map[string][]byte
	events          []event
	incomingDir     string
	closed          bool
	done            chan struct{}
}

type pairConfig struct {
	names  [2]string
	logger *logging.Logger
}

// PairOption configures Pair.
type PairOption func(*pairConfig)

// WithNames names the two endpoints; names appear in logs and errors.
func WithNames(first, second string) PairOption {
	return func(c *pairConfig) {
		c.names = [2]string{first, second}
	}
}

// WithPairLogger attaches a logger to both endpoints.
func WithPairLogger(l *logging.Logger) PairOption {
	return func(c *pairConfig) {
		c.logger = l
	}
}

// Pair returns two connected endpoints. Both start supported, not activated
// and mutually reachable once activated. Close both when done.
func Pair(opts ...PairOption) (*Endpoint, *Endpoint) {
	cfg := pairConfig{names: [2]string{"host", "extension"}}
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := logging.OrNop(cfg.logger)

	l := &link{}
	l.reachable.Store(true)

	a := newEndpoint(cfg.names[0], l, logger)
	b := newEndpoint(cfg.names[1], l, logger)
	a.peer, b.peer = b, a

	go a.deliverLoop()
	go b.deliverLoop()
	return a, b
}

func newEndpoint(name string, l *link, logger *logging.Logger) *Endpoint {
	e := &Endpoint{
		name:            name,
		link:            l,
		logger:          logger.WithRole(name),
		supported:       true,
		sentContext:     map[string][]byte{},
		receivedContext: map[string][]byte{},
		done:            make(chan struct{}),
	}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// Name returns the endpoint's name.
func (e *Endpoint) Name() string {
	return e.name
}

// SetReachable toggles reachability of the link in both directions.
func (e *Endpoint) SetReachable(reachable bool) {
	e.link.reachable.Store(reachable)
}

// SetSupported controls what IsSupported reports for this endpoint.
func (e *Endpoint) SetSupported(supported bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.supported = supported
}

// Activate implements Session.
func (e *Endpoint) Activate() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.supported {
		return errors.NewSessionError("activate", errors.ErrSessionUnsupported).WithRole(e.name)
	}
	if e.state == Activated {
		return nil
	}
	e.state = Activated
	e.enqueueLocked(event{kind: evActivated, state: Activated})
	return nil
}

// Deactivate winds the endpoint down. The delegate sees DidBecomeInactive
// followed by DidDeactivate; the endpoint can be activated again afterwards.
func (e *Endpoint) Deactivate() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != Activated {
		return
	}
	e.state = Inactive
	e.enqueueLocked(event{kind: evInactive})
	e.state = NotActivated
	e.enqueueLocked(event{kind: evDeactivated})
}

// State implements Session.
func (e *Endpoint) State() ActivationState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// IsSupported implements Session.
func (e *Endpoint) IsSupported() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.supported
}

// IsReachable implements Session.
func (e *Endpoint) IsReachable() bool {
	if e.State() != Activated || !e.link.reachable.Load() {
		return false
	}
	return e.peer.State() == Activated
}

// ApplicationContext implements Session.
func (e *Endpoint) ApplicationContext() map[string][]byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneContext(e.sentContext)
}

// ReceivedApplicationContext implements Session.
func (e *Endpoint) ReceivedApplicationContext() map[string][]byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneContext(e.receivedContext)
}

// UpdateApplicationContext implements Session.
func (e *Endpoint) UpdateApplicationContext(ctx map[string][]byte) error {
	if err := e.ready("update context"); err != nil {
		return err
	}

	snapshot := cloneContext(ctx)
	e.mu.Lock()
	e.sentContext = snapshot
	e.mu.Unlock()

	e.peer.enqueue(event{kind: evContext, data: cloneContext(snapshot)})
	return nil
}

// SendMessage implements Session.
func (e *Endpoint) SendMessage(msg map[string][]byte, onError func(error)) {
	report := func(err error) {
		e.logger.Debug("message not sent", "error", err.Error())
		if onError != nil {
			onError(err)
		}
	}

	if err := e.ready("send message"); err != nil {
		report(err)
		return
	}
	if !e.IsReachable() {
		report(errors.NewSessionError("send message", errors.ErrUnreachable).WithRole(e.name))
		return
	}
	e.peer.enqueue(event{kind: evMessage, data: cloneContext(msg)})
}

// TransferFile implements Session.
func (e *Endpoint) TransferFile(path string, metadata map[string]string) error {
	if err := e.ready("transfer file"); err != nil {
		return err
	}

	dir, err := e.peer.ensureIncomingDir()
	if err != nil {
		return errors.NewSessionError("transfer file", err).WithRole(e.name)
	}
	dst := filepath.Join(dir, fmt.Sprintf("%d-%s", e.link.fileSeq.Add(1), filepath.Base(path)))
	if err := util.CopyFile(path, dst, 0o600); err != nil {
		return errors.NewSessionError("transfer file", err).WithRole(e.name)
	}

	e.peer.enqueue(event{kind: evFile, file: File{Path: dst, Metadata: cloneMetadata(metadata)}})
	return nil
}

// SetDelegate implements Session.
func (e *Endpoint) SetDelegate(d Delegate) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.delegate = d
	e.cond.Broadcast()
}

// Close stops delivery and removes files that were never handed out.
func (e *Endpoint) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.events = nil
	dir := e.incomingDir
	e.cond.Broadcast()
	e.mu.Unlock()

	<-e.done
	if dir != "" {
		return os.RemoveAll(dir)
	}
	return nil
}

// ready reports why the endpoint cannot send, if it cannot.
func (e *Endpoint) ready(op string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case !e.supported:
		return errors.NewSessionError(op, errors.ErrSessionUnsupported).WithRole(e.name)
	case e.state != Activated:
		return errors.NewSessionError(op, errors.ErrSessionInactive).WithRole(e.name)
	}
	return nil
}

func (e *Endpoint) ensureIncomingDir() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.incomingDir != "" {
		return e.incomingDir, nil
	}
	dir, err := os.MkdirTemp("", "wormhole-"+e.name+"-*")
	if err != nil {
		return "", err
	}
	e.incomingDir = dir
	return dir, nil
}

func (e *Endpoint) enqueue(ev event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enqueueLocked(ev)
}

func (e *Endpoint) enqueueLocked(ev event) {
	if e.closed {
		return
	}
	if ev.kind == evContext {
		for i := range e.events {
			if e.events[i].kind == evContext {
				e.events[i].data = ev.data
				return
			}
		}
	}
	e.events = append(e.events, ev)
	e.cond.Broadcast()
}

func (e *Endpoint) readyLocked() bool {
	if len(e.events) == 0 {
		return false
	}
	if e.events[0].lifecycle() {
		return true
	}
	return e.state == Activated && e.delegate != nil
}

func (e *Endpoint) deliverLoop() {
	defer close(e.done)
	for {
		e.mu.Lock()
		for !e.closed && !e.readyLocked() {
			e.cond.Wait()
		}
		if e.closed {
			e.mu.Unlock()
			return
		}
		ev := e.events[0]
		e.events[0] = event{}
		e.events = e.events[1:]
		if ev.kind == evContext {
			e.receivedContext = cloneContext(ev.data)
		}
		d := e.delegate
		e.mu.Unlock()

		deliver(d, ev)
	}
}

func deliver(d Delegate, ev event) {
	if ev.kind == evFile {
		defer func() { _ = os.Remove(ev.file.Path) }()
	}
	if d == nil {
		return
	}
	switch ev.kind {
	case evActivated:
		d.ActivationDidComplete(ev.state, ev.err)
	case evInactive:
		d.DidBecomeInactive()
	case evDeactivated:
		d.DidDeactivate()
	case evMessage:
		d.DidReceiveMessage(ev.data)
	case evContext:
		d.DidReceiveApplicationContext(ev.data)
	case evFile:
		d.DidReceiveFile(ev.file)
	}
}

var _ Session = (*Endpoint)(nil)
