package session

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Iron-Ham/wormhole/internal/errors"
	"github.com/Iron-Ham/wormhole/internal/filelock"
	"github.com/Iron-Ham/wormhole/internal/logging"
	"github.com/Iron-Ham/wormhole/internal/util"
)

// Files inside a role directory. Everything in <root>/<role> is addressed to
// that role, except the presence files which the role itself maintains.
const (
	inboxFile    = "inbox.jsonl"
	inboxLock    = "inbox.lock"
	contextFile  = "context.json"
	filesDir     = "files"
	presenceLock = "presence.lock"
	presenceFile = "presence.json"
)

// DefaultSpoolDebounce is how long the spool waits after the last change to
// its directory before reading it.
const DefaultSpoolDebounce = 20 * time.Millisecond

type envelopeKind string

const (
	envelopeMessage envelopeKind = "message"
	envelopeFile    envelopeKind = "file"
)

// envelope is one line of an inbox.
type envelope struct {
	ID        string            `json:"id"`
	Kind      envelopeKind      `json:"kind"`
	From      string            `json:"from"`
	Payload   map[string][]byte `json:"payload,omitempty"`
	File      string            `json:"file,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Presence describes the process currently holding a role.
type Presence struct {
	Role      string    `json:"role"`
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartedAt time.Time `json:"started_at"`
}

// Spool is a Session between two processes sharing a directory. Each side
// opens a Spool with its own role and the peer's role:
//
//	<root>/<role>/inbox.jsonl    messages and file notices for role (JSONL)
//	<root>/<role>/context.json   latest application context for role
//	<root>/<role>/files/         transferred files for role
//	<root>/<role>/presence.lock  flock held by role while activated
//
// A peer is reachable while it holds its presence lock. Deliveries run on the
// spool's watcher goroutine.
type Spool struct {
	root     string
	role     string
	peer     string
	logger   *logging.Logger
	debounce time.Duration

	mu       sync.Mutex
	state    ActivationState
	delegate Delegate
	presence *filelock.Lock
	watcher  *fsnotify.Watcher
	stopCh   chan struct{}
	done     chan struct{}
	kick     chan struct{}

	// lastContext holds the raw bytes of the last delivered context.
	lastContext []byte
}

// SpoolOption configures a Spool.
type SpoolOption func(*Spool)

// WithSpoolLogger attaches a logger.
func WithSpoolLogger(l *logging.Logger) SpoolOption {
	return func(s *Spool) {
		s.logger = logging.OrNop(l).WithRole(s.role)
	}
}

// WithSpoolDebounce sets the quiet period before the spool reads changes.
func WithSpoolDebounce(d time.Duration) SpoolOption {
	return func(s *Spool) {
		if d > 0 {
			s.debounce = d
		}
	}
}

// NewSpool creates a spool for role talking to peer under root.
// Nothing is created on disk until Activate.
func NewSpool(root, role, peer string, opts ...SpoolOption) (*Spool, error) {
	if root == "" {
		return nil, fmt.Errorf("spool root is required")
	}
	if !validRole(role) || !validRole(peer) {
		return nil, fmt.Errorf("invalid spool roles %q and %q", role, peer)
	}
	if role == peer {
		return nil, fmt.Errorf("spool role and peer must differ, both are %q", role)
	}

	s := &Spool{
		root:     root,
		role:     role,
		peer:     peer,
		logger:   logging.NopLogger(),
		debounce: DefaultSpoolDebounce,
		kick:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func validRole(role string) bool {
	return role != "" && role != "." && role != ".." && !strings.ContainsAny(role, `/\`)
}

// Role returns this side's role.
func (s *Spool) Role() string {
	return s.role
}

// PeerRole returns the other side's role.
func (s *Spool) PeerRole() string {
	return s.peer
}

func (s *Spool) ownDir() string  { return filepath.Join(s.root, s.role) }
func (s *Spool) peerDir() string { return filepath.Join(s.root, s.peer) }

// Activate claims the role and starts watching for deliveries. It fails if
// another process already holds the role.
func (s *Spool) Activate() error {
	s.mu.Lock()
	if s.state == Activated {
		s.mu.Unlock()
		return nil
	}

	dir := s.ownDir()
	if err := os.MkdirAll(filepath.Join(dir, filesDir), 0o755); err != nil {
		s.mu.Unlock()
		return errors.NewSessionError("activate", err).WithRole(s.role)
	}

	presence := filelock.New(filepath.Join(dir, presenceLock))
	acquired, err := presence.TryLock()
	if err != nil {
		s.mu.Unlock()
		return errors.NewSessionError("activate", err).WithRole(s.role)
	}
	if !acquired {
		s.mu.Unlock()
		return errors.NewSessionError("activate",
			fmt.Errorf("%w: role is active in another process", errors.ErrCoordination)).WithRole(s.role)
	}

	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		err = watcher.Add(dir)
		if err != nil {
			_ = watcher.Close()
		}
	}
	if err != nil {
		_ = presence.Unlock()
		s.mu.Unlock()
		return errors.NewSessionError("activate", fmt.Errorf("failed to watch spool: %w", err)).WithRole(s.role)
	}

	s.writePresence()
	s.presence = presence
	s.watcher = watcher
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	s.state = Activated
	d := s.delegate
	stopCh, done := s.stopCh, s.done
	s.mu.Unlock()

	s.logger.Info("spool activated", "peer", s.peer, "dir", dir)
	if d != nil {
		d.ActivationDidComplete(Activated, nil)
	}
	go s.watchLoop(watcher, stopCh, done)
	return nil
}

// Deactivate releases the role. The delegate sees DidBecomeInactive then
// DidDeactivate. It must not be called from a delegate callback.
func (s *Spool) Deactivate() {
	d, ok := s.shutdown()
	if ok && d != nil {
		d.DidBecomeInactive()
		d.DidDeactivate()
	}
}

// Close releases the role without notifying the delegate.
func (s *Spool) Close() error {
	s.shutdown()
	return nil
}

func (s *Spool) shutdown() (Delegate, bool) {
	s.mu.Lock()
	if s.state != Activated {
		s.mu.Unlock()
		return nil, false
	}
	s.state = Inactive
	close(s.stopCh)
	_ = s.watcher.Close()
	done := s.done
	s.mu.Unlock()

	<-done

	s.mu.Lock()
	_ = os.Remove(filepath.Join(s.ownDir(), presenceFile))
	if err := s.presence.Unlock(); err != nil {
		s.logger.Warn("failed to release presence lock", "error", err.Error())
	}
	s.presence = nil
	s.watcher = nil
	s.state = NotActivated
	d := s.delegate
	s.mu.Unlock()

	s.logger.Info("spool deactivated")
	return d, true
}

// State implements Session.
func (s *Spool) State() ActivationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsSupported implements Session. A spool is always supported.
func (s *Spool) IsSupported() bool {
	return true
}

// IsReachable implements Session.
func (s *Spool) IsReachable() bool {
	if s.State() != Activated {
		return false
	}
	held, err := filelock.IsLocked(filepath.Join(s.peerDir(), presenceLock))
	if err != nil {
		s.logger.Debug("presence probe failed", "error", err.Error())
		return false
	}
	return held
}

// Peer returns the presence record of the peer while it is reachable.
func (s *Spool) Peer() (Presence, bool) {
	if !s.IsReachable() {
		return Presence{}, false
	}
	b, err := util.ReadFile(filepath.Join(s.peerDir(), presenceFile))
	if err != nil || b == nil {
		return Presence{}, false
	}
	var p Presence
	if err := json.Unmarshal(b, &p); err != nil {
		return Presence{}, false
	}
	return p, true
}

// ApplicationContext implements Session.
func (s *Spool) ApplicationContext() map[string][]byte {
	ctx, _ := readContext(filepath.Join(s.peerDir(), contextFile))
	return ctx
}

// ReceivedApplicationContext implements Session.
func (s *Spool) ReceivedApplicationContext() map[string][]byte {
	ctx, _ := readContext(filepath.Join(s.ownDir(), contextFile))
	return ctx
}

// UpdateApplicationContext implements Session.
func (s *Spool) UpdateApplicationContext(ctx map[string][]byte) error {
	if err := s.ready("update context"); err != nil {
		return err
	}
	data, err := json.Marshal(cloneContext(ctx))
	if err != nil {
		return errors.NewSessionError("update context", fmt.Errorf("%w: %v", errors.ErrEncode, err)).WithRole(s.role)
	}
	if err := os.MkdirAll(s.peerDir(), 0o755); err != nil {
		return errors.NewSessionError("update context", err).WithRole(s.role)
	}
	if err := util.WriteFileAtomic(filepath.Join(s.peerDir(), contextFile), data, 0o644, false); err != nil {
		return errors.NewSessionError("update context", err).WithRole(s.role)
	}
	return nil
}

// SendMessage implements Session.
func (s *Spool) SendMessage(msg map[string][]byte, onError func(error)) {
	report := func(err error) {
		s.logger.Debug("message not sent", "error", err.Error())
		if onError != nil {
			onError(err)
		}
	}

	if err := s.ready("send message"); err != nil {
		report(err)
		return
	}
	if !s.IsReachable() {
		report(errors.NewSessionError("send message", errors.ErrUnreachable).WithRole(s.role))
		return
	}
	env := envelope{Kind: envelopeMessage, Payload: cloneContext(msg)}
	if err := s.appendToPeer(env); err != nil {
		report(errors.NewSessionError("send message", err).WithRole(s.role))
	}
}

// TransferFile implements Session. The peer need not be reachable; the file
// waits in its spool until it activates.
func (s *Spool) TransferFile(path string, metadata map[string]string) error {
	if err := s.ready("transfer file"); err != nil {
		return err
	}

	dir := filepath.Join(s.peerDir(), filesDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.NewSessionError("transfer file", err).WithRole(s.role)
	}
	name := generateID() + "-" + filepath.Base(path)
	if err := util.CopyFile(path, filepath.Join(dir, name), 0o644); err != nil {
		return errors.NewSessionError("transfer file", err).WithRole(s.role)
	}

	env := envelope{Kind: envelopeFile, File: name, Metadata: cloneMetadata(metadata)}
	if err := s.appendToPeer(env); err != nil {
		_ = os.Remove(filepath.Join(dir, name))
		return errors.NewSessionError("transfer file", err).WithRole(s.role)
	}
	return nil
}

// SetDelegate implements Session. Deliveries that arrived while no delegate
// was set are handed to the new one.
func (s *Spool) SetDelegate(d Delegate) {
	s.mu.Lock()
	s.delegate = d
	s.mu.Unlock()

	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *Spool) ready(op string) error {
	if s.State() != Activated {
		return errors.NewSessionError(op, errors.ErrSessionInactive).WithRole(s.role)
	}
	return nil
}

func (s *Spool) writePresence() {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	data, err := json.MarshalIndent(Presence{
		Role:      s.role,
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartedAt: time.Now(),
	}, "", "  ")
	if err != nil {
		return
	}
	if err := util.WriteFileAtomic(filepath.Join(s.ownDir(), presenceFile), data, 0o644, false); err != nil {
		s.logger.Warn("failed to write presence", "error", err.Error())
	}
}

// appendToPeer appends one envelope to the peer's inbox under its inbox lock.
func (s *Spool) appendToPeer(env envelope) error {
	env.ID = generateID()
	env.From = s.role
	env.Timestamp = time.Now()

	dir := s.peerDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create peer spool: %w", err)
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrEncode, err)
	}
	data = append(data, '\n')

	lock := filelock.New(filepath.Join(dir, inboxLock))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrCoordination, err)
	}
	defer func() { _ = lock.Unlock() }()

	f, err := os.OpenFile(filepath.Join(dir, inboxFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open inbox for append: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("append to inbox: %w", err)
	}
	return f.Close()
}

// drainInbox returns every envelope in this role's inbox and empties it.
// Malformed lines are skipped.
func (s *Spool) drainInbox() ([]envelope, error) {
	dir := s.ownDir()
	lock := filelock.New(filepath.Join(dir, inboxLock))
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrCoordination, err)
	}
	defer func() { _ = lock.Unlock() }()

	path := filepath.Join(dir, inboxFile)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open inbox: %w", err)
	}

	var envelopes []envelope
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var env envelope
		if err := json.Unmarshal(line, &env); err != nil {
			s.logger.Warn("skipping malformed inbox entry", "error", err.Error())
			continue
		}
		envelopes = append(envelopes, env)
	}
	scanErr := scanner.Err()
	_ = f.Close()
	if scanErr != nil {
		return nil, fmt.Errorf("scan inbox: %w", scanErr)
	}

	if len(envelopes) > 0 {
		if err := os.Truncate(path, 0); err != nil {
			return nil, fmt.Errorf("truncate inbox: %w", err)
		}
	}
	return envelopes, nil
}

// poll hands everything waiting in the spool to the delegate.
func (s *Spool) poll() {
	s.mu.Lock()
	d := s.delegate
	active := s.state == Activated
	s.mu.Unlock()
	if !active || d == nil {
		return
	}

	envelopes, err := s.drainInbox()
	if err != nil {
		s.logger.Warn("failed to read inbox", "error", err.Error())
	}
	for _, env := range envelopes {
		switch env.Kind {
		case envelopeMessage:
			d.DidReceiveMessage(env.Payload)
		case envelopeFile:
			path := filepath.Join(s.ownDir(), filesDir, filepath.Base(env.File))
			d.DidReceiveFile(File{Path: path, Metadata: cloneMetadata(env.Metadata)})
			_ = os.Remove(path)
		default:
			s.logger.Warn("unknown inbox entry", "kind", string(env.Kind), "id", env.ID)
		}
	}

	raw, err := util.ReadFile(filepath.Join(s.ownDir(), contextFile))
	if err != nil {
		s.logger.Warn("failed to read context", "error", err.Error())
		return
	}
	if raw == nil || bytes.Equal(raw, s.lastContext) {
		return
	}
	var ctx map[string][]byte
	if err := json.Unmarshal(raw, &ctx); err != nil {
		s.logger.Warn("skipping malformed context", "error", err.Error())
		return
	}
	s.lastContext = raw
	if ctx == nil {
		ctx = map[string][]byte{}
	}
	d.DidReceiveApplicationContext(ctx)
}

// watchLoop processes filesystem events for this role's directory.
func (s *Spool) watchLoop(watcher *fsnotify.Watcher, stopCh, done chan struct{}) {
	defer close(done)

	s.poll()

	debounceTimer := time.NewTimer(0)
	<-debounceTimer.C // drain initial timer

	for {
		select {
		case <-stopCh:
			debounceTimer.Stop()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			switch filepath.Base(event.Name) {
			case inboxFile, contextFile:
			default:
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			debounceTimer.Reset(s.debounce)

		case <-debounceTimer.C:
			s.poll()

		case <-s.kick:
			s.poll()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("spool watcher error", "error", err.Error())
		}
	}
}

func readContext(path string) (map[string][]byte, error) {
	ctx := map[string][]byte{}
	b, err := util.ReadFile(path)
	if err != nil || b == nil {
		return ctx, err
	}
	if err := json.Unmarshal(b, &ctx); err != nil {
		return map[string][]byte{}, fmt.Errorf("%w: %v", errors.ErrDecode, err)
	}
	return ctx, nil
}

// idCounter provides per-process uniqueness for envelope and file IDs.
var idCounter atomic.Uint64

func generateID() string {
	return fmt.Sprintf("%d-%d-%d", time.Now().UnixNano(), os.Getpid(), idCounter.Add(1))
}

var _ Session = (*Spool)(nil)
