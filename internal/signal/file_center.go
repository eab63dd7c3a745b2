package signal

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	"github.com/Iron-Ham/wormhole/internal/logging"
)

const (
	// signalExt is the suffix of the per-name marker files in the notification directory.
	signalExt = ".signal"

	// DefaultDebounce is the coalescing window applied per signal name.
	DefaultDebounce = 50 * time.Millisecond
)

var signalPattern = glob.MustCompile("*" + signalExt)

// FileCenter is a cross-process Center. Every process that opens a FileCenter
// on the same directory sees every other process's posts, including its own.
//
// Post rewrites <dir>/<name>.signal; a watcher turns file events into
// deliveries on an internal Bus after a per-name debounce window.
type FileCenter struct {
	dir      string
	bus      *Bus
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *logging.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer

	stopCh    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	seq       atomic.Uint64
}

// FileOption configures a FileCenter.
type FileOption func(*FileCenter)

// WithDebounce sets the coalescing window. Zero delivers every file event.
func WithDebounce(d time.Duration) FileOption {
	return func(c *FileCenter) {
		if d >= 0 {
			c.debounce = d
		}
	}
}

// WithLogger attaches a logger for watcher errors and dropped posts.
func WithLogger(l *logging.Logger) FileOption {
	return func(c *FileCenter) {
		c.logger = logging.OrNop(l)
	}
}

// NewFileCenter creates the notification directory if needed and starts
// watching it. Call Close to stop the watcher.
func NewFileCenter(dir string, opts ...FileOption) (*FileCenter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create notification directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch notification directory: %w", err)
	}

	c := &FileCenter{
		dir:      dir,
		bus:      NewBus(),
		watcher:  watcher,
		debounce: DefaultDebounce,
		logger:   logging.NopLogger(),
		timers:   make(map[string]*time.Timer),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.watchLoop()
	return c, nil
}

// Dir returns the notification directory.
func (c *FileCenter) Dir() string {
	return c.dir
}

// Post implements Center. Names that cannot be used as a file name are
// dropped and logged.
func (c *FileCenter) Post(name string) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		c.logger.Warn("dropping signal with unusable name", "name", name)
		return
	}
	token := fmt.Sprintf("%d-%d-%d\n", os.Getpid(), time.Now().UnixNano(), c.seq.Add(1))
	path := filepath.Join(c.dir, name+signalExt)
	if err := os.WriteFile(path, []byte(token), 0o644); err != nil {
		c.logger.Warn("failed to post signal", "name", name, "error", err.Error())
	}
}

// Observe implements Center.
func (c *FileCenter) Observe(name string, h Handler) Subscription {
	return c.bus.Observe(name, h)
}

// Close stops the watcher and pending deliveries. Subscriptions stay
// registered but never fire again.
func (c *FileCenter) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stopCh)
		err = c.watcher.Close()
		<-c.done

		c.mu.Lock()
		for name, t := range c.timers {
			t.Stop()
			delete(c.timers, name)
		}
		c.mu.Unlock()
		c.logger.Debug("signal center closed", "dir", c.dir, "observers", c.bus.SubscriptionCount())
	})
	return err
}

// watchLoop processes filesystem events for the notification directory.
func (c *FileCenter) watchLoop() {
	defer close(c.done)
	for {
		select {
		case <-c.stopCh:
			return

		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			base := filepath.Base(event.Name)
			if !signalPattern.Match(base) {
				continue
			}
			c.schedule(strings.TrimSuffix(base, signalExt))

		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			c.logger.Warn("notification watcher error", "error", err.Error())
		}
	}
}

// schedule delivers name after the debounce window, folding further events
// for the same name into that single delivery.
func (c *FileCenter) schedule(name string) {
	if !c.bus.HasObservers(name) {
		return
	}
	if c.debounce == 0 {
		c.bus.Post(name)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, pending := c.timers[name]; pending {
		return
	}
	c.timers[name] = time.AfterFunc(c.debounce, func() {
		c.mu.Lock()
		delete(c.timers, name)
		c.mu.Unlock()

		select {
		case <-c.stopCh:
			return
		default:
		}
		c.bus.Post(name)
	})
}
