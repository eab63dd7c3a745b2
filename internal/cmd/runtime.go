package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/Iron-Ham/wormhole/internal/channel"
	"github.com/Iron-Ham/wormhole/internal/codec"
	"github.com/Iron-Ham/wormhole/internal/config"
	"github.com/Iron-Ham/wormhole/internal/container"
	"github.com/Iron-Ham/wormhole/internal/dispatch"
	"github.com/Iron-Ham/wormhole/internal/logging"
	"github.com/Iron-Ham/wormhole/internal/messenger"
	"github.com/Iron-Ham/wormhole/internal/session"
	"github.com/Iron-Ham/wormhole/internal/signal"
	"github.com/Iron-Ham/wormhole/internal/transport"
	"github.com/spf13/cobra"
)

// SessionDirName is the directory under the groups root holding spools.
const SessionDirName = ".session"

// passer is the surface shared by messenger.Messenger and channel.Channel.
type passer interface {
	PassMessage(payload any, identifier string) transport.Outcome
	MessageForIdentifier(identifier string) (any, bool)
	ClearMessageContents(identifier string)
	ClearAllMessageContents()
	ListenForMessage(identifier string, l messenger.Listener)
	StopListeningForMessage(identifier string)
	Transport() transport.Transport
	Close() error
}

// runtime is everything a command needs to pass messages, built from the
// loaded configuration.
type runtime struct {
	cfg      *config.Config
	kind     transport.Kind
	codec    codec.Codec
	logger   *logging.Logger
	resolver *container.Resolver
	center   signal.Center
	spool    *session.Spool
	passer   passer
}

// runtimeOptions tweak how newRuntime wires things for a specific command.
type runtimeOptions struct {
	dispatcher dispatch.Dispatcher
}

// loadConfig loads and validates the merged configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the command logger. File logging is opt-in; an explicit
// --log-level without it logs to stderr.
func newLogger(cmd *cobra.Command, cfg *config.Config) (*logging.Logger, error) {
	switch {
	case cfg.Logging.Enabled:
		return logging.NewLogger(cfg.Logging.LogDir(), logging.ParseLevel(cfg.Logging.Level))
	case cmd.Flags().Changed("log-level"):
		return logging.NewWriterLogger(cmd.ErrOrStderr(), logging.ParseLevel(cfg.Logging.Level)), nil
	default:
		return logging.NopLogger(), nil
	}
}

// sessionDir returns where the spool for cfg lives.
func sessionDir(cfg *config.Config, r *container.Resolver) string {
	if cfg.Session.Dir != "" {
		return cfg.Session.Dir
	}
	return filepath.Join(r.Root, SessionDirName, cfg.Messenger.Group)
}

// signalDir returns where the file-backed change signals live.
func signalDir(cfg *config.Config, r *container.Resolver) string {
	if cfg.Signal.Dir != "" {
		return cfg.Signal.Dir
	}
	return filepath.Join(r.Root, messenger.SignalDirName)
}

// newRuntime wires config, logger, signal center, session and messenger.
// Callers must Close the runtime.
func newRuntime(cmd *cobra.Command, ro runtimeOptions) (_ *runtime, err error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	kind, err := transport.ParseKind(cfg.Messenger.Transport)
	if err != nil {
		return nil, err
	}
	c, err := codec.ByName(cfg.Codec)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return nil, err
	}

	rt := &runtime{
		cfg:      cfg,
		kind:     kind,
		codec:    c,
		logger:   logger,
		resolver: container.NewResolver(cfg.Groups.Root),
	}
	defer func() {
		if err != nil {
			_ = rt.Close()
		}
	}()

	if cfg.Messenger.Group == "" {
		return nil, fmt.Errorf("no application group configured; pass --group or set messenger.group")
	}
	// Checked here so the CLI reports an unprovisioned group instead of the
	// messenger panicking on it.
	if _, err := rt.resolver.Path(cfg.Messenger.Group); err != nil {
		return nil, fmt.Errorf("%w (run `wormhole group add %s`)", err, cfg.Messenger.Group)
	}

	switch cfg.Signal.Backend {
	case config.SignalBackendLocal:
		rt.center = signal.NewBus()
	default:
		fc, err := signal.NewFileCenter(signalDir(cfg, rt.resolver),
			signal.WithDebounce(cfg.Signal.Debounce()),
			signal.WithLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("open signal center: %w", err)
		}
		rt.center = fc
	}

	mcfg := messenger.Config{
		GroupIdentifier: cfg.Messenger.Group,
		Directory:       cfg.Messenger.Directory,
		Kind:            kind,
	}
	mopts := []messenger.Option{messenger.WithCenter(rt.center)}
	if ro.dispatcher != nil {
		mopts = append(mopts, messenger.WithDispatcher(ro.dispatcher))
	}

	if !kind.IsSession() {
		m, err := messenger.New(mcfg, append(mopts,
			messenger.WithCodec(c),
			messenger.WithContainer(rt.resolver),
			messenger.WithLogger(logger),
		)...)
		if err != nil {
			return nil, err
		}
		rt.passer = m
		return rt, nil
	}

	if cfg.Session.Backend != config.SessionBackendSpool {
		return nil, fmt.Errorf("session backend %q is in-process only; use `wormhole demo` or the spool backend", cfg.Session.Backend)
	}
	sp, err := session.NewSpool(sessionDir(cfg, rt.resolver), cfg.Session.Role, cfg.Session.Peer,
		session.WithSpoolLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	rt.spool = sp

	ch, err := channel.New(sp, mcfg,
		channel.WithCodec(c),
		channel.WithContainer(rt.resolver),
		channel.WithLogger(logger),
		channel.WithMessengerOptions(mopts...),
	)
	if err != nil {
		return nil, err
	}
	rt.passer = ch
	if err := ch.Activate(); err != nil {
		return nil, fmt.Errorf("activate %s session: %w", cfg.Session.Role, err)
	}
	return rt, nil
}

// Close releases everything newRuntime opened, innermost first.
func (rt *runtime) Close() error {
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	if rt.passer != nil {
		keep(rt.passer.Close())
	}
	if rt.spool != nil {
		keep(rt.spool.Close())
	}
	if fc, ok := rt.center.(*signal.FileCenter); ok {
		keep(fc.Close())
	}
	keep(rt.logger.Close())
	return first
}

