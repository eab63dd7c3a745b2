package cmd

import (
	"fmt"

	"github.com/Iron-Ham/wormhole/internal/channel"
	"github.com/Iron-Ham/wormhole/internal/config"
	"github.com/Iron-Ham/wormhole/internal/container"
	"github.com/Iron-Ham/wormhole/internal/demo"
	"github.com/Iron-Ham/wormhole/internal/dispatch"
	"github.com/Iron-Ham/wormhole/internal/messenger"
	"github.com/Iron-Ham/wormhole/internal/session"
	"github.com/Iron-Ham/wormhole/internal/signal"
	"github.com/Iron-Ham/wormhole/internal/transport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the interactive sample app",
	Long: `Run an interactive sample app that passes messages between roles.

Start one instance per role in separate terminals, all with the same group:

  wormhole demo -g group.dev.demo --role host
  wormhole demo -g group.dev.demo --role extension

Each role writes under its own name and shows what the other roles write.

With a session transport and session.backend set to "pair", the demo runs an
in-process echo peer that answers every message under "echo".`,
	Args: cobra.NoArgs,
	RunE: runDemo,
}

var demoRole string

func init() {
	rootCmd.AddCommand(demoCmd)

	demoCmd.Flags().StringVar(&demoRole, "role", "host", "demo role: host, extension or watch")
}

func runDemo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	opts, err := demo.OptionsForRole(demoRole, cfg.Messenger.Transport)
	if err != nil {
		return err
	}

	// The spool role follows the demo role unless set explicitly
	if !cmd.Flags().Changed("session-role") {
		viper.Set("session.role", demoRole)
		if cfg.Session.Peer == demoRole {
			viper.Set("session.peer", "host")
		}
	}

	var closer func() error
	connect := func(d dispatch.Dispatcher) (demo.Passer, error) {
		if cfg.Session.Backend == config.SessionBackendPair && isSessionTransport(cfg) {
			p, closeFn, err := newEchoPair(cmd, cfg, demoRole, d)
			closer = closeFn
			return p, err
		}
		rt, err := newRuntime(cmd, runtimeOptions{dispatcher: d})
		if err != nil {
			return nil, err
		}
		closer = rt.Close
		return rt.passer, nil
	}
	defer func() {
		if closer != nil {
			_ = closer()
		}
	}()

	return demo.Run(opts, connect, tea.WithAltScreen())
}

func isSessionTransport(cfg *config.Config) bool {
	kind, err := transport.ParseKind(cfg.Messenger.Transport)
	return err == nil && kind.IsSession()
}

// newEchoPair links the demo to an in-process echo peer over a session pair.
// The echo peer passes every message it receives back under demo.EchoIdentifier.
func newEchoPair(cmd *cobra.Command, cfg *config.Config, role string, d dispatch.Dispatcher) (demo.Passer, func() error, error) {
	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return nil, nil, err
	}
	resolver := container.NewResolver(cfg.Groups.Root)
	if _, err := resolver.Path(cfg.Messenger.Group); err != nil {
		return nil, nil, fmt.Errorf("%w (run `wormhole group add %s`)", err, cfg.Messenger.Group)
	}
	kind, err := transport.ParseKind(cfg.Messenger.Transport)
	if err != nil {
		return nil, nil, err
	}
	mcfg := messenger.Config{
		GroupIdentifier: cfg.Messenger.Group,
		Directory:       cfg.Messenger.Directory,
		Kind:            kind,
	}

	self, peer := session.Pair(session.WithNames(role, "echo"), session.WithPairLogger(logger))

	ui, err := channel.New(self, mcfg,
		channel.WithContainer(resolver),
		channel.WithLogger(logger.WithRole(role)),
		channel.WithMessengerOptions(messenger.WithCenter(signal.NewBus()), messenger.WithDispatcher(d)),
	)
	if err != nil {
		return nil, nil, err
	}

	// The echo side archives into its own directory so the two sides do not
	// overwrite each other's files.
	echoCfg := mcfg
	echoCfg.Directory = "echo"
	echo, err := channel.New(peer, echoCfg,
		channel.WithContainer(resolver),
		channel.WithLogger(logger.WithRole("echo")),
		channel.WithMessengerOptions(messenger.WithCenter(signal.NewBus()), messenger.WithDispatcher(dispatch.Inline)),
	)
	if err != nil {
		_ = ui.Close()
		return nil, nil, err
	}
	echo.ListenForMessage(role, func(payload any) {
		echo.PassMessage(map[string]any{"echo": payload}, demo.EchoIdentifier)
	})

	closeAll := func() error {
		_ = echo.Close()
		_ = ui.Close()
		_ = self.Close()
		_ = peer.Close()
		return logger.Close()
	}
	if err := ui.Activate(); err != nil {
		_ = closeAll()
		return nil, nil, err
	}
	if err := echo.Activate(); err != nil {
		_ = closeAll()
		return nil, nil, err
	}
	return ui, closeAll, nil
}

var _ demo.Passer = (*channel.Channel)(nil)
