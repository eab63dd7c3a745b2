package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	ossignal "os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Iron-Ham/wormhole/internal/dispatch"
	"github.com/Iron-Ham/wormhole/internal/util"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"
)

var listenCmd = &cobra.Command{
	Use:   "listen <identifier>...",
	Short: "Print messages as they change",
	Long: `Listen for changes to one or more identifiers and print each new payload.

On a terminal each change is printed as a colored line truncated to the
terminal width. Otherwise each change is printed as one JSON object per line:

  {"time":"...","identifier":"button","payload":{"title":"Go"}}

Runs until interrupted.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runListen,
}

var (
	listenFormat  string
	listenInitial bool
)

// Listen output formats
const (
	formatAuto   = "auto"
	formatPretty = "pretty"
	formatJSON   = "json"
)

func init() {
	rootCmd.AddCommand(listenCmd)

	listenCmd.Flags().StringVar(&listenFormat, "format", formatAuto, "output format: auto, pretty or json")
	listenCmd.Flags().BoolVar(&listenInitial, "initial", false, "print the current message for each identifier before listening")
}

var (
	listenTimeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	listenIDStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
)

// listenEvent is one JSON line of listen output.
type listenEvent struct {
	Time       time.Time `json:"time"`
	Identifier string    `json:"identifier"`
	Payload    any       `json:"payload"`
}

// eventPrinter writes listener events. Safe for concurrent use.
type eventPrinter struct {
	mu     sync.Mutex
	w      io.Writer
	pretty bool
	width  int // 0 means no truncation
	now    func() time.Time
}

func newEventPrinter(w io.Writer, pretty bool, width int) *eventPrinter {
	return &eventPrinter{w: w, pretty: pretty, width: width, now: time.Now}
}

// Print writes one event line.
func (p *eventPrinter) Print(identifier string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ts := p.now()
	if !p.pretty {
		return json.NewEncoder(p.w).Encode(listenEvent{Time: ts, Identifier: identifier, Payload: payload})
	}

	line := listenTimeStyle.Render(ts.Format("15:04:05.000")) + " " +
		listenIDStyle.Render(identifier) + " " +
		formatPayload(payload, false)
	_, err := fmt.Fprintln(p.w, util.FitLine(line, p.width))
	return err
}

// resolveFormat decides whether listen output is pretty.
func resolveFormat(format string, out io.Writer) (pretty bool, width int, err error) {
	switch format {
	case formatJSON:
		return false, 0, nil
	case formatPretty, formatAuto:
	default:
		return false, 0, fmt.Errorf("invalid format %q: must be auto, pretty or json", format)
	}

	f, isFile := out.(*os.File)
	tty := isFile && term.IsTerminal(f.Fd())
	if format == formatAuto && !tty {
		return false, 0, nil
	}
	if tty {
		if w, _, err := term.GetSize(f.Fd()); err == nil {
			width = w
		}
	}
	return true, width, nil
}

func runListen(cmd *cobra.Command, args []string) error {
	pretty, width, err := resolveFormat(listenFormat, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	ctx, stop := ossignal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Listeners run here, on the command goroutine, via queue.Run below.
	queue := dispatch.NewQueue()
	rt, err := newRuntime(cmd, runtimeOptions{dispatcher: queue})
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	printer := newEventPrinter(cmd.OutOrStdout(), pretty, width)
	for _, id := range args {
		rt.passer.ListenForMessage(id, func(payload any) {
			if err := printer.Print(id, payload); err != nil {
				rt.logger.Warn("failed to print message", "identifier", id, "error", err.Error())
			}
		})
	}

	if listenInitial {
		for _, id := range args {
			if payload, ok := rt.passer.MessageForIdentifier(id); ok {
				_ = printer.Print(id, payload)
			}
		}
	}

	if pretty {
		fmt.Fprintf(cmd.ErrOrStderr(), "Listening on %s via %s... (Ctrl+C to stop)\n", rt.location(), rt.kind)
	}
	queue.Run(ctx)
	return nil
}
