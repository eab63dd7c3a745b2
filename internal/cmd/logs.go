package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	ossignal "os/signal"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/Iron-Ham/wormhole/internal/logging"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View wormhole logs",
	Long: `View and filter the wormhole log file.

Logs are written only when logging.enabled is true. Each line is a JSON
object tagged with the transport, identifier and session role involved.

Examples:
  # Show the last 50 lines
  wormhole logs

  # Follow logs in real-time
  wormhole logs -f

  # Only warnings and errors from the session-message transport
  wormhole logs --level warn --transport session-message

  # Search for a specific identifier
  wormhole logs --grep "button"`,
	RunE: runLogs,
}

var (
	logsTail      int
	logsFollow    bool
	logsLevel     string
	logsSince     string
	logsGrep      string
	logsTransport string
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of lines to show (0 for all)")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output (like tail -f)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Filter by minimum level (debug/info/warn/error)")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show logs since duration ago (e.g., 1h, 30m)")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "Filter logs matching pattern (regex)")
	logsCmd.Flags().StringVar(&logsTransport, "transport", "", "Only show entries for this transport kind")
}

// logEntry is one decoded line of the log file.
type logEntry struct {
	Time       time.Time      `json:"time"`
	Level      string         `json:"level"`
	Msg        string         `json:"msg"`
	Transport  string         `json:"transport,omitempty"`
	Identifier string         `json:"identifier,omitempty"`
	Role       string         `json:"role,omitempty"`
	Extra      map[string]any `json:"-"`
}

var knownLogFields = []string{"time", "level", "msg", "transport", "identifier", "role"}

// UnmarshalJSON decodes the known fields and keeps the rest in Extra.
func (e *logEntry) UnmarshalJSON(data []byte) error {
	type plain logEntry
	if err := json.Unmarshal(data, (*plain)(e)); err != nil {
		return err
	}

	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, k := range knownLogFields {
		delete(all, k)
	}
	if len(all) > 0 {
		e.Extra = all
	}
	return nil
}

// logLevels orders the level names; the index is the priority.
var logLevels = logging.ValidLevels()

var (
	logTimeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	logFieldStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	logLevelStyle = map[string]lipgloss.Style{
		logging.LevelDebug: lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		logging.LevelInfo:  lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		logging.LevelWarn:  lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		logging.LevelError: lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
	}
)

// levelPriority returns the rank of level, or -1 when it is unknown.
func levelPriority(level string) int {
	return slices.Index(logLevels, strings.ToUpper(level))
}

// formatLogEntry renders an entry as one terminal line.
func formatLogEntry(entry *logEntry) string {
	level := strings.ToUpper(entry.Level)

	var sb strings.Builder
	sb.WriteString(logTimeStyle.Render("[" + entry.Time.Format("15:04:05.000") + "]"))
	sb.WriteString(" ")
	style, ok := logLevelStyle[level]
	if !ok {
		style = lipgloss.NewStyle()
	}
	sb.WriteString(style.Render("[" + level + "]"))
	sb.WriteString(" ")
	sb.WriteString(entry.Msg)

	field := func(key, value string) {
		if value != "" {
			sb.WriteString(" " + logFieldStyle.Render(key+"=") + value)
		}
	}
	field("transport", entry.Transport)
	field("identifier", entry.Identifier)
	field("role", entry.Role)

	keys := make([]string, 0, len(entry.Extra))
	for k := range entry.Extra {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		field(k, fmt.Sprintf("%v", entry.Extra[k]))
	}
	return sb.String()
}

// logFilter holds the parsed filter flags.
type logFilter struct {
	minLevel  int
	since     time.Time
	grep      *regexp.Regexp
	transport string
}

func newLogFilter(level, since, grep, transportKind string) (logFilter, error) {
	f := logFilter{minLevel: -1, transport: transportKind}
	if level != "" {
		f.minLevel = levelPriority(logging.ParseLevel(level))
	}
	if since != "" {
		d, err := time.ParseDuration(since)
		if err != nil {
			return f, fmt.Errorf("invalid duration format: %w", err)
		}
		f.since = time.Now().Add(-d)
	}
	if grep != "" {
		re, err := regexp.Compile(grep)
		if err != nil {
			return f, fmt.Errorf("invalid grep pattern: %w", err)
		}
		f.grep = re
	}
	return f, nil
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	logPath := filepath.Join(cfg.Logging.LogDir(), logging.LogFileName)
	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		fmt.Fprintf(out, "No logs found at %s\n", logPath)
		if !cfg.Logging.Enabled {
			fmt.Fprintln(out, "Enable them with: wormhole config set logging.enabled true")
		}
		return nil
	}

	filter, err := newLogFilter(logsLevel, logsSince, logsGrep, logsTransport)
	if err != nil {
		return err
	}

	if logsFollow {
		ctx, stop := ossignal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return followLogs(ctx, out, logPath, filter)
	}
	return displayLogs(out, logPath, logsTail, filter)
}

// renderLogLine formats one raw line. Lines that are not JSON pass through
// unfiltered; ok is false for entries the filter rejects.
func renderLogLine(line string, filter logFilter) (string, bool) {
	var entry logEntry
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		return line, true
	}
	if !filter.passes(&entry) {
		return "", false
	}
	return formatLogEntry(&entry), true
}

// displayLogs writes the last tail matching entries of the log file.
func displayLogs(out io.Writer, logPath string, tail int, filter logFilter) error {
	file, err := os.Open(logPath)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	var entries []string
	scanner := bufio.NewScanner(file)
	// Payload previews can make lines long
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if rendered, ok := renderLogLine(line, filter); ok {
			entries = append(entries, rendered)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading log file: %w", err)
	}

	if tail > 0 && len(entries) > tail {
		entries = entries[len(entries)-tail:]
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No matching log entries found.")
		return nil
	}
	for _, entry := range entries {
		fmt.Fprintln(out, entry)
	}
	return nil
}

// followLogs prints entries appended to the log file until ctx is done.
func followLogs(ctx context.Context, out io.Writer, logPath string, filter logFilter) error {
	file, err := os.Open(logPath)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}
	fmt.Fprintf(out, "Following %s... (Ctrl+C to stop)\n\n", logPath)

	reader := bufio.NewReader(file)
	var partial string
	for {
		chunk, err := reader.ReadString('\n')
		partial += chunk
		if err == io.EOF {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("error reading log file: %w", err)
		}

		line := strings.TrimSpace(partial)
		partial = ""
		if line == "" {
			continue
		}
		if rendered, ok := renderLogLine(line, filter); ok {
			fmt.Fprintln(out, rendered)
		}
	}
}

// passes checks if a log entry passes all filter criteria
func (f logFilter) passes(entry *logEntry) bool {
	if f.minLevel >= 0 && levelPriority(entry.Level) < f.minLevel {
		return false
	}
	if !f.since.IsZero() && entry.Time.Before(f.since) {
		return false
	}
	if f.transport != "" && entry.Transport != f.transport {
		return false
	}

	// Search message, identifier and extra fields
	if f.grep != nil {
		searchText := entry.Msg + " " + entry.Identifier
		for _, v := range entry.Extra {
			searchText += " " + fmt.Sprintf("%v", v)
		}
		if !f.grep.MatchString(searchText) {
			return false
		}
	}

	return true
}
