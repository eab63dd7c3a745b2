package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/Iron-Ham/wormhole/internal/codec"
	"github.com/spf13/cobra"
)

var passCmd = &cobra.Command{
	Use:   "pass <identifier> [key=value...]",
	Short: "Pass a message under an identifier",
	Long: `Pass a message under an identifier and notify listeners.

The payload is either a set of key=value pairs, which become a string map,
or an arbitrary JSON document given with --json.

Examples:
  wormhole pass -g group.dev.demo button title=Go color=green
  wormhole pass -g group.dev.demo counter --json '{"count": 3}'
  wormhole pass -g group.dev.demo -t session-message ping --json '"hello"'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPass,
}

var readCmd = &cobra.Command{
	Use:   "read <identifier>",
	Short: "Print the current message for an identifier",
	Long: `Print the current message for an identifier.

With --list, print the identifiers that have a stored message instead. Only
the file, coordinated-file and session-file transports can list.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if readList {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: runRead,
}

var clearCmd = &cobra.Command{
	Use:   "clear [identifier]",
	Short: "Remove a message, or every message with --all",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runClear,
}

var (
	passJSON string
	clearAll bool
	readList bool
)

func init() {
	rootCmd.AddCommand(passCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(clearCmd)

	passCmd.Flags().StringVar(&passJSON, "json", "", "JSON payload (instead of key=value pairs)")
	readCmd.Flags().BoolVar(&readList, "list", false, "list identifiers with a stored message")
	clearCmd.Flags().BoolVar(&clearAll, "all", false, "remove every message in the configured directory")
}

// parsePayload builds a message payload from key=value pairs or a JSON document.
func parsePayload(pairs []string, rawJSON string) (any, error) {
	if rawJSON != "" && len(pairs) > 0 {
		return nil, fmt.Errorf("use either key=value pairs or --json, not both")
	}
	if rawJSON != "" {
		v, err := codec.JSON{}.Decode([]byte(rawJSON))
		if err != nil {
			return nil, fmt.Errorf("invalid --json payload: %w", err)
		}
		return v, nil
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("no payload: give key=value pairs or --json")
	}

	payload := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid pair %q: expected key=value", pair)
		}
		payload[key] = value
	}
	return payload, nil
}

// formatPayload renders a payload as JSON, indented when indent is true.
func formatPayload(payload any, indent bool) string {
	var (
		b   []byte
		err error
	)
	if indent {
		b, err = json.MarshalIndent(payload, "", "  ")
	} else {
		b, err = json.Marshal(payload)
	}
	if err != nil {
		return fmt.Sprintf("%v", payload)
	}
	return string(b)
}

func runPass(cmd *cobra.Command, args []string) error {
	identifier := args[0]
	payload, err := parsePayload(args[1:], passJSON)
	if err != nil {
		return err
	}

	rt, err := newRuntime(cmd, runtimeOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	outcome := rt.passer.PassMessage(payload, identifier)
	if !outcome.Accepted() {
		return fmt.Errorf("failed to pass %q via %s transport", identifier, rt.kind)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Passed %s via %s (%s)\n", identifier, rt.kind, outcome)
	if !outcome.Confirmed() {
		fmt.Fprintln(out, rt.peerNote())
	}
	return nil
}

// peerNote explains an unconfirmed session delivery.
func (rt *runtime) peerNote() string {
	if rt.spool == nil {
		return "Note: delivery is not confirmed."
	}
	if p, ok := rt.spool.Peer(); ok {
		return fmt.Sprintf("Note: delivery is not confirmed; %s is connected (pid %d on %s) and picks it up from the spool.",
			p.Role, p.PID, p.Hostname)
	}
	return fmt.Sprintf("Note: delivery is not confirmed; %s is not connected and may never see it.", rt.spool.PeerRole())
}

// identifierLister is implemented by transports that keep one stored
// message per identifier.
type identifierLister interface {
	Identifiers() ([]string, error)
}

func runRead(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd, runtimeOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	if readList {
		return listIdentifiers(cmd, rt)
	}

	payload, ok := rt.passer.MessageForIdentifier(args[0])
	if !ok {
		return fmt.Errorf("no message for %q", args[0])
	}
	fmt.Fprintln(cmd.OutOrStdout(), formatPayload(payload, true))
	return nil
}

func listIdentifiers(cmd *cobra.Command, rt *runtime) error {
	lister, ok := rt.passer.Transport().(identifierLister)
	if !ok {
		return fmt.Errorf("the %s transport cannot list identifiers", rt.kind)
	}
	ids, err := lister.Identifiers()
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to list %s: %w", rt.location(), err)
	}
	out := cmd.OutOrStdout()
	if len(ids) == 0 {
		fmt.Fprintf(out, "No messages in %s\n", rt.location())
		return nil
	}
	slices.Sort(ids)
	for _, id := range ids {
		fmt.Fprintln(out, id)
	}
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	if clearAll == (len(args) == 1) {
		return fmt.Errorf("give exactly one of an identifier or --all")
	}

	rt, err := newRuntime(cmd, runtimeOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	out := cmd.OutOrStdout()
	if clearAll {
		rt.passer.ClearAllMessageContents()
		fmt.Fprintf(out, "Cleared all messages in %s\n", rt.location())
		return nil
	}
	rt.passer.ClearMessageContents(args[0])
	fmt.Fprintf(out, "Cleared %s\n", args[0])
	return nil
}

// location describes where messages live, for user-facing output.
func (rt *runtime) location() string {
	loc := rt.cfg.Messenger.Group
	if rt.cfg.Messenger.Directory != "" {
		loc += "/" + rt.cfg.Messenger.Directory
	}
	return loc
}
