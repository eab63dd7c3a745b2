package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const testGroup = "group.dev.wormhole.cli"

// resetFlags restores every flag to its default so earlier runs of the
// shared command tree do not leak into the next one.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// executeCommand runs the root command with args and returns captured output
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

// setupTestEnvironment points config and groups at temp directories and
// returns the groups root. Viper is reset so a config file found by an
// earlier test is not reused.
func setupTestEnvironment(t *testing.T) string {
	t.Helper()
	viper.Reset()
	bindFlags()
	t.Cleanup(func() {
		viper.Reset()
		bindFlags()
	})
	root := t.TempDir()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("WORMHOLE_GROUPS_ROOT", root)
	return root
}

func mustExecute(t *testing.T, args ...string) string {
	t.Helper()
	out, err := executeCommand(t, args...)
	if err != nil {
		t.Fatalf("wormhole %s failed: %v\nOutput: %s", strings.Join(args, " "), err, out)
	}
	return out
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "wormhole" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "wormhole")
	}

	expectedCmds := []string{"pass", "read", "clear", "listen", "group", "config", "logs", "demo"}
	cmdMap := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		cmdMap[cmd.Name()] = true
	}
	for _, expected := range expectedCmds {
		if !cmdMap[expected] {
			t.Errorf("expected subcommand %q not found", expected)
		}
	}

	for _, flag := range []string{"config", "group", "directory", "transport", "codec", "log-level"} {
		if rootCmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("expected global flag --%s", flag)
		}
	}
}

func TestGroupCommands(t *testing.T) {
	root := setupTestEnvironment(t)

	out := mustExecute(t, "group", "add", testGroup)
	if !strings.Contains(out, "ready at") {
		t.Errorf("group add output = %q", out)
	}
	if _, err := os.Stat(filepath.Join(root, testGroup)); err != nil {
		t.Errorf("group directory not created: %v", err)
	}

	out = mustExecute(t, "group", "path", testGroup)
	if strings.TrimSpace(out) != filepath.Join(root, testGroup) {
		t.Errorf("group path = %q, want %q", strings.TrimSpace(out), filepath.Join(root, testGroup))
	}

	out = mustExecute(t, "group", "list")
	if strings.TrimSpace(out) != testGroup {
		t.Errorf("group list = %q, want %q", out, testGroup)
	}

	if _, err := executeCommand(t, "group", "path", "group.dev.missing"); err == nil {
		t.Error("group path for a missing group should fail")
	}
	if _, err := executeCommand(t, "group", "add", "../escape"); err == nil {
		t.Error("group add with a path separator should fail")
	}
}

func TestPassReadClear(t *testing.T) {
	setupTestEnvironment(t)
	mustExecute(t, "group", "add", testGroup)

	out := mustExecute(t, "pass", "-g", testGroup, "note", "title=Hello", "color=green")
	if !strings.Contains(out, "Passed note via file (persisted)") {
		t.Errorf("pass output = %q", out)
	}

	out = mustExecute(t, "read", "-g", testGroup, "note")
	if !strings.Contains(out, `"title": "Hello"`) || !strings.Contains(out, `"color": "green"`) {
		t.Errorf("read output = %q", out)
	}

	mustExecute(t, "clear", "-g", testGroup, "note")
	if _, err := executeCommand(t, "read", "-g", testGroup, "note"); err == nil {
		t.Error("read after clear should fail")
	}
}

func TestPass_JSONPayloadAndCodec(t *testing.T) {
	setupTestEnvironment(t)
	mustExecute(t, "group", "add", testGroup)

	mustExecute(t, "pass", "-g", testGroup, "-t", "coordinated-file", "--codec", "yaml", "counter", "--json", `{"count": 3}`)
	out := mustExecute(t, "read", "-g", testGroup, "--codec", "yaml", "counter")
	if !strings.Contains(out, `"count": 3`) {
		t.Errorf("read output = %q", out)
	}
}

func TestPass_Errors(t *testing.T) {
	setupTestEnvironment(t)
	mustExecute(t, "group", "add", testGroup)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unprovisioned group", []string{"pass", "-g", "group.dev.nope", "id", "a=b"}, "group add"},
		{"no group", []string{"pass", "id", "a=b"}, "no application group"},
		{"no payload", []string{"pass", "-g", testGroup, "id"}, "no payload"},
		{"pairs and json", []string{"pass", "-g", testGroup, "id", "a=b", "--json", "{}"}, "not both"},
		{"bad pair", []string{"pass", "-g", testGroup, "id", "novalue"}, "expected key=value"},
		{"bad transport", []string{"pass", "-g", testGroup, "-t", "pigeon", "id", "a=b"}, "messenger.transport"},
		{"invalid identifier", []string{"pass", "-g", testGroup, "../x", "a=b"}, "failed to pass"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := executeCommand(t, tt.args...)
			if err == nil {
				t.Fatalf("expected error, output: %s", out)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.want)
			}
		})
	}
}

func TestClearAll(t *testing.T) {
	setupTestEnvironment(t)
	mustExecute(t, "group", "add", testGroup)

	mustExecute(t, "pass", "-g", testGroup, "-d", "inbox", "one", "n=1")
	mustExecute(t, "pass", "-g", testGroup, "-d", "inbox", "two", "n=2")

	out := mustExecute(t, "clear", "-g", testGroup, "-d", "inbox", "--all")
	if !strings.Contains(out, testGroup+"/inbox") {
		t.Errorf("clear --all output = %q", out)
	}
	for _, id := range []string{"one", "two"} {
		if _, err := executeCommand(t, "read", "-g", testGroup, "-d", "inbox", id); err == nil {
			t.Errorf("read %s after clear --all should fail", id)
		}
	}

	if _, err := executeCommand(t, "clear", "-g", testGroup); err == nil {
		t.Error("clear without identifier or --all should fail")
	}
}

func TestSessionContextAcrossRoles(t *testing.T) {
	setupTestEnvironment(t)
	mustExecute(t, "group", "add", testGroup)

	out := mustExecute(t, "pass", "-g", testGroup, "-t", "session-context", "status", "state=ready")
	if !strings.Contains(out, "(queued)") {
		t.Errorf("pass output = %q, want queued outcome", out)
	}

	out = mustExecute(t, "read", "-g", testGroup, "-t", "session-context",
		"--session-role", "extension", "--session-peer", "host", "status")
	if !strings.Contains(out, `"state": "ready"`) {
		t.Errorf("extension read = %q", out)
	}
}

func TestSessionMessageWithoutPeerIsDropped(t *testing.T) {
	setupTestEnvironment(t)
	mustExecute(t, "group", "add", testGroup)

	out := mustExecute(t, "pass", "-g", testGroup, "-t", "session-message", "ping", "n=1")
	if !strings.Contains(out, "(dropped)") || !strings.Contains(out, "not confirmed") {
		t.Errorf("pass output = %q", out)
	}
	if !strings.Contains(out, "extension is not connected") {
		t.Errorf("pass output should name the absent peer: %q", out)
	}
}

func TestReadList(t *testing.T) {
	setupTestEnvironment(t)
	mustExecute(t, "group", "add", testGroup)

	out := mustExecute(t, "read", "-g", testGroup, "-d", "inbox", "--list")
	if !strings.Contains(out, "No messages in "+testGroup+"/inbox") {
		t.Errorf("empty list output = %q", out)
	}

	mustExecute(t, "pass", "-g", testGroup, "-d", "inbox", "zeta", "n=1")
	mustExecute(t, "pass", "-g", testGroup, "-d", "inbox", "alpha", "n=2")
	out = mustExecute(t, "read", "-g", testGroup, "-d", "inbox", "--list")
	if out != "alpha\nzeta\n" {
		t.Errorf("list output = %q, want sorted identifiers", out)
	}

	if _, err := executeCommand(t, "read", "-g", testGroup, "--list", "alpha"); err == nil {
		t.Error("read --list with an identifier should fail")
	}
	_, err := executeCommand(t, "read", "-g", testGroup, "-t", "session-message", "--list")
	if err == nil || !strings.Contains(err.Error(), "cannot list") {
		t.Errorf("read --list on session-message error = %v", err)
	}
}

func TestConfigShow(t *testing.T) {
	root := setupTestEnvironment(t)

	out := mustExecute(t, "config", "show", "-t", "session-file", "--codec", "yaml")
	for _, want := range []string{
		"Config file: (none - using defaults)",
		"transport: session-file",
		"codec: yaml",
		"root: " + root,
		"debounce_ms: 50",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("config show output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigInitAndPath(t *testing.T) {
	setupTestEnvironment(t)

	out := mustExecute(t, "config", "init")
	if !strings.Contains(out, "Created config file") {
		t.Errorf("config init output = %q", out)
	}
	if _, err := executeCommand(t, "config", "init"); err == nil {
		t.Error("second config init should fail")
	}

	out = mustExecute(t, "config", "path")
	if !strings.Contains(out, "WORMHOLE_MESSENGER_GROUP") {
		t.Errorf("config path output = %q", out)
	}
}

func TestLogs_NoLogFile(t *testing.T) {
	setupTestEnvironment(t)

	out := mustExecute(t, "logs")
	if !strings.Contains(out, "No logs found") || !strings.Contains(out, "logging.enabled") {
		t.Errorf("logs output = %q", out)
	}
}

func TestConfigSet(t *testing.T) {
	setupTestEnvironment(t)

	out := mustExecute(t, "config", "set", "signal.debounce_ms", "125")
	if !strings.Contains(out, "Set signal.debounce_ms = 125") {
		t.Errorf("config set output = %q", out)
	}
	data, err := os.ReadFile(filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "wormhole", "config.yaml"))
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if !strings.Contains(string(data), "debounce_ms: 125") {
		t.Errorf("config file = %s", data)
	}

	if _, err := executeCommand(t, "config", "set", "messenger.transport", "pigeon"); err == nil {
		t.Error("config set with an invalid transport should fail")
	}
}
