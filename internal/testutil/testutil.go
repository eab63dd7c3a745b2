// Package testutil provides testing utilities for wormhole tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Iron-Ham/wormhole/internal/container"
)

// TestGroup is the application group identifier used by tests.
const TestGroup = "group.dev.wormhole.tests"

// SetupGroup creates a temporary groups root with group provisioned.
// Returns the resolver and the container directory. Everything is removed
// when the test completes.
func SetupGroup(t *testing.T, group string) (*container.Resolver, string) {
	t.Helper()

	resolver := container.NewResolver(t.TempDir())
	dir, err := resolver.Provision(group)
	if err != nil {
		t.Fatalf("failed to provision group %s: %v", group, err)
	}
	return resolver, dir
}

// SetupGroupWithFiles provisions group and writes files into its container.
// The files map contains container-relative paths to file contents.
func SetupGroupWithFiles(t *testing.T, group string, files map[string]string) (*container.Resolver, string) {
	t.Helper()

	resolver, dir := SetupGroup(t, group)
	for path, content := range files {
		fullPath := filepath.Join(dir, path)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
			t.Fatalf("failed to create directory for %s: %v", path, err)
		}
		if err := os.WriteFile(fullPath, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", path, err)
		}
	}
	return resolver, dir
}

// ListFiles returns the names of regular files directly inside dir.
func ListFiles(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read %s: %v", dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names
}

// Eventually polls cond until it returns true or timeout elapses, then fails
// the test with msg.
func Eventually(t *testing.T, timeout time.Duration, msg string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !cond() {
		t.Fatalf("timed out after %s: %s", timeout, msg)
	}
}

// Never asserts that cond stays false for the whole window.
func Never(t *testing.T, window time.Duration, msg string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(window)
	for time.Now().Before(deadline) {
		if cond() {
			t.Fatalf("unexpected: %s", msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
