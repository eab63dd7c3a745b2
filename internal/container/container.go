// Package container resolves application group identifiers to shared storage.
//
// An application group is a directory that every process of the same
// publisher can reach. Groups live under a common root; a group is usable only
// once it has been provisioned (created), which mirrors an entitlement that
// has to be configured before any process can share data through it.
//
//	<root>/<group>/<directory?>/<identifier>.archive
package container

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Iron-Ham/wormhole/internal/errors"
)

// EnvGroupsDir overrides the default groups root.
const EnvGroupsDir = "WORMHOLE_GROUPS_DIR"

// Resolver maps application group identifiers to container directories.
type Resolver struct {
	Root string
}

// NewResolver creates a Resolver rooted at root. An empty root uses DefaultRoot.
func NewResolver(root string) *Resolver {
	if root == "" {
		root = DefaultRoot()
	}
	return &Resolver{Root: root}
}

// DefaultRoot returns the groups root: $WORMHOLE_GROUPS_DIR, then
// $XDG_DATA_HOME/wormhole/groups, then ~/.local/share/wormhole/groups.
func DefaultRoot() string {
	if dir := os.Getenv(EnvGroupsDir); dir != "" {
		return dir
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "wormhole", "groups")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "wormhole", "groups")
	}
	return filepath.Join(home, ".local", "share", "wormhole", "groups")
}

// Path returns the container directory for group. It fails with
// errors.ErrGroupUnavailable when the group is empty, malformed, or has not
// been provisioned.
func (r *Resolver) Path(group string) (string, error) {
	if err := validGroup(group); err != nil {
		return "", err
	}
	dir := filepath.Join(r.Root, group)
	info, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %s", errors.ErrGroupUnavailable, group)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", errors.ErrGroupUnavailable, dir)
	}
	return dir, nil
}

// Provision creates the container directory for group and returns its path.
// Provisioning an existing group is a no-op.
func (r *Resolver) Provision(group string) (string, error) {
	if err := validGroup(group); err != nil {
		return "", err
	}
	dir := filepath.Join(r.Root, group)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("provision group %s: %w", group, err)
	}
	return dir, nil
}

// Groups lists provisioned group identifiers.
func (r *Resolver) Groups() ([]string, error) {
	entries, err := os.ReadDir(r.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var groups []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			groups = append(groups, e.Name())
		}
	}
	return groups, nil
}

// MustBeConfigured panics when group cannot be resolved, unless the process is
// a test binary. A misconfigured group is a development-time error: every
// later write would silently fail.
func (r *Resolver) MustBeConfigured(group string) {
	if testing.Testing() {
		return
	}
	if _, err := r.Path(group); err != nil {
		panic(fmt.Sprintf("wormhole: application group %q is not configured under %s; "+
			"run `wormhole group add %s` or check the group identifier: %v", group, r.Root, group, err))
	}
}

func validGroup(group string) error {
	if group == "" {
		return fmt.Errorf("%w: empty group identifier", errors.ErrGroupUnavailable)
	}
	if group == "." || group == ".." || strings.ContainsAny(group, `/\`) {
		return fmt.Errorf("%w: invalid group identifier %q", errors.ErrGroupUnavailable, group)
	}
	return nil
}
