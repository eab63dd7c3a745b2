package container

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Iron-Ham/wormhole/internal/errors"
)

func TestResolver_PathRequiresProvisioning(t *testing.T) {
	r := NewResolver(t.TempDir())

	if _, err := r.Path("group.dev.wormhole"); !errors.Is(err, errors.ErrGroupUnavailable) {
		t.Fatalf("Path() before provisioning error = %v, want ErrGroupUnavailable", err)
	}

	dir, err := r.Provision("group.dev.wormhole")
	if err != nil {
		t.Fatalf("Provision() error = %v", err)
	}

	got, err := r.Path("group.dev.wormhole")
	if err != nil {
		t.Fatalf("Path() error = %v", err)
	}
	if got != dir {
		t.Errorf("Path() = %q, want %q", got, dir)
	}

	// Provisioning twice is harmless
	if _, err := r.Provision("group.dev.wormhole"); err != nil {
		t.Errorf("second Provision() error = %v", err)
	}
}

func TestResolver_InvalidGroups(t *testing.T) {
	r := NewResolver(t.TempDir())
	for _, g := range []string{"", ".", "..", "a/b", `a\b`} {
		if _, err := r.Provision(g); !errors.Is(err, errors.ErrGroupUnavailable) {
			t.Errorf("Provision(%q) error = %v, want ErrGroupUnavailable", g, err)
		}
		if _, err := r.Path(g); !errors.Is(err, errors.ErrGroupUnavailable) {
			t.Errorf("Path(%q) error = %v, want ErrGroupUnavailable", g, err)
		}
	}
}

func TestResolver_PathNotDirectory(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "G"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewResolver(root).Path("G"); !errors.Is(err, errors.ErrGroupUnavailable) {
		t.Errorf("Path() on a file error = %v, want ErrGroupUnavailable", err)
	}
}

func TestResolver_Groups(t *testing.T) {
	r := NewResolver(filepath.Join(t.TempDir(), "missing"))
	groups, err := r.Groups()
	if err != nil || len(groups) != 0 {
		t.Fatalf("Groups() on missing root = %v, %v", groups, err)
	}

	r = NewResolver(t.TempDir())
	for _, g := range []string{"A", "B"} {
		if _, err := r.Provision(g); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(r.Root, ".notifications"), 0o755); err != nil {
		t.Fatal(err)
	}

	groups, err = r.Groups()
	if err != nil {
		t.Fatalf("Groups() error = %v", err)
	}
	if len(groups) != 2 {
		t.Errorf("Groups() = %v, want [A B]", groups)
	}
}

func TestDefaultRoot_Env(t *testing.T) {
	t.Setenv(EnvGroupsDir, "/tmp/wormhole-groups")
	if got := DefaultRoot(); got != "/tmp/wormhole-groups" {
		t.Errorf("DefaultRoot() = %q", got)
	}

	t.Setenv(EnvGroupsDir, "")
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg")
	if got := DefaultRoot(); got != filepath.Join("/tmp/xdg", "wormhole", "groups") {
		t.Errorf("DefaultRoot() = %q", got)
	}
}

func TestMustBeConfigured_SkippedUnderTest(t *testing.T) {
	r := NewResolver(t.TempDir())
	// Unprovisioned group must not panic inside a test binary
	r.MustBeConfigured("never-provisioned")
}
