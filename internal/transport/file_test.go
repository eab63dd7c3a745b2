package transport

import (
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"testing"

	"github.com/Iron-Ham/wormhole/internal/codec"
	"github.com/Iron-Ham/wormhole/internal/container"
	"github.com/Iron-Ham/wormhole/internal/testutil"
)

func newFileTransports(t *testing.T, directory string) (map[string]Transport, string) {
	t.Helper()
	resolver, groupDir := testutil.SetupGroup(t, testutil.TestGroup)
	cfg := Config{GroupIdentifier: testutil.TestGroup, Directory: directory}
	return map[string]Transport{
		"file":             NewFileTransport(cfg, WithContainer(resolver)),
		"coordinated-file": NewCoordinatedFileTransport(cfg, WithContainer(resolver)),
	}, filepath.Join(groupDir, directory)
}

func TestFileTransports_RoundTrip(t *testing.T) {
	payloads := []struct {
		name    string
		payload any
	}{
		{name: "object", payload: map[string]any{"buttonTitle": "Today-One"}},
		{name: "string", payload: "hello"},
		{name: "number", payload: int64(42)},
		{name: "large integer", payload: int64(9007199254740993)},
		{name: "fraction", payload: 2.5},
		{name: "list", payload: []any{"a", true, nil}},
		{name: "bool", payload: false},
	}

	transports, _ := newFileTransports(t, "messenger")
	for kind, tr := range transports {
		for _, p := range payloads {
			t.Run(kind+"/"+p.name, func(t *testing.T) {
				if !tr.Write(p.payload, "id-"+p.name) {
					t.Fatal("Write() = false")
				}
				got, ok := tr.Read("id-" + p.name)
				if !ok {
					t.Fatal("Read() reported absent")
				}
				if !reflect.DeepEqual(got, p.payload) {
					t.Errorf("Read() = %#v, want %#v", got, p.payload)
				}
			})
		}
	}
}

func TestFileTransports_Overwrite(t *testing.T) {
	transports, _ := newFileTransports(t, "messenger")
	for kind, tr := range transports {
		t.Run(kind, func(t *testing.T) {
			tr.Write("first", "x")
			tr.Write("second", "x")
			got, _ := tr.Read("x")
			if got != "second" {
				t.Errorf("Read() = %v, want last write", got)
			}
		})
	}
}

func TestFileTransports_EmptyIdentifier(t *testing.T) {
	transports, dir := newFileTransports(t, "messenger")
	for kind, tr := range transports {
		t.Run(kind, func(t *testing.T) {
			if tr.Write("payload", "") {
				t.Error("Write with empty identifier should fail")
			}
			if _, ok := tr.Read(""); ok {
				t.Error("Read with empty identifier should be absent")
			}
			tr.Delete("")
		})
	}
	if files := testutil.ListFiles(t, dir); len(files) != 0 {
		t.Errorf("no files should be written, found %v", files)
	}
}

func TestFileTransports_InvalidInput(t *testing.T) {
	transports, _ := newFileTransports(t, "messenger")
	for kind, tr := range transports {
		for _, id := range []string{".", "..", "a/b", `a\b`} {
			if tr.Write("payload", id) {
				t.Errorf("%s: Write(%q) should fail", kind, id)
			}
			if _, ok := tr.Read(id); ok {
				t.Errorf("%s: Read(%q) should be absent", kind, id)
			}
		}
		if tr.Write(nil, "nil-payload") {
			t.Errorf("%s: Write(nil) should fail", kind)
		}
		if tr.Write(func() {}, "unencodable") {
			t.Errorf("%s: Write of an unencodable payload should fail", kind)
		}
	}
}

func TestFileTransports_DeleteNeverWritten(t *testing.T) {
	transports, _ := newFileTransports(t, "messenger")
	for kind, tr := range transports {
		t.Run(kind, func(t *testing.T) {
			tr.Delete("ghost")
			if _, ok := tr.Read("ghost"); ok {
				t.Error("Read() after deleting a never-written identifier should be absent")
			}
		})
	}
}

func TestFileTransports_Delete(t *testing.T) {
	transports, dir := newFileTransports(t, "messenger")
	for kind, tr := range transports {
		t.Run(kind, func(t *testing.T) {
			tr.Write("value", "doomed")
			tr.Write("value", "survivor")

			tr.Delete("doomed")

			if _, ok := tr.Read("doomed"); ok {
				t.Error("deleted identifier should read absent")
			}
			if _, ok := tr.Read("survivor"); !ok {
				t.Error("other identifiers should survive Delete")
			}
			if _, err := os.Stat(filepath.Join(dir, "doomed"+ArchiveExt)); !os.IsNotExist(err) {
				t.Error("archive file should be removed")
			}
		})
	}
}

func TestFileTransports_DeleteAll(t *testing.T) {
	transports, dir := newFileTransports(t, "messenger")
	for kind, tr := range transports {
		t.Run(kind, func(t *testing.T) {
			ids := []string{"a", "b", "c"}
			for _, id := range ids {
				tr.Write(id, id)
			}
			if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep"), 0o644); err != nil {
				t.Fatal(err)
			}

			tr.DeleteAll()

			for _, id := range ids {
				if _, ok := tr.Read(id); ok {
					t.Errorf("Read(%q) after DeleteAll should be absent", id)
				}
			}
			if _, err := os.Stat(filepath.Join(dir, "notes.txt")); err != nil {
				t.Error("DeleteAll should leave non-archive files alone")
			}
		})
	}
}

func TestFileTransport_DeleteAllWithoutDirectory(t *testing.T) {
	resolver, groupDir := testutil.SetupGroup(t, testutil.TestGroup)
	tr := NewFileTransport(Config{GroupIdentifier: testutil.TestGroup}, WithContainer(resolver))

	tr.Write("value", "kept")
	tr.DeleteAll()

	if _, ok := tr.Read("kept"); !ok {
		t.Error("DeleteAll without a directory must not clear the container root")
	}
	if _, err := os.Stat(filepath.Join(groupDir, "kept"+ArchiveExt)); err != nil {
		t.Errorf("archive should remain in the container root: %v", err)
	}
}

func TestFileTransport_Layout(t *testing.T) {
	resolver, groupDir := testutil.SetupGroup(t, testutil.TestGroup)
	tr := NewFileTransport(Config{GroupIdentifier: testutil.TestGroup, Directory: "nested/messages"}, WithContainer(resolver))

	path, err := tr.PathFor("button")
	if err != nil {
		t.Fatalf("PathFor() error = %v", err)
	}
	want := filepath.Join(groupDir, "nested", "messages", "button.archive")
	if path != want {
		t.Errorf("PathFor() = %q, want %q", path, want)
	}

	if !tr.Write(map[string]any{"k": "v"}, "button") {
		t.Fatal("Write() = false")
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("archive not written at %s: %v", want, err)
	}

	ids, err := tr.Identifiers()
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(ids, []string{"button"}) {
		t.Errorf("Identifiers() = %v", ids)
	}
}

func TestFileTransport_NormalizesIdentifiers(t *testing.T) {
	resolver, _ := testutil.SetupGroup(t, testutil.TestGroup)
	tr := NewFileTransport(Config{GroupIdentifier: testutil.TestGroup, Directory: "m"}, WithContainer(resolver))

	decomposed := "cafe\u0301"
	composed := "caf\u00e9"

	if !tr.Write("latte", decomposed) {
		t.Fatal("Write() = false")
	}
	got, ok := tr.Read(composed)
	if !ok || got != "latte" {
		t.Errorf("Read(composed) = %v, %v; want value written under decomposed form", got, ok)
	}
}

func TestFileTransport_UnavailableGroup(t *testing.T) {
	resolver := container.NewResolver(t.TempDir())

	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "unprovisioned group", cfg: Config{GroupIdentifier: "group.missing", Directory: "m"}},
		{name: "empty group", cfg: Config{Directory: "m"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewFileTransport(tt.cfg, WithContainer(resolver))
			if tr.Write("x", "id") {
				t.Error("Write() should fail without a container")
			}
			if _, ok := tr.Read("id"); ok {
				t.Error("Read() should be absent without a container")
			}
			tr.Delete("id")
			tr.DeleteAll()
		})
	}
}

func TestFileTransport_CorruptArchiveReadsAbsent(t *testing.T) {
	resolver, _ := testutil.SetupGroupWithFiles(t, testutil.TestGroup, map[string]string{
		"m/broken.archive": "{not json",
	})
	tr := NewFileTransport(Config{GroupIdentifier: testutil.TestGroup, Directory: "m"}, WithContainer(resolver))

	if _, ok := tr.Read("broken"); ok {
		t.Error("corrupt archive should read absent")
	}
}

func TestFileTransport_YAMLCodec(t *testing.T) {
	resolver, groupDir := testutil.SetupGroup(t, testutil.TestGroup)
	tr := NewFileTransport(Config{GroupIdentifier: testutil.TestGroup, Directory: "m"},
		WithContainer(resolver), WithCodec(codec.YAML{}), WithSync(true))

	if !tr.Write(map[string]any{"title": "Today"}, "button") {
		t.Fatal("Write() = false")
	}
	raw, err := os.ReadFile(filepath.Join(groupDir, "m", "button.archive"))
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "title: Today\n" {
		t.Errorf("archive content = %q", raw)
	}
	got, _ := tr.Read("button")
	if !reflect.DeepEqual(got, map[string]any{"title": "Today"}) {
		t.Errorf("Read() = %#v", got)
	}
}

func TestFileTransport_Persist(t *testing.T) {
	resolver, _ := testutil.SetupGroup(t, testutil.TestGroup)
	tr := NewFileTransport(Config{GroupIdentifier: testutil.TestGroup, Directory: "m"}, WithContainer(resolver))

	if err := tr.Persist("pushed", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	got, ok := tr.Read("pushed")
	if !ok || !reflect.DeepEqual(got, map[string]any{"a": int64(1)}) {
		t.Errorf("Read() = %#v, %v", got, ok)
	}
}

func TestValidateDirectory(t *testing.T) {
	tests := []struct {
		dir     string
		wantErr bool
	}{
		{"", false},
		{"messenger", false},
		{"widgets/today", false},
		{"a..b", false},
		{"..", true},
		{"../escape", true},
		{"inbox/../../escape", true},
		{`inbox\..\..`, true},
		{"/tmp/abs", true},
		{`\share`, true},
		{"nul\x00byte", true},
	}
	for _, tt := range tests {
		t.Run(tt.dir, func(t *testing.T) {
			err := ValidateDirectory(tt.dir)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDirectory(%q) error = %v, wantErr %v", tt.dir, err, tt.wantErr)
			}
		})
	}
}

func TestFileTransport_DirectoryCannotEscapeGroup(t *testing.T) {
	resolver, groupDir := testutil.SetupGroup(t, testutil.TestGroup)
	cfg := Config{GroupIdentifier: testutil.TestGroup, Directory: "../outside"}

	if _, err := New(KindFile, cfg, WithContainer(resolver)); err == nil {
		t.Error("New() should reject a directory outside the group")
	}

	tr := NewFileTransport(cfg, WithContainer(resolver))
	if tr.Write(map[string]any{"k": "v"}, "button") {
		t.Error("Write() into an escaping directory should fail")
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(groupDir), "outside")); !os.IsNotExist(err) {
		t.Errorf("directory outside the group was created: %v", err)
	}
}
