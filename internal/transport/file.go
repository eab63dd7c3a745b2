package transport

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gobwas/glob"

	"github.com/Iron-Ham/wormhole/internal/codec"
	"github.com/Iron-Ham/wormhole/internal/container"
	"github.com/Iron-Ham/wormhole/internal/errors"
	"github.com/Iron-Ham/wormhole/internal/logging"
	"github.com/Iron-Ham/wormhole/internal/util"
)

// ArchiveExt is the extension of persisted message files.
const ArchiveExt = ".archive"

var archivePattern = glob.MustCompile("*" + ArchiveExt)

// FileTransport stores each identifier's payload in
// <container>/<directory>/<identifier>.archive. Writes replace the file
// atomically; concurrent writers race and the last rename wins.
type FileTransport struct {
	kind     Kind
	cfg      Config
	codec    codec.Codec
	resolver *container.Resolver
	logger   *logging.Logger
	sync     bool
}

// NewFileTransport creates a shared-file transport.
func NewFileTransport(cfg Config, opts ...Option) *FileTransport {
	return newFileTransport(KindFile, cfg, opts)
}

func newFileTransport(kind Kind, cfg Config, opts []Option) *FileTransport {
	o := buildOptions(kind, opts)
	return &FileTransport{
		kind:     kind,
		cfg:      cfg,
		codec:    o.codec,
		resolver: o.resolver,
		logger:   o.logger,
		sync:     o.sync,
	}
}

// Kind implements Transport.
func (t *FileTransport) Kind() Kind {
	return t.kind
}

// Config returns the transport's location settings.
func (t *FileTransport) Config() Config {
	return t.cfg
}

// Dir resolves the message directory, creating it if needed.
func (t *FileTransport) Dir() (string, error) {
	if t.cfg.GroupIdentifier == "" {
		return "", fmt.Errorf("%w: no group configured", errors.ErrStorageUnavailable)
	}
	base, err := t.resolver.Path(t.cfg.GroupIdentifier)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errors.ErrStorageUnavailable, err)
	}
	if t.cfg.Directory == "" {
		return base, nil
	}
	if err := ValidateDirectory(t.cfg.Directory); err != nil {
		return "", err
	}
	dir := filepath.Join(base, t.cfg.Directory)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %w", errors.ErrStorageUnavailable, err)
	}
	return dir, nil
}

// PathFor returns the archive path for identifier.
func (t *FileTransport) PathFor(identifier string) (string, error) {
	id, err := fileIdentifier(identifier)
	if err != nil {
		return "", err
	}
	dir, err := t.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, id+ArchiveExt), nil
}

// Deliver implements Transport.
func (t *FileTransport) Deliver(payload any, identifier string) Outcome {
	if err := t.write(payload, identifier); err != nil {
		logFailure(t.logger, t.kind, "write", identifier, err)
		return OutcomeFailed
	}
	return OutcomePersisted
}

// Write implements Transport.
func (t *FileTransport) Write(payload any, identifier string) bool {
	return t.Deliver(payload, identifier).Accepted()
}

func (t *FileTransport) write(payload any, identifier string) error {
	data, err := t.encode(payload)
	if err != nil {
		return err
	}
	return t.Persist(identifier, data)
}

func (t *FileTransport) encode(payload any) ([]byte, error) {
	if payload == nil {
		return nil, errors.ErrNilPayload
	}
	return t.codec.Encode(payload)
}

// Persist stores already-encoded bytes for identifier. It is used to store
// payloads that arrived by push so that later reads find them.
func (t *FileTransport) Persist(identifier string, data []byte) error {
	path, err := t.PathFor(identifier)
	if err != nil {
		return err
	}
	if err := util.WriteFileAtomic(path, data, 0o644, t.sync); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrStorageUnavailable, err)
	}
	return nil
}

// Read implements Transport.
func (t *FileTransport) Read(identifier string) (any, bool) {
	v, err := t.read(identifier)
	if err != nil {
		logFailure(t.logger, t.kind, "read", identifier, err)
		return nil, false
	}
	return v, true
}

func (t *FileTransport) read(identifier string) (any, error) {
	path, err := t.PathFor(identifier)
	if err != nil {
		return nil, err
	}
	data, err := util.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrStorageUnavailable, err)
	}
	if data == nil {
		return nil, errors.ErrNotFound
	}
	return t.codec.Decode(data)
}

// Delete implements Transport.
func (t *FileTransport) Delete(identifier string) {
	path, err := t.PathFor(identifier)
	if err != nil {
		logFailure(t.logger, t.kind, "delete", identifier, err)
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logFailure(t.logger, t.kind, "delete", identifier, err)
	}
}

// DeleteAll implements Transport. Only archive files are removed, and nothing
// is removed when no Directory is configured so that the container root is
// never cleared.
func (t *FileTransport) DeleteAll() {
	if t.cfg.Directory == "" {
		return
	}
	dir, err := t.Dir()
	if err != nil {
		logFailure(t.logger, t.kind, "delete all", "", err)
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		logFailure(t.logger, t.kind, "delete all", "", err)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !archivePattern.Match(entry.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil && !os.IsNotExist(err) {
			logFailure(t.logger, t.kind, "delete all", entry.Name(), err)
		}
	}
}

// Identifiers lists the identifiers that currently have an archive file.
func (t *FileTransport) Identifiers() ([]string, error) {
	dir, err := t.Dir()
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, entry := range entries {
		if entry.IsDir() || !archivePattern.Match(entry.Name()) {
			continue
		}
		ids = append(ids, entry.Name()[:len(entry.Name())-len(ArchiveExt)])
	}
	return ids, nil
}
