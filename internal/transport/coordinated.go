package transport

import (
	"fmt"
	"path/filepath"

	"github.com/Iron-Ham/wormhole/internal/errors"
	"github.com/Iron-Ham/wormhole/internal/filelock"
)

// CoordinatedFileTransport stores payloads like FileTransport, but each write
// holds an exclusive lock on <dir>/.<identifier>.lock so that writers in
// different processes never interleave. Reads are not coordinated; they rely
// on atomic replacement.
type CoordinatedFileTransport struct {
	*FileTransport
}

// NewCoordinatedFileTransport creates a coordinated-file transport.
func NewCoordinatedFileTransport(cfg Config, opts ...Option) *CoordinatedFileTransport {
	return &CoordinatedFileTransport{FileTransport: newFileTransport(KindCoordinatedFile, cfg, opts)}
}

// Deliver implements Transport. A failure anywhere inside the locked scope
// yields OutcomeFailed.
func (t *CoordinatedFileTransport) Deliver(payload any, identifier string) Outcome {
	if err := t.coordinatedWrite(payload, identifier); err != nil {
		logFailure(t.logger, t.kind, "write", identifier, err)
		return OutcomeFailed
	}
	return OutcomePersisted
}

// Write implements Transport.
func (t *CoordinatedFileTransport) Write(payload any, identifier string) bool {
	return t.Deliver(payload, identifier).Accepted()
}

func (t *CoordinatedFileTransport) coordinatedWrite(payload any, identifier string) error {
	data, err := t.encode(payload)
	if err != nil {
		return err
	}
	path, err := t.PathFor(identifier)
	if err != nil {
		return err
	}

	lock := filelock.New(lockPathFor(path))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrCoordination, err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			t.logger.WithIdentifier(identifier).Warn("failed to release write lock", "error", err.Error())
		}
	}()

	return t.Persist(identifier, data)
}

// lockPathFor returns the hidden lock file guarding an archive path.
func lockPathFor(archivePath string) string {
	dir, base := filepath.Split(archivePath)
	return filepath.Join(dir, "."+base[:len(base)-len(ArchiveExt)]+".lock")
}
