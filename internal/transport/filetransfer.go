package transport

import (
	"fmt"
	"os"

	"github.com/Iron-Ham/wormhole/internal/codec"
	"github.com/Iron-Ham/wormhole/internal/errors"
	"github.com/Iron-Ham/wormhole/internal/logging"
	"github.com/Iron-Ham/wormhole/internal/session"
)

// FileTransferTransport hands each write to the session's file-transfer
// queue as a temp file tagged with {"identifier": id}. The receiving side
// re-persists transfers into the archive layout, so Read, Delete and
// DeleteAll operate on the archive files of the configured group.
type FileTransferTransport struct {
	session session.Session
	files   *FileTransport
	codec   codec.Codec
	logger  *logging.Logger
}

// NewFileTransferTransport creates a session-file transport. WithSession is required.
func NewFileTransferTransport(cfg Config, opts ...Option) (*FileTransferTransport, error) {
	o := buildOptions(KindSessionFile, opts)
	sess, err := requireSession(KindSessionFile, o)
	if err != nil {
		return nil, err
	}
	return &FileTransferTransport{
		session: sess,
		files:   newFileTransport(KindSessionFile, cfg, opts),
		codec:   o.codec,
		logger:  o.logger,
	}, nil
}

// Kind implements Transport.
func (t *FileTransferTransport) Kind() Kind {
	return KindSessionFile
}

// Deliver implements Transport. Completion of the transfer itself is not
// reported; a successful hand-off yields OutcomeQueued.
func (t *FileTransferTransport) Deliver(payload any, identifier string) Outcome {
	if err := t.transfer(payload, identifier); err != nil {
		logFailure(t.logger, KindSessionFile, "write", identifier, err)
		return OutcomeFailed
	}
	return OutcomeQueued
}

// Write implements Transport.
func (t *FileTransferTransport) Write(payload any, identifier string) bool {
	return t.Deliver(payload, identifier).Accepted()
}

func (t *FileTransferTransport) transfer(payload any, identifier string) error {
	id, err := fileIdentifier(identifier)
	if err != nil {
		return err
	}
	if payload == nil {
		return errors.ErrNilPayload
	}
	if !t.session.IsSupported() {
		return errors.ErrSessionUnsupported
	}
	data, err := t.codec.Encode(payload)
	if err != nil {
		return err
	}

	f, err := os.CreateTemp("", "wormhole-transfer-*"+ArchiveExt)
	if err != nil {
		return fmt.Errorf("%w: %w", errors.ErrStorageUnavailable, err)
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: %w", errors.ErrStorageUnavailable, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrStorageUnavailable, err)
	}

	return t.session.TransferFile(tmp, map[string]string{session.MetadataIdentifier: id})
}

// Read implements Transport.
func (t *FileTransferTransport) Read(identifier string) (any, bool) {
	return t.files.Read(identifier)
}

// Delete implements Transport.
func (t *FileTransferTransport) Delete(identifier string) {
	t.files.Delete(identifier)
}

// DeleteAll implements Transport.
func (t *FileTransferTransport) DeleteAll() {
	t.files.DeleteAll()
}

// Identifiers lists the received transfers that have been re-persisted.
func (t *FileTransferTransport) Identifiers() ([]string, error) {
	return t.files.Identifiers()
}
