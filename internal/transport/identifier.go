package transport

import (
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/Iron-Ham/wormhole/internal/errors"
)

// NormalizeIdentifier returns the canonical (NFC) form of an identifier.
// Processes that spell an identifier with different Unicode normal forms
// meet on the same slot.
func NormalizeIdentifier(identifier string) (string, error) {
	if identifier == "" {
		return "", errors.ErrEmptyIdentifier
	}
	return norm.NFC.String(identifier), nil
}

// fileIdentifier normalizes identifier and checks that it can name a file in
// the message directory.
func fileIdentifier(identifier string) (string, error) {
	id, err := NormalizeIdentifier(identifier)
	if err != nil {
		return "", err
	}
	if id == "." || id == ".." || strings.ContainsAny(id, "/\\\x00") {
		return "", errors.ErrInvalidIdentifier
	}
	return id, nil
}

// ValidateDirectory checks that dir stays inside the group container: it
// must be relative and must not contain a ".." element. Empty is valid.
func ValidateDirectory(dir string) error {
	if dir == "" {
		return nil
	}
	if filepath.IsAbs(dir) || strings.HasPrefix(dir, `\`) || strings.ContainsRune(dir, 0) {
		return fmt.Errorf("%w: directory %q must be relative to the group container", errors.ErrStorageUnavailable, dir)
	}
	isSep := func(r rune) bool { return r == '/' || r == '\\' }
	for _, part := range strings.FieldsFunc(dir, isSep) {
		if part == ".." {
			return fmt.Errorf("%w: directory %q must not leave the group container", errors.ErrStorageUnavailable, dir)
		}
	}
	return nil
}
