package config

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/Iron-Ham/wormhole/internal/codec"
	"github.com/Iron-Ham/wormhole/internal/logging"
	"github.com/Iron-Ham/wormhole/internal/transport"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "signal.debounce_ms")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// roleRegex validates spool role names, which become directory names.
var roleRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

// maxDebounceMs bounds signal.debounce_ms; longer windows make listeners look stuck.
const maxDebounceMs = 10_000

// ValidLogLevels returns the list of valid log levels, in the lower case
// used by config files.
func ValidLogLevels() []string {
	levels := logging.ValidLevels()
	for i, l := range levels {
		levels[i] = strings.ToLower(l)
	}
	return levels
}

// ValidSignalBackends returns the list of valid signal backends
func ValidSignalBackends() []string {
	return []string{SignalBackendFile, SignalBackendLocal}
}

// ValidSessionBackends returns the list of valid session backends
func ValidSessionBackends() []string {
	return []string{SessionBackendSpool, SessionBackendPair}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateMessenger()...)
	errors = append(errors, c.validateSignal()...)
	errors = append(errors, c.validateSession()...)
	errors = append(errors, c.validateCodec()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validateMessenger() []ValidationError {
	var errors []ValidationError

	g := c.Messenger.Group
	if g != "" && (g == "." || g == ".." || strings.ContainsAny(g, `/\`)) {
		errors = append(errors, ValidationError{
			Field:   "messenger.group",
			Value:   g,
			Message: "must be a single path element",
		})
	}

	if err := transport.ValidateDirectory(c.Messenger.Directory); err != nil {
		errors = append(errors, ValidationError{
			Field:   "messenger.directory",
			Value:   c.Messenger.Directory,
			Message: "must be a relative path without '..'",
		})
	}

	if _, err := transport.ParseKind(c.Messenger.Transport); err != nil {
		errors = append(errors, ValidationError{
			Field:   "messenger.transport",
			Value:   c.Messenger.Transport,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(transport.KindNames(), ", ")),
		})
	}

	return errors
}

func (c *Config) validateSignal() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidSignalBackends(), c.Signal.Backend) {
		errors = append(errors, ValidationError{
			Field:   "signal.backend",
			Value:   c.Signal.Backend,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidSignalBackends(), ", ")),
		})
	}

	if c.Signal.DebounceMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "signal.debounce_ms",
			Value:   c.Signal.DebounceMs,
			Message: "must be non-negative",
		})
	}
	if c.Signal.DebounceMs > maxDebounceMs {
		errors = append(errors, ValidationError{
			Field:   "signal.debounce_ms",
			Value:   c.Signal.DebounceMs,
			Message: fmt.Sprintf("exceeds maximum of %dms", maxDebounceMs),
		})
	}

	return errors
}

func (c *Config) validateSession() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidSessionBackends(), c.Session.Backend) {
		errors = append(errors, ValidationError{
			Field:   "session.backend",
			Value:   c.Session.Backend,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidSessionBackends(), ", ")),
		})
	}

	if !roleRegex.MatchString(c.Session.Role) {
		errors = append(errors, ValidationError{
			Field:   "session.role",
			Value:   c.Session.Role,
			Message: "must start with a letter and contain only letters, digits, '-' or '_'",
		})
	}
	if !roleRegex.MatchString(c.Session.Peer) {
		errors = append(errors, ValidationError{
			Field:   "session.peer",
			Value:   c.Session.Peer,
			Message: "must start with a letter and contain only letters, digits, '-' or '_'",
		})
	}
	if c.Session.Role != "" && c.Session.Role == c.Session.Peer {
		errors = append(errors, ValidationError{
			Field:   "session.peer",
			Value:   c.Session.Peer,
			Message: "must differ from session.role",
		})
	}

	return errors
}

func (c *Config) validateCodec() []ValidationError {
	if _, err := codec.ByName(c.Codec); err != nil {
		return []ValidationError{{
			Field:   "codec",
			Value:   c.Codec,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(codec.Names(), ", ")),
		}}
	}
	return nil
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	// Case sensitive, matching the values documented in the config file
	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}
