package domain

import (
	"errors"
	"fmt"
)

// ConfigError is fatal and aborts before any task runs
type ConfigError struct {
	msg string
}

// NewConfigError creates a ConfigError with a formatted message
func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{msg: fmt.Sprintf(format, args...)}
}

func (e *ConfigError) Error() string { return "config: " + e.msg }

// IsConfig reports whether err is a configuration error
func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// FetchError degrades one repository's tasks to permanent failure
// without aborting the run
type FetchError struct {
	Repo string
	Err  error
}

func (e *FetchError) Error() string { return fmt.Sprintf("fetch %s: %v", e.Repo, e.Err) }
func (e *FetchError) Unwrap() error { return e.Err }

// Sentinel causes for fetch failures
var (
	ErrRepoNotFound     = errors.New("repository not found")
	ErrRepoAccessDenied = errors.New("repository access denied")
)

// TransientError marks a call failure as retryable (timeouts, HTTP 429/5xx)
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a call failure as non-retryable (other 4xx, malformed response)
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "permanent: " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// PersistenceError means a result could not be durably written.
// The task is reported failed even though the model call succeeded.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string { return "persistence: " + e.Err.Error() }
func (e *PersistenceError) Unwrap() error { return e.Err }

// IsTransient reports whether err should be retried
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
