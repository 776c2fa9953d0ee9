package capacity

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingValue   = errors.New("value is missing")
	ErrNotNumeric     = errors.New("value is not numeric")
	ErrOutOfRange     = errors.New("value does not fit in 32 bits")
	ErrNegativeValue  = errors.New("value is negative")
	ErrBoundsViolated = errors.New("min <= desired <= max is violated")
)

// ConfigurationError is raised before any side effect when the scale-up
// settings are missing or invalid
type ConfigurationError struct {
	Field  string
	Value  string
	Reason error
}

func (e *ConfigurationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("configuration error: %s: %v", e.Field, e.Reason)
	}
	return fmt.Sprintf("configuration error: %s=%q: %v", e.Field, e.Value, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Reason
}

// UpdateFailedError is raised when one of the two resource updates fails.
// Applied holds the stages already applied in the same invocation, so a
// non-empty Applied means the system is partially transitioned.
type UpdateFailedError struct {
	Stage    Stage
	Resource string
	Applied  []Stage
	Err      error
}

func (e *UpdateFailedError) Error() string {
	msg := fmt.Sprintf("update of %s %q failed: %v", e.Stage, e.Resource, e.Err)
	if len(e.Applied) > 0 {
		applied := make([]string, 0, len(e.Applied))
		for _, s := range e.Applied {
			applied = append(applied, string(s))
		}
		msg += fmt.Sprintf(" (partially applied: %s)", strings.Join(applied, ", "))
	}
	return msg
}

func (e *UpdateFailedError) Unwrap() error {
	return e.Err
}

// Partial reports whether another resource was updated before this failure
func (e *UpdateFailedError) Partial() bool {
	return len(e.Applied) > 0
}

// AsConfigurationError returns the ConfigurationError in err's chain, if any
func AsConfigurationError(err error) (*ConfigurationError, bool) {
	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		return cfgErr, true
	}
	return nil, false
}

// AsUpdateFailedError returns the UpdateFailedError in err's chain, if any
func AsUpdateFailedError(err error) (*UpdateFailedError, bool) {
	var updateErr *UpdateFailedError
	if errors.As(err, &updateErr) {
		return updateErr, true
	}
	return nil, false
}
