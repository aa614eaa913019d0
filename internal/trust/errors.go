package trust

import (
	"errors"
	"fmt"
)

// ErrConfiguration is the root of every configuration failure: unsupported
// topology, missing hub, unknown distribution or noise tag, out-of-range settings.
// Callers match it with errors.Is.
var ErrConfiguration = errors.New("configuration error")

// ConfigError describes which setting was rejected and why.
type ConfigError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("configuration error: %s=%v: %s", e.Field, e.Value, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrConfiguration
}

// Invalid builds a ConfigError for field.
func Invalid(field string, value any, reason string) error {
	return &ConfigError{Field: field, Value: value, Reason: reason}
}
