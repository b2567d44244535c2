package metadata

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an entity id or type was never registered.
	ErrNotFound = errors.New("entity not registered")

	// ErrConfiguration matches every *ConfigError via errors.Is.
	ErrConfiguration = errors.New("invalid entity configuration")
)

// ConfigError describes a conflicting or malformed entity configuration.
// It is fatal: callers must surface it rather than fall back to defaults.
type ConfigError struct {
	Entity   string
	Property string
	Reason   string
}

func (e *ConfigError) Error() string {
	switch {
	case e.Entity == "":
		return "configuration: " + e.Reason
	case e.Property == "":
		return fmt.Sprintf("configuration of %s: %s", e.Entity, e.Reason)
	default:
		return fmt.Sprintf("configuration of %s.%s: %s", e.Entity, e.Property, e.Reason)
	}
}

// Is lets errors.Is(err, ErrConfiguration) match.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}

func configErrorf(entity, property, format string, args ...any) *ConfigError {
	return &ConfigError{Entity: entity, Property: property, Reason: fmt.Sprintf(format, args...)}
}
