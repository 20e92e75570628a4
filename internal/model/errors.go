package model

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig marks every failure caused by a malformed task configuration.
// A session must not be constructed when one of these is returned.
var ErrInvalidConfig = errors.New("invalid task configuration")

// ConfigError wraps a configuration failure with the part of the task it
// was found in (e.g. "dimension", "gold").
type ConfigError struct {
	Kind string
	Msg  string
}

func (e *ConfigError) Error() string {
	if e == nil {
		return ""
	}
	if e.Kind == "" {
		return fmt.Sprintf("%s: %s", ErrInvalidConfig.Error(), e.Msg)
	}
	return fmt.Sprintf("%s: %s: %s", ErrInvalidConfig.Error(), e.Kind, e.Msg)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

// Invalidf builds a ConfigError of the given kind.
func Invalidf(kind, format string, args ...any) error {
	return &ConfigError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
