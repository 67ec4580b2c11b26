package msredis

import (
	"errors"
	"fmt"
)

// Error types for specific failure scenarios
var (
	// ErrInvalidConfig indicates invalid configuration options
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrAlreadyStarted indicates Start was called on a running instance
	ErrAlreadyStarted = errors.New("instance already started")

	// ErrClosed indicates the instance has been closed
	ErrClosed = errors.New("instance is closed")
)

// ConfigError reports an option or config file value that was rejected
type ConfigError struct {
	Option string
	Value  interface{}
	Err    error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s %v: %v", e.Option, e.Value, e.Err)
}

// Unwrap returns the wrapped error
func (e *ConfigError) Unwrap() error {
	return e.Err
}

func configErr(option string, value interface{}) error {
	return &ConfigError{Option: option, Value: value, Err: ErrInvalidConfig}
}
