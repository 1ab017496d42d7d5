package cluster

import (
	"errors"
	"fmt"
)

// Errors returned by generators.
var (
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrAlreadyStarted = errors.New("generator already started")
	ErrWorkerPanic    = errors.New("placement worker panicked")
)

// ConfigError reports a configuration problem detected before any worker
// is started. It matches ErrInvalidConfig with errors.Is.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// BatchError describes a batch that was abandoned because its worker failed.
type BatchError struct {
	Unit  int
	Batch int
	Cause error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("unit %d batch %d: %v", e.Unit, e.Batch, e.Cause)
}

func (e *BatchError) Unwrap() error {
	return e.Cause
}
