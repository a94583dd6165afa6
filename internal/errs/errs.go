// Package errs defines the error taxonomy shared across the timestream
// pipeline: configuration errors, stage contract violations, frame
// resolution failures, and persistence failures.
//
// ResolutionError is special: it travels through the pipeline as a value
// (substituted for the frame that failed to resolve) so downstream stages
// can detect and special-case it rather than crash.
package errs

import (
	"fmt"
	"time"
)

// ConfigError reports bad or missing construction parameters, unreadable
// paths, or unsupported format versions. Always fatal to the operation
// that raised it; never retried.
type ConfigError struct {
	Op  string
	Msg string
}

func (e *ConfigError) Error() string {
	if e.Op == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

// Configf builds a ConfigError with a formatted message.
func Configf(op, format string, args ...interface{}) error {
	return &ConfigError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

// ContractError reports a stage whose actual inputs or outputs do not
// match its declared schema. Fatal to the current frame only.
type ContractError struct {
	Stage string
	Msg   string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("stage %s: contract violation: %s", e.Stage, e.Msg)
}

// Contractf builds a ContractError naming the offending stage.
func Contractf(stage, format string, args ...interface{}) error {
	return &ContractError{Stage: stage, Msg: fmt.Sprintf(format, args...)}
}

// ResolutionError reports that a frame's source image could not be
// located or decoded. It is captured as data and passed downstream as a
// sentinel input, not raised.
type ResolutionError struct {
	Timestamp time.Time
	Path      string
	Err       error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve frame %s (%s): %v",
		e.Timestamp.Format("2006-01-02 15:04:05"), e.Path, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// PersistError reports a failed write: overwrite conflicts under the
// Raise policy, directory creation failures, side-table write failures.
// Fatal to the write attempt and propagated to the caller.
type PersistError struct {
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Path, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// ErrUnimplemented marks operations defined for format version 2, which
// is recognised but not implemented.
var ErrUnimplemented = fmt.Errorf("timestream v2 format not implemented")
