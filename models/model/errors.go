package model

import (
	"fmt"

	"github.com/pkg/errors"
)

// ConfigError reports a missing or malformed startup resource such as a box-prior or
// label source. It is fatal: initialization must stop.
type ConfigError struct {
	Source string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("config error: %s", e.Reason)
	}
	return fmt.Sprintf("config error: %s: %s", e.Source, e.Reason)
}

// NewConfigError creates a ConfigError with a formatted reason.
func NewConfigError(source, format string, args ...any) error {
	return &ConfigError{Source: source, Reason: fmt.Sprintf(format, args...)}
}

// FrameFormatError reports a tensor whose size does not match the configured shape.
// Only the current frame is affected.
type FrameFormatError struct {
	Tensor string
	Want   int
	Got    int
}

func (e *FrameFormatError) Error() string {
	return fmt.Sprintf("frame format error: tensor %q has %d elements, want %d", e.Tensor, e.Got, e.Want)
}

// NewFrameFormatError creates a FrameFormatError for a tensor.
func NewFrameFormatError(tensor string, want, got int) error {
	return &FrameFormatError{Tensor: tensor, Want: want, Got: got}
}

// IsConfigError reports whether err, or anything it wraps, is a ConfigError.
func IsConfigError(err error) bool {
	var target *ConfigError
	return errors.As(errors.Cause(err), &target) || errors.As(err, &target)
}

// IsFrameFormatError reports whether err, or anything it wraps, is a FrameFormatError.
func IsFrameFormatError(err error) bool {
	var target *FrameFormatError
	return errors.As(errors.Cause(err), &target) || errors.As(err, &target)
}
