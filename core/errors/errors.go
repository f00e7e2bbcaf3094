// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package errors

import (
	"fmt"

	"github.com/juju/errors"
)

// ConfigurationError is returned when a watcher can not be constructed
// because a precondition on its configuration does not hold. It is
// raised before any network activity takes place.
type ConfigurationError struct {
	msg string
}

// NewConfigurationError returns a ConfigurationError with a formatted
// message.
func NewConfigurationError(format string, args ...interface{}) error {
	return &ConfigurationError{msg: fmt.Sprintf(format, args...)}
}

// Error implements error.
func (e *ConfigurationError) Error() string {
	return e.msg
}

// Unwrap allows errors.Is(err, errors.NotValid) to match a
// ConfigurationError.
func (e *ConfigurationError) Unwrap() error {
	return errors.NotValid
}

// IsConfigurationError reports whether err, or any error it wraps, is a
// ConfigurationError.
func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// MissingURL is the error returned when no store URL is supplied.
func MissingURL() error {
	return NewConfigurationError("must provide mongo URL to connect to")
}
