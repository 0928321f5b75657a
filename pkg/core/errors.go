// Package core provides the error model shared by simrun packages.
package core

import (
	"errors"
	"fmt"
)

// Error represents a structured error with category and details
type Error struct {
	Category ErrorCategory
	Code     string                 // Machine-readable code: invalid_version, boot_timeout, etc.
	Message  string                 // Human-readable message
	Details  map[string]interface{} // Additional context
	Cause    error                  // Underlying error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithCause returns a copy of the error with the given cause
func (e *Error) WithCause(cause error) *Error {
	return &Error{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  e.Details,
		Cause:    cause,
	}
}

// WithMessage returns a copy of the error with a custom message
func (e *Error) WithMessage(msg string) *Error {
	return &Error{
		Category: e.Category,
		Code:     e.Code,
		Message:  msg,
		Details:  e.Details,
		Cause:    e.Cause,
	}
}

// WithDetails returns a copy of the error with additional details
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	merged := make(map[string]interface{})
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &Error{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  merged,
		Cause:    e.Cause,
	}
}

// Predefined errors
var (
	// Configuration errors
	ErrInvalidVersion = &Error{
		Category: ErrCategoryConfiguration,
		Code:     "invalid_version",
		Message:  "invalid version string",
	}
	ErrUnsupportedHost = &Error{
		Category: ErrCategoryConfiguration,
		Code:     "unsupported_host",
		Message:  "cannot run iOS simulators on a non-mac host",
	}
	ErrInvalidConfig = &Error{
		Category: ErrCategoryConfiguration,
		Code:     "invalid_config",
		Message:  "invalid configuration",
	}
	ErrInvalidBundle = &Error{
		Category: ErrCategoryConfiguration,
		Code:     "invalid_bundle",
		Message:  "invalid application bundle",
	}

	// Parse errors
	ErrMalformedCatalog = &Error{
		Category: ErrCategoryParse,
		Code:     "malformed_catalog",
		Message:  "malformed simulator catalog",
	}

	// Selection errors
	ErrNoCompatibleSimulator = &Error{
		Category: ErrCategorySelection,
		Code:     "no_compatible_simulator",
		Message:  "could not find or create a compatible simulator",
	}

	// External command errors
	ErrCommandFailed = &Error{
		Category: ErrCategoryExternalCommand,
		Code:     "command_failed",
		Message:  "external command failed",
	}

	// Timeout errors
	ErrBootTimeout = &Error{
		Category: ErrCategoryTimeout,
		Code:     "boot_timeout",
		Message:  "failed to launch simulator within bound",
	}
)

// CategoryOf returns the category of the first *Error in err's chain.
func CategoryOf(err error) ErrorCategory {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return ErrCategoryNone
}

// IsCategory reports whether err's chain contains an *Error of the given category.
func IsCategory(err error, category ErrorCategory) bool {
	return err != nil && CategoryOf(err) == category
}
