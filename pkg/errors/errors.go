package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code for stable testing
type ErrorCode string

// Error codes for different error categories
const (
	// General errors
	ErrUnknown      ErrorCode = "UNKNOWN"
	ErrInternal     ErrorCode = "INTERNAL"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrNotFound     ErrorCode = "NOT_FOUND"
	ErrIOFailure    ErrorCode = "IO_FAILURE"

	// Configuration errors
	ErrConfigLoad  ErrorCode = "CONFIG_LOAD"
	ErrConfigValid ErrorCode = "CONFIG_INVALID"

	// Mod store errors
	ErrNameConflict      ErrorCode = "NAME_CONFLICT"
	ErrInUse             ErrorCode = "IN_USE"
	ErrCorruptArchive    ErrorCode = "CORRUPT_ARCHIVE"
	ErrUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"
	ErrExtractFailed     ErrorCode = "EXTRACT_FAILED"

	// Installer script errors
	ErrMalformedScript      ErrorCode = "MALFORMED_SCRIPT"
	ErrUnknownConditionFlag ErrorCode = "UNKNOWN_CONDITION_FLAG"
	ErrNoQualifyingOption   ErrorCode = "NO_QUALIFYING_OPTION"

	// Profile errors
	ErrUnknownProfile ErrorCode = "UNKNOWN_PROFILE"
	ErrProfileExists  ErrorCode = "PROFILE_EXISTS"
	ErrUnknownMod     ErrorCode = "UNKNOWN_MOD"
	ErrDuplicateEntry ErrorCode = "DUPLICATE_ENTRY"

	// Deployment errors
	ErrAlreadyMounted      ErrorCode = "ALREADY_MOUNTED"
	ErrEmptyStack          ErrorCode = "EMPTY_STACK"
	ErrMountFailed         ErrorCode = "MOUNT_FAILED"
	ErrOperationInProgress ErrorCode = "OPERATION_IN_PROGRESS"

	// Launcher errors
	ErrNotMounted   ErrorCode = "NOT_MOUNTED"
	ErrLaunchFailed ErrorCode = "LAUNCH_FAILED"
)

// ToryggError represents a structured error with code and details
type ToryggError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implements the error interface
func (e *ToryggError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *ToryggError) Unwrap() error {
	return e.Wrapped
}

// Is implements errors.Is interface
func (e *ToryggError) Is(target error) bool {
	var targetErr *ToryggError
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// New creates a new ToryggError with the given code and message
func New(code ErrorCode, message string) *ToryggError {
	return &ToryggError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates a new ToryggError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *ToryggError {
	return &ToryggError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with a ToryggError
func Wrap(err error, code ErrorCode, message string) *ToryggError {
	if err == nil {
		return nil
	}
	return &ToryggError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *ToryggError {
	if err == nil {
		return nil
	}
	return &ToryggError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// WithDetail adds a detail to the error
func (e *ToryggError) WithDetail(key string, value interface{}) *ToryggError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithDetails adds multiple details to the error
func (e *ToryggError) WithDetails(details map[string]interface{}) *ToryggError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// IsErrorCode checks if an error has a specific error code
func IsErrorCode(err error, code ErrorCode) bool {
	var toryggErr *ToryggError
	if errors.As(err, &toryggErr) {
		return toryggErr.Code == code
	}
	return false
}

// GetErrorCode returns the error code from an error, or ErrUnknown if not a ToryggError
func GetErrorCode(err error) ErrorCode {
	var toryggErr *ToryggError
	if errors.As(err, &toryggErr) {
		return toryggErr.Code
	}
	return ErrUnknown
}

// GetErrorDetails returns the details from an error, or nil if not a ToryggError
func GetErrorDetails(err error) map[string]interface{} {
	var toryggErr *ToryggError
	if errors.As(err, &toryggErr) {
		return toryggErr.Details
	}
	return nil
}
