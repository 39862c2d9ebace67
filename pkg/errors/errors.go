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

	// Stage errors raised by the install/update/uninstall pipelines
	ErrPrecondition ErrorCode = "PRECONDITION"
	ErrBackup       ErrorCode = "BACKUP"
	ErrPlacement    ErrorCode = "PLACEMENT"
	ErrPersistence  ErrorCode = "PERSISTENCE"
	ErrVerification ErrorCode = "VERIFICATION"

	// Precondition refinements
	ErrNotInstalled  ErrorCode = "NOT_INSTALLED"
	ErrSourceMissing ErrorCode = "SOURCE_MISSING"
	ErrUserAborted   ErrorCode = "USER_ABORTED"

	// Bundle errors
	ErrBundleInvalid ErrorCode = "BUNDLE_INVALID"
	ErrConfigLoad    ErrorCode = "CONFIG_LOAD"
	ErrConfigParse   ErrorCode = "CONFIG_PARSE"

	// Source refresh errors
	ErrGitCommand   ErrorCode = "GIT_COMMAND"
	ErrDirtySource  ErrorCode = "DIRTY_SOURCE"
	ErrNotGitSource ErrorCode = "NOT_GIT_SOURCE"

	// FileSystem errors
	ErrFileNotFound  ErrorCode = "FILE_NOT_FOUND"
	ErrFileAccess    ErrorCode = "FILE_ACCESS"
	ErrFileCreate    ErrorCode = "FILE_CREATE"
	ErrFileWrite     ErrorCode = "FILE_WRITE"
	ErrSymlinkCreate ErrorCode = "SYMLINK_CREATE"
	ErrDirCreate     ErrorCode = "DIR_CREATE"
)

// KitupError represents a structured error with code and details
type KitupError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implements the error interface
func (e *KitupError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *KitupError) Unwrap() error {
	return e.Wrapped
}

// Is implements errors.Is interface
func (e *KitupError) Is(target error) bool {
	var targetErr *KitupError
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// New creates a new KitupError with the given code and message
func New(code ErrorCode, message string) *KitupError {
	return &KitupError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates a new KitupError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *KitupError {
	return &KitupError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with a KitupError
func Wrap(err error, code ErrorCode, message string) *KitupError {
	if err == nil {
		return nil
	}
	return &KitupError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *KitupError {
	if err == nil {
		return nil
	}
	return &KitupError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// WithDetail adds a detail to the error
func (e *KitupError) WithDetail(key string, value interface{}) *KitupError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsErrorCode checks if an error has a specific error code
func IsErrorCode(err error, code ErrorCode) bool {
	var kerr *KitupError
	if errors.As(err, &kerr) {
		return kerr.Code == code
	}
	return false
}

// GetErrorCode returns the error code from an error, or ErrUnknown if not a KitupError
func GetErrorCode(err error) ErrorCode {
	var kerr *KitupError
	if errors.As(err, &kerr) {
		return kerr.Code
	}
	return ErrUnknown
}
