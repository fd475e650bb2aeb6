package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeStorage ErrorType = "STORAGE"
	ErrTypeConfig  ErrorType = "CONFIG"
)

// Sentinel errors shared across packages. Match with errors.Is.
var (
	// ErrNotFound is returned by stores when a key has never been written.
	ErrNotFound = stderrors.New("not found")

	// ErrStorage matches any AppError of type STORAGE.
	ErrStorage = stderrors.New("storage unavailable")

	// ErrAuthorizationRequired means the usage limit is exhausted and no
	// active license covers the attempt.
	ErrAuthorizationRequired = stderrors.New("download limit reached: license code required")
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is(err, ErrStorage) match storage-typed AppErrors.
func (e *AppError) Is(target error) bool {
	return target == ErrStorage && e.Type == ErrTypeStorage
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// NewStorageError creates a storage-related error. Storage errors are
// non-fatal: the caller may retry and no partial record is left behind.
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// IsType reports whether err wraps an AppError of the given type.
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type == errType
	}
	return false
}

// IsStorage reports whether err is a storage failure.
func IsStorage(err error) bool {
	return IsType(err, ErrTypeStorage)
}
