// Package errors provides structured error types for the history index.
// Every error carries a category, a code, a message and a retryable flag
// so storage, cache and ingestion failures are handled the same way.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by component.
type ErrorCategory string

const (
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryStorage    ErrorCategory = "STORAGE"
	ErrCategoryCache      ErrorCategory = "CACHE"
	ErrCategoryIntegrity  ErrorCategory = "INTEGRITY"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Validation codes
	CodeInvalidConfig = "INVALID_CONFIG"
	CodeInvalidItemID = "INVALID_ITEM_ID"
	CodeHistoryFrozen = "HISTORY_FROZEN"

	// Storage codes
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeDownloadFailed = "DOWNLOAD_FAILED"
	CodeObjectNotFound = "OBJECT_NOT_FOUND"

	// Cache codes
	CodeEncodeFailed = "ENCODE_FAILED"
	CodeDecodeFailed = "DECODE_FAILED"

	// Integrity codes
	CodeCorruptTimeline = "CORRUPT_TIMELINE"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// HistoryError is the structured error type used throughout the module.
type HistoryError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *HistoryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *HistoryError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *HistoryError) Is(target error) bool {
	var t *HistoryError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new HistoryError.
func New(category ErrorCategory, code, message string) *HistoryError {
	return &HistoryError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new HistoryError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *HistoryError {
	return &HistoryError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *HistoryError) WithDetails(details map[string]interface{}) *HistoryError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var he *HistoryError
	if errors.As(err, &he) {
		return he.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a HistoryError.
func GetCategory(err error) ErrorCategory {
	var he *HistoryError
	if errors.As(err, &he) {
		return he.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a HistoryError.
func GetCode(err error) string {
	var he *HistoryError
	if errors.As(err, &he) {
		return he.Code
	}
	return ""
}

// Storage transfers can succeed on a second attempt; nothing else can.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryStorage && code == CodeUploadFailed:
		return true
	case category == ErrCategoryStorage && code == CodeDownloadFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewValidationError(code, message string) *HistoryError {
	return New(ErrCategoryValidation, code, message)
}

func NewStorageError(code, message string, cause error) *HistoryError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewCacheError(code, message string, cause error) *HistoryError {
	return Wrap(ErrCategoryCache, code, message, cause)
}

func NewIntegrityError(message string, cause error) *HistoryError {
	return Wrap(ErrCategoryIntegrity, CodeCorruptTimeline, message, cause)
}

func NewInternalError(message string, cause error) *HistoryError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
