package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for request validation. They are reported to callers
// under the IllegalArgument code.
var (
	ErrMissingSpaceID = errors.New("space id is required")
	ErrMissingID      = errors.New("id is required")
	ErrInvalidID      = errors.New("id contains control characters")
)

// ErrRecordNotFound indicates a lookup for a specific version or head found nothing.
var ErrRecordNotFound = errors.New("record not found")

// ErrFieldTooLong returns an error indicating a field exceeds its maximum length.
func ErrFieldTooLong(field string, maxLen int) error {
	return fmt.Errorf("%s exceeds maximum length of %d", field, maxLen)
}

// ErrorCode is the error kind surfaced to writers.
type ErrorCode string

// Error codes a write may fail with.
const (
	CodeIllegalArgument  ErrorCode = "IllegalArgument"
	CodeFeatureExists    ErrorCode = "FeatureExists"
	CodeFeatureNotExists ErrorCode = "FeatureNotExists"
	CodeVersionConflict  ErrorCode = "VersionConflictError"
	CodeException        ErrorCode = "Exception"
)

// Sentinels matched by errors.Is against a *WriteError of the same code.
var (
	ErrIllegalArgument  = errors.New("illegal argument")
	ErrFeatureExists    = errors.New("feature exists")
	ErrFeatureNotExists = errors.New("feature does not exist")
	ErrVersionConflict  = errors.New("version conflict")
	ErrException        = errors.New("exception")
)

// Sentinel returns the sentinel error for the code.
func (c ErrorCode) Sentinel() error {
	switch c {
	case CodeIllegalArgument:
		return ErrIllegalArgument
	case CodeFeatureExists:
		return ErrFeatureExists
	case CodeFeatureNotExists:
		return ErrFeatureNotExists
	case CodeVersionConflict:
		return ErrVersionConflict
	default:
		return ErrException
	}
}

// SQLState returns the SQLSTATE-style code used by the SQL write functions
// of the platform, so callers bridging to them can keep their mappings.
func (c ErrorCode) SQLState() string {
	switch c {
	case CodeIllegalArgument:
		return "XYZ40"
	case CodeFeatureExists:
		return "XYZ44"
	case CodeFeatureNotExists:
		return "XYZ45"
	case CodeVersionConflict:
		return "XYZ49"
	default:
		return "XYZ50"
	}
}

// WriteError is returned by the write engine for every failed write.
type WriteError struct {
	Code      ErrorCode
	SpaceID   string
	FeatureID string
	Message   string
	Err       error
}

// NewWriteError creates a WriteError for the given feature.
func NewWriteError(code ErrorCode, spaceID, featureID, message string) *WriteError {
	return &WriteError{Code: code, SpaceID: spaceID, FeatureID: featureID, Message: message}
}

// WrapWriteError creates a WriteError that wraps a lower-level cause.
func WrapWriteError(code ErrorCode, spaceID, featureID string, err error) *WriteError {
	return &WriteError{Code: code, SpaceID: spaceID, FeatureID: featureID, Err: err}
}

func (e *WriteError) Error() string {
	msg := string(e.Code)
	if e.FeatureID != "" {
		msg += fmt.Sprintf(" [%s/%s]", e.SpaceID, e.FeatureID)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Unwrap returns the underlying cause, if any.
func (e *WriteError) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel of this error's code.
func (e *WriteError) Is(target error) bool {
	return target == e.Code.Sentinel()
}

// CodeOf classifies err into one of the surfaced error codes.
// Errors that are not write errors are reported as Exception.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}

	var we *WriteError
	if errors.As(err, &we) {
		return we.Code
	}

	switch {
	case errors.Is(err, ErrIllegalArgument):
		return CodeIllegalArgument
	case errors.Is(err, ErrFeatureExists):
		return CodeFeatureExists
	case errors.Is(err, ErrFeatureNotExists):
		return CodeFeatureNotExists
	case errors.Is(err, ErrVersionConflict):
		return CodeVersionConflict
	default:
		return CodeException
	}
}
