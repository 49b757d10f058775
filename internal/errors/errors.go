// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrConfigInvalid   = errors.New("invalid configuration")
	ErrDataUnavailable = errors.New("data unavailable")
	ErrDataNotFound    = errors.New("data not found")
	ErrDatabaseError   = errors.New("database error")
	ErrDetectorFailed  = errors.New("detector failed")
	ErrInputValidation = errors.New("input validation failed")
)

// ConfigError reports unrecoverable setup problems: unknown modes, missing
// expiry maps, profiles that were never resolved. It is fatal to the cycle
// of the instrument that hit it.
type ConfigError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// Unwrap lets errors.Is match ErrConfigInvalid.
func (e *ConfigError) Unwrap() error {
	return ErrConfigInvalid
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field string, value interface{}, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// DetectorError represents an unexpected failure inside one detector.
type DetectorError struct {
	Set      string
	Detector string
	Err      error
}

func (e *DetectorError) Error() string {
	return fmt.Sprintf("detector error [%s/%s]: %v", e.Set, e.Detector, e.Err)
}

func (e *DetectorError) Unwrap() error {
	return e.Err
}

// Is matches ErrDetectorFailed so callers can classify without As.
func (e *DetectorError) Is(target error) bool {
	return target == ErrDetectorFailed
}

// NewDetectorError creates a new DetectorError.
func NewDetectorError(set, detector string, err error) *DetectorError {
	return &DetectorError{
		Set:      set,
		Detector: detector,
		Err:      err,
	}
}

// DataError represents a data-related error.
type DataError struct {
	DataType string
	Symbol   string
	Message  string
	Err      error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.DataType, e.Symbol, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.DataType, e.Symbol, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(dataType, symbol, message string, err error) *DataError {
	return &DataError{
		DataType: dataType,
		Symbol:   symbol,
		Message:  message,
		Err:      err,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInputValidation
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// Unavailable wraps ErrDataUnavailable with a reason. Detectors return it
// when the state lacks the data they need.
func Unavailable(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrDataUnavailable)
}

// IsConfig reports whether err is a configuration error.
func IsConfig(err error) bool {
	return errors.Is(err, ErrConfigInvalid)
}

// IsUnavailable reports whether err means missing data rather than failure.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrDataUnavailable)
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
