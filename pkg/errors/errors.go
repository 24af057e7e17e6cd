package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the stage of a backup run an error belongs to
type ErrorType string

const (
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeEnumeration ErrorType = "enumeration"
	ErrorTypeDownload    ErrorType = "download"
	ErrorTypeRelocation  ErrorType = "relocation"
	ErrorTypeConfig      ErrorType = "config"
	ErrorTypeStorage     ErrorType = "storage"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error represents a typed backup error
type Error struct {
	Type    ErrorType
	Op      string
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error", e.Type)
	if e.Op != "" {
		msg += " (" + e.Op + ")"
	}
	if e.Code != 0 {
		msg += fmt.Sprintf(" [code %d]", e.Code)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error without an underlying cause
func New(errorType ErrorType, op, message string) *Error {
	return &Error{Type: errorType, Op: op, Message: message}
}

// Wrap creates a typed error around err. A nil err yields nil.
func Wrap(errorType ErrorType, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Type: errorType, Op: op, Err: err}
}

// WithCode attaches an HTTP status code to the error
func (e *Error) WithCode(code int) *Error {
	e.Code = code
	return e
}

// TypeOf returns the type of the first *Error in err's chain
func TypeOf(err error) ErrorType {
	var typed *Error
	if stderrors.As(err, &typed) {
		return typed.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err's chain carries an *Error of the given type
func IsType(err error, errorType ErrorType) bool {
	var typed *Error
	if stderrors.As(err, &typed) {
		return typed.Type == errorType
	}
	return false
}

// IsAuthStatusCode checks if an HTTP status code indicates rejected credentials
func IsAuthStatusCode(statusCode int) bool {
	switch statusCode {
	case 401, 403:
		return true
	default:
		return false
	}
}

// Re-exported so callers need a single errors import.
var (
	Is   = stderrors.Is
	As   = stderrors.As
	Join = stderrors.Join
)
