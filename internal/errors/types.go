package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind represents the categories of failure a build can report.
type ErrorKind string

const (
	// KindParse covers malformed loops, unknown statements and bad expressions.
	KindParse ErrorKind = "parse"
	// KindType covers operations applied to the wrong kind of value.
	KindType ErrorKind = "type"
	// KindLookup covers undefined variables, missing fields and bad indexes.
	KindLookup ErrorKind = "lookup"
	// KindIO covers unreadable files and directories.
	KindIO       ErrorKind = "io"
	KindConfig   ErrorKind = "config"
	KindInternal ErrorKind = "internal"
)

// SiteError is a structured error type with location and context.
type SiteError struct {
	Kind     ErrorKind
	Code     string
	Message  string
	Cause    error
	Context  map[string]interface{}
	FilePath string
	Line     int
	Column   int
}

// Error implements the error interface.
func (e *SiteError) Error() string {
	var parts []string

	if e.FilePath != "" {
		location := e.FilePath
		if e.Line > 0 {
			location += fmt.Sprintf(":%d", e.Line)
			if e.Column > 0 {
				location += fmt.Sprintf(":%d", e.Column)
			}
		}
		parts = append(parts, location+":")
	}

	if e.Kind != "" {
		parts = append(parts, string(e.Kind)+" error:")
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *SiteError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a SiteError with the same kind and code.
func (e *SiteError) Is(target error) bool {
	var t *SiteError
	if errors.As(target, &t) {
		return e.Kind == t.Kind && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *SiteError) WithContext(key string, value interface{}) *SiteError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithLocation adds file location information. A zero line keeps the
// previously recorded line and column.
func (e *SiteError) WithLocation(filePath string, line, column int) *SiteError {
	e.FilePath = filePath
	if line > 0 {
		e.Line = line
		e.Column = column
	}

	return e
}

// NewParseError creates a parse error.
func NewParseError(code, message string) *SiteError {
	return &SiteError{Kind: KindParse, Code: code, Message: message}
}

// NewTypeError creates a type error.
func NewTypeError(code, message string) *SiteError {
	return &SiteError{Kind: KindType, Code: code, Message: message}
}

// NewLookupError creates a lookup error.
func NewLookupError(code, message string) *SiteError {
	return &SiteError{Kind: KindLookup, Code: code, Message: message}
}

// NewIOError creates an I/O error for the given path.
func NewIOError(code, path string, cause error) *SiteError {
	return &SiteError{
		Kind:     KindIO,
		Code:     code,
		Message:  "cannot access " + path,
		Cause:    cause,
		FilePath: path,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *SiteError {
	return &SiteError{Kind: KindConfig, Code: code, Message: message}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *SiteError {
	return &SiteError{Kind: KindInternal, Code: code, Message: message, Cause: cause}
}

// IsKind reports whether any error in err's chain is a SiteError of kind.
func IsKind(err error, kind ErrorKind) bool {
	var se *SiteError
	if errors.As(err, &se) {
		return se.Kind == kind
	}

	return false
}

// Locate attaches filePath to err if it is a SiteError without a location,
// and wraps any other error as an internal error located at filePath.
func Locate(err error, filePath string) error {
	if err == nil {
		return nil
	}

	var se *SiteError
	if errors.As(err, &se) {
		if se.FilePath == "" {
			se.FilePath = filePath
		}
		return err
	}

	return &SiteError{
		Kind:     KindInternal,
		Code:     ErrCodeInternal,
		Message:  err.Error(),
		Cause:    err,
		FilePath: filePath,
	}
}

// Common error codes.
const (
	ErrCodeMalformedLoop    = "ERR_MALFORMED_LOOP"
	ErrCodeUnknownStatement = "ERR_UNKNOWN_STATEMENT"
	ErrCodeUnclosedLoop     = "ERR_UNCLOSED_LOOP"
	ErrCodeUnopenedLoop     = "ERR_UNOPENED_LOOP"
	ErrCodeBadExpression    = "ERR_BAD_EXPRESSION"

	ErrCodeConcat       = "ERR_CONCAT"
	ErrCodeNotObject    = "ERR_NOT_OBJECT"
	ErrCodeNotList      = "ERR_NOT_LIST"
	ErrCodeNotFunction  = "ERR_NOT_FUNCTION"
	ErrCodeNotText      = "ERR_NOT_TEXT"
	ErrCodeStringify    = "ERR_STRINGIFY"
	ErrCodeArgument     = "ERR_ARGUMENT"
	ErrCodeNotIterable  = "ERR_NOT_ITERABLE"
	ErrCodeUndefinedVar = "ERR_UNDEFINED_VARIABLE"
	ErrCodeMissingField = "ERR_MISSING_FIELD"
	ErrCodeIndexRange   = "ERR_INDEX_RANGE"
	ErrCodeOutsideRoot  = "ERR_OUTSIDE_ROOT"

	ErrCodeFileNotFound  = "ERR_FILE_NOT_FOUND"
	ErrCodeReadFailed    = "ERR_READ_FAILED"
	ErrCodeWriteFailed   = "ERR_WRITE_FAILED"
	ErrCodeConfigInvalid = "ERR_CONFIG_INVALID"
	ErrCodeInternal      = "ERR_INTERNAL"
)
