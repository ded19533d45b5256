package errors

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorCode represents internal error codes for parse and query operations
type ErrorCode int

const (
	// Success
	ErrCodeOK ErrorCode = 0

	// Parse errors, fatal for the current parse call
	ErrCodeUnexpectedEOF        ErrorCode = 1000
	ErrCodeUnknownObject        ErrorCode = 1001
	ErrCodeNoObjectsData        ErrorCode = 1002
	ErrCodeMalformedStatusBlock ErrorCode = 1003
	ErrCodeReadFailed           ErrorCode = 1004

	// Usage errors, caller contract violations
	ErrCodeUnknownTarget     ErrorCode = 2000
	ErrCodeUnknownColumn     ErrorCode = 2001
	ErrCodeInvalidFilter     ErrorCode = 2002
	ErrCodeInvalidPagination ErrorCode = 2003
	ErrCodePairsColumns      ErrorCode = 2004
	ErrCodeGroupedResult     ErrorCode = 2005

	// Lookup misses on runtime state
	ErrCodeUnknownProperty ErrorCode = 3000

	// Internal errors
	ErrCodeInternal    ErrorCode = 4000
	ErrCodeUnavailable ErrorCode = 4001
)

// Category groups error codes by how callers are expected to react.
type Category string

const (
	CategoryNone     Category = "none"
	CategoryParse    Category = "parse"
	CategoryUsage    Category = "usage"
	CategoryLookup   Category = "lookup"
	CategoryInternal Category = "internal"
)

// StatusdatError represents a structured error with code and context
type StatusdatError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Cause   error
}

// Error implements the error interface
func (e *StatusdatError) Error() string {
	msg := e.Message
	if line, ok := e.Details["line"]; ok {
		msg = fmt.Sprintf("%s (line %v)", msg, line)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error
func (e *StatusdatError) Unwrap() error {
	return e.Cause
}

// Category returns the category of the error code
func (e *StatusdatError) Category() Category {
	switch {
	case e.Code == ErrCodeOK:
		return CategoryNone
	case e.Code >= 1000 && e.Code < 2000:
		return CategoryParse
	case e.Code >= 2000 && e.Code < 3000:
		return CategoryUsage
	case e.Code >= 3000 && e.Code < 4000:
		return CategoryLookup
	default:
		return CategoryInternal
	}
}

// Line returns the line number attached to a parse error, or 0.
func (e *StatusdatError) Line() int {
	if line, ok := e.Details["line"].(int); ok {
		return line
	}
	return 0
}

// ToGRPCStatus converts StatusdatError to gRPC status
func (e *StatusdatError) ToGRPCStatus() *status.Status {
	return status.New(e.toGRPCCode(), e.Error())
}

// toGRPCCode maps internal error codes to gRPC codes
func (e *StatusdatError) toGRPCCode() codes.Code {
	switch e.Code {
	case ErrCodeOK:
		return codes.OK
	case ErrCodeUnexpectedEOF, ErrCodeUnknownObject, ErrCodeMalformedStatusBlock,
		ErrCodeUnknownTarget, ErrCodeUnknownColumn, ErrCodeInvalidFilter,
		ErrCodeInvalidPagination, ErrCodePairsColumns:
		return codes.InvalidArgument
	case ErrCodeNoObjectsData, ErrCodeGroupedResult:
		return codes.FailedPrecondition
	case ErrCodeUnknownProperty:
		return codes.NotFound
	case ErrCodeReadFailed, ErrCodeUnavailable:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// NewStatusdatError creates a new StatusdatError
func NewStatusdatError(code ErrorCode, message string, cause error) *StatusdatError {
	return &StatusdatError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Cause:   cause,
	}
}

// WithDetail adds a detail to the error
func (e *StatusdatError) WithDetail(key string, value interface{}) *StatusdatError {
	e.Details[key] = value
	return e
}

// Parse errors

func UnexpectedEOF(file string, line int) *StatusdatError {
	return NewStatusdatError(ErrCodeUnexpectedEOF, fmt.Sprintf("unexpected EOF in %s", file), nil).
		WithDetail("file", file).
		WithDetail("line", line)
}

func UnknownObject(name string, line int) *StatusdatError {
	return NewStatusdatError(ErrCodeUnknownObject, fmt.Sprintf("unknown object %s", name), nil).
		WithDetail("identifier", name).
		WithDetail("line", line)
}

func NoObjectsData() *StatusdatError {
	return NewStatusdatError(ErrCodeNoObjectsData, "tried to read runtime state without existing objects data", nil)
}

func MalformedStatusBlock(stateType, reason string, line int) *StatusdatError {
	return NewStatusdatError(ErrCodeMalformedStatusBlock, fmt.Sprintf("malformed %s block: %s", stateType, reason), nil).
		WithDetail("state_type", stateType).
		WithDetail("line", line)
}

func ReadFailed(file string, cause error) *StatusdatError {
	return NewStatusdatError(ErrCodeReadFailed, fmt.Sprintf("failed to read %s", file), cause).
		WithDetail("file", file)
}

// Usage errors

func UnknownTarget(target string) *StatusdatError {
	return NewStatusdatError(ErrCodeUnknownTarget, fmt.Sprintf("unknown query target '%s'", target), nil).
		WithDetail("target", target)
}

func UnknownColumn(view, column string) *StatusdatError {
	return NewStatusdatError(ErrCodeUnknownColumn, fmt.Sprintf("column '%s' is not mapped by view %s", column, view), nil).
		WithDetail("view", view).
		WithDetail("column", column)
}

func InvalidFilter(expr, reason string) *StatusdatError {
	return NewStatusdatError(ErrCodeInvalidFilter, fmt.Sprintf("invalid filter '%s': %s", expr, reason), nil).
		WithDetail("filter", expr).
		WithDetail("reason", reason)
}

func InvalidPagination(reason string) *StatusdatError {
	return NewStatusdatError(ErrCodeInvalidPagination, fmt.Sprintf("invalid pagination: %s", reason), nil).
		WithDetail("reason", reason)
}

func PairsColumns(got int) *StatusdatError {
	return NewStatusdatError(ErrCodePairsColumns, fmt.Sprintf("fetchPairs expects exactly two columns, got %d", got), nil).
		WithDetail("columns", got)
}

func GroupedResult(op string) *StatusdatError {
	return NewStatusdatError(ErrCodeGroupedResult, fmt.Sprintf("%s is not available on a grouped query", op), nil).
		WithDetail("operation", op)
}

// Lookup errors

func UnknownProperty(name string) *StatusdatError {
	return NewStatusdatError(ErrCodeUnknownProperty, fmt.Sprintf("unknown property %s", name), nil).
		WithDetail("property", name)
}

func InternalError(message string, cause error) *StatusdatError {
	return NewStatusdatError(ErrCodeInternal, message, cause)
}

func Unavailable(message string, cause error) *StatusdatError {
	return NewStatusdatError(ErrCodeUnavailable, message, cause)
}

// IsStatusdatError checks if an error is a StatusdatError
func IsStatusdatError(err error) bool {
	var se *StatusdatError
	return errors.As(err, &se)
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	var se *StatusdatError
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrCodeInternal
}

// IsCategory reports whether err is a StatusdatError of the given category
func IsCategory(err error, c Category) bool {
	var se *StatusdatError
	if errors.As(err, &se) {
		return se.Category() == c
	}
	return false
}

// StatusLabel returns the gRPC code name used as a metrics result label
func StatusLabel(err error) string {
	if err == nil {
		return codes.OK.String()
	}
	var se *StatusdatError
	if errors.As(err, &se) {
		return se.toGRPCCode().String()
	}
	return codes.Unknown.String()
}
