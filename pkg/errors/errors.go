package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// Kind classifies an error for callers; transports map it to a status code.
type Kind string

const (
	KindValidation   Kind = "VALIDATION_ERROR"
	KindNotFound     Kind = "NOT_FOUND"
	KindForbidden    Kind = "FORBIDDEN"
	KindInvalidState Kind = "INVALID_STATE"
	KindStoreFailure Kind = "STORE_FAILURE"
	KindInternal     Kind = "INTERNAL"
)

// ErrInvalidStatus marks a status value outside the recognised set.
var ErrInvalidStatus = stderrors.New("invalid status")

// Error represents a custom error with stack trace
type Error struct {
	Code    int        `json:"code"`
	Kind    Kind       `json:"kind"`
	Message string     `json:"message"`
	Err     error      `json:"-"`
	Stack   string     `json:"stack,omitempty"`
	Context []KeyValue `json:"context,omitempty"`
}

// KeyValue represents a key-value pair for context
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

// Unwrap implements the errors.Wrapper interface
func (e *Error) Unwrap() error {
	return e.Err
}

func newKind(kind Kind, err error, message string) *Error {
	return &Error{
		Code:    HTTPStatus(kind),
		Kind:    kind,
		Message: message,
		Err:     err,
		Stack:   captureStack(),
	}
}

func Validation(format string, args ...interface{}) *Error {
	return newKind(KindValidation, nil, fmt.Sprintf(format, args...))
}

// InvalidStatus is a validation failure that also matches ErrInvalidStatus.
func InvalidStatus(status string) *Error {
	return newKind(KindValidation, ErrInvalidStatus, fmt.Sprintf("invalid status %q", status))
}

func NotFound(entity, id string) *Error {
	return newKind(KindNotFound, nil, fmt.Sprintf("%s %s not found", entity, id)).
		WithContext("entity", entity).WithContext("id", id)
}

func Forbidden(format string, args ...interface{}) *Error {
	return newKind(KindForbidden, nil, fmt.Sprintf(format, args...))
}

func InvalidState(format string, args ...interface{}) *Error {
	return newKind(KindInvalidState, nil, fmt.Sprintf(format, args...))
}

// StoreFailure wraps a persistence error under op ("store.Gorm.CreateAlert").
func StoreFailure(op string, err error) *Error {
	if err == nil {
		return nil
	}
	return newKind(KindStoreFailure, err, op+": "+err.Error())
}

// WithCode creates a new error with code
func WithCode(code int, message string) *Error {
	return &Error{
		Code:    code,
		Kind:    KindInternal,
		Message: message,
		Stack:   captureStack(),
	}
}

// Wrap wraps an error with message
func Wrap(err error, message string) *Error {
	if err == nil {
		return nil
	}
	kind := KindOf(err)
	return &Error{
		Code:    HTTPStatus(kind),
		Kind:    kind,
		Message: message,
		Err:     err,
		Stack:   captureStack(),
	}
}

// Wrapf wraps an error with formatted message
func Wrapf(err error, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// New creates a new error
func New(message string) *Error {
	return &Error{
		Kind:    KindInternal,
		Code:    http.StatusInternalServerError,
		Message: message,
		Stack:   captureStack(),
	}
}

// WithContext adds context to an error
func (e *Error) WithContext(key, value string) *Error {
	if e == nil {
		return nil
	}

	newErr := *e
	newErr.Context = make([]KeyValue, len(e.Context), len(e.Context)+1)
	copy(newErr.Context, e.Context)
	newErr.Context = append(newErr.Context, KeyValue{Key: key, Value: value})
	return &newErr
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) && e.Kind != "" {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps a kind onto a response status.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindInvalidState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// captureStack captures the current stack trace
func captureStack() string {
	buf := make([]byte, 1024)
	n := runtime.Stack(buf, false)
	stack := string(buf[:n])

	lines := strings.Split(stack, "\n")
	if len(lines) > 6 {
		stack = strings.Join(lines[6:], "\n")
	}

	return strings.TrimSpace(stack)
}

// GetMessage returns the error message
func GetMessage(err error) string {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Error()
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// GetStack returns the error stack trace
func GetStack(err error) string {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Stack
	}
	return ""
}

func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }

// Cause returns the underlying error
func Cause(err error) error {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Err != nil {
			err = e.Err
		} else {
			return err
		}
	}
	return err
}

// Format implements fmt.Formatter
func (e *Error) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprintf(s, "%s", e.Error())
			if e.Stack != "" {
				fmt.Fprintf(s, "\n%s", e.Stack)
			}
			return
		}
		fallthrough
	case 's':
		fmt.Fprintf(s, "%s", e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}
