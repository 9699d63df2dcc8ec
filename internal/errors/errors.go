// Package errors defines the error kinds shared by the sync pipeline and the
// HTTP surface.
//
// Every failure that leaves a pipeline stage is an *Error carrying one Kind.
// Callers branch on the kind, not on message text:
//
//	if errors.Is(err, apperrors.ErrInvalidPath) {
//	    http.Error(w, err.Error(), http.StatusBadRequest)
//	}
package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
)

// Kind categorizes a failure.
type Kind string

const (
	KindIO                Kind = "io"
	KindDecode            Kind = "decode"
	KindUnsupportedFormat Kind = "unsupported_format"
	KindInvalidPath       Kind = "invalid_path"
	KindQueueClosed       Kind = "queue_closed"
)

// Error is a pipeline failure with the operation and path that produced it.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind. A target with an
// empty Op and Path matches any error of that kind, which is what the
// exported sentinels rely on.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return (t.Op == "" || t.Op == e.Op) && (t.Path == "" || t.Path == e.Path)
}

// Sentinels for errors.Is.
var (
	ErrIO                = &Error{Kind: KindIO}
	ErrDecode            = &Error{Kind: KindDecode}
	ErrUnsupportedFormat = &Error{Kind: KindUnsupportedFormat}
	ErrInvalidPath       = &Error{Kind: KindInvalidPath}
	ErrQueueClosed       = &Error{Kind: KindQueueClosed}
)

// New builds an *Error.
func New(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// IO wraps an I/O failure.
func IO(op, path string, err error) *Error {
	return New(KindIO, op, path, err)
}

// Decode wraps an image decode failure.
func Decode(op, path string, err error) *Error {
	return New(KindDecode, op, path, err)
}

// Unsupported reports an image that cannot be normalized to the thumbnail
// pixel format.
func Unsupported(op, path string, format string, args ...any) *Error {
	return New(KindUnsupportedFormat, op, path, fmt.Errorf(format, args...))
}

// InvalidPath reports a sandbox violation.
func InvalidPath(op, path string, reason string) *Error {
	return New(KindInvalidPath, op, path, errors.New(reason))
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there
// is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// HTTPStatus maps an error to the status code the HTTP surface answers with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidPath):
		return http.StatusBadRequest
	case errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, ErrQueueClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
