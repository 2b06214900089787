// Package errorx provides coded errors that map onto HTTP responses.
package errorx

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
)

// Coder describes a registered error code.
type Coder interface {
	Code() int
	HTTPStatus() int
	String() string
	Reference() string
}

var (
	codes   = map[int]Coder{}
	codeMux sync.RWMutex
)

// ErrUnknown is used when an error carries no registered code.
const ErrUnknown = 1

type defaultCoder struct{}

func (defaultCoder) Code() int         { return ErrUnknown }
func (defaultCoder) HTTPStatus() int   { return http.StatusInternalServerError }
func (defaultCoder) String() string    { return "Internal server error" }
func (defaultCoder) Reference() string { return "" }

// Register adds a coder, replacing any coder with the same code.
func Register(c Coder) {
	codeMux.Lock()
	defer codeMux.Unlock()
	codes[c.Code()] = c
}

// MustRegister adds a coder and panics on a duplicate code.
func MustRegister(c Coder) {
	if c.Code() == ErrUnknown {
		panic("code 1 is reserved for unknown errors")
	}
	codeMux.Lock()
	defer codeMux.Unlock()
	if _, ok := codes[c.Code()]; ok {
		panic(fmt.Sprintf("code %d already registered", c.Code()))
	}
	codes[c.Code()] = c
}

type withCode struct {
	err   error
	code  int
	cause error
}

func (w *withCode) Error() string {
	if w.cause != nil {
		return fmt.Sprintf("%s: %s", w.err.Error(), w.cause.Error())
	}
	return w.err.Error()
}

func (w *withCode) Unwrap() error { return w.cause }

// Message returns the message without the wrapped cause.
func (w *withCode) Message() string { return w.err.Error() }

// WithCode creates a coded error with a formatted message.
func WithCode(code int, format string, args ...any) error {
	return &withCode{err: fmt.Errorf(format, args...), code: code}
}

// WrapC wraps err with a code and a formatted message. A nil err returns nil.
func WrapC(err error, code int, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &withCode{err: fmt.Errorf(format, args...), code: code, cause: err}
}

// ParseCoder returns the registered coder of err, or the unknown coder.
func ParseCoder(err error) Coder {
	var wc *withCode
	if errors.As(err, &wc) {
		codeMux.RLock()
		defer codeMux.RUnlock()
		if c, ok := codes[wc.code]; ok {
			return c
		}
	}
	return defaultCoder{}
}

// IsCode reports whether any error in err's chain carries code.
func IsCode(err error, code int) bool {
	var wc *withCode
	for err != nil {
		if !errors.As(err, &wc) {
			return false
		}
		if wc.code == code {
			return true
		}
		err = wc.cause
	}
	return false
}
