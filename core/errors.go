package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// NotFoundError indicates that a requested resource could not be resolved.
// It is surfaced to callers as an explicit error rather than an empty result.
type NotFoundError struct {
	msg string
}

func NewNotFoundError(msg string) error {
	return &NotFoundError{msg: msg}
}

func (err NotFoundError) Error() string {
	return err.msg
}

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

// UpstreamError wraps a failure from a remote collaborator (classroom service,
// language model) along with the upstream status/detail. It is never retried
// automatically.
type UpstreamError struct {
	Service string
	Status  int
	Err     error
}

func NewUpstreamError(service string, status int, err error) error {
	return &UpstreamError{Service: service, Status: status, Err: err}
}

func (err UpstreamError) Error() string {
	if err.Err == nil {
		return err.Service + " call failed"
	}
	return err.Service + ": " + err.Err.Error()
}

func IsUpstreamError(err error) (*UpstreamError, bool) {
	uerr, ok := errors.Cause(err).(*UpstreamError)
	return uerr, ok
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
