// Package apperr defines the user-facing error taxonomy shared by every
// mathpad component.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for presentation.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindConfiguration Kind = "configuration"
	KindGateway       Kind = "gateway"
	KindParse         Kind = "parse"
	KindAuth          Kind = "auth"
	KindBusy          Kind = "busy"
	KindInternal      Kind = "internal"
)

// Error is a classified error. Raw holds model output that failed to parse
// and is shown to the user for debugging.
type Error struct {
	Kind Kind
	Msg  string
	Raw  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Msg != "" {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports bad user input.
func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// Configuration reports a missing or unusable setting, such as an absent
// API key.
func Configuration(msg string, err error) error {
	return &Error{Kind: KindConfiguration, Msg: msg, Err: err}
}

// Gateway reports a failed call to the model backend.
func Gateway(msg string, err error) error {
	return &Error{Kind: KindGateway, Msg: msg, Err: err}
}

// Parse reports model output that could not be decoded into the expected
// structure.
func Parse(msg, raw string, err error) error {
	return &Error{Kind: KindParse, Msg: msg, Raw: raw, Err: err}
}

// Classifier is implemented by errors that know their own Kind.
type Classifier interface {
	ErrorKind() Kind
}

// KindOf returns the Kind of err. Unclassified errors are KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var c Classifier
	if errors.As(err, &c) {
		return c.ErrorKind()
	}
	return KindInternal
}

// RawOf returns the raw model output attached to err, if any.
func RawOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Raw
	}
	var r interface{ RawText() string }
	if errors.As(err, &r) {
		return r.RawText()
	}
	return ""
}

// Is reports whether err is of kind k.
func Is(err error, k Kind) bool {
	return KindOf(err) == k
}
