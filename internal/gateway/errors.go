package gateway

import (
	"errors"
	"fmt"

	"github.com/abhisek/mathpad/internal/apperr"
)

// ErrMissingCredential is returned when no API key is configured for the
// selected provider.
var ErrMissingCredential = errors.New("model API key is not configured")

// InitializationError indicates the provider could not be constructed or
// rejected the configured credentials.
type InitializationError struct {
	Err error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("initializing model: %v", e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }

func (e *InitializationError) ErrorKind() apperr.Kind { return apperr.KindConfiguration }

// TransportError indicates the remote call failed.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("model request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) ErrorKind() apperr.Kind { return apperr.KindGateway }

// FormatError indicates the model answered with text that is not in the
// expected shape. Raw is the text as received.
type FormatError struct {
	Raw string
	Err error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("unexpected model output: %v", e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

func (e *FormatError) ErrorKind() apperr.Kind { return apperr.KindParse }

func (e *FormatError) RawText() string { return e.Raw }
