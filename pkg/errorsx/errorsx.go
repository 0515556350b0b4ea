// Package errorsx attaches machine-readable kinds to errors so transports can map them
// to status codes without string matching.
package errorsx

import "errors"

// Kind is a short machine-readable error class.
type Kind string

const (
	KindUnknown                    Kind = "unknown"
	KindSessionNotFound            Kind = "session_not_found"
	KindSessionAlreadyClosed       Kind = "session_already_closed"
	KindExternalServiceUnavailable Kind = "external_service_unavailable"
	KindUnrecognizedLanguage       Kind = "unrecognized_language"
	KindInvalidInput               Kind = "invalid_input"
)

// KindedError wraps an error with a kind.
type KindedError struct {
	Err  error
	Kind Kind
}

func (e KindedError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

func (e KindedError) Unwrap() error {
	return e.Err
}

// New creates a kinded error with the given message.
func New(kind Kind, msg string) error {
	return KindedError{Err: errors.New(msg), Kind: kind}
}

// Wrap attaches a kind to err (no-op if err is nil or already kinded).
func Wrap(err error, kind Kind) error {
	if err == nil {
		return nil
	}
	var ke KindedError
	if errors.As(err, &ke) {
		return err
	}
	return KindedError{Err: err, Kind: kind}
}

// KindOf extracts the kind from err, KindUnknown when absent.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var ke KindedError
	if errors.As(err, &ke) {
		return ke.Kind
	}
	return KindUnknown
}

// Is reports whether err carries kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
