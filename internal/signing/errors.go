package signing

import (
	"errors"
	"net/http"
)

// Error classes of a submission. Each maps to one HTTP status in statusFor.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrNotFound            = errors.New("not found")
	ErrAlreadySigned       = errors.New("already signed")
	ErrConflict            = errors.New("concurrent update")
	ErrInProgress          = errors.New("submission in progress")
	ErrExpired             = errors.New("link expired")
	ErrGeolocationRequired = errors.New("geolocation required")
	ErrOutOfRange          = errors.New("outside allowed radius")
	ErrDependency          = errors.New("dependency failure")
)

const msgServerError = "Erreur serveur"

// PublicError pairs an error class with the message shown to the signer.
// Err keeps the underlying cause for logs and never reaches the response.
type PublicError struct {
	Kind    error
	Message string
	Err     error
}

func (e *PublicError) Error() string {
	if e.Err != nil {
		return e.Kind.Error() + ": " + e.Err.Error()
	}
	return e.Kind.Error()
}

func (e *PublicError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func publicErr(kind error, message string, cause error) error {
	return &PublicError{Kind: kind, Message: message, Err: cause}
}

func dependencyErr(message string, cause error) error {
	return publicErr(ErrDependency, message, cause)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrGeolocationRequired),
		errors.Is(err, ErrOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadySigned),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrInProgress):
		return http.StatusConflict
	case errors.Is(err, ErrExpired):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// messageFor returns the user-facing text of err, falling back to a generic one.
func messageFor(err error) string {
	var pe *PublicError
	if errors.As(err, &pe) && pe.Message != "" {
		return pe.Message
	}
	return msgServerError
}
