package broker

import (
	"errors"
	"fmt"
)

// Errores base de la taxonomía. Se comparan con errors.Is.
var (
	// ErrUnsupported indica que el target no implementa la operación pedida.
	ErrUnsupported = errors.New("operation not supported by target")

	// ErrLegacyOnly es un Unsupported explícito: el broker declara que el
	// protocolo de descubrimiento está deshabilitado y solo atiende el
	// mecanismo del registro de cuentas.
	ErrLegacyOnly = errors.New("target only supports legacy election")

	// ErrConnectionFailure indica que el canal no respondió o respondió basura.
	ErrConnectionFailure = errors.New("connection failure")

	// ErrValidationFailure indica que el target o la respuesta no superó la
	// validación de identidad/firma.
	ErrValidationFailure = errors.New("validation failure")
)

// ErrorKind clasifica un *Error.
type ErrorKind string

const (
	KindUnsupportedErr ErrorKind = "unsupported"
	KindLegacyOnlyErr  ErrorKind = "legacy_only"
	KindConnectionErr  ErrorKind = "connection_failure"
	KindValidationErr  ErrorKind = "validation_failure"
)

// Error es el error tipado que devuelven los Transport.
type Error struct {
	Kind      ErrorKind
	Transport TransportKind
	Target    string
	Msg       string
	Err       error
}

// NewError arma un *Error. err puede ser nil.
func NewError(kind ErrorKind, transport TransportKind, target, msg string, err error) *Error {
	return &Error{Kind: kind, Transport: transport, Target: target, Msg: msg, Err: err}
}

func (e *Error) Error() string {
	s := fmt.Sprintf("%s [%s] target=%s: %s", e.Kind, e.Transport, e.Target, e.Msg)
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Is permite errors.Is(err, ErrUnsupported) etc. LegacyOnly también es Unsupported.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnsupported:
		return e.Kind == KindUnsupportedErr || e.Kind == KindLegacyOnlyErr
	case ErrLegacyOnly:
		return e.Kind == KindLegacyOnlyErr
	case ErrConnectionFailure:
		return e.Kind == KindConnectionErr
	case ErrValidationFailure:
		return e.Kind == KindValidationErr
	}
	return false
}

// ErrorFromPayload reconstruye el error que un broker devolvió dentro del
// payload de respuesta. Devuelve nil si el payload no trae error.
func ErrorFromPayload(p Payload, transport TransportKind, target string) error {
	kind := p.Get(KeyErrorKind)
	if kind == "" {
		return nil
	}
	msg := p.Get(KeyErrorMessage)
	switch ErrorKind(kind) {
	case KindUnsupportedErr, KindLegacyOnlyErr, KindConnectionErr, KindValidationErr:
		return NewError(ErrorKind(kind), transport, target, msg, nil)
	default:
		return NewError(KindConnectionErr, transport, target, "remote error "+kind+": "+msg, nil)
	}
}

// ErrorPayload es la inversa de ErrorFromPayload (lado broker).
func ErrorPayload(kind ErrorKind, msg string) Payload {
	return Payload{KeyErrorKind: string(kind), KeyErrorMessage: msg}
}

// IsUnsupported verifica si el error es ErrUnsupported (incluye LegacyOnly).
func IsUnsupported(err error) bool { return errors.Is(err, ErrUnsupported) }

// IsLegacyOnly verifica si el error es ErrLegacyOnly.
func IsLegacyOnly(err error) bool { return errors.Is(err, ErrLegacyOnly) }

// IsConnectionFailure verifica si el error es ErrConnectionFailure.
func IsConnectionFailure(err error) bool { return errors.Is(err, ErrConnectionFailure) }

// IsValidationFailure verifica si el error es ErrValidationFailure.
func IsValidationFailure(err error) bool { return errors.Is(err, ErrValidationFailure) }
