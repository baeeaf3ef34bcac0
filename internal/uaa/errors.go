package uaa

import "fmt"

// ErrorKind clasifica las fallas del token exchange.
type ErrorKind int

const (
	// KindInvalidGrant: credenciales o refresh token rechazados por UAA.
	// No debe reintentarse automáticamente.
	KindInvalidGrant ErrorKind = iota
	// KindUnavailable: fallo de red o timeout hablando con UAA.
	// El caller puede reintentar con backoff.
	KindUnavailable
	// KindProtocol: UAA respondió algo que no pudimos interpretar.
	// Fatal para esta llamada.
	KindProtocol
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidGrant:
		return "invalid_grant"
	case KindUnavailable:
		return "unavailable"
	default:
		return "protocol_error"
	}
}

// AuthError es el error tipado que devuelve el Client.
type AuthError struct {
	Kind ErrorKind
	Op   string // "password_grant" | "refresh_grant" | "discovery"
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("uaa: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("uaa: %s: %s", e.Op, e.Kind)
}

func (e *AuthError) Unwrap() error { return e.Err }

// IsInvalidGrant reporta si err es un AuthError de credenciales rechazadas.
func IsInvalidGrant(err error) bool { return kindOf(err) == KindInvalidGrant }

// IsUnavailable reporta si err es un AuthError transitorio de red/timeout.
func IsUnavailable(err error) bool { return kindOf(err) == KindUnavailable }

func kindOf(err error) ErrorKind {
	if ae, ok := err.(*AuthError); ok {
		return ae.Kind
	}
	return KindProtocol
}
