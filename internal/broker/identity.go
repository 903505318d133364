// Package broker contiene los tipos de valor compartidos por todo el motor de
// descubrimiento: la identidad de una app candidata, el conjunto ordenado de
// candidatas conocidas, las operaciones que viajan por un Transport y la
// taxonomía de errores.
package broker

import (
	"strings"
)

// Identity identifica a una app capaz de actuar como broker.
// Es un valor inmutable: se pasa por copia y se compara con Equal.
type Identity struct {
	ApplicationID      string
	SigningFingerprint string

	// Nickname solo afecta a String(); no participa de la igualdad.
	Nickname string
}

// NewIdentity construye una identidad sin nickname.
func NewIdentity(appID, fingerprint string) Identity {
	return Identity{ApplicationID: appID, SigningFingerprint: fingerprint}
}

// Equal compara estructuralmente (application id + fingerprint).
func (i Identity) Equal(o Identity) bool {
	return i.ApplicationID == o.ApplicationID && i.SigningFingerprint == o.SigningFingerprint
}

// IsZero indica si alguno de los dos campos obligatorios está vacío.
func (i Identity) IsZero() bool {
	return strings.TrimSpace(i.ApplicationID) == "" || strings.TrimSpace(i.SigningFingerprint) == ""
}

// Key devuelve la forma canónica usada como clave en mapas.
func (i Identity) Key() string {
	return i.ApplicationID + "::" + i.SigningFingerprint
}

func (i Identity) String() string {
	if i.Nickname != "" {
		return i.Nickname
	}
	return i.Key()
}

// NormalizeAppID aplica trim + lower. Los ids que llegan del registro de
// cuentas del sistema aparecen con espacios y mayúsculas.
func NormalizeAppID(appID string) string {
	return strings.ToLower(strings.TrimSpace(appID))
}
