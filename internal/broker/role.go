package broker

import (
	"fmt"
	"strings"
)

// Role es el rol del proceso que lee/escribe el cache del broker activo.
// Cada rol tiene su propio namespace de storage.
type Role string

const (
	// RoleClient es el lado SDK (apps cliente).
	RoleClient Role = "client"
	// RoleBroker es el lado que hospeda al broker.
	RoleBroker Role = "broker"
)

// ParseRole acepta "client" | "broker" (trim, case-insensitive).
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleClient, RoleBroker:
		return r, nil
	default:
		return "", fmt.Errorf("unknown process role %q", s)
	}
}

// Namespace devuelve el namespace de storage por defecto del rol.
func (r Role) Namespace() string {
	return "active_broker." + string(r)
}
