package broker

import "strings"

// TransportKind identifica la variante de canal. Solo se usa para logs,
// métricas y para el tipo que reporta una cadena con backups.
type TransportKind int

const (
	KindUnknown TransportKind = iota
	KindStructuredRequest
	KindPersistentConnection
	KindAccountRegistryBackup
	KindHTTP
)

func (k TransportKind) String() string {
	switch k {
	case KindStructuredRequest:
		return "structured_request"
	case KindPersistentConnection:
		return "persistent_connection"
	case KindAccountRegistryBackup:
		return "account_registry_backup"
	case KindHTTP:
		return "http"
	default:
		return "unknown"
	}
}

// OperationKind es el tag de una operación.
type OperationKind string

const (
	OpBrokerDiscovery OperationKind = "broker_discovery"
)

// Payload es el cuerpo opaco (clave -> valor) que viaja en ambas direcciones.
type Payload map[string]string

// Claves del contrato de respuesta de BROKER_DISCOVERY.
const (
	KeyActiveBrokerAppID       = "active_broker_application_id"
	KeyActiveBrokerFingerprint = "active_broker_signing_fingerprint"
	KeyErrorKind               = "error_kind"
	KeyErrorMessage            = "error_message"
)

// Get devuelve el valor con trim; "" si no existe o el payload es nil.
func (p Payload) Get(key string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(p[key])
}

// Operation es un pedido one-shot dirigido a una app.
type Operation struct {
	Kind    OperationKind
	Target  string
	Payload Payload
}

// NewDiscoveryOperation arma un BROKER_DISCOVERY sin payload.
func NewDiscoveryOperation(target string) Operation {
	return Operation{Kind: OpBrokerDiscovery, Target: target, Payload: Payload{}}
}
