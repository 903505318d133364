package logger

import (
	"time"

	"github.com/dropDatabas3/brokerdisco/internal/util"
	"go.uber.org/zap"
)

// =================================================================================
// CAMPOS ESTÁNDAR - DESCUBRIMIENTO
// =================================================================================

// RequestID crea un campo para el id de la llamada de descubrimiento.
func RequestID(v string) zap.Field {
	return zap.String("request_id", v)
}

// BrokerApp crea un campo para el application id del broker elegido.
func BrokerApp(v string) zap.Field {
	return zap.String("broker_app", v)
}

// Fingerprint loguea un fingerprint de firma enmascarado.
func Fingerprint(v string) zap.Field {
	return zap.String("fingerprint", util.MaskFingerprint(v))
}

// Candidate crea un campo para la candidata consultada.
func Candidate(v string) zap.Field {
	return zap.String("candidate", v)
}

// TransportKind crea un campo para el tipo de canal.
func TransportKind(v string) zap.Field {
	return zap.String("transport", v)
}

// Role crea un campo para el rol del proceso (client | broker).
func Role(v string) zap.Field {
	return zap.String("role", v)
}

// Source crea un campo para el origen del resultado (cache, query, legacy...).
func Source(v string) zap.Field {
	return zap.String("source", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - SISTEMA
// =================================================================================

// Component crea un campo para el componente/módulo.
func Component(v string) zap.Field {
	return zap.String("component", v)
}

// Op crea un campo para la operación actual.
func Op(v string) zap.Field {
	return zap.String("op", v)
}

// Err crea un campo para un error.
func Err(err error) zap.Field {
	return zap.Error(err)
}

// Duration crea un campo para una duración.
func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

// Key crea un campo genérico para una clave.
func Key(v string) zap.Field {
	return zap.String("key", v)
}

// Count crea un campo para un conteo.
func Count(v int) zap.Field {
	return zap.Int("count", v)
}
