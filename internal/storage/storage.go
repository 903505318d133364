// Package storage provee el almacenamiento durable clave/valor que respalda
// al cache del broker activo.
//
// Soporta:
//   - Memory (go-cache in-process, para desarrollo/testing)
//   - Redis (compartido entre procesos)
//   - Bolt (archivo local, un bucket por namespace)
//   - FS (un archivo JSON por namespace, escritura atómica)
//
// Cada Store está atado a un namespace. Dos Stores con el mismo backend y el
// mismo namespace ven sus escrituras; con namespaces distintos, nunca.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Store define las operaciones de almacenamiento durable.
type Store interface {
	// Get obtiene un valor. Retorna ErrNotFound si no existe.
	Get(ctx context.Context, key string) (string, error)

	// Put guarda un valor sin expiración.
	Put(ctx context.Context, key, value string) error

	// Remove elimina una key. Remover una key inexistente no es error.
	Remove(ctx context.Context, key string) error

	// Namespace devuelve el namespace al que está atado el Store.
	Namespace() string

	// Close libera recursos del driver.
	Close() error
}

// Errores de storage.
var (
	ErrNotFound       = errors.New("storage: key not found")
	ErrEmptyNamespace = errors.New("storage: namespace is required")
	ErrClosed         = errors.New("storage: store closed")
)

// IsNotFound verifica si el error es porque la key no existe.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Driver identifica el backend.
type Driver string

const (
	DriverMemory Driver = "memory"
	DriverRedis  Driver = "redis"
	DriverBolt   Driver = "bolt"
	DriverFS     Driver = "fs"
)

// ParseDriver normaliza el nombre del driver; "" equivale a memory.
func ParseDriver(s string) (Driver, error) {
	switch d := Driver(strings.ToLower(strings.TrimSpace(s))); d {
	case "":
		return DriverMemory, nil
	case DriverMemory, DriverRedis, DriverBolt, DriverFS:
		return d, nil
	default:
		return "", fmt.Errorf("storage: unsupported driver %q", s)
	}
}

// Config configuración para abrir un Store.
type Config struct {
	Driver    Driver
	Namespace string

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	// Bolt.Path ruta del archivo .db.
	Bolt struct {
		Path string
	}

	// FS.Dir directorio donde vive <namespace>.json.
	FS struct {
		Dir string
	}
}

// PrefixedKey arma "namespace:key", la convención de los drivers planos.
func PrefixedKey(namespace, key string) string {
	if namespace == "" {
		return key
	}
	return namespace + ":" + key
}
