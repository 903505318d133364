// Package device describe el estado del dispositivo que consume el motor de
// descubrimiento: apps instaladas (versión, habilitada, firma) y el registro
// de cuentas. Se carga desde un archivo YAML para que el CLI pueda correr el
// algoritmo completo sin un sistema operativo real detrás.
package device

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"sync"

	"github.com/dropDatabas3/brokerdisco/internal/accounts"
	"github.com/dropDatabas3/brokerdisco/internal/broker"
	"github.com/dropDatabas3/brokerdisco/internal/signature"
	"gopkg.in/yaml.v3"
)

// App es una app instalada.
type App struct {
	AppID   string `yaml:"app_id"`
	Version string `yaml:"version"`
	Enabled *bool  `yaml:"enabled"`

	// Fingerprint o Certificate (DER en base64); si están ambos gana Fingerprint.
	Fingerprint string `yaml:"fingerprint"`
	Certificate string `yaml:"certificate"`
}

// AccountEntry es un autenticador registrado, con la respuesta que da a addAccount.
type AccountEntry struct {
	accounts.Authenticator `yaml:",inline"`
	Reply                  map[string]string `yaml:"reply"`
}

// File es el formato del archivo.
type File struct {
	Apps     []App          `yaml:"apps"`
	Accounts []AccountEntry `yaml:"accounts"`
}

type appState struct {
	version     string
	enabled     bool
	fingerprint string
}

// Snapshot implementa los colaboradores del dispositivo sobre un File.
// Es seguro para uso concurrente.
type Snapshot struct {
	*accounts.Static

	mu   sync.RWMutex
	apps map[string]appState
}

// Load lee y parsea path.
func Load(path string) (*Snapshot, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("device: read %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("device: parse %s: %w", path, err)
	}
	return FromFile(f)
}

// FromFile construye un Snapshot.
func FromFile(f File) (*Snapshot, error) {
	s := New()
	for _, a := range f.Apps {
		if a.AppID == "" {
			return nil, fmt.Errorf("device: app without app_id")
		}
		fp := a.Fingerprint
		if fp == "" && a.Certificate != "" {
			der, err := base64.StdEncoding.DecodeString(a.Certificate)
			if err != nil {
				return nil, fmt.Errorf("device: certificate of %s: %w", a.AppID, err)
			}
			fp = signature.Fingerprint(der)
		}
		enabled := a.Enabled == nil || *a.Enabled
		s.Install(a.AppID, a.Version, fp, enabled)
	}
	for _, e := range f.Accounts {
		s.Register(e.Authenticator)
		if len(e.Reply) > 0 {
			s.Respond(e.Type, broker.Payload(e.Reply))
		}
	}
	return s, nil
}

// New crea un Snapshot vacío.
func New() *Snapshot {
	return &Snapshot{Static: accounts.NewStatic(), apps: map[string]appState{}}
}

// Install agrega o reemplaza una app.
func (s *Snapshot) Install(appID, version, fingerprint string, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apps[broker.NormalizeAppID(appID)] = appState{version: version, enabled: enabled, fingerprint: fingerprint}
}

// Uninstall elimina una app.
func (s *Snapshot) Uninstall(appID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.apps, broker.NormalizeAppID(appID))
}

func (s *Snapshot) app(appID string) (appState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.apps[broker.NormalizeAppID(appID)]
	return a, ok
}

// IsInstalledAndEnabled solo mira el application id; la firma la valida el
// paquete signature.
func (s *Snapshot) IsInstalledAndEnabled(_ context.Context, id broker.Identity) bool {
	a, ok := s.app(id.ApplicationID)
	return ok && a.enabled
}

// Version implementa transport.Versions.
func (s *Snapshot) Version(_ context.Context, appID string) (string, bool) {
	a, ok := s.app(appID)
	if !ok {
		return "", false
	}
	return a.version, true
}

// Fingerprints implementa signature.FingerprintSource.
func (s *Snapshot) Fingerprints(_ context.Context, appID string) ([]string, error) {
	a, ok := s.app(appID)
	if !ok || a.fingerprint == "" {
		return nil, nil
	}
	return []string{a.fingerprint}, nil
}
