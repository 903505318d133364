// Package signature valida que una app instalada esté firmada por una de las
// claves conocidas de la flota de brokers.
package signature

import (
	"context"
	"crypto/sha512"
	"encoding/base64"
	"strings"

	"github.com/dropDatabas3/brokerdisco/internal/broker"
	"github.com/dropDatabas3/brokerdisco/internal/observability/logger"
	"go.uber.org/zap"
)

// FingerprintSource devuelve los fingerprints del certificado de firma con el
// que está instalada una app hoy. Vacío si no está instalada.
type FingerprintSource interface {
	Fingerprints(ctx context.Context, appID string) ([]string, error)
}

// Fingerprint calcula el fingerprint de un certificado DER: SHA-512 en base64.
func Fingerprint(der []byte) string {
	sum := sha512.Sum512(der)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// Validator compara la firma instalada contra el CandidateSet confiable.
type Validator struct {
	trusted *broker.CandidateSet
	source  FingerprintSource
	log     *zap.Logger
}

// New crea un Validator. log puede ser nil.
func New(trusted *broker.CandidateSet, source FingerprintSource, log *zap.Logger) *Validator {
	return &Validator{trusted: trusted, source: source, log: logger.OrNamed(log, "signature")}
}

// IsSignedByKnownKey es true si id es una candidata confiable y la app
// instalada hoy está firmada con ese mismo fingerprint.
func (v *Validator) IsSignedByKnownKey(ctx context.Context, id broker.Identity) bool {
	expected, ok := v.trustedFingerprint(id)
	if !ok {
		v.log.Info("identity is not a trusted candidate", logger.Candidate(id.ApplicationID), logger.Fingerprint(id.SigningFingerprint))
		return false
	}
	return v.installedWith(ctx, id.ApplicationID, expected)
}

// Resolve devuelve la candidata confiable correspondiente a la app instalada
// appID, si su firma actual coincide con alguna conocida.
func (v *Validator) Resolve(ctx context.Context, appID string) (broker.Identity, bool) {
	for _, c := range v.trusted.Lookup(appID) {
		if v.installedWith(ctx, c.ApplicationID, c.SigningFingerprint) {
			return c.Identity, true
		}
	}
	return broker.Identity{}, false
}

// IsValidApplication es Resolve sin la identidad.
func (v *Validator) IsValidApplication(ctx context.Context, appID string) bool {
	_, ok := v.Resolve(ctx, appID)
	return ok
}

func (v *Validator) trustedFingerprint(id broker.Identity) (string, bool) {
	fp := strings.TrimSpace(id.SigningFingerprint)
	for _, c := range v.trusted.Lookup(id.ApplicationID) {
		if c.SigningFingerprint == fp {
			return fp, true
		}
	}
	return "", false
}

func (v *Validator) installedWith(ctx context.Context, appID, fingerprint string) bool {
	installed, err := v.source.Fingerprints(ctx, appID)
	if err != nil {
		v.log.Warn("could not read installed signature", logger.Candidate(appID), logger.Err(err))
		return false
	}
	for _, fp := range installed {
		if strings.TrimSpace(fp) == fingerprint {
			return true
		}
	}
	return false
}
