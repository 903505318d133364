package util

import "strings"

// MaskFingerprint acorta un fingerprint para logs: primeros 6 + "…" + últimos 4.
func MaskFingerprint(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(s) <= 12 {
		return "***"
	}
	return s[:6] + "…" + s[len(s)-4:]
}
