// Package device derives stable device descriptors from client signals.
// The display name is cosmetic; the fingerprint is a resolution key and must
// stay deterministic for one device across minor browser updates.
package device

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mssola/useragent"
)

// Service computes device fingerprints. Disabled mode returns empty
// fingerprints so resolution falls through to token-or-create.
type Service struct {
	enabled bool
}

func NewService(enabled bool) *Service {
	return &Service{enabled: enabled}
}

// ParseUserAgent produces a human label like "Chrome on Mac OS X" for the
// operator console and the identity's device record.
func ParseUserAgent(rawUA string) string {
	if rawUA == "" {
		return "Unknown Device"
	}
	ua := useragent.New(rawUA)
	browser, _ := ua.Browser()
	if browser == "" {
		browser = "Unknown Browser"
	}
	os := ua.OSInfo().Name
	if os == "" {
		os = ua.Platform()
	}
	if os == "" {
		os = "Unknown OS"
	}
	return strings.TrimSpace(fmt.Sprintf("%s on %s", browser, os))
}

// HashFingerprint hashes a raw client-supplied fingerprint. The raw value is
// never persisted; only this hash is stored and compared.
func HashFingerprint(raw string) string {
	if raw == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// ComputeFingerprint derives a fallback fingerprint from the User-Agent when
// the client sent none. Only the browser name, major version, and OS feed the
// hash, so minor version bumps keep the same key while a browser or OS change
// produces a new one.
func (s *Service) ComputeFingerprint(rawUA string) string {
	if !s.enabled || rawUA == "" {
		return ""
	}
	ua := useragent.New(rawUA)
	browser, version := ua.Browser()
	major := version
	if idx := strings.Index(version, "."); idx > 0 {
		major = version[:idx]
	}
	os := ua.OSInfo().Name

	material := strings.ToLower(strings.Join([]string{browser, major, os}, "|"))
	sum := sha256.Sum256([]byte(material))
	return hex.EncodeToString(sum[:])
}
