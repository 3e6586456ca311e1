package drm

import (
	"fmt"
	"strings"
)

// ProtectionScheme identifies the common-encryption scheme applied to
// samples. Exactly four values are valid; anything else is rejected at
// configuration load.
type ProtectionScheme string

const (
	SchemeCENC ProtectionScheme = "cenc"
	SchemeCBC1 ProtectionScheme = "cbc1"
	SchemeCENS ProtectionScheme = "cens"
	SchemeCBCS ProtectionScheme = "cbcs"
)

var allSchemes = []ProtectionScheme{SchemeCENC, SchemeCBC1, SchemeCENS, SchemeCBCS}

// ParseProtectionScheme validates a scheme identifier from configuration.
func ParseProtectionScheme(value string) (ProtectionScheme, error) {
	scheme := ProtectionScheme(strings.ToLower(strings.TrimSpace(value)))
	for _, known := range allSchemes {
		if scheme == known {
			return scheme, nil
		}
	}
	return "", fmt.Errorf("%w: unknown protection scheme %q (expected cenc, cbc1, cens, or cbcs)", ErrConfiguration, value)
}

// FourCC returns the scheme's box identifier for container-level protection
// metadata.
func (s ProtectionScheme) FourCC() uint32 {
	if len(s) != 4 {
		return 0
	}
	return uint32(s[0])<<24 | uint32(s[1])<<16 | uint32(s[2])<<8 | uint32(s[3])
}

func (s ProtectionScheme) String() string { return string(s) }

// IsCBC reports whether the scheme uses CBC block chaining rather than CTR.
func (s ProtectionScheme) IsCBC() bool {
	return s == SchemeCBC1 || s == SchemeCBCS
}

// IsPattern reports whether the scheme uses pattern (subsample) encryption.
func (s ProtectionScheme) IsPattern() bool {
	return s == SchemeCENS || s == SchemeCBCS
}
