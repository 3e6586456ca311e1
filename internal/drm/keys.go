package drm

import (
	"bytes"
	"encoding/hex"
	"time"
)

// KeyPair couples a key identifier with its key material. Identity is the
// key ID; two pairs with equal IDs but different material indicate a
// provider bug (see ErrRotationConsistency).
type KeyPair struct {
	KeyID []byte
	Key   []byte
}

// Equal reports whether both the ID and the key material match.
func (k KeyPair) Equal(other KeyPair) bool {
	return bytes.Equal(k.KeyID, other.KeyID) && bytes.Equal(k.Key, other.Key)
}

// IsZero reports whether the pair carries no material at all.
func (k KeyPair) IsZero() bool {
	return len(k.KeyID) == 0 && len(k.Key) == 0
}

// Clone returns a deep copy so callers cannot mutate cached key material.
func (k KeyPair) Clone() KeyPair {
	return KeyPair{
		KeyID: bytes.Clone(k.KeyID),
		Key:   bytes.Clone(k.Key),
	}
}

// KeyIDHex renders the key ID for logs and audit records. Key material is
// deliberately never rendered.
func (k KeyPair) KeyIDHex() string {
	return hex.EncodeToString(k.KeyID)
}

// CryptoPeriod is a time-bounded epoch during which one key set is valid.
// Periods are immutable once created; rotation supersedes them with the
// next index rather than mutating them in place.
type CryptoPeriod struct {
	Index     int
	StartTime time.Duration
	Keys      map[string]KeyPair
}

// CloneKeys returns a deep copy of the period's key map.
func (p CryptoPeriod) CloneKeys() map[string]KeyPair {
	keys := make(map[string]KeyPair, len(p.Keys))
	for label, pair := range p.Keys {
		keys[label] = pair.Clone()
	}
	return keys
}
