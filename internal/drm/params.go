package drm

import (
	"fmt"
	"strings"
	"time"
)

// KeyProviderKind selects the key provider backing a job. Exactly one
// provider payload is valid per configuration.
type KeyProviderKind string

const (
	ProviderNone      KeyProviderKind = "none"
	ProviderWidevine  KeyProviderKind = "widevine"
	ProviderPlayReady KeyProviderKind = "playready"
	ProviderRawKey    KeyProviderKind = "rawkey"
)

// ParseKeyProviderKind validates a provider identifier from configuration.
func ParseKeyProviderKind(value string) (KeyProviderKind, error) {
	kind := KeyProviderKind(strings.ToLower(strings.TrimSpace(value)))
	switch kind {
	case ProviderNone, ProviderWidevine, ProviderPlayReady, ProviderRawKey:
		return kind, nil
	case "":
		return ProviderNone, nil
	}
	return "", fmt.Errorf("%w: unknown key provider %q (expected widevine, playready, or rawkey)", ErrConfiguration, value)
}

func (k KeyProviderKind) String() string { return string(k) }

// LicenseEncryptionParams configures the license-server-backed (Widevine)
// provider.
type LicenseEncryptionParams struct {
	ServerURL string
	ContentID []byte
	Policy    string
	GroupID   []byte
	Signer    SignerCredential
}

// CertEncryptionParams configures the certificate-based (PlayReady)
// provider. Two modes exist: server mode (ServerURL plus
// ProgramIdentifier, authenticated with the client certificate files) and
// direct mode (RawKeyID plus RawKey, no network). Mixed presence of the
// raw fields is a configuration error.
type CertEncryptionParams struct {
	ServerURL         string
	ProgramIdentifier string
	CAFile            string
	ClientCertFile    string
	ClientKeyFile     string
	ClientKeyPassword string
	RawKeyID          []byte
	RawKey            []byte
}

// DirectMode reports whether the raw key pair is configured.
func (p CertEncryptionParams) DirectMode() bool {
	return len(p.RawKeyID) > 0 && len(p.RawKey) > 0
}

// RawKeyEncryptionParams configures the static key provider. The empty
// stream label, when present, is the default entry applied to any label
// absent from the map.
type RawKeyEncryptionParams struct {
	// IV is optional; when absent a random IV is generated per job.
	IV []byte
	// PSSH injects caller-supplied raw PSSH bytes, possibly several
	// concatenated payloads. Emitted verbatim and exclusively: no
	// common-system payload is added alongside it.
	PSSH   []byte
	KeyMap map[string]KeyPair
}

// EncryptionParams is the full encryption configuration for one packaging
// job. The provider payload is a tagged union: construct values through
// WidevineEncryption, PlayReadyEncryption, or RawKeyEncryption and only the
// matching payload is ever readable. The exported knobs apply to every
// provider.
type EncryptionParams struct {
	kind      KeyProviderKind
	widevine  *LicenseEncryptionParams
	playready *CertEncryptionParams
	rawKey    *RawKeyEncryptionParams

	// ClearLead is the initial unencrypted window for fast start.
	ClearLead time.Duration
	// Scheme is the protection scheme applied to samples.
	Scheme ProtectionScheme
	// CryptoPeriod enables key rotation when positive; zero disables it.
	CryptoPeriod time.Duration
	// VP9SubsampleEnabled permits subsample framing for VP9 superframes.
	VP9SubsampleEnabled bool
	// IncludeCommonPSSH additionally emits a common-system PSSH payload
	// ahead of the provider-specific one.
	IncludeCommonPSSH bool
}

// WidevineEncryption builds encryption parameters backed by a Widevine
// license server.
func WidevineEncryption(p LicenseEncryptionParams) EncryptionParams {
	return EncryptionParams{kind: ProviderWidevine, widevine: &p, Scheme: SchemeCENC, VP9SubsampleEnabled: true}
}

// PlayReadyEncryption builds encryption parameters backed by a PlayReady
// key server or a directly configured key.
func PlayReadyEncryption(p CertEncryptionParams) EncryptionParams {
	return EncryptionParams{kind: ProviderPlayReady, playready: &p, Scheme: SchemeCENC, VP9SubsampleEnabled: true}
}

// RawKeyEncryption builds encryption parameters from static keys.
func RawKeyEncryption(p RawKeyEncryptionParams) EncryptionParams {
	return EncryptionParams{kind: ProviderRawKey, rawKey: &p, Scheme: SchemeCENC, VP9SubsampleEnabled: true}
}

// Provider returns the configured provider kind.
func (p EncryptionParams) Provider() KeyProviderKind {
	if p.kind == "" {
		return ProviderNone
	}
	return p.kind
}

// Widevine returns the license-server payload when that provider is
// selected.
func (p EncryptionParams) Widevine() (LicenseEncryptionParams, bool) {
	if p.kind != ProviderWidevine || p.widevine == nil {
		return LicenseEncryptionParams{}, false
	}
	return *p.widevine, true
}

// PlayReady returns the certificate-based payload when that provider is
// selected.
func (p EncryptionParams) PlayReady() (CertEncryptionParams, bool) {
	if p.kind != ProviderPlayReady || p.playready == nil {
		return CertEncryptionParams{}, false
	}
	return *p.playready, true
}

// RawKey returns the static-key payload when that provider is selected.
func (p EncryptionParams) RawKey() (RawKeyEncryptionParams, bool) {
	if p.kind != ProviderRawKey || p.rawKey == nil {
		return RawKeyEncryptionParams{}, false
	}
	return *p.rawKey, true
}

// Validate ensures the parameters are usable. Every check here runs at job
// setup; a params value that passes Validate cannot fail configuration
// checks later at sample time.
func (p EncryptionParams) Validate() error {
	if p.ClearLead < 0 {
		return Wrap(ErrConfiguration, "encryption", "validate", "clear lead must not be negative", nil)
	}
	if p.CryptoPeriod < 0 {
		return Wrap(ErrConfiguration, "encryption", "validate", "crypto period must not be negative", nil)
	}
	if _, err := ParseProtectionScheme(string(p.Scheme)); err != nil {
		return err
	}

	switch p.Provider() {
	case ProviderWidevine:
		params, _ := p.Widevine()
		if strings.TrimSpace(params.ServerURL) == "" {
			return Wrap(ErrConfiguration, "widevine", "validate", "server url is required", nil)
		}
		if err := params.Signer.Validate(); err != nil {
			return err
		}
	case ProviderPlayReady:
		params, _ := p.PlayReady()
		return validateCertParams(params)
	case ProviderRawKey:
		params, _ := p.RawKey()
		if len(params.KeyMap) == 0 {
			return Wrap(ErrConfiguration, "rawkey", "validate", "key map must contain at least one entry", nil)
		}
		for label, pair := range params.KeyMap {
			if len(pair.KeyID) == 0 || len(pair.Key) == 0 {
				return Wrap(ErrConfiguration, "rawkey", "validate", fmt.Sprintf("key map entry %q is missing key id or key", label), nil)
			}
		}
	default:
		return Wrap(ErrConfiguration, "encryption", "validate", "a key provider is required", nil)
	}
	return nil
}

func validateCertParams(params CertEncryptionParams) error {
	rawID := len(params.RawKeyID) > 0
	rawKey := len(params.RawKey) > 0
	if rawID != rawKey {
		return Wrap(ErrConfiguration, "playready", "validate", "raw key id and raw key must be provided together", nil)
	}
	if rawID {
		return nil
	}
	if strings.TrimSpace(params.ServerURL) == "" {
		return Wrap(ErrConfiguration, "playready", "validate", "server url is required in server mode", nil)
	}
	if strings.TrimSpace(params.ProgramIdentifier) == "" {
		return Wrap(ErrConfiguration, "playready", "validate", "program identifier is required in server mode", nil)
	}
	if strings.TrimSpace(params.ClientCertFile) == "" || strings.TrimSpace(params.ClientKeyFile) == "" {
		return Wrap(ErrConfiguration, "playready", "validate", "client certificate and key files are required in server mode", nil)
	}
	return nil
}

// LicenseDecryptionParams configures key-by-ID lookups against a license
// server.
type LicenseDecryptionParams struct {
	ServerURL string
	Signer    SignerCredential
}

// RawKeyDecryptionParams configures static decryption keys, indexed by key
// ID rather than stream label.
type RawKeyDecryptionParams struct {
	KeyMap map[string]KeyPair
}

// DecryptionParams mirrors EncryptionParams for the decryption path.
type DecryptionParams struct {
	kind     KeyProviderKind
	widevine *LicenseDecryptionParams
	rawKey   *RawKeyDecryptionParams
}

// WidevineDecryption builds decryption parameters backed by a license
// server.
func WidevineDecryption(p LicenseDecryptionParams) DecryptionParams {
	return DecryptionParams{kind: ProviderWidevine, widevine: &p}
}

// RawKeyDecryption builds decryption parameters from static keys.
func RawKeyDecryption(p RawKeyDecryptionParams) DecryptionParams {
	return DecryptionParams{kind: ProviderRawKey, rawKey: &p}
}

// Provider returns the configured provider kind.
func (p DecryptionParams) Provider() KeyProviderKind {
	if p.kind == "" {
		return ProviderNone
	}
	return p.kind
}

// Widevine returns the license-server payload when that provider is
// selected.
func (p DecryptionParams) Widevine() (LicenseDecryptionParams, bool) {
	if p.kind != ProviderWidevine || p.widevine == nil {
		return LicenseDecryptionParams{}, false
	}
	return *p.widevine, true
}

// RawKey returns the static-key payload when that provider is selected.
func (p DecryptionParams) RawKey() (RawKeyDecryptionParams, bool) {
	if p.kind != ProviderRawKey || p.rawKey == nil {
		return RawKeyDecryptionParams{}, false
	}
	return *p.rawKey, true
}

// Validate ensures the decryption parameters are usable.
func (p DecryptionParams) Validate() error {
	switch p.Provider() {
	case ProviderWidevine:
		params, _ := p.Widevine()
		if strings.TrimSpace(params.ServerURL) == "" {
			return Wrap(ErrConfiguration, "widevine", "validate", "server url is required", nil)
		}
		return params.Signer.Validate()
	case ProviderRawKey:
		params, _ := p.RawKey()
		if len(params.KeyMap) == 0 {
			return Wrap(ErrConfiguration, "rawkey", "validate", "key map must contain at least one entry", nil)
		}
		return nil
	}
	return Wrap(ErrConfiguration, "decryption", "validate", "a key provider is required", nil)
}
