package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"mediaseal/internal/drm"
)

// EncryptionParams converts the [encryption] section into engine
// parameters. Hex fields are decoded here; malformed values fail the
// conversion, which Validate runs at load time.
func (c *Config) EncryptionParams() (drm.EncryptionParams, error) {
	enc := c.Encryption

	kind, err := drm.ParseKeyProviderKind(enc.Provider)
	if err != nil {
		return drm.EncryptionParams{}, err
	}

	var params drm.EncryptionParams
	switch kind {
	case drm.ProviderWidevine:
		payload, err := c.widevinePayload()
		if err != nil {
			return drm.EncryptionParams{}, err
		}
		params = drm.WidevineEncryption(payload)
	case drm.ProviderPlayReady:
		payload, err := c.playReadyPayload()
		if err != nil {
			return drm.EncryptionParams{}, err
		}
		params = drm.PlayReadyEncryption(payload)
	case drm.ProviderRawKey:
		payload, err := c.rawKeyPayload()
		if err != nil {
			return drm.EncryptionParams{}, err
		}
		params = drm.RawKeyEncryption(payload)
	default:
		return drm.EncryptionParams{}, fmt.Errorf("encryption.provider must be set (widevine, playready, or rawkey)")
	}

	scheme, err := drm.ParseProtectionScheme(enc.ProtectionScheme)
	if err != nil {
		return drm.EncryptionParams{}, err
	}
	params.Scheme = scheme
	params.ClearLead = secondsToDuration(enc.ClearLeadSeconds)
	params.CryptoPeriod = secondsToDuration(enc.CryptoPeriodSeconds)
	if enc.VP9SubsampleEnabled != nil {
		params.VP9SubsampleEnabled = *enc.VP9SubsampleEnabled
	}
	params.IncludeCommonPSSH = enc.IncludeCommonPSSH
	return params, nil
}

func (c *Config) widevinePayload() (drm.LicenseEncryptionParams, error) {
	wv := c.Encryption.Widevine

	contentID, err := decodeHexField("encryption.widevine.content_id", wv.ContentID)
	if err != nil {
		return drm.LicenseEncryptionParams{}, err
	}
	groupID, err := decodeHexField("encryption.widevine.group_id", wv.GroupID)
	if err != nil {
		return drm.LicenseEncryptionParams{}, err
	}
	signer, err := buildSigner("encryption.widevine.signer", wv.Signer)
	if err != nil {
		return drm.LicenseEncryptionParams{}, err
	}

	return drm.LicenseEncryptionParams{
		ServerURL: wv.ServerURL,
		ContentID: contentID,
		Policy:    wv.Policy,
		GroupID:   groupID,
		Signer:    signer,
	}, nil
}

func (c *Config) playReadyPayload() (drm.CertEncryptionParams, error) {
	pr := c.Encryption.PlayReady

	keyID, err := decodeHexField("encryption.playready.key_id", pr.KeyID)
	if err != nil {
		return drm.CertEncryptionParams{}, err
	}
	key, err := decodeHexField("encryption.playready.key", pr.Key)
	if err != nil {
		return drm.CertEncryptionParams{}, err
	}

	payload := drm.CertEncryptionParams{
		ServerURL:         pr.ServerURL,
		ProgramIdentifier: pr.ProgramIdentifier,
		ClientKeyPassword: pr.ClientKeyPassword,
		RawKeyID:          keyID,
		RawKey:            key,
	}
	for _, field := range []struct {
		name  string
		value string
		dest  *string
	}{
		{"encryption.playready.ca_file", pr.CAFile, &payload.CAFile},
		{"encryption.playready.client_cert_file", pr.ClientCertFile, &payload.ClientCertFile},
		{"encryption.playready.client_key_file", pr.ClientKeyFile, &payload.ClientKeyFile},
	} {
		if field.value == "" {
			continue
		}
		expanded, err := expandPath(field.value)
		if err != nil {
			return drm.CertEncryptionParams{}, fmt.Errorf("%s: %w", field.name, err)
		}
		*field.dest = expanded
	}
	return payload, nil
}

func (c *Config) rawKeyPayload() (drm.RawKeyEncryptionParams, error) {
	raw := c.Encryption.RawKey

	iv, err := decodeHexField("encryption.rawkey.iv", raw.IV)
	if err != nil {
		return drm.RawKeyEncryptionParams{}, err
	}
	pssh, err := decodeHexField("encryption.rawkey.pssh", raw.PSSH)
	if err != nil {
		return drm.RawKeyEncryptionParams{}, err
	}
	keyMap, err := buildKeyMap("encryption.rawkey.keys", raw.Keys, true)
	if err != nil {
		return drm.RawKeyEncryptionParams{}, err
	}

	return drm.RawKeyEncryptionParams{IV: iv, PSSH: pssh, KeyMap: keyMap}, nil
}

// DecryptionParams converts the [decryption] section into engine
// parameters.
func (c *Config) DecryptionParams() (drm.DecryptionParams, error) {
	dec := c.Decryption

	kind, err := drm.ParseKeyProviderKind(dec.Provider)
	if err != nil {
		return drm.DecryptionParams{}, err
	}

	switch kind {
	case drm.ProviderWidevine:
		signer, err := buildSigner("decryption.widevine.signer", dec.Widevine.Signer)
		if err != nil {
			return drm.DecryptionParams{}, err
		}
		return drm.WidevineDecryption(drm.LicenseDecryptionParams{
			ServerURL: dec.Widevine.ServerURL,
			Signer:    signer,
		}), nil
	case drm.ProviderRawKey:
		keyMap, err := buildKeyMap("decryption.rawkey.keys", dec.RawKey.Keys, false)
		if err != nil {
			return drm.DecryptionParams{}, err
		}
		return drm.RawKeyDecryption(drm.RawKeyDecryptionParams{KeyMap: keyMap}), nil
	}
	return drm.DecryptionParams{}, fmt.Errorf("decryption.provider must be set (widevine or rawkey)")
}

func buildSigner(section string, signer Signer) (drm.SignerCredential, error) {
	kind, err := drm.ParseSignerKind(signer.Kind)
	if err != nil {
		return drm.SignerCredential{}, fmt.Errorf("%s.kind: %w", section, err)
	}
	switch kind {
	case drm.SignerAES:
		key, err := decodeHexField(section+".aes_key", signer.AESKey)
		if err != nil {
			return drm.SignerCredential{}, err
		}
		iv, err := decodeHexField(section+".aes_iv", signer.AESIV)
		if err != nil {
			return drm.SignerCredential{}, err
		}
		return drm.NewAESSigner(signer.Name, key, iv), nil
	case drm.SignerRSA:
		path, err := expandPath(signer.RSAKeyFile)
		if err != nil {
			return drm.SignerCredential{}, fmt.Errorf("%s.rsa_key_file: %w", section, err)
		}
		pem, err := os.ReadFile(path)
		if err != nil {
			return drm.SignerCredential{}, fmt.Errorf("%s.rsa_key_file: %w", section, err)
		}
		return drm.NewRSASigner(signer.Name, string(pem)), nil
	}
	return drm.SignerCredential{}, nil
}

// buildKeyMap decodes key entries. requireDefault enforces an entry with
// an empty label so any stream label resolves to some key.
func buildKeyMap(section string, entries []RawKeyEntry, requireDefault bool) (map[string]drm.KeyPair, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%s must contain at least one entry", section)
	}
	keyMap := make(map[string]drm.KeyPair, len(entries))
	hasDefault := false
	for i, entry := range entries {
		keyID, err := decodeHexField(fmt.Sprintf("%s[%d].key_id", section, i), entry.KeyID)
		if err != nil {
			return nil, err
		}
		key, err := decodeHexField(fmt.Sprintf("%s[%d].key", section, i), entry.Key)
		if err != nil {
			return nil, err
		}
		if len(keyID) != 16 || len(key) != 16 {
			return nil, fmt.Errorf("%s[%d]: key_id and key must be 16 bytes of hex", section, i)
		}
		if _, dup := keyMap[entry.Label]; dup {
			return nil, fmt.Errorf("%s[%d]: duplicate label %q", section, i, entry.Label)
		}
		if entry.Label == "" {
			hasDefault = true
		}
		keyMap[entry.Label] = drm.KeyPair{KeyID: keyID, Key: key}
	}
	if requireDefault && !hasDefault && len(keyMap) < 2 {
		// A single labeled entry cannot cover other stream labels; require
		// the default so every label resolves.
		return nil, fmt.Errorf("%s must include a default entry with an empty label", section)
	}
	return keyMap, nil
}

func decodeHexField(name, value string) ([]byte, error) {
	if value == "" {
		return nil, nil
	}
	decoded, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid hex: %w", name, err)
	}
	return decoded, nil
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
