package drm

import (
	"bytes"
	"fmt"
	"strings"
)

// SignerKind selects the credential type used to authenticate license
// server requests.
type SignerKind string

const (
	SignerNone SignerKind = "none"
	SignerAES  SignerKind = "aes"
	SignerRSA  SignerKind = "rsa"
)

// ParseSignerKind validates a signer kind from configuration.
func ParseSignerKind(value string) (SignerKind, error) {
	kind := SignerKind(strings.ToLower(strings.TrimSpace(value)))
	switch kind {
	case SignerNone, SignerAES, SignerRSA:
		return kind, nil
	case "":
		return SignerNone, nil
	}
	return "", fmt.Errorf("%w: unknown signing key type %q (expected aes or rsa)", ErrConfiguration, value)
}

// AESSignerKey carries AES-CBC signing material.
type AESSignerKey struct {
	Key []byte
	IV  []byte
}

// RSASignerKey carries a PEM-encoded RSA private key.
type RSASignerKey struct {
	PrivateKeyPEM string
}

// SignerCredential authenticates a signer with a license-backed provider.
// Exactly one payload shape exists per kind; construct values through
// NewAESSigner or NewRSASigner so a populated payload can never coexist
// with kind none.
type SignerCredential struct {
	// Name identifies the signer / content provider with the server.
	Name string

	kind SignerKind
	aes  *AESSignerKey
	rsa  *RSASignerKey
}

// NewAESSigner builds an AES-CBC signing credential.
func NewAESSigner(name string, key, iv []byte) SignerCredential {
	return SignerCredential{
		Name: name,
		kind: SignerAES,
		aes:  &AESSignerKey{Key: bytes.Clone(key), IV: bytes.Clone(iv)},
	}
}

// NewRSASigner builds an RSA signing credential from a PEM private key.
func NewRSASigner(name, privateKeyPEM string) SignerCredential {
	return SignerCredential{
		Name: name,
		kind: SignerRSA,
		rsa:  &RSASignerKey{PrivateKeyPEM: privateKeyPEM},
	}
}

// Kind returns the credential type. The zero value reports SignerNone.
func (c SignerCredential) Kind() SignerKind {
	if c.kind == "" {
		return SignerNone
	}
	return c.kind
}

// AES returns the AES payload when the credential is AES-typed.
func (c SignerCredential) AES() (AESSignerKey, bool) {
	if c.kind != SignerAES || c.aes == nil {
		return AESSignerKey{}, false
	}
	return *c.aes, true
}

// RSA returns the RSA payload when the credential is RSA-typed.
func (c SignerCredential) RSA() (RSASignerKey, bool) {
	if c.kind != SignerRSA || c.rsa == nil {
		return RSASignerKey{}, false
	}
	return *c.rsa, true
}

// Validate ensures the credential is usable where one is required.
func (c SignerCredential) Validate() error {
	switch c.Kind() {
	case SignerAES:
		key, _ := c.AES()
		if len(key.Key) == 0 {
			return Wrap(ErrConfiguration, "signer", "validate", "aes signing key is empty", nil)
		}
		if len(key.IV) == 0 {
			return Wrap(ErrConfiguration, "signer", "validate", "aes signing iv is empty", nil)
		}
	case SignerRSA:
		key, _ := c.RSA()
		if strings.TrimSpace(key.PrivateKeyPEM) == "" {
			return Wrap(ErrConfiguration, "signer", "validate", "rsa private key is empty", nil)
		}
	default:
		return Wrap(ErrConfiguration, "signer", "validate", "a signing credential is required", nil)
	}
	if strings.TrimSpace(c.Name) == "" {
		return Wrap(ErrConfiguration, "signer", "validate", "signer name is required", nil)
	}
	return nil
}
