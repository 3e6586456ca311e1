package drm_test

import (
	"errors"
	"testing"

	"mediaseal/internal/drm"
)

func TestParseProtectionScheme(t *testing.T) {
	t.Parallel()

	for _, value := range []string{"cenc", "cbc1", "cens", "cbcs", " CBCS "} {
		if _, err := drm.ParseProtectionScheme(value); err != nil {
			t.Fatalf("ParseProtectionScheme(%q) returned error: %v", value, err)
		}
	}

	if _, err := drm.ParseProtectionScheme("cbc2"); !errors.Is(err, drm.ErrConfiguration) {
		t.Fatalf("expected configuration error for unknown scheme, got %v", err)
	}
}

func TestSchemeFourCC(t *testing.T) {
	t.Parallel()

	if got := drm.SchemeCENC.FourCC(); got != 0x63656E63 {
		t.Fatalf("cenc fourcc = %#x", got)
	}
	if got := drm.SchemeCBCS.FourCC(); got != 0x63626373 {
		t.Fatalf("cbcs fourcc = %#x", got)
	}
}

func TestEncryptionParamsUnionReadsOnlyMatchingPayload(t *testing.T) {
	t.Parallel()

	params := drm.RawKeyEncryption(drm.RawKeyEncryptionParams{
		KeyMap: map[string]drm.KeyPair{"": {KeyID: []byte("0123456789abcdef"), Key: []byte("fedcba9876543210")}},
	})

	if params.Provider() != drm.ProviderRawKey {
		t.Fatalf("provider = %s", params.Provider())
	}
	if _, ok := params.Widevine(); ok {
		t.Fatal("widevine payload must not be readable for a raw key job")
	}
	if _, ok := params.PlayReady(); ok {
		t.Fatal("playready payload must not be readable for a raw key job")
	}
	if _, ok := params.RawKey(); !ok {
		t.Fatal("raw key payload missing")
	}
	if err := params.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejectsMixedPlayReadyRawFields(t *testing.T) {
	t.Parallel()

	params := drm.PlayReadyEncryption(drm.CertEncryptionParams{
		RawKeyID: []byte("0123456789abcdef"),
	})
	err := params.Validate()
	if !errors.Is(err, drm.ErrConfiguration) {
		t.Fatalf("expected configuration error for key id without key, got %v", err)
	}
}

func TestValidateRejectsEmptyRawKeyMap(t *testing.T) {
	t.Parallel()

	params := drm.RawKeyEncryption(drm.RawKeyEncryptionParams{})
	if err := params.Validate(); !errors.Is(err, drm.ErrConfiguration) {
		t.Fatalf("expected configuration error for empty key map, got %v", err)
	}
}

func TestValidateRejectsNoneProvider(t *testing.T) {
	t.Parallel()

	var params drm.EncryptionParams
	params.Scheme = drm.SchemeCENC
	if err := params.Validate(); !errors.Is(err, drm.ErrConfiguration) {
		t.Fatalf("expected configuration error for provider none, got %v", err)
	}
}

func TestSignerCredentialValidate(t *testing.T) {
	t.Parallel()

	var none drm.SignerCredential
	if err := none.Validate(); !errors.Is(err, drm.ErrConfiguration) {
		t.Fatalf("expected configuration error for signer none, got %v", err)
	}

	aes := drm.NewAESSigner("studio", []byte("sixteen byte key"), []byte("sixteen byte ivs"))
	if err := aes.Validate(); err != nil {
		t.Fatalf("aes signer should validate: %v", err)
	}
	if _, ok := aes.RSA(); ok {
		t.Fatal("rsa payload must not be readable from an aes signer")
	}

	missingIV := drm.NewAESSigner("studio", []byte("sixteen byte key"), nil)
	if err := missingIV.Validate(); !errors.Is(err, drm.ErrConfiguration) {
		t.Fatalf("expected configuration error for missing iv, got %v", err)
	}
}

func TestWidevineEncryptionRequiresSigner(t *testing.T) {
	t.Parallel()

	params := drm.WidevineEncryption(drm.LicenseEncryptionParams{ServerURL: "https://license.example.com"})
	if err := params.Validate(); !errors.Is(err, drm.ErrConfiguration) {
		t.Fatalf("expected configuration error for missing signer, got %v", err)
	}
}

func TestKeyPairClone(t *testing.T) {
	t.Parallel()

	pair := drm.KeyPair{KeyID: []byte{1, 2}, Key: []byte{3, 4}}
	clone := pair.Clone()
	clone.KeyID[0] = 9
	if pair.KeyID[0] != 1 {
		t.Fatal("Clone must not share backing storage")
	}
	if !pair.Equal(drm.KeyPair{KeyID: []byte{1, 2}, Key: []byte{3, 4}}) {
		t.Fatal("Equal mismatch")
	}
}
