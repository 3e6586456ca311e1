package crypt_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"mediaseal/internal/crypt"
	"mediaseal/internal/drm"
	"mediaseal/internal/logging"
)

// countingFetcher resolves a single key pair and counts lookups.
type countingFetcher struct {
	pair drm.KeyPair

	mu    sync.Mutex
	calls int
}

func (f *countingFetcher) FetchKeyByID(ctx context.Context, keyID []byte) (drm.KeyPair, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if !bytes.Equal(keyID, f.pair.KeyID) {
		return drm.KeyPair{}, drm.Wrap(drm.ErrUnknownKeyID, "test", "fetch", "no such key", nil)
	}
	return f.pair.Clone(), nil
}

func (f *countingFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func decryptionParams() drm.DecryptionParams {
	return drm.RawKeyDecryption(drm.RawKeyDecryptionParams{
		KeyMap: map[string]drm.KeyPair{
			"": {KeyID: []byte("0123456789abcdef"), Key: []byte("fedcba9876543210")},
		},
	})
}

func TestKeyForIDCachesLookups(t *testing.T) {
	t.Parallel()

	fetcher := &countingFetcher{pair: drm.KeyPair{
		KeyID: []byte("0123456789abcdef"),
		Key:   []byte("fedcba9876543210"),
	}}
	dec, err := crypt.NewDecryptor(decryptionParams(),
		crypt.WithKeyFetcher(fetcher),
		crypt.WithDecryptorLogger(logging.NewNop()),
	)
	if err != nil {
		t.Fatalf("NewDecryptor: %v", err)
	}

	for i := 0; i < 3; i++ {
		pair, err := dec.KeyForID(context.Background(), []byte("0123456789abcdef"))
		if err != nil {
			t.Fatalf("KeyForID: %v", err)
		}
		if !bytes.Equal(pair.Key, []byte("fedcba9876543210")) {
			t.Fatalf("unexpected key material %x", pair.Key)
		}
	}
	if fetcher.Calls() != 1 {
		t.Fatalf("expected a single provider lookup, got %d", fetcher.Calls())
	}
}

func TestUnknownKeyIDFailsSampleOnly(t *testing.T) {
	t.Parallel()

	dec, err := crypt.NewDecryptor(decryptionParams(), crypt.WithDecryptorLogger(logging.NewNop()))
	if err != nil {
		t.Fatalf("NewDecryptor: %v", err)
	}

	_, err = dec.DecryptSample(context.Background(), crypt.EncryptedSample{
		KeyID:  []byte("unknown-key-id--"),
		IV:     []byte("fedcba9876543210"),
		Codec:  "aac",
		Scheme: drm.SchemeCENC,
		Data:   []byte("payload"),
	})
	if !errors.Is(err, drm.ErrUnknownKeyID) {
		t.Fatalf("expected ErrUnknownKeyID, got %v", err)
	}

	// The decryptor stays usable for keys it does know.
	if _, err := dec.KeyForID(context.Background(), []byte("0123456789abcdef")); err != nil {
		t.Fatalf("KeyForID after failure: %v", err)
	}
}

func TestDecryptorRequiresProvider(t *testing.T) {
	t.Parallel()

	if _, err := crypt.NewDecryptor(drm.DecryptionParams{}); !errors.Is(err, drm.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
