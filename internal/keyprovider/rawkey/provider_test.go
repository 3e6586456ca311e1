package rawkey_test

import (
	"context"
	"errors"
	"testing"

	"mediaseal/internal/drm"
	"mediaseal/internal/keyprovider/rawkey"
)

func TestFetchInitialKeysDefaultEntryFallback(t *testing.T) {
	t.Parallel()

	provider, err := rawkey.New(drm.RawKeyEncryptionParams{
		KeyMap: map[string]drm.KeyPair{
			"": {KeyID: []byte("default-key-id--"), Key: []byte("default-key-----")},
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	keys, err := provider.FetchInitialKeys(context.Background(), []string{"SD", "HD", "AUDIO-STEREO"})
	if err != nil {
		t.Fatalf("FetchInitialKeys: %v", err)
	}
	for _, label := range []string{"SD", "HD", "AUDIO-STEREO"} {
		pair, ok := keys[label]
		if !ok {
			t.Fatalf("missing key for label %q", label)
		}
		if string(pair.KeyID) != "default-key-id--" {
			t.Fatalf("label %q did not resolve to the default entry", label)
		}
	}
}

func TestFetchInitialKeysPrefersExactLabel(t *testing.T) {
	t.Parallel()

	provider, err := rawkey.New(drm.RawKeyEncryptionParams{
		KeyMap: map[string]drm.KeyPair{
			"":   {KeyID: []byte("default-key-id--"), Key: []byte("default-key-----")},
			"HD": {KeyID: []byte("hd-key-id-------"), Key: []byte("hd-key----------")},
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	keys, err := provider.FetchInitialKeys(context.Background(), []string{"HD", "SD"})
	if err != nil {
		t.Fatalf("FetchInitialKeys: %v", err)
	}
	if string(keys["HD"].KeyID) != "hd-key-id-------" {
		t.Fatal("HD label must resolve to its own entry")
	}
	if string(keys["SD"].KeyID) != "default-key-id--" {
		t.Fatal("SD label must resolve to the default entry")
	}
}

func TestFetchInitialKeysMissingLabelNoDefault(t *testing.T) {
	t.Parallel()

	provider, err := rawkey.New(drm.RawKeyEncryptionParams{
		KeyMap: map[string]drm.KeyPair{
			"HD": {KeyID: []byte("hd-key-id-------"), Key: []byte("hd-key----------")},
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := provider.FetchInitialKeys(context.Background(), []string{"SD"}); !errors.Is(err, drm.ErrKeyProvider) {
		t.Fatalf("expected key provider error, got %v", err)
	}
}

func TestDecryptionFetchKeyByID(t *testing.T) {
	t.Parallel()

	fetcher, err := rawkey.NewDecryption(drm.RawKeyDecryptionParams{
		KeyMap: map[string]drm.KeyPair{
			"": {KeyID: []byte("0123456789abcdef"), Key: []byte("fedcba9876543210")},
		},
	})
	if err != nil {
		t.Fatalf("NewDecryption: %v", err)
	}

	pair, err := fetcher.FetchKeyByID(context.Background(), []byte("0123456789abcdef"))
	if err != nil {
		t.Fatalf("FetchKeyByID: %v", err)
	}
	if string(pair.Key) != "fedcba9876543210" {
		t.Fatalf("unexpected key %q", pair.Key)
	}

	if _, err := fetcher.FetchKeyByID(context.Background(), []byte("unknown-key-id--")); !errors.Is(err, drm.ErrUnknownKeyID) {
		t.Fatalf("expected unknown key id error, got %v", err)
	}
}
