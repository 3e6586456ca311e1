package widevine_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"mediaseal/internal/drm"
	"mediaseal/internal/keyprovider/widevine"
)

func testSigner() drm.SignerCredential {
	return drm.NewAESSigner("studio", []byte("0123456789abcdef0123456789abcdef"), []byte("0123456789abcdef"))
}

func TestNewRequiresServerURL(t *testing.T) {
	t.Parallel()

	_, err := widevine.New(drm.LicenseEncryptionParams{Signer: testSigner()})
	if !errors.Is(err, drm.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestNewRequiresSigner(t *testing.T) {
	t.Parallel()

	_, err := widevine.New(drm.LicenseEncryptionParams{ServerURL: "https://license.example.com"})
	if !errors.Is(err, drm.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestFetchInitialKeysSendsSignedEnvelope(t *testing.T) {
	t.Parallel()

	keyID := base64.StdEncoding.EncodeToString([]byte("hd-key-id-------"))
	key := base64.StdEncoding.EncodeToString([]byte("hd-key----------"))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read request: %v", err)
		}
		var envelope struct {
			Request   string `json:"request"`
			Signature string `json:"signature"`
			Signer    string `json:"signer"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			t.Fatalf("unmarshal envelope: %v", err)
		}
		if envelope.Signer != "studio" {
			t.Fatalf("unexpected signer %q", envelope.Signer)
		}
		if envelope.Signature == "" {
			t.Fatal("expected a signature")
		}
		payload, err := base64.StdEncoding.DecodeString(envelope.Request)
		if err != nil {
			t.Fatalf("decode request payload: %v", err)
		}
		var request struct {
			ContentID string `json:"content_id"`
			Policy    string `json:"policy"`
			Tracks    []struct {
				Type string `json:"type"`
			} `json:"tracks"`
		}
		if err := json.Unmarshal(payload, &request); err != nil {
			t.Fatalf("unmarshal request payload: %v", err)
		}
		if request.Policy != "default" {
			t.Fatalf("unexpected policy %q", request.Policy)
		}
		if len(request.Tracks) != 1 || request.Tracks[0].Type != "HD" {
			t.Fatalf("unexpected tracks %+v", request.Tracks)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"OK","tracks":[{"type":"HD","key_id":"` + keyID + `","key":"` + key + `"}]}`))
	}))
	t.Cleanup(server.Close)

	client, err := widevine.New(drm.LicenseEncryptionParams{
		ServerURL: server.URL,
		ContentID: []byte("content"),
		Policy:    "default",
		Signer:    testSigner(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	keys, err := client.FetchInitialKeys(context.Background(), []string{"HD"})
	if err != nil {
		t.Fatalf("FetchInitialKeys: %v", err)
	}
	if string(keys["HD"].KeyID) != "hd-key-id-------" {
		t.Fatalf("unexpected key id %q", keys["HD"].KeyID)
	}
}

func TestFetchKeysForPeriodIncludesIndex(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var envelope struct {
			Request string `json:"request"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			t.Fatalf("unmarshal envelope: %v", err)
		}
		payload, _ := base64.StdEncoding.DecodeString(envelope.Request)
		var request struct {
			FirstCryptoPeriodIndex *int `json:"first_crypto_period_index"`
			CryptoPeriodCount      int  `json:"crypto_period_count"`
		}
		if err := json.Unmarshal(payload, &request); err != nil {
			t.Fatalf("unmarshal request payload: %v", err)
		}
		if request.FirstCryptoPeriodIndex == nil || *request.FirstCryptoPeriodIndex != 7 {
			t.Fatalf("expected crypto period index 7, got %+v", request.FirstCryptoPeriodIndex)
		}
		if request.CryptoPeriodCount != 1 {
			t.Fatalf("expected crypto period count 1, got %d", request.CryptoPeriodCount)
		}

		keyID := base64.StdEncoding.EncodeToString([]byte("p7-key-id-------"))
		key := base64.StdEncoding.EncodeToString([]byte("p7-key----------"))
		_, _ = w.Write([]byte(`{"status":"OK","tracks":[{"type":"SD","key_id":"` + keyID + `","key":"` + key + `"}]}`))
	}))
	t.Cleanup(server.Close)

	client, err := widevine.New(drm.LicenseEncryptionParams{ServerURL: server.URL, Signer: testSigner()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	keys, err := client.FetchKeysForPeriod(context.Background(), 7, []string{"SD"})
	if err != nil {
		t.Fatalf("FetchKeysForPeriod: %v", err)
	}
	if string(keys["SD"].KeyID) != "p7-key-id-------" {
		t.Fatalf("unexpected key id %q", keys["SD"].KeyID)
	}
}

func TestFetchInitialKeysServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(server.Close)

	client, err := widevine.New(drm.LicenseEncryptionParams{ServerURL: server.URL, Signer: testSigner()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := client.FetchInitialKeys(context.Background(), []string{"HD"}); !errors.Is(err, drm.ErrKeyProvider) {
		t.Fatalf("expected key provider error, got %v", err)
	}
}

func TestFetchInitialKeysRejectedStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"NEEDS_APPROVAL"}`))
	}))
	t.Cleanup(server.Close)

	client, err := widevine.New(drm.LicenseEncryptionParams{ServerURL: server.URL, Signer: testSigner()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := client.FetchInitialKeys(context.Background(), []string{"HD"}); !errors.Is(err, drm.ErrKeyProvider) {
		t.Fatalf("expected key provider error, got %v", err)
	}
}

func TestFetchInitialKeysMissingLabel(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"OK","tracks":[]}`))
	}))
	t.Cleanup(server.Close)

	client, err := widevine.New(drm.LicenseEncryptionParams{ServerURL: server.URL, Signer: testSigner()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := client.FetchInitialKeys(context.Background(), []string{"HD"}); !errors.Is(err, drm.ErrKeyProvider) {
		t.Fatalf("expected key provider error for missing label, got %v", err)
	}
}

func TestDecryptionFetchKeyByID(t *testing.T) {
	t.Parallel()

	keyID := []byte("0123456789abcdef")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		encodedID := base64.StdEncoding.EncodeToString(keyID)
		encodedKey := base64.StdEncoding.EncodeToString([]byte("fedcba9876543210"))
		_, _ = w.Write([]byte(`{"status":"OK","tracks":[{"type":"","key_id":"` + encodedID + `","key":"` + encodedKey + `"}]}`))
	}))
	t.Cleanup(server.Close)

	client, err := widevine.NewDecryption(drm.LicenseDecryptionParams{ServerURL: server.URL, Signer: testSigner()})
	if err != nil {
		t.Fatalf("NewDecryption: %v", err)
	}
	pair, err := client.FetchKeyByID(context.Background(), keyID)
	if err != nil {
		t.Fatalf("FetchKeyByID: %v", err)
	}
	if string(pair.Key) != "fedcba9876543210" {
		t.Fatalf("unexpected key %q", pair.Key)
	}
}
