package crypt_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"mediaseal/internal/audit"
	"mediaseal/internal/crypt"
	"mediaseal/internal/drm"
	"mediaseal/internal/logging"
	"mediaseal/internal/testsupport"
)

func rawKeyParams() drm.EncryptionParams {
	return drm.RawKeyEncryption(drm.RawKeyEncryptionParams{
		IV: []byte("fedcba9876543210"),
		KeyMap: map[string]drm.KeyPair{
			"": {KeyID: []byte("0123456789abcdef"), Key: []byte("fedcba9876543210")},
		},
	})
}

func audioSample() crypt.SampleInfo {
	return crypt.SampleInfo{
		Codec:      "aac",
		Attributes: drm.AudioStream(drm.AudioAttributes{ChannelCount: 2}),
	}
}

func TestClearLeadBypassesProvider(t *testing.T) {
	t.Parallel()

	params := rawKeyParams()
	params.ClearLead = 5 * time.Second

	provider := &testsupport.FakeProvider{}
	enc, err := crypt.NewEncryptor(params,
		crypt.WithProvider(provider),
		crypt.WithLogger(logging.NewNop()),
	)
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}

	payload := []byte("clear lead sample payload")
	for _, ts := range []time.Duration{0, time.Second, 4999 * time.Millisecond} {
		info := audioSample()
		info.Timestamp = ts
		result, err := enc.EncryptSample(context.Background(), info, payload)
		if err != nil {
			t.Fatalf("EncryptSample(%s): %v", ts, err)
		}
		if result.Encrypted {
			t.Fatalf("sample at %s must pass through clear", ts)
		}
		if !bytes.Equal(result.Data, payload) {
			t.Fatalf("clear sample must be unmodified at %s", ts)
		}
		if result.PSSH != nil {
			t.Fatalf("clear sample must not emit pssh at %s", ts)
		}
	}
	if calls := provider.TotalCalls(); calls != 0 {
		t.Fatalf("provider must not be consulted during the clear lead, got %d calls", calls)
	}

	// The first sample past the lead engages the provider.
	info := audioSample()
	info.Timestamp = 5 * time.Second
	result, err := enc.EncryptSample(context.Background(), info, payload)
	if err != nil {
		t.Fatalf("EncryptSample: %v", err)
	}
	if !result.Encrypted {
		t.Fatal("sample past the clear lead must be encrypted")
	}
	if provider.TotalCalls() != 1 {
		t.Fatalf("expected one provider call, got %d", provider.TotalCalls())
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	t.Parallel()

	enc, err := crypt.NewEncryptor(rawKeyParams(), crypt.WithLogger(logging.NewNop()))
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}

	payload := []byte("sample payload that is longer than one aes block")
	info := audioSample()
	info.Timestamp = 10 * time.Second
	result, err := enc.EncryptSample(context.Background(), info, payload)
	if err != nil {
		t.Fatalf("EncryptSample: %v", err)
	}
	if !result.Encrypted || bytes.Equal(result.Data, payload) {
		t.Fatal("sample must be transformed")
	}
	if !bytes.Equal(result.KeyID, []byte("0123456789abcdef")) {
		t.Fatalf("unexpected key id %x", result.KeyID)
	}

	dec, err := crypt.NewDecryptor(drm.RawKeyDecryption(drm.RawKeyDecryptionParams{
		KeyMap: map[string]drm.KeyPair{
			"": {KeyID: []byte("0123456789abcdef"), Key: []byte("fedcba9876543210")},
		},
	}), crypt.WithDecryptorLogger(logging.NewNop()))
	if err != nil {
		t.Fatalf("NewDecryptor: %v", err)
	}

	restored, err := dec.DecryptSample(context.Background(), crypt.EncryptedSample{
		KeyID:  result.KeyID,
		IV:     result.IV,
		Codec:  info.Codec,
		Scheme: result.Scheme.Scheme,
		Data:   result.Data,
	})
	if err != nil {
		t.Fatalf("DecryptSample: %v", err)
	}
	if !bytes.Equal(restored, payload) {
		t.Fatal("decrypted sample must match the original")
	}
}

func TestPSSHEmittedOncePerPeriod(t *testing.T) {
	t.Parallel()

	params := rawKeyParams()
	params.CryptoPeriod = 10 * time.Second

	provider := &testsupport.FakeProvider{}
	enc, err := crypt.NewEncryptor(params,
		crypt.WithProvider(provider),
		crypt.WithLogger(logging.NewNop()),
	)
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}

	encryptAt := func(ts time.Duration) crypt.SampleResult {
		info := audioSample()
		info.Timestamp = ts
		result, err := enc.EncryptSample(context.Background(), info, []byte("payload"))
		if err != nil {
			t.Fatalf("EncryptSample(%s): %v", ts, err)
		}
		return result
	}

	first := encryptAt(0)
	if len(first.PSSH) == 0 {
		t.Fatal("first sample of a period must carry pssh")
	}
	if first.PeriodIndex != 0 {
		t.Fatalf("expected period 0, got %d", first.PeriodIndex)
	}

	repeat := encryptAt(5 * time.Second)
	if repeat.PSSH != nil {
		t.Fatal("samples within a period must not repeat pssh")
	}

	rotated := encryptAt(15 * time.Second)
	if len(rotated.PSSH) == 0 {
		t.Fatal("first sample of the next period must carry pssh")
	}
	if rotated.PeriodIndex != 1 {
		t.Fatalf("expected period 1, got %d", rotated.PeriodIndex)
	}
	if bytes.Equal(rotated.KeyID, first.KeyID) {
		t.Fatal("rotation must change the key")
	}
}

func TestCTRSamplesGetUniqueIVs(t *testing.T) {
	t.Parallel()

	enc, err := crypt.NewEncryptor(rawKeyParams(), crypt.WithLogger(logging.NewNop()))
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}

	info := audioSample()
	info.Timestamp = time.Second
	first, err := enc.EncryptSample(context.Background(), info, []byte("payload"))
	if err != nil {
		t.Fatalf("EncryptSample: %v", err)
	}
	second, err := enc.EncryptSample(context.Background(), info, []byte("payload"))
	if err != nil {
		t.Fatalf("EncryptSample: %v", err)
	}
	if bytes.Equal(first.IV, second.IV) {
		t.Fatal("consecutive ctr samples must use distinct ivs")
	}
}

func TestCBCSchemeReusesBaseIV(t *testing.T) {
	t.Parallel()

	params := rawKeyParams()
	params.Scheme = drm.SchemeCBCS

	enc, err := crypt.NewEncryptor(params, crypt.WithLogger(logging.NewNop()))
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}

	info := audioSample()
	info.Timestamp = time.Second
	first, err := enc.EncryptSample(context.Background(), info, []byte("payload"))
	if err != nil {
		t.Fatalf("EncryptSample: %v", err)
	}
	second, err := enc.EncryptSample(context.Background(), info, []byte("payload"))
	if err != nil {
		t.Fatalf("EncryptSample: %v", err)
	}
	if !bytes.Equal(first.IV, second.IV) {
		t.Fatal("cbc samples must share the job iv")
	}
	if !bytes.Equal(first.IV, []byte("fedcba9876543210")) {
		t.Fatal("configured iv must be used verbatim")
	}
}

func TestNegativeTimestampRejected(t *testing.T) {
	t.Parallel()

	enc, err := crypt.NewEncryptor(rawKeyParams(), crypt.WithLogger(logging.NewNop()))
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}

	info := audioSample()
	info.Timestamp = -time.Second
	if _, err := enc.EncryptSample(context.Background(), info, []byte("payload")); err == nil {
		t.Fatal("expected error for negative timestamp")
	}
}

func TestUnknownStreamTypeRejected(t *testing.T) {
	t.Parallel()

	enc, err := crypt.NewEncryptor(rawKeyParams(), crypt.WithLogger(logging.NewNop()))
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}

	info := crypt.SampleInfo{Timestamp: time.Second, Codec: "aac"}
	if _, err := enc.EncryptSample(context.Background(), info, []byte("payload")); !errors.Is(err, drm.ErrLabeling) {
		t.Fatalf("expected labeling error, got %v", err)
	}
}

func TestAuditTrailRecordsPeriodLifecycle(t *testing.T) {
	t.Parallel()

	store, err := audit.Open(t.TempDir())
	if err != nil {
		t.Fatalf("audit.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	params := rawKeyParams()
	params.CryptoPeriod = 10 * time.Second

	enc, err := crypt.NewEncryptor(params,
		crypt.WithProvider(&testsupport.FakeProvider{}),
		crypt.WithAuditStore(store),
		crypt.WithJobID("job-audit"),
		crypt.WithLogger(logging.NewNop()),
	)
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}

	for _, ts := range []time.Duration{0, 15 * time.Second} {
		info := audioSample()
		info.Timestamp = ts
		if _, err := enc.EncryptSample(context.Background(), info, []byte("payload")); err != nil {
			t.Fatalf("EncryptSample(%s): %v", ts, err)
		}
	}

	events, err := store.Events(context.Background(), "job-audit")
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	kinds := make([]audit.EventKind, 0, len(events))
	for _, event := range events {
		kinds = append(kinds, event.Kind)
	}
	want := []audit.EventKind{
		audit.EventKeysFetched, audit.EventPsshEmitted,
		audit.EventPeriodRotated, audit.EventPsshEmitted,
	}
	if len(kinds) != len(want) {
		t.Fatalf("expected %d events, got %v", len(want), kinds)
	}
	for i, kind := range want {
		if kinds[i] != kind {
			t.Fatalf("event %d: expected %s, got %s", i, kind, kinds[i])
		}
	}
}
