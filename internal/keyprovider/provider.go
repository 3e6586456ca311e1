package keyprovider

import (
	"context"

	"mediaseal/internal/drm"
	"mediaseal/internal/keyprovider/playready"
	"mediaseal/internal/keyprovider/rawkey"
	"mediaseal/internal/keyprovider/widevine"
)

// Provider supplies encryption keys for stream labels.
//
// FetchInitialKeys resolves keys for a job without key rotation.
// FetchKeysForPeriod resolves keys for one crypto period when rotation is
// enabled; results for a given period index must be deterministic, since
// the scheduler re-requests past periods for out-of-order segments.
type Provider interface {
	FetchInitialKeys(ctx context.Context, labels []string) (map[string]drm.KeyPair, error)
	FetchKeysForPeriod(ctx context.Context, periodIndex int, labels []string) (map[string]drm.KeyPair, error)
}

// KeyFetcher resolves decryption keys by key ID. Decryption never deals in
// stream labels: the key ID arrives in the protection header.
type KeyFetcher interface {
	FetchKeyByID(ctx context.Context, keyID []byte) (drm.KeyPair, error)
}

// New constructs the provider selected by the encryption parameters.
func New(params drm.EncryptionParams) (Provider, error) {
	switch params.Provider() {
	case drm.ProviderWidevine:
		p, _ := params.Widevine()
		return widevine.New(p)
	case drm.ProviderPlayReady:
		p, _ := params.PlayReady()
		return playready.New(p, params.Scheme)
	case drm.ProviderRawKey:
		p, _ := params.RawKey()
		return rawkey.New(p)
	}
	return nil, drm.Wrap(drm.ErrConfiguration, "keyprovider", "new", "a key provider is required", nil)
}

// NewKeyFetcher constructs the decryption-side fetcher selected by the
// decryption parameters.
func NewKeyFetcher(params drm.DecryptionParams) (KeyFetcher, error) {
	switch params.Provider() {
	case drm.ProviderWidevine:
		p, _ := params.Widevine()
		return widevine.NewDecryption(p)
	case drm.ProviderRawKey:
		p, _ := params.RawKey()
		return rawkey.NewDecryption(p)
	}
	return nil, drm.Wrap(drm.ErrConfiguration, "keyprovider", "new", "a decryption key provider is required", nil)
}
