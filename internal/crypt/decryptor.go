package crypt

import (
	"context"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"mediaseal/internal/drm"
	"mediaseal/internal/keyprovider"
	"mediaseal/internal/logging"
	"mediaseal/internal/scheme"
)

// EncryptedSample carries everything needed to reverse one sample's
// protection. The key ID, IV, and scheme arrive from the container's
// protection metadata.
type EncryptedSample struct {
	KeyID        []byte
	IV           []byte
	Codec        string
	Scheme       drm.ProtectionScheme
	VP9Subsample bool
	Data         []byte
}

// DecryptorOption customizes decryptor construction.
type DecryptorOption func(*Decryptor)

// WithKeyFetcher overrides the fetcher derived from the parameters.
func WithKeyFetcher(fetcher keyprovider.KeyFetcher) DecryptorOption {
	return func(d *Decryptor) { d.fetcher = fetcher }
}

// WithDecryptorLogger sets the structured logger.
func WithDecryptorLogger(logger *slog.Logger) DecryptorOption {
	return func(d *Decryptor) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// Decryptor restores samples by key ID. Resolved keys are cached for the
// life of the job, so a license server is consulted once per key ID.
type Decryptor struct {
	fetcher keyprovider.KeyFetcher
	logger  *slog.Logger

	mu    sync.Mutex
	cache map[string]drm.KeyPair
}

// NewDecryptor validates the parameters and wires the key fetcher.
func NewDecryptor(params drm.DecryptionParams, opts ...DecryptorOption) (*Decryptor, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	d := &Decryptor{
		logger: slog.Default(),
		cache:  make(map[string]drm.KeyPair),
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.fetcher == nil {
		fetcher, err := keyprovider.NewKeyFetcher(params)
		if err != nil {
			return nil, err
		}
		d.fetcher = fetcher
	}
	return d, nil
}

// KeyForID resolves the key pair for a key ID, consulting the provider on
// first sight and the cache afterwards.
func (d *Decryptor) KeyForID(ctx context.Context, keyID []byte) (drm.KeyPair, error) {
	cacheKey := hex.EncodeToString(keyID)

	d.mu.Lock()
	if pair, ok := d.cache[cacheKey]; ok {
		d.mu.Unlock()
		return pair.Clone(), nil
	}
	d.mu.Unlock()

	start := time.Now()
	pair, err := d.fetcher.FetchKeyByID(ctx, keyID)
	if err != nil {
		return drm.KeyPair{}, err
	}
	d.logger.DebugContext(ctx, "decryption key resolved",
		slog.String("key_id", cacheKey),
		slog.Duration("elapsed", time.Since(start)),
	)

	d.mu.Lock()
	d.cache[cacheKey] = pair.Clone()
	d.mu.Unlock()
	return pair, nil
}

// DecryptSample reverses the protection applied to one sample. Unknown
// key IDs fail this sample only; the decryptor stays usable.
func (d *Decryptor) DecryptSample(ctx context.Context, sample EncryptedSample) ([]byte, error) {
	pair, err := d.KeyForID(ctx, sample.KeyID)
	if err != nil {
		d.logger.WarnContext(ctx, "sample decryption failed", logging.Error(err))
		return nil, err
	}

	schemeParams, err := scheme.Resolve(sample.Scheme, sample.Codec, sample.VP9Subsample)
	if err != nil {
		return nil, err
	}
	transform, err := newTransformer(pair.Key, schemeParams, sample.Codec)
	if err != nil {
		return nil, err
	}
	return transform.apply(sample.IV, sample.Data, false)
}
