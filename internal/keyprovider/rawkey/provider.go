package rawkey

import (
	"bytes"
	"context"
	"fmt"

	"mediaseal/internal/drm"
)

// Provider resolves stream labels against a static key map.
type Provider struct {
	keyMap map[string]drm.KeyPair
}

// New builds a raw key provider. The key map must contain at least one
// entry; the empty label acts as the default.
func New(params drm.RawKeyEncryptionParams) (*Provider, error) {
	if len(params.KeyMap) == 0 {
		return nil, drm.Wrap(drm.ErrConfiguration, "rawkey", "new", "key map must contain at least one entry", nil)
	}
	keyMap := make(map[string]drm.KeyPair, len(params.KeyMap))
	for label, pair := range params.KeyMap {
		if len(pair.KeyID) == 0 || len(pair.Key) == 0 {
			return nil, drm.Wrap(drm.ErrConfiguration, "rawkey", "new", fmt.Sprintf("entry %q is missing key id or key", label), nil)
		}
		keyMap[label] = pair.Clone()
	}
	return &Provider{keyMap: keyMap}, nil
}

// FetchInitialKeys resolves each label, falling back to the default entry.
func (p *Provider) FetchInitialKeys(ctx context.Context, labels []string) (map[string]drm.KeyPair, error) {
	keys := make(map[string]drm.KeyPair, len(labels))
	for _, label := range labels {
		pair, ok := p.lookup(label)
		if !ok {
			return nil, drm.Wrap(drm.ErrKeyProvider, "rawkey", "fetch", fmt.Sprintf("no key for label %q and no default entry", label), nil)
		}
		keys[label] = pair
	}
	return keys, nil
}

// FetchKeysForPeriod returns the same static keys for every period. Raw
// keys do not rotate; each period reuses the configured material, which
// keeps period resolution deterministic.
func (p *Provider) FetchKeysForPeriod(ctx context.Context, periodIndex int, labels []string) (map[string]drm.KeyPair, error) {
	return p.FetchInitialKeys(ctx, labels)
}

func (p *Provider) lookup(label string) (drm.KeyPair, bool) {
	if pair, ok := p.keyMap[label]; ok {
		return pair.Clone(), true
	}
	if pair, ok := p.keyMap[""]; ok {
		return pair.Clone(), true
	}
	return drm.KeyPair{}, false
}

// Decryption resolves key IDs against a static key map.
type Decryption struct {
	keyMap map[string]drm.KeyPair
}

// NewDecryption builds a raw key decryption fetcher.
func NewDecryption(params drm.RawKeyDecryptionParams) (*Decryption, error) {
	if len(params.KeyMap) == 0 {
		return nil, drm.Wrap(drm.ErrConfiguration, "rawkey", "new", "key map must contain at least one entry", nil)
	}
	keyMap := make(map[string]drm.KeyPair, len(params.KeyMap))
	for label, pair := range params.KeyMap {
		keyMap[label] = pair.Clone()
	}
	return &Decryption{keyMap: keyMap}, nil
}

// FetchKeyByID scans the key map for a matching key ID. Labels are
// irrelevant on the decryption path.
func (d *Decryption) FetchKeyByID(ctx context.Context, keyID []byte) (drm.KeyPair, error) {
	for _, pair := range d.keyMap {
		if bytes.Equal(pair.KeyID, keyID) {
			return pair.Clone(), nil
		}
	}
	return drm.KeyPair{}, drm.Wrap(drm.ErrUnknownKeyID, "rawkey", "fetch", fmt.Sprintf("key id %x not present in key map", keyID), nil)
}
