package widevine

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"mediaseal/internal/drm"
)

// DecryptionClient resolves decryption keys by key ID against a license
// server. Callers cache results per key ID for the remainder of the job.
type DecryptionClient struct {
	params     drm.LicenseDecryptionParams
	httpClient *http.Client
}

// DecryptionOption configures a DecryptionClient.
type DecryptionOption func(*DecryptionClient)

// WithDecryptionHTTPClient overrides the default HTTP client.
func WithDecryptionHTTPClient(client *http.Client) DecryptionOption {
	return func(c *DecryptionClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewDecryption creates a key-by-ID license server client.
func NewDecryption(params drm.LicenseDecryptionParams, opts ...DecryptionOption) (*DecryptionClient, error) {
	if strings.TrimSpace(params.ServerURL) == "" {
		return nil, drm.Wrap(drm.ErrConfiguration, "widevine", "new", "server url is required", nil)
	}
	if err := params.Signer.Validate(); err != nil {
		return nil, err
	}
	client := &DecryptionClient{
		params:     params,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// FetchKeyByID requests the key for one key ID.
func (c *DecryptionClient) FetchKeyByID(ctx context.Context, keyID []byte) (drm.KeyPair, error) {
	request := keyRequest{
		DRMTypes: []string{"WIDEVINE"},
		KeyID:    base64.StdEncoding.EncodeToString(keyID),
	}
	body, err := postSigned(ctx, c.httpClient, c.params.ServerURL, c.params.Signer, request)
	if err != nil {
		return drm.KeyPair{}, err
	}

	var match drm.KeyPair
	if err := collectTracks(body, func(_ string, pair drm.KeyPair) {
		if bytes.Equal(pair.KeyID, keyID) {
			match = pair
		}
	}); err != nil {
		return drm.KeyPair{}, err
	}
	if match.IsZero() {
		return drm.KeyPair{}, drm.Wrap(drm.ErrUnknownKeyID, "widevine", "fetch", fmt.Sprintf("server has no key for key id %x", keyID), nil)
	}
	return match, nil
}
