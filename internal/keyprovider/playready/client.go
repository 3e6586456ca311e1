package playready

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"mediaseal/internal/drm"
)

// Client fetches PlayReady content keys. Exactly one of direct mode and
// server mode is active; the choice is fixed at construction.
type Client struct {
	params     drm.CertEncryptionParams
	scheme     drm.ProtectionScheme
	direct     bool
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used in server mode. Intended
// for tests; the replacement must carry its own TLS configuration.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates a PlayReady key client.
func New(params drm.CertEncryptionParams, scheme drm.ProtectionScheme, opts ...Option) (*Client, error) {
	rawID := len(params.RawKeyID) > 0
	rawKey := len(params.RawKey) > 0
	if rawID != rawKey {
		return nil, drm.Wrap(drm.ErrConfiguration, "playready", "new", "raw key id and raw key must be provided together", nil)
	}

	client := &Client{params: params, scheme: scheme, direct: rawID}
	for _, opt := range opts {
		opt(client)
	}
	if client.direct {
		return client, nil
	}

	if strings.TrimSpace(params.ServerURL) == "" {
		return nil, drm.Wrap(drm.ErrConfiguration, "playready", "new", "server url is required in server mode", nil)
	}
	if strings.TrimSpace(params.ProgramIdentifier) == "" {
		return nil, drm.Wrap(drm.ErrConfiguration, "playready", "new", "program identifier is required in server mode", nil)
	}
	if client.httpClient == nil {
		httpClient, err := newMutualTLSClient(params)
		if err != nil {
			return nil, err
		}
		client.httpClient = httpClient
	}
	return client, nil
}

// FetchInitialKeys resolves keys for the given labels.
func (c *Client) FetchInitialKeys(ctx context.Context, labels []string) (map[string]drm.KeyPair, error) {
	if c.direct {
		keys := make(map[string]drm.KeyPair, len(labels))
		for _, label := range labels {
			keys[label] = drm.KeyPair{KeyID: c.params.RawKeyID, Key: c.params.RawKey}.Clone()
		}
		return keys, nil
	}
	return c.fetchFromServer(ctx, nil, labels)
}

// FetchKeysForPeriod resolves keys for one crypto period. Direct mode
// reuses the configured pair for every period.
func (c *Client) FetchKeysForPeriod(ctx context.Context, periodIndex int, labels []string) (map[string]drm.KeyPair, error) {
	if c.direct {
		return c.FetchInitialKeys(ctx, labels)
	}
	return c.fetchFromServer(ctx, &periodIndex, labels)
}

type serverRequest struct {
	ProgramIdentifier string   `json:"program_identifier"`
	Tracks            []string `json:"tracks"`
	CryptoPeriodIndex *int     `json:"crypto_period_index,omitempty"`
}

func (c *Client) fetchFromServer(ctx context.Context, periodIndex *int, labels []string) (map[string]drm.KeyPair, error) {
	request := serverRequest{
		ProgramIdentifier: c.params.ProgramIdentifier,
		Tracks:            labels,
		CryptoPeriodIndex: periodIndex,
	}
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, drm.Wrap(drm.ErrKeyProvider, "playready", "request", "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.params.ServerURL, strings.NewReader(string(payload)))
	if err != nil {
		return nil, drm.Wrap(drm.ErrKeyProvider, "playready", "request", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, drm.Wrap(drm.ErrKeyProvider, "playready", "request", "key server unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, drm.Wrap(drm.ErrKeyProvider, "playready", "request", "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, drm.Wrap(drm.ErrKeyProvider, "playready", "request", fmt.Sprintf("key server returned status %d", resp.StatusCode), nil)
	}

	keys := make(map[string]drm.KeyPair, len(labels))
	var trackErr error
	gjson.GetBytes(body, "tracks").ForEach(func(_, track gjson.Result) bool {
		label := track.Get("type").String()
		keyID, err := base64.StdEncoding.DecodeString(track.Get("key_id").String())
		if err != nil {
			trackErr = drm.Wrap(drm.ErrKeyProvider, "playready", "fetch", fmt.Sprintf("malformed key id for label %q", label), err)
			return false
		}
		key, err := base64.StdEncoding.DecodeString(track.Get("key").String())
		if err != nil {
			trackErr = drm.Wrap(drm.ErrKeyProvider, "playready", "fetch", fmt.Sprintf("malformed key for label %q", label), err)
			return false
		}
		keys[label] = drm.KeyPair{KeyID: keyID, Key: key}
		return true
	})
	if trackErr != nil {
		return nil, trackErr
	}
	for _, label := range labels {
		if _, ok := keys[label]; !ok {
			return nil, drm.Wrap(drm.ErrKeyProvider, "playready", "fetch", fmt.Sprintf("server response is missing a key for label %q", label), nil)
		}
	}
	return keys, nil
}

func newMutualTLSClient(params drm.CertEncryptionParams) (*http.Client, error) {
	certificate, err := loadClientCertificate(params)
	if err != nil {
		return nil, err
	}

	tlsConfig := &tls.Config{Certificates: []tls.Certificate{certificate}}
	if params.CAFile != "" {
		caPEM, err := os.ReadFile(params.CAFile)
		if err != nil {
			return nil, drm.Wrap(drm.ErrConfiguration, "playready", "new", "read ca file", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, drm.Wrap(drm.ErrConfiguration, "playready", "new", "ca file contains no usable certificates", nil)
		}
		tlsConfig.RootCAs = pool
	}

	return &http.Client{
		Timeout:   30 * time.Second,
		Transport: &http.Transport{TLSClientConfig: tlsConfig},
	}, nil
}

func loadClientCertificate(params drm.CertEncryptionParams) (tls.Certificate, error) {
	certPEM, err := os.ReadFile(params.ClientCertFile)
	if err != nil {
		return tls.Certificate{}, drm.Wrap(drm.ErrConfiguration, "playready", "new", "read client certificate", err)
	}
	keyPEM, err := os.ReadFile(params.ClientKeyFile)
	if err != nil {
		return tls.Certificate{}, drm.Wrap(drm.ErrConfiguration, "playready", "new", "read client key", err)
	}
	if params.ClientKeyPassword != "" {
		keyPEM, err = decryptKeyPEM(keyPEM, params.ClientKeyPassword)
		if err != nil {
			return tls.Certificate{}, drm.Wrap(drm.ErrConfiguration, "playready", "new", "decrypt client key", err)
		}
	}
	certificate, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return tls.Certificate{}, drm.Wrap(drm.ErrConfiguration, "playready", "new", "load client key pair", err)
	}
	return certificate, nil
}

func decryptKeyPEM(keyPEM []byte, password string) ([]byte, error) {
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, fmt.Errorf("client key is not valid PEM")
	}
	if !x509.IsEncryptedPEMBlock(block) {
		return keyPEM, nil
	}
	decrypted, err := x509.DecryptPEMBlock(block, []byte(password))
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: block.Type, Bytes: decrypted}), nil
}
