package widevine

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"mediaseal/internal/drm"
)

// Client requests content keys from a Widevine license server.
type Client struct {
	params     drm.LicenseEncryptionParams
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates a license server client.
func New(params drm.LicenseEncryptionParams, opts ...Option) (*Client, error) {
	if strings.TrimSpace(params.ServerURL) == "" {
		return nil, drm.Wrap(drm.ErrConfiguration, "widevine", "new", "server url is required", nil)
	}
	if err := params.Signer.Validate(); err != nil {
		return nil, err
	}
	client := &Client{
		params:     params,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

type trackRequest struct {
	Type string `json:"type"`
}

type keyRequest struct {
	ContentID              string         `json:"content_id,omitempty"`
	Policy                 string         `json:"policy,omitempty"`
	GroupID                string         `json:"group_id,omitempty"`
	DRMTypes               []string       `json:"drm_types"`
	Tracks                 []trackRequest `json:"tracks,omitempty"`
	FirstCryptoPeriodIndex *int           `json:"first_crypto_period_index,omitempty"`
	CryptoPeriodCount      int            `json:"crypto_period_count,omitempty"`
	KeyID                  string         `json:"key_id,omitempty"`
}

// FetchInitialKeys requests one key per label for a job without rotation.
func (c *Client) FetchInitialKeys(ctx context.Context, labels []string) (map[string]drm.KeyPair, error) {
	return c.fetchKeys(ctx, nil, labels)
}

// FetchKeysForPeriod requests one key per label for the given crypto
// period.
func (c *Client) FetchKeysForPeriod(ctx context.Context, periodIndex int, labels []string) (map[string]drm.KeyPair, error) {
	return c.fetchKeys(ctx, &periodIndex, labels)
}

func (c *Client) fetchKeys(ctx context.Context, periodIndex *int, labels []string) (map[string]drm.KeyPair, error) {
	request := keyRequest{
		ContentID: base64.StdEncoding.EncodeToString(c.params.ContentID),
		Policy:    c.params.Policy,
		DRMTypes:  []string{"WIDEVINE"},
	}
	if len(c.params.GroupID) > 0 {
		request.GroupID = base64.StdEncoding.EncodeToString(c.params.GroupID)
	}
	for _, label := range labels {
		request.Tracks = append(request.Tracks, trackRequest{Type: label})
	}
	if periodIndex != nil {
		request.FirstCryptoPeriodIndex = periodIndex
		request.CryptoPeriodCount = 1
	}

	body, err := c.post(ctx, c.params.Signer, request)
	if err != nil {
		return nil, err
	}

	keys := make(map[string]drm.KeyPair, len(labels))
	if err := collectTracks(body, func(label string, pair drm.KeyPair) {
		keys[label] = pair
	}); err != nil {
		return nil, err
	}
	for _, label := range labels {
		if _, ok := keys[label]; !ok {
			return nil, drm.Wrap(drm.ErrKeyProvider, "widevine", "fetch", fmt.Sprintf("server response is missing a key for label %q", label), nil)
		}
	}
	return keys, nil
}

// collectTracks extracts label to key pair mappings from the otherwise
// opaque server response.
func collectTracks(body []byte, record func(label string, pair drm.KeyPair)) error {
	parsed := gjson.ParseBytes(body)
	if status := parsed.Get("status").String(); status != "" && status != "OK" {
		return drm.Wrap(drm.ErrKeyProvider, "widevine", "fetch", fmt.Sprintf("server rejected request with status %q", status), nil)
	}

	var trackErr error
	parsed.Get("tracks").ForEach(func(_, track gjson.Result) bool {
		label := track.Get("type").String()
		keyID, err := base64.StdEncoding.DecodeString(track.Get("key_id").String())
		if err != nil {
			trackErr = drm.Wrap(drm.ErrKeyProvider, "widevine", "fetch", fmt.Sprintf("malformed key id for label %q", label), err)
			return false
		}
		key, err := base64.StdEncoding.DecodeString(track.Get("key").String())
		if err != nil {
			trackErr = drm.Wrap(drm.ErrKeyProvider, "widevine", "fetch", fmt.Sprintf("malformed key for label %q", label), err)
			return false
		}
		if len(keyID) == 0 || len(key) == 0 {
			trackErr = drm.Wrap(drm.ErrKeyProvider, "widevine", "fetch", fmt.Sprintf("empty key material for label %q", label), nil)
			return false
		}
		record(label, drm.KeyPair{KeyID: keyID, Key: key})
		return true
	})
	return trackErr
}

func encodeRequest(request keyRequest) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(request); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// post signs the request, wraps it in the signed-envelope schema, and
// returns the raw response body.
func (c *Client) post(ctx context.Context, signer drm.SignerCredential, request keyRequest) ([]byte, error) {
	return postSigned(ctx, c.httpClient, c.params.ServerURL, signer, request)
}

func postSigned(ctx context.Context, httpClient *http.Client, serverURL string, signer drm.SignerCredential, request keyRequest) ([]byte, error) {
	payload, err := encodeRequest(request)
	if err != nil {
		return nil, drm.Wrap(drm.ErrKeyProvider, "widevine", "request", "encode request", err)
	}
	signature, err := signMessage(signer, payload)
	if err != nil {
		return nil, drm.Wrap(drm.ErrKeyProvider, "widevine", "request", "sign request", err)
	}

	envelope := fmt.Sprintf(
		`{"request":%q,"signature":%q,"signer":%q}`,
		base64.StdEncoding.EncodeToString(payload),
		base64.StdEncoding.EncodeToString(signature),
		signer.Name,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL, strings.NewReader(envelope))
	if err != nil {
		return nil, drm.Wrap(drm.ErrKeyProvider, "widevine", "request", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, drm.Wrap(drm.ErrKeyProvider, "widevine", "request", "license server unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, drm.Wrap(drm.ErrKeyProvider, "widevine", "request", "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, drm.Wrap(drm.ErrKeyProvider, "widevine", "request", fmt.Sprintf("license server returned status %d", resp.StatusCode), nil)
	}
	return body, nil
}
