package crypt

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"mediaseal/internal/audit"
	"mediaseal/internal/drm"
	"mediaseal/internal/keyprovider"
	"mediaseal/internal/label"
	"mediaseal/internal/logging"
	"mediaseal/internal/pssh"
	"mediaseal/internal/rotation"
	"mediaseal/internal/scheme"
)

// SampleInfo describes one media sample presented for encryption.
type SampleInfo struct {
	Timestamp  time.Duration
	Codec      string
	Attributes drm.EncryptedStreamAttributes
}

// SampleResult is the outcome of encrypting one sample. PSSH is populated
// only on the first sample a stream contributes to a crypto period; the
// caller is responsible for emitting it into the container.
type SampleResult struct {
	Data        []byte
	Encrypted   bool
	Label       string
	PeriodIndex int
	KeyID       []byte
	IV          []byte
	Scheme      scheme.Params
	PSSH        []byte
}

// EncryptorOption customizes encryptor construction.
type EncryptorOption func(*Encryptor)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EncryptorOption {
	return func(e *Encryptor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithAuditStore enables key lifecycle auditing. A nil store disables it.
func WithAuditStore(store *audit.Store) EncryptorOption {
	return func(e *Encryptor) { e.auditStore = store }
}

// WithJobID overrides the generated job identifier.
func WithJobID(jobID string) EncryptorOption {
	return func(e *Encryptor) {
		if jobID != "" {
			e.jobID = jobID
		}
	}
}

// WithProvider overrides the provider derived from the parameters.
func WithProvider(provider keyprovider.Provider) EncryptorOption {
	return func(e *Encryptor) { e.provider = provider }
}

// WithLabeler overrides the default labeling policy.
func WithLabeler(labeler label.Labeler) EncryptorOption {
	return func(e *Encryptor) {
		if labeler != nil {
			e.labeler = labeler
		}
	}
}

// Encryptor is the per-job encryption facade. It owns the label policy,
// the rotation scheduler, and the PSSH builder, and is safe for
// concurrent use across streams of the same job.
type Encryptor struct {
	params   drm.EncryptionParams
	labeler  label.Labeler
	provider keyprovider.Provider

	scheduler  *rotation.Scheduler
	builder    *pssh.Builder
	auditStore *audit.Store
	logger     *slog.Logger
	jobID      string
	baseIV     []byte

	mu         sync.Mutex
	lastPeriod map[string]int
	sampleSeq  uint64
}

// NewEncryptor validates the parameters eagerly and wires the engine. A
// params value rejected here never reaches sample processing.
func NewEncryptor(params drm.EncryptionParams, opts ...EncryptorOption) (*Encryptor, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	e := &Encryptor{
		params:     params,
		labeler:    label.Default{},
		logger:     slog.Default(),
		jobID:      uuid.NewString(),
		lastPeriod: make(map[string]int),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.provider == nil {
		provider, err := keyprovider.New(params)
		if err != nil {
			return nil, err
		}
		e.provider = provider
	}

	scheduler, err := rotation.New(e.provider, params.CryptoPeriod)
	if err != nil {
		return nil, err
	}
	e.scheduler = scheduler

	builder, err := pssh.NewBuilder(params)
	if err != nil {
		return nil, err
	}
	e.builder = builder

	if e.baseIV, err = resolveBaseIV(params); err != nil {
		return nil, err
	}
	return e, nil
}

// resolveBaseIV uses the configured raw-key IV when present, otherwise a
// random one per job. Shorter configured IVs occupy the leading bytes.
func resolveBaseIV(params drm.EncryptionParams) ([]byte, error) {
	iv := make([]byte, 16)
	if raw, ok := params.RawKey(); ok && len(raw.IV) > 0 {
		if len(raw.IV) != 8 && len(raw.IV) != 16 {
			return nil, drm.Wrap(drm.ErrConfiguration, "crypt", "iv", fmt.Sprintf("iv must be 8 or 16 bytes, got %d", len(raw.IV)), nil)
		}
		copy(iv, raw.IV)
		return iv, nil
	}
	if _, err := rand.Read(iv); err != nil {
		return nil, drm.Wrap(drm.ErrConfiguration, "crypt", "iv", "generate iv", err)
	}
	return iv, nil
}

// JobID returns the identifier audit records and logs are keyed by.
func (e *Encryptor) JobID() string { return e.jobID }

// Periods exposes the materialized crypto periods for diagnostics.
func (e *Encryptor) Periods() []drm.CryptoPeriod { return e.scheduler.Periods() }

// EncryptSample protects one sample. Samples inside the clear lead window
// pass through untouched and never reach the scheduler or the provider.
func (e *Encryptor) EncryptSample(ctx context.Context, info SampleInfo, data []byte) (SampleResult, error) {
	if info.Timestamp < 0 {
		return SampleResult{}, drm.Wrap(drm.ErrConfiguration, "crypt", "encrypt", fmt.Sprintf("negative timestamp %s", info.Timestamp), nil)
	}
	if info.Timestamp < e.params.ClearLead {
		return SampleResult{Data: bytes.Clone(data)}, nil
	}

	streamLabel, err := e.labeler.Label(info.Attributes)
	if err != nil {
		return SampleResult{}, err
	}
	ctx = drm.WithJobID(ctx, e.jobID)
	ctx = drm.WithStreamLabel(ctx, streamLabel)

	period, err := e.scheduler.ActivePeriod(ctx, info.Timestamp, []string{streamLabel})
	if err != nil {
		return SampleResult{}, err
	}
	pair := period.Keys[streamLabel]

	schemeParams, err := scheme.Resolve(e.params.Scheme, info.Codec, e.params.VP9SubsampleEnabled)
	if err != nil {
		return SampleResult{}, err
	}
	transform, err := newTransformer(pair.Key, schemeParams, info.Codec)
	if err != nil {
		return SampleResult{}, err
	}

	iv := e.nextIV(schemeParams)
	out, err := transform.apply(iv, data, true)
	if err != nil {
		return SampleResult{}, err
	}

	psshBytes, err := e.emitPeriodArtifacts(ctx, streamLabel, period)
	if err != nil {
		return SampleResult{}, err
	}

	return SampleResult{
		Data:        out,
		Encrypted:   true,
		Label:       streamLabel,
		PeriodIndex: period.Index,
		KeyID:       bytes.Clone(pair.KeyID),
		IV:          iv,
		Scheme:      schemeParams,
		PSSH:        psshBytes,
	}, nil
}

// nextIV derives the per-sample IV. CTR samples get a unique counter-based
// IV; CBC schemes reuse the job's base IV, as cbcs players expect.
func (e *Encryptor) nextIV(params scheme.Params) []byte {
	if params.Cipher == scheme.CipherCBC {
		return bytes.Clone(e.baseIV)
	}
	e.mu.Lock()
	seq := e.sampleSeq
	e.sampleSeq++
	e.mu.Unlock()

	iv := make([]byte, 16)
	copy(iv, e.baseIV[:8])
	binary.BigEndian.PutUint64(iv[8:], seq)
	return iv
}

// emitPeriodArtifacts builds PSSH bytes when the stream enters a new
// crypto period and records the transition. Audit failures are logged
// rather than failing the sample; the engine's own output is unaffected.
func (e *Encryptor) emitPeriodArtifacts(ctx context.Context, streamLabel string, period drm.CryptoPeriod) ([]byte, error) {
	e.mu.Lock()
	last, seen := e.lastPeriod[streamLabel]
	if seen && last == period.Index {
		e.mu.Unlock()
		return nil, nil
	}
	e.lastPeriod[streamLabel] = period.Index
	e.mu.Unlock()

	psshBytes, err := e.builder.Build(period.Keys)
	if err != nil {
		return nil, err
	}

	pair := period.Keys[streamLabel]
	e.logger.InfoContext(ctx, "crypto period active",
		logging.Label(streamLabel),
		logging.Period(period.Index),
		logging.Provider(string(e.params.Provider())),
		slog.String("key_id", pair.KeyIDHex()),
	)

	kind := audit.EventKeysFetched
	if seen {
		kind = audit.EventPeriodRotated
	}
	events := []audit.Event{
		{JobID: e.jobID, Kind: kind, Label: streamLabel, PeriodIndex: period.Index, KeyIDHex: pair.KeyIDHex(), Provider: string(e.params.Provider())},
		{JobID: e.jobID, Kind: audit.EventPsshEmitted, Label: streamLabel, PeriodIndex: period.Index, KeyIDHex: pair.KeyIDHex(), Provider: string(e.params.Provider())},
	}
	for _, event := range events {
		if recordErr := e.auditStore.Record(ctx, event); recordErr != nil {
			e.logger.WarnContext(ctx, "audit record failed", logging.Error(recordErr))
		}
	}
	return psshBytes, nil
}
