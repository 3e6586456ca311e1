package pssh

import (
	"bytes"
	"sort"

	"github.com/Eyevinn/mp4ff/mp4"
	"google.golang.org/protobuf/encoding/protowire"

	"mediaseal/internal/drm"
)

// DRM system identifiers.
const (
	CommonSystemID    = "1077efec-c0b2-4d02-ace3-3c1e52e2fb4b"
	WidevineSystemID  = "edef8ba9-79d6-4ace-a3c8-27dcd51d21ed"
	PlayReadySystemID = "9a04f079-9840-4286-ab92-e65be0885f95"
)

// Builder constructs PSSH payloads for one packaging job.
type Builder struct {
	params drm.EncryptionParams
}

// NewBuilder creates a builder for the job's encryption parameters.
func NewBuilder(params drm.EncryptionParams) (*Builder, error) {
	if params.Provider() == drm.ProviderNone {
		return nil, drm.Wrap(drm.ErrConfiguration, "pssh", "new", "a key provider is required", nil)
	}
	return &Builder{params: params}, nil
}

// Build produces the PSSH bytes advertising the active keys. The
// common-system payload, when included, always comes first.
func (b *Builder) Build(activeKeys map[string]drm.KeyPair) ([]byte, error) {
	keyIDs := collectKeyIDs(activeKeys)
	if len(keyIDs) == 0 {
		return nil, drm.Wrap(drm.ErrKeyProvider, "pssh", "build", "no active keys to advertise", nil)
	}

	var out bytes.Buffer

	switch b.params.Provider() {
	case drm.ProviderRawKey:
		raw, _ := b.params.RawKey()
		if len(raw.PSSH) > 0 {
			// Caller-supplied bytes may already hold several concatenated
			// payloads; pass through verbatim, no common-system box added.
			return bytes.Clone(raw.PSSH), nil
		}
		if err := appendCommonBox(&out, keyIDs); err != nil {
			return nil, err
		}

	case drm.ProviderWidevine:
		if b.params.IncludeCommonPSSH {
			if err := appendCommonBox(&out, keyIDs); err != nil {
				return nil, err
			}
		}
		params, _ := b.params.Widevine()
		if err := appendWidevineBox(&out, params, b.params.Scheme, keyIDs); err != nil {
			return nil, err
		}

	case drm.ProviderPlayReady:
		if b.params.IncludeCommonPSSH {
			if err := appendCommonBox(&out, keyIDs); err != nil {
				return nil, err
			}
		}
		if err := appendPlayReadyBox(&out, b.params.Scheme, keyIDs); err != nil {
			return nil, err
		}

	default:
		return nil, drm.Wrap(drm.ErrConfiguration, "pssh", "build", "a key provider is required", nil)
	}

	return out.Bytes(), nil
}

// collectKeyIDs deduplicates and orders key IDs so repeated builds for the
// same key set are byte-identical.
func collectKeyIDs(activeKeys map[string]drm.KeyPair) [][]byte {
	seen := make(map[string]struct{}, len(activeKeys))
	keyIDs := make([][]byte, 0, len(activeKeys))
	for _, pair := range activeKeys {
		if len(pair.KeyID) == 0 {
			continue
		}
		if _, dup := seen[string(pair.KeyID)]; dup {
			continue
		}
		seen[string(pair.KeyID)] = struct{}{}
		keyIDs = append(keyIDs, bytes.Clone(pair.KeyID))
	}
	sort.Slice(keyIDs, func(i, j int) bool { return bytes.Compare(keyIDs[i], keyIDs[j]) < 0 })
	return keyIDs
}

// appendCommonBox writes a v1 box for the common system ID carrying the
// key IDs and no system-specific data.
func appendCommonBox(out *bytes.Buffer, keyIDs [][]byte) error {
	systemID, err := mp4.NewUUIDFromString(CommonSystemID)
	if err != nil {
		return drm.Wrap(drm.ErrConfiguration, "pssh", "build", "common system id", err)
	}
	kids := make([]mp4.UUID, 0, len(keyIDs))
	for _, keyID := range keyIDs {
		kids = append(kids, mp4.UUID(keyID))
	}
	box := &mp4.PsshBox{
		Version:  1,
		SystemID: systemID,
		KIDs:     kids,
	}
	if err := box.Encode(out); err != nil {
		return drm.Wrap(drm.ErrKeyProvider, "pssh", "build", "encode common box", err)
	}
	return nil
}

func appendWidevineBox(out *bytes.Buffer, params drm.LicenseEncryptionParams, protection drm.ProtectionScheme, keyIDs [][]byte) error {
	systemID, err := mp4.NewUUIDFromString(WidevineSystemID)
	if err != nil {
		return drm.Wrap(drm.ErrConfiguration, "pssh", "build", "widevine system id", err)
	}
	box := &mp4.PsshBox{
		Version:  0,
		SystemID: systemID,
		Data:     widevinePsshData(params, protection, keyIDs),
	}
	if err := box.Encode(out); err != nil {
		return drm.Wrap(drm.ErrKeyProvider, "pssh", "build", "encode widevine box", err)
	}
	return nil
}

// widevinePsshData encodes the Widevine pssh data protobuf: key_id (2),
// provider (3), content_id (4), policy (6), protection_scheme (9).
func widevinePsshData(params drm.LicenseEncryptionParams, protection drm.ProtectionScheme, keyIDs [][]byte) []byte {
	var data []byte
	for _, keyID := range keyIDs {
		data = protowire.AppendTag(data, 2, protowire.BytesType)
		data = protowire.AppendBytes(data, keyID)
	}
	if params.Signer.Name != "" {
		data = protowire.AppendTag(data, 3, protowire.BytesType)
		data = protowire.AppendString(data, params.Signer.Name)
	}
	if len(params.ContentID) > 0 {
		data = protowire.AppendTag(data, 4, protowire.BytesType)
		data = protowire.AppendBytes(data, params.ContentID)
	}
	if params.Policy != "" {
		data = protowire.AppendTag(data, 6, protowire.BytesType)
		data = protowire.AppendString(data, params.Policy)
	}
	data = protowire.AppendTag(data, 9, protowire.VarintType)
	data = protowire.AppendVarint(data, uint64(protection.FourCC()))
	return data
}

func appendPlayReadyBox(out *bytes.Buffer, protection drm.ProtectionScheme, keyIDs [][]byte) error {
	systemID, err := mp4.NewUUIDFromString(PlayReadySystemID)
	if err != nil {
		return drm.Wrap(drm.ErrConfiguration, "pssh", "build", "playready system id", err)
	}
	box := &mp4.PsshBox{
		Version:  0,
		SystemID: systemID,
		Data:     playReadyObject(protection, keyIDs),
	}
	if err := box.Encode(out); err != nil {
		return drm.Wrap(drm.ErrKeyProvider, "pssh", "build", "encode playready box", err)
	}
	return nil
}
