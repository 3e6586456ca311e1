package scheme

import (
	"strings"

	"mediaseal/internal/drm"
)

// Mode selects how much of a sample is encrypted.
type Mode string

const (
	ModeFullSample Mode = "full-sample"
	ModeSubsample  Mode = "subsample"
)

// Cipher selects the block cipher chaining applied to encrypted ranges.
type Cipher string

const (
	CipherCTR Cipher = "ctr"
	CipherCBC Cipher = "cbc"
)

// Pattern is the crypt/skip byte-block pattern for pattern encryption. A
// zero pattern means every protected block is encrypted.
type Pattern struct {
	CryptByteBlock uint8
	SkipByteBlock  uint8
}

// IsZero reports whether no pattern applies.
func (p Pattern) IsZero() bool {
	return p.CryptByteBlock == 0 && p.SkipByteBlock == 0
}

// Standard crypt/skip pattern for cens and cbcs.
const (
	defaultCryptByteBlock = 1
	defaultSkipByteBlock  = 9
)

// Params are the resolved transform parameters for one stream.
type Params struct {
	Scheme  drm.ProtectionScheme
	Mode    Mode
	Cipher  Cipher
	Pattern Pattern
}

// Resolve maps (scheme, codec, vp9 subsample flag) to transform
// parameters.
func Resolve(protection drm.ProtectionScheme, codec string, vp9SubsampleEnabled bool) (Params, error) {
	if _, err := drm.ParseProtectionScheme(string(protection)); err != nil {
		return Params{}, err
	}

	params := Params{Scheme: protection, Mode: ModeFullSample, Cipher: CipherCTR}
	if protection.IsCBC() {
		params.Cipher = CipherCBC
	}
	if protection.IsPattern() {
		params.Pattern = Pattern{CryptByteBlock: defaultCryptByteBlock, SkipByteBlock: defaultSkipByteBlock}
	}

	switch {
	case IsVP9(codec):
		// VP9 superframes carry multiple frames whose boundaries must stay
		// parseable; subsample framing handles that, but only when enabled.
		if vp9SubsampleEnabled {
			params.Mode = ModeSubsample
		} else {
			params.Mode = ModeFullSample
			params.Pattern = Pattern{}
		}
	case IsNALVideo(codec):
		if protection.IsPattern() {
			params.Mode = ModeSubsample
		}
	default:
		// Audio and other non-layered codecs have no headers to keep
		// clear; they encrypt whole samples under every scheme.
		params.Pattern = Pattern{}
	}
	return params, nil
}

// IsNALVideo reports whether the codec is NAL-unit structured (H.264 or
// H.265 families).
func IsNALVideo(codec string) bool {
	c := strings.ToLower(codec)
	for _, prefix := range []string{"avc", "h264", "h.264", "hvc", "hev", "h265", "h.265"} {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

// IsVP9 reports whether the codec is VP9.
func IsVP9(codec string) bool {
	c := strings.ToLower(codec)
	return strings.HasPrefix(c, "vp9") || strings.HasPrefix(c, "vp09")
}
