package crypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"strings"

	"mediaseal/internal/drm"
	"mediaseal/internal/scheme"
)

// transformer applies one stream's resolved scheme parameters to sample
// payloads. It is direction-agnostic: CTR modes are symmetric and CBC
// modes branch on the encrypt flag.
type transformer struct {
	block  cipher.Block
	params scheme.Params
	codec  string
}

func newTransformer(key []byte, params scheme.Params, codec string) (*transformer, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, drm.Wrap(drm.ErrConfiguration, "crypt", "cipher", "invalid aes key", err)
	}
	return &transformer{block: block, params: params, codec: codec}, nil
}

// apply transforms a sample in the configured direction and returns a new
// buffer; the input is never modified.
func (t *transformer) apply(iv, data []byte, encrypt bool) ([]byte, error) {
	if len(iv) != aes.BlockSize {
		return nil, drm.Wrap(drm.ErrConfiguration, "crypt", "transform", "iv must be 16 bytes", nil)
	}
	out := bytes.Clone(data)
	if len(out) == 0 {
		return out, nil
	}

	if t.params.Mode == scheme.ModeSubsample {
		if scheme.IsVP9(t.codec) {
			// The superframe index must stay parseable by demuxers, so it
			// stays clear; everything before it is protected.
			clearTail := vp9SuperframeIndexSize(out)
			t.applyRegion(iv, out[:len(out)-clearTail], encrypt)
			return out, nil
		}
		for _, unit := range splitNALUnits(t.codec, out) {
			if unit.protect && len(unit.payload) > 0 {
				t.applyRegion(iv, unit.payload, encrypt)
			}
		}
		return out, nil
	}

	t.applyRegion(iv, out, encrypt)
	return out, nil
}

// applyRegion transforms one protected byte range in place.
func (t *transformer) applyRegion(iv, region []byte, encrypt bool) {
	switch t.params.Cipher {
	case scheme.CipherCTR:
		if t.params.Pattern.IsZero() {
			ctrCrypt(t.block, iv, region)
		} else {
			ctrPatternCrypt(t.block, iv, t.params.Pattern, region)
		}
	case scheme.CipherCBC:
		if t.params.Pattern.IsZero() {
			cbcCrypt(t.block, iv, region, encrypt)
		} else {
			cbcPatternCrypt(t.block, iv, t.params.Pattern, region, encrypt)
		}
	}
}

// ctrCrypt runs plain AES-CTR over the region. Partial trailing blocks are
// covered by the keystream, so the full region is protected.
func ctrCrypt(block cipher.Block, iv, region []byte) {
	stream := cipher.NewCTR(block, iv)
	stream.XORKeyStream(region, region)
}

// ctrPatternCrypt applies the crypt/skip pattern with a single keystream
// consumed only by encrypted blocks. Symmetric for encrypt and decrypt.
func ctrPatternCrypt(block cipher.Block, iv []byte, pattern scheme.Pattern, region []byte) {
	stream := cipher.NewCTR(block, iv)
	forEachPatternBlock(pattern, region, func(chunk []byte) {
		stream.XORKeyStream(chunk, chunk)
	})
}

// cbcCrypt covers full cipher blocks only; a partial trailing block stays
// clear, matching cbc1 semantics.
func cbcCrypt(block cipher.Block, iv, region []byte, encrypt bool) {
	full := len(region) - len(region)%aes.BlockSize
	if full == 0 {
		return
	}
	if encrypt {
		cipher.NewCBCEncrypter(block, iv).CryptBlocks(region[:full], region[:full])
	} else {
		cipher.NewCBCDecrypter(block, iv).CryptBlocks(region[:full], region[:full])
	}
}

// cbcPatternCrypt chains CBC across the encrypted blocks of the pattern,
// skipping clear blocks without advancing the chain.
func cbcPatternCrypt(block cipher.Block, iv []byte, pattern scheme.Pattern, region []byte, encrypt bool) {
	prev := bytes.Clone(iv)
	scratch := make([]byte, aes.BlockSize)
	forEachPatternBlock(pattern, region, func(chunk []byte) {
		for offset := 0; offset+aes.BlockSize <= len(chunk); offset += aes.BlockSize {
			current := chunk[offset : offset+aes.BlockSize]
			if encrypt {
				for i := range current {
					current[i] ^= prev[i]
				}
				block.Encrypt(current, current)
				copy(prev, current)
			} else {
				copy(scratch, current)
				block.Decrypt(current, current)
				for i := range current {
					current[i] ^= prev[i]
				}
				copy(prev, scratch)
			}
		}
	})
}

// forEachPatternBlock yields the encrypted chunks of the crypt/skip
// pattern. Only whole cipher blocks are ever encrypted; the trailing
// partial block is always clear.
func forEachPatternBlock(pattern scheme.Pattern, region []byte, fn func(chunk []byte)) {
	cryptLen := int(pattern.CryptByteBlock) * aes.BlockSize
	skipLen := int(pattern.SkipByteBlock) * aes.BlockSize
	if cryptLen == 0 {
		return
	}
	if skipLen == 0 {
		if full := len(region) / aes.BlockSize * aes.BlockSize; full > 0 {
			fn(region[:full])
		}
		return
	}
	for offset := 0; offset+aes.BlockSize <= len(region); offset += cryptLen + skipLen {
		end := offset + cryptLen
		if full := offset + (len(region)-offset)/aes.BlockSize*aes.BlockSize; end > full {
			end = full
		}
		if end > offset {
			fn(region[offset:end])
		}
	}
}

// nalUnit is one Annex B unit: the start code and header stay clear and
// the payload of VCL units is protected.
type nalUnit struct {
	payload []byte
	protect bool
}

// splitNALUnits walks Annex B start codes. Data without a leading start
// code is treated as a single unit so callers still get header-clear
// protection for length-prefixed input.
func splitNALUnits(codec string, data []byte) []nalUnit {
	headerLen := 1
	if isH265(codec) {
		headerLen = 2
	}

	starts := startCodeOffsets(data)
	if len(starts) == 0 {
		starts = [][2]int{{0, 0}}
	}

	units := make([]nalUnit, 0, len(starts))
	for i, start := range starts {
		begin := start[0] + start[1]
		end := len(data)
		if i+1 < len(starts) {
			end = starts[i+1][0]
		}
		if begin+headerLen > end {
			continue
		}
		unit := data[begin:end]
		units = append(units, nalUnit{
			payload: unit[headerLen:],
			protect: isVCLUnit(codec, unit[0]),
		})
	}
	return units
}

// startCodeOffsets returns (offset, length) for each Annex B start code.
func startCodeOffsets(data []byte) [][2]int {
	var offsets [][2]int
	for i := 0; i+3 <= len(data); {
		if data[i] == 0 && data[i+1] == 0 {
			if data[i+2] == 1 {
				offsets = append(offsets, [2]int{i, 3})
				i += 3
				continue
			}
			if i+4 <= len(data) && data[i+2] == 0 && data[i+3] == 1 {
				offsets = append(offsets, [2]int{i, 4})
				i += 4
				continue
			}
		}
		i++
	}
	return offsets
}

func isH265(codec string) bool {
	c := strings.ToLower(codec)
	for _, prefix := range []string{"hvc", "hev", "h265", "h.265"} {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

// isVCLUnit reports whether the NAL header byte marks a coded slice.
func isVCLUnit(codec string, header byte) bool {
	if isH265(codec) {
		nalType := (header >> 1) & 0x3f
		return nalType <= 31
	}
	nalType := header & 0x1f
	return nalType >= 1 && nalType <= 5
}

// vp9SuperframeIndexSize returns the byte length of a trailing superframe
// index, or zero when the sample is a plain frame.
func vp9SuperframeIndexSize(data []byte) int {
	if len(data) == 0 {
		return 0
	}
	marker := data[len(data)-1]
	if marker&0xe0 != 0xc0 {
		return 0
	}
	frames := int(marker&0x07) + 1
	sizeLen := int((marker>>3)&0x03) + 1
	indexSize := 2 + frames*sizeLen
	if indexSize > len(data) {
		return 0
	}
	// The index starts and ends with the same marker byte.
	if data[len(data)-indexSize] != marker {
		return 0
	}
	return indexSize
}
